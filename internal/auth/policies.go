package auth

import (
	"fmt"

	"go-blog-cms/internal/logger"

	"github.com/casbin/casbin/v2"
)

// RoleAnonymous is the default role for unauthenticated visitors.
const RoleAnonymous = "anonymous"

// RoleEditor is the role granted to authenticated content managers. It is
// the only role that carries session privilege.
const RoleEditor = "editor"

// SeedDefaultPolicies ensures the application has a baseline set of
// authorization rules. Each policy is checked before insertion, so seeding
// is idempotent and safe on every start.
func SeedDefaultPolicies(e casbin.IEnforcer, log logger.Logger) {
	log.Info("Seeding default authorization policies...")

	policies := [][]string{
		// Anonymous visitors read published content and may start a login.
		{RoleAnonymous, "/", "GET"},
		{RoleAnonymous, "/posts/*", "GET"},
		{RoleAnonymous, "/category/*", "GET"},
		{RoleAnonymous, "/search", "GET"},
		{RoleAnonymous, "/static/*", "GET"},
		{RoleAnonymous, "/auth/login", "GET"},
		{RoleAnonymous, "/auth/callback", "GET"},
		{RoleAnonymous, "/auth/logout", "POST"},

		// Editors manage content through the admin API.
		{RoleEditor, "/admin/*", "GET"},
		{RoleEditor, "/admin/*", "POST"},
		{RoleEditor, "/admin/*", "PUT"},
		{RoleEditor, "/admin/*", "DELETE"},
	}
	for _, p := range policies {
		if has, _ := e.HasPolicy(p); !has {
			if _, err := e.AddPolicy(p); err != nil {
				log.Error(err, fmt.Sprintf("Failed to add policy %v", p))
			}
		}
	}

	// Editors inherit everything anonymous visitors can do.
	if has, _ := e.HasRoleForUser(RoleEditor, RoleAnonymous); !has {
		if _, err := e.AddRoleForUser(RoleEditor, RoleAnonymous); err != nil {
			log.Error(err, "Failed to add role 'editor' -> 'anonymous'")
		}
	}
	log.Info("Policy seeding complete.")
}
