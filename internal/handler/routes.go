package handler

import (
	"io/fs"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"go-blog-cms/internal/middleware"
	"go-blog-cms/internal/session"
)

// NewRouter creates and configures a new chi router.
func NewRouter(
	public *PublicHandler,
	admin *AdminHandler,
	authHandler *AuthHandler,
	authz func(http.Handler) http.Handler,
	errorMW func(middleware.AppHandler) http.Handler,
	sm session.Manager,
	staticFS fs.FS,
) *chi.Mux {
	r := chi.NewRouter()

	// A good base middleware stack
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Logger)
	r.Use(chimiddleware.Recoverer)
	r.Use(sm.LoadAndSave)
	r.Use(authz)

	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(staticFS))))

	// Public pages
	r.Method(http.MethodGet, "/", errorMW(public.homeHandler))
	r.Method(http.MethodGet, "/posts/{slug}", errorMW(public.postHandler))
	r.Method(http.MethodGet, "/category/{slug}", errorMW(public.categoryHandler))
	r.Method(http.MethodGet, "/search", errorMW(public.searchHandler))

	// Authentication
	r.Get("/auth/login", authHandler.handleLogin)
	r.Get("/auth/callback", authHandler.handleCallback)
	r.Post("/auth/logout", authHandler.handleLogout)

	// Content management API; the authorizer only lets editors through.
	r.Route("/admin", func(r chi.Router) {
		r.Method(http.MethodGet, "/posts", errorMW(admin.listPosts))
		r.Method(http.MethodPost, "/posts", errorMW(admin.createPost))
		r.Method(http.MethodGet, "/posts/{id}", errorMW(admin.getPost))
		r.Method(http.MethodPut, "/posts/{id}", errorMW(admin.updatePost))
		r.Method(http.MethodDelete, "/posts/{id}", errorMW(admin.deletePost))
		r.Method(http.MethodPost, "/posts/{id}/transition", errorMW(admin.transitionPost))

		r.Method(http.MethodPut, "/posts/{id}/editor", errorMW(admin.editorFeed))
		r.Method(http.MethodDelete, "/posts/{id}/editor", errorMW(admin.closeEditor))

		r.Method(http.MethodGet, "/posts/{id}/revisions", errorMW(admin.listRevisions))
		r.Method(http.MethodPost, "/posts/{id}/revisions", errorMW(admin.createRevision))
		r.Method(http.MethodPost, "/posts/{id}/revisions/{revisionID}/restore", errorMW(admin.restoreRevision))

		r.Method(http.MethodGet, "/categories", errorMW(admin.listCategories))
		r.Method(http.MethodPost, "/categories", errorMW(admin.createCategory))
		r.Method(http.MethodDelete, "/categories/{id}", errorMW(admin.deleteCategory))

		r.Method(http.MethodGet, "/tags", errorMW(admin.listTags))
		r.Method(http.MethodPost, "/tags", errorMW(admin.createTag))
		r.Method(http.MethodDelete, "/tags/{id}", errorMW(admin.deleteTag))

		r.Method(http.MethodGet, "/search", errorMW(admin.searchPosts))
		r.Method(http.MethodGet, "/scheduled", errorMW(admin.listScheduled))
		r.Method(http.MethodPost, "/rpc/publish-scheduled", errorMW(admin.publishScheduled))
		r.Method(http.MethodPost, "/upload", errorMW(admin.upload))
	})

	return r
}
