package handler

import (
	"bytes"
	"errors"
	"html/template"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"go-blog-cms/internal/cache"
	"go-blog-cms/internal/data"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/middleware"
	"go-blog-cms/internal/session"
	"go-blog-cms/internal/view"
)

// PublicHandler serves the reader-facing HTML pages.
type PublicHandler struct {
	registry *session.Registry
	sm       session.Manager
	view     *view.View
	cache    *cache.Cache
	cacheTTL time.Duration
	log      logger.Logger
}

// NewPublicHandler creates a PublicHandler with the given dependencies.
func NewPublicHandler(reg *session.Registry, sm session.Manager, v *view.View, c *cache.Cache, cacheTTL time.Duration, log logger.Logger) *PublicHandler {
	return &PublicHandler{
		registry: reg,
		sm:       sm,
		view:     v,
		cache:    c,
		cacheTTL: cacheTTL,
		log:      log,
	}
}

func (h *PublicHandler) sessionContext(r *http.Request) (*session.Context, error) {
	userInfo := middleware.GetUserInfo(r.Context())
	return h.registry.Acquire(r.Context(), h.sm.Token(r.Context()), userInfo.Privileged())
}

// cacheable reports whether this request may be served from the rendered
// page cache. Only anonymous traffic is; editors see live data.
func (h *PublicHandler) cacheable(r *http.Request) bool {
	return h.cache != nil && !middleware.GetUserInfo(r.Context()).Privileged()
}

func (h *PublicHandler) renderCached(w http.ResponseWriter, r *http.Request, name string, pageData map[string]interface{}) *middleware.AppError {
	key := cache.PageKey(r.URL.RequestURI())
	if h.cacheable(r) {
		if cached, err := h.cache.Get(key); err == nil && cached != nil {
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			w.Write(cached)
			return nil
		}
	}

	buf := new(bytes.Buffer)
	if err := h.view.Render(buf, r, name, pageData); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render page", Code: http.StatusInternalServerError}
	}
	if h.cacheable(r) {
		if err := h.cache.Set(key, buf.Bytes(), h.cacheTTL); err != nil {
			h.log.Error(err, "failed to cache rendered page")
		}
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	buf.WriteTo(w)
	return nil
}

// homeHandler renders the published post list.
func (h *PublicHandler) homeHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load posts", Code: http.StatusInternalServerError}
	}

	posts := publishedOnly(sc.Store().Posts())
	return h.renderCached(w, r, "home.html", map[string]interface{}{
		"Posts": posts,
	})
}

// postHandler renders one post by slug. An unknown slug is an expected
// condition and maps to 404, never to a server error.
func (h *PublicHandler) postHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load post", Code: http.StatusInternalServerError}
	}

	slug := chi.URLParam(r, "slug")
	post, ok := sc.Store().GetPostBySlug(slug)
	if !ok || (!sc.IsPrivileged() && post.Status != data.StatusPublished) {
		return &middleware.AppError{Error: errors.New("post not found: " + slug), Message: "Post not found", Code: http.StatusNotFound}
	}

	return h.renderCached(w, r, "post.html", map[string]interface{}{
		"Post": post,
		// Content was sanitized on the way into the store.
		"Content": template.HTML(post.Content),
	})
}

// categoryHandler renders the published posts belonging to one category.
func (h *PublicHandler) categoryHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to load category", Code: http.StatusInternalServerError}
	}

	slug := chi.URLParam(r, "slug")
	var category data.Category
	found := false
	for _, c := range sc.Store().Categories() {
		if c.Slug == slug {
			category = c
			found = true
			break
		}
	}
	if !found {
		return &middleware.AppError{Error: errors.New("category not found: " + slug), Message: "Category not found", Code: http.StatusNotFound}
	}

	var posts []data.Post
	for _, p := range publishedOnly(sc.Store().Posts()) {
		if p.CategoryID == category.ID {
			posts = append(posts, p)
		}
	}

	return h.renderCached(w, r, "category.html", map[string]interface{}{
		"Category": category,
		"Posts":    posts,
	})
}

// searchHandler renders full-text search results.
func (h *PublicHandler) searchHandler(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Search failed", Code: http.StatusInternalServerError}
	}

	query := strings.TrimSpace(r.URL.Query().Get("q"))
	var posts []data.Post
	if query != "" {
		results, err := sc.Store().SearchPosts(r.Context(), query)
		if err != nil {
			return &middleware.AppError{Error: err, Message: "Search failed", Code: http.StatusInternalServerError}
		}
		posts = publishedOnly(results)
	}

	// Search results vary per query string; skip the page cache.
	if err := h.view.Render(w, r, "search.html", map[string]interface{}{
		"Query": query,
		"Posts": posts,
	}); err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to render search results", Code: http.StatusInternalServerError}
	}
	return nil
}

func publishedOnly(posts []data.Post) []data.Post {
	var out []data.Post
	for _, p := range posts {
		if p.Status == data.StatusPublished {
			out = append(out, p)
		}
	}
	return out
}
