package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/gateway"
	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/middleware"
	"go-blog-cms/internal/session"
	"go-blog-cms/internal/store"
	"go-blog-cms/internal/storage"
	"go-blog-cms/internal/workflow"
)

// AdminHandler serves the JSON content-management API. Mutations go through
// the session's aggregate store so optimistic-update semantics apply; the
// remote procedures and uploads go straight to the gateway.
type AdminHandler struct {
	registry *session.Registry
	sm       session.Manager
	gw       gateway.Gateway
	log      logger.Logger
}

// NewAdminHandler creates an AdminHandler.
func NewAdminHandler(reg *session.Registry, sm session.Manager, gw gateway.Gateway, log logger.Logger) *AdminHandler {
	return &AdminHandler{registry: reg, sm: sm, gw: gw, log: log}
}

func (h *AdminHandler) sessionContext(r *http.Request) (*session.Context, error) {
	return h.registry.Acquire(r.Context(), h.sm.Token(r.Context()), true)
}

func respondJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if v != nil {
		json.NewEncoder(w).Encode(v)
	}
}

// appError maps store and workflow failures to HTTP status codes. A
// validation failure is the caller's problem; anything else is ours.
func appError(err error, message string) *middleware.AppError {
	var ve *workflow.ValidationError
	if errors.As(err, &ve) {
		return &middleware.AppError{Error: err, Message: ve.Reason, Code: http.StatusUnprocessableEntity}
	}
	return &middleware.AppError{Error: err, Message: message, Code: http.StatusInternalServerError}
}

// --- posts ---

func (h *AdminHandler) listPosts(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to load posts")
	}
	respondJSON(w, http.StatusOK, sc.Store().Posts())
	return nil
}

func (h *AdminHandler) getPost(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to load post")
	}
	id := chi.URLParam(r, "id")
	post, ok := sc.Store().GetPost(id)
	if !ok {
		return &middleware.AppError{Error: errors.New("post not found: " + id), Message: "Post not found", Code: http.StatusNotFound}
	}
	respondJSON(w, http.StatusOK, post)
	return nil
}

type postRequest struct {
	Title          string   `json:"title"`
	Content        string   `json:"content"`
	Excerpt        string   `json:"excerpt"`
	FeaturedImage  string   `json:"featuredImage"`
	CategoryID     string   `json:"categoryId"`
	TagIDs         []string `json:"tagIds"`
	SEOTitle       string   `json:"seoTitle"`
	SEODescription string   `json:"seoDescription"`
	SEOKeywords    string   `json:"seoKeywords"`
}

func (h *AdminHandler) createPost(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to create post")
	}

	var req postRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	userInfo := middleware.GetUserInfo(r.Context())
	post, err := sc.Store().AddPost(r.Context(), store.DraftFields{
		Title:          req.Title,
		Content:        req.Content,
		Excerpt:        req.Excerpt,
		FeaturedImage:  req.FeaturedImage,
		CategoryID:     req.CategoryID,
		TagIDs:         req.TagIDs,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		SEOKeywords:    req.SEOKeywords,
		AuthorName:     userInfo.Subject,
	})
	if err != nil {
		return appError(err, "Failed to create post")
	}
	respondJSON(w, http.StatusCreated, post)
	return nil
}

type postPatchRequest struct {
	Title          *string   `json:"title"`
	Content        *string   `json:"content"`
	Excerpt        *string   `json:"excerpt"`
	FeaturedImage  *string   `json:"featuredImage"`
	CategoryID     *string   `json:"categoryId"`
	TagIDs         *[]string `json:"tagIds"`
	SEOTitle       *string   `json:"seoTitle"`
	SEODescription *string   `json:"seoDescription"`
	SEOKeywords    *string   `json:"seoKeywords"`
}

func (h *AdminHandler) updatePost(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to update post")
	}

	var req postPatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	post, err := sc.Store().UpdatePost(r.Context(), chi.URLParam(r, "id"), store.PostPatch{
		Title:          req.Title,
		Content:        req.Content,
		Excerpt:        req.Excerpt,
		FeaturedImage:  req.FeaturedImage,
		CategoryID:     req.CategoryID,
		TagIDs:         req.TagIDs,
		SEOTitle:       req.SEOTitle,
		SEODescription: req.SEODescription,
		SEOKeywords:    req.SEOKeywords,
	})
	if err != nil {
		return appError(err, "Failed to update post")
	}
	respondJSON(w, http.StatusOK, post)
	return nil
}

func (h *AdminHandler) deletePost(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to delete post")
	}
	if err := sc.Store().DeletePost(r.Context(), chi.URLParam(r, "id")); err != nil {
		return appError(err, "Failed to delete post")
	}
	respondJSON(w, http.StatusNoContent, nil)
	return nil
}

type transitionRequest struct {
	Status      string     `json:"status"`
	ScheduledAt *time.Time `json:"scheduledAt"`
}

func (h *AdminHandler) transitionPost(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to change status")
	}

	var req transitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	post, err := sc.Store().Transition(r.Context(), chi.URLParam(r, "id"), data.Status(req.Status), req.ScheduledAt)
	if err != nil {
		return appError(err, "Failed to change status")
	}
	respondJSON(w, http.StatusOK, post)
	return nil
}

func (h *AdminHandler) searchPosts(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Search failed")
	}
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	posts, err := sc.Store().SearchPosts(r.Context(), query)
	if err != nil {
		return appError(err, "Search failed")
	}
	respondJSON(w, http.StatusOK, posts)
	return nil
}

// --- categories and tags ---

type nameRequest struct {
	Name string `json:"name"`
}

func (h *AdminHandler) listCategories(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to load categories")
	}
	respondJSON(w, http.StatusOK, sc.Store().Categories())
	return nil
}

func (h *AdminHandler) createCategory(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to create category")
	}
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}
	category, err := sc.Store().AddCategory(r.Context(), req.Name)
	if err != nil {
		return appError(err, "Failed to create category")
	}
	respondJSON(w, http.StatusCreated, category)
	return nil
}

func (h *AdminHandler) deleteCategory(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to delete category")
	}
	if err := sc.Store().DeleteCategory(r.Context(), chi.URLParam(r, "id")); err != nil {
		return appError(err, "Failed to delete category")
	}
	respondJSON(w, http.StatusNoContent, nil)
	return nil
}

func (h *AdminHandler) listTags(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to load tags")
	}
	respondJSON(w, http.StatusOK, sc.Store().Tags())
	return nil
}

func (h *AdminHandler) createTag(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to create tag")
	}
	var req nameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}
	tag, err := sc.Store().AddTag(r.Context(), req.Name)
	if err != nil {
		return appError(err, "Failed to create tag")
	}
	respondJSON(w, http.StatusCreated, tag)
	return nil
}

func (h *AdminHandler) deleteTag(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to delete tag")
	}
	if err := sc.Store().DeleteTag(r.Context(), chi.URLParam(r, "id")); err != nil {
		return appError(err, "Failed to delete tag")
	}
	respondJSON(w, http.StatusNoContent, nil)
	return nil
}

// --- revisions ---

func (h *AdminHandler) listRevisions(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	revisions, err := h.gw.ListRevisions(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		return appError(err, "Failed to load revisions")
	}
	respondJSON(w, http.StatusOK, revisions)
	return nil
}

func (h *AdminHandler) createRevision(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	userInfo := middleware.GetUserInfo(r.Context())
	revision, err := h.gw.CreateRevision(r.Context(), chi.URLParam(r, "id"), data.RevisionManual, userInfo.Subject)
	if err != nil {
		return appError(err, "Failed to create revision")
	}
	respondJSON(w, http.StatusCreated, revision)
	return nil
}

func (h *AdminHandler) restoreRevision(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to restore revision")
	}

	userInfo := middleware.GetUserInfo(r.Context())
	post, err := h.gw.RestoreRevision(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "revisionID"), userInfo.Subject)
	if err != nil {
		return appError(err, "Failed to restore revision")
	}

	// The restore happened server-side; pull the session back in line.
	if err := sc.Store().Refresh(r.Context()); err != nil {
		h.log.Error(err, "failed to refresh after revision restore")
	}
	respondJSON(w, http.StatusOK, post)
	return nil
}

// --- scheduled publishing ---

func (h *AdminHandler) listScheduled(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	scheduled, err := h.gw.ListScheduled(r.Context())
	if err != nil {
		return appError(err, "Failed to load scheduled posts")
	}
	respondJSON(w, http.StatusOK, scheduled)
	return nil
}

func (h *AdminHandler) publishScheduled(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	published, err := h.gw.PublishDueScheduledPosts(r.Context())
	if err != nil {
		return appError(err, "Failed to publish scheduled posts")
	}
	respondJSON(w, http.StatusOK, map[string]int{"published": published})
	return nil
}

// --- upload ---

func (h *AdminHandler) upload(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	if err := r.ParseMultipartForm(storage.MaxImageSize); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid upload", Code: http.StatusBadRequest}
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Missing file field", Code: http.StatusBadRequest}
	}
	defer file.Close()

	payload, err := io.ReadAll(io.LimitReader(file, storage.MaxImageSize+1))
	if err != nil {
		return &middleware.AppError{Error: err, Message: "Failed to read upload", Code: http.StatusBadRequest}
	}
	if int64(len(payload)) > storage.MaxImageSize {
		return &middleware.AppError{Error: errors.New("upload exceeds size limit"), Message: "Image too large", Code: http.StatusRequestEntityTooLarge}
	}

	urls, err := h.gw.Upload(r.Context(), header.Filename, payload)
	if err != nil {
		return appError(err, "Upload failed")
	}
	respondJSON(w, http.StatusCreated, urls)
	return nil
}
