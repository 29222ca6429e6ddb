package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"

	"go-blog-cms/internal/data"
	"go-blog-cms/internal/editor"
	"go-blog-cms/internal/middleware"
	"go-blog-cms/internal/session"
	"go-blog-cms/internal/store"
)

// remoteSurface stands in for the browser-side rich-text widget. It holds
// the last content the client reported so the buffer's identity checks work
// the same way they would against a live widget.
type remoteSurface struct {
	mu      sync.Mutex
	content string
}

func (s *remoteSurface) Content() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.content
}

func (s *remoteSurface) SetContent(content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.content = content
}

type editorRequest struct {
	// Content is the widget's full document; absent means no new edit.
	Content *string `json:"content"`
	// Flush forces the pending propagation before responding, typically
	// right before the client triggers a save.
	Flush bool `json:"flush"`
}

type editorResponse struct {
	State     string `json:"state"`
	WordCount int    `json:"wordCount"`
	CharCount int    `json:"charCount"`
}

// editorFeed accepts debounced keystroke batches from the admin editor.
// Edits pass through the session's buffer, which coalesces them and writes
// the post content plus an autosave revision once per debounce window.
func (h *AdminHandler) editorFeed(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to open editor")
	}

	postID := chi.URLParam(r, "id")
	if _, ok := sc.Store().GetPost(postID); !ok {
		return &middleware.AppError{Error: errors.New("post not found: " + postID), Message: "Post not found", Code: http.StatusNotFound}
	}

	var req editorRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return &middleware.AppError{Error: err, Message: "Invalid request body", Code: http.StatusBadRequest}
	}

	userInfo := middleware.GetUserInfo(r.Context())
	buf := h.acquireBuffer(sc, postID, userInfo.Subject)
	if buf == nil {
		return &middleware.AppError{Error: errors.New("session disposed"), Message: "Session expired", Code: http.StatusConflict}
	}

	if req.Content != nil {
		buf.SurfaceChanged(*req.Content)
	}
	if req.Flush {
		buf.Flush()
	}

	respondJSON(w, http.StatusOK, editorResponse{
		State:     buf.State().String(),
		WordCount: buf.WordCount(),
		CharCount: buf.CharCount(),
	})
	return nil
}

// closeEditor tears down the buffer when the client leaves the editor.
func (h *AdminHandler) closeEditor(w http.ResponseWriter, r *http.Request) *middleware.AppError {
	sc, err := h.sessionContext(r)
	if err != nil {
		return appError(err, "Failed to close editor")
	}
	sc.CloseBuffer(chi.URLParam(r, "id"))
	respondJSON(w, http.StatusNoContent, nil)
	return nil
}

// acquireBuffer returns the open buffer for the post, creating one seeded
// with the post's current content on first use.
func (h *AdminHandler) acquireBuffer(sc *session.Context, postID, author string) *editor.Buffer {
	if buf, ok := sc.LookupBuffer(postID); ok {
		return buf
	}

	st := sc.Store()
	sink := func(content string) {
		// Propagation runs on the debounce timer, detached from any
		// request context.
		ctx := context.Background()
		if _, err := st.UpdatePost(ctx, postID, store.PostPatch{Content: &content}); err != nil {
			h.log.Error(err, "autosave update failed")
			return
		}
		if _, err := h.gw.CreateRevision(ctx, postID, data.RevisionAutosave, author); err != nil {
			h.log.Error(err, "autosave revision failed")
		}
	}

	opened := sc.OpenBuffer(postID, &remoteSurface{}, sink)
	if opened == nil {
		return nil
	}
	if post, ok := st.GetPost(postID); ok {
		opened.SetValue(post.Content)
	}
	return opened.Buffer
}
