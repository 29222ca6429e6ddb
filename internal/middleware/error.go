package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"go-blog-cms/internal/logger"
	"go-blog-cms/internal/view"
)

// AppError represents a custom error type for the application.
type AppError struct {
	Error   error
	Message string
	Code    int
}

// AppHandler is a custom handler function type that returns an AppError.
type AppHandler func(http.ResponseWriter, *http.Request) *AppError

// Error is a middleware that converts handler errors into responses: an
// error page for the public site, a JSON body under /admin.
func Error(log logger.Logger, view *view.View) func(AppHandler) http.Handler {
	return func(next AppHandler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					err, ok := rec.(error)
					if !ok {
						err = fmt.Errorf("%v", rec)
					}
					log.Error(err, "Panic recovered")
					respond(w, r, view, http.StatusInternalServerError, "Internal Server Error")
				}
			}()

			err := next(w, r)
			if err != nil {
				log.Error(err.Error, err.Message)
				respond(w, r, view, err.Code, err.Message)
			}
		})
	}
}

func respond(w http.ResponseWriter, r *http.Request, v *view.View, code int, message string) {
	if strings.HasPrefix(r.URL.Path, "/admin") {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(code)
		json.NewEncoder(w).Encode(map[string]string{"error": message})
		return
	}
	data := map[string]interface{}{
		"StatusCode": code,
		"StatusText": message,
	}
	w.WriteHeader(code)
	v.Render(w, r, "error.html", data)
}
