package middleware

import (
	"mime"
	"net/http"

	"github.com/greenyield/greenyield/internal/api/models"
)

// RequireJSON rejects POST, PUT and PATCH bodies that declare a content type
// other than application/json. A missing Content-Type is accepted.
func RequireJSON(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPost, http.MethodPut, http.MethodPatch:
			if ct := r.Header.Get("Content-Type"); ct != "" {
				mediaType, _, err := mime.ParseMediaType(ct)
				if err != nil || mediaType != "application/json" {
					models.NewProblem(models.ProblemTypeUnsupportedType, "Unsupported media type",
						http.StatusUnsupportedMediaType, GetRequestID(r.Context())).
						WithDetail("Content-Type must be application/json").
						WithInstance(r.URL.Path).
						Write(w)
					return
				}
			}
		}
		next.ServeHTTP(w, r)
	})
}
