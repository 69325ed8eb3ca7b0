package http

import "net/http"

// NotFoundHandler is the catch-all route. It answers with the same JSON
// error envelope the real handlers use, not the stdlib plain-text 404.
func NotFoundHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, codeNotFound, "not found")
	})
}
