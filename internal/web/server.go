package web

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/handiism/gofile-downloader/internal/config"
)

// NewRouter registers every route of the dashboard on a new mux. When
// auth.Username is set, all routes but /healthz require basic auth.
func NewRouter(srv TaskService, auth config.AuthSettings, log *slog.Logger) (http.Handler, error) {
	log = log.With(slog.String("component", "web"))

	help, err := NewHelpHandler(log)
	if err != nil {
		return nil, err
	}

	mux := http.NewServeMux()
	mux.Handle("GET /{$}", NewDashboardHandler())
	mux.Handle("GET /help", help)
	mux.Handle("POST /start", NewStartHandler(srv, log))
	mux.Handle("GET /tasks", NewTasksHandler(srv, log))
	mux.Handle("GET /progress/{id}", NewProgressHandler(srv, log))
	mux.Handle("POST /pause/{id}", NewPauseHandler(srv, log))
	mux.Handle("POST /cancel/{id}", NewCancelHandler(srv, log))
	mux.Handle("POST /delete/{id}", NewDeleteHandler(srv, log))
	mux.Handle("POST /remove/{id}", NewRemoveHandler(srv, log))
	mux.Handle("GET /browse", NewBrowseHandler(srv, log))

	var handler http.Handler = mux
	if auth.Username != "" {
		handler = BasicAuth(auth.Username, auth.Password, mux)
	}

	root := http.NewServeMux()
	root.Handle("GET /healthz", NewHealthHandler())
	root.Handle("/", handler)
	return root, nil
}

// BasicAuth rejects requests that do not carry the given credentials.
func BasicAuth(username, password string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, p, ok := r.BasicAuth()
		if !ok ||
			subtle.ConstantTimeCompare([]byte(u), []byte(username)) != 1 ||
			subtle.ConstantTimeCompare([]byte(p), []byte(password)) != 1 {
			w.Header().Set("WWW-Authenticate", `Basic realm="gofile-downloader", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)

			return
		}

		next.ServeHTTP(w, r)
	})
}
