// Package testapp simulates the HTTP surface of the deployed agent
// application so the probe battery can be exercised end to end in tests.
package testapp

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
)

// Options tweaks the simulated application.
type Options struct {
	// Token is the bearer token accepted by protected endpoints. Empty means
	// every protected endpoint answers 401.
	Token string

	// Status forces a status code for "METHOD /path" keys, e.g. "POST /api/chat".
	Status map[string]int

	// Health replaces the /health response body.
	Health map[string]any

	// LoginContentType overrides the content type of /login.
	LoginContentType string

	// DisableCORS removes the CORS middleware.
	DisableCORS bool

	// HealthDelay is added to every /health response.
	HealthDelay time.Duration

	// DBConnected makes the database diagnostic answer 200 instead of 503.
	DBConnected bool
}

// NewServer starts the simulated application on a loopback listener.
func NewServer(opts Options) *httptest.Server {
	return httptest.NewServer(New(opts))
}

// New returns the simulated application's handler.
func New(opts Options) http.Handler {
	r := chi.NewRouter()
	if !opts.DisableCORS {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"*"},
		}))
	}
	r.Use(opts.forcedStatus)

	r.Get("/health", opts.health)
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
	})
	r.Get("/login", func(w http.ResponseWriter, r *http.Request) {
		contentType := opts.LoginContentType
		if contentType == "" {
			contentType = "text/html; charset=utf-8"
		}
		w.Header().Set("Content-Type", contentType)
		_, _ = w.Write([]byte("<html><body>login</body></html>"))
	})
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>swagger</body></html>"))
	})
	r.Post("/api/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Username string `json:"username"`
			Password string `json:"password"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Username == "" || body.Password == "" {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "field required"})
			return
		}
		writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "invalid credentials"})
	})

	r.Group(func(r chi.Router) {
		r.Use(opts.requireToken)
		r.Post("/api/chat", chat)
		r.Post("/api/agent/chat", chat)
		r.Get("/api/sales/summary", ok(map[string]any{"total_sales": 1250000}))
		r.Get("/api/analytics/metrics", ok(map[string]any{"active_users": 42}))
		r.Get("/api/analytics/timeseries", ok(map[string]any{"points": []int{1, 2, 3}}))
	})

	r.Get("/admin", func(w http.ResponseWriter, r *http.Request) {
		if !opts.authorized(r) {
			http.Redirect(w, r, "/login", http.StatusTemporaryRedirect)
			return
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte("<html><body>admin</body></html>"))
	})
	r.Get("/api/diagnostic/db-test", func(w http.ResponseWriter, r *http.Request) {
		if !opts.DBConnected {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"connected": false})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"connected": true})
	})

	return r
}

func (o Options) health(w http.ResponseWriter, r *http.Request) {
	if o.HealthDelay > 0 {
		time.Sleep(o.HealthDelay)
	}
	body := o.Health
	if body == nil {
		body = map[string]any{
			"status":      "healthy",
			"timestamp":   time.Now().UTC().Format(time.RFC3339),
			"version":     "2.0.0",
			"environment": "test",
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (o Options) forcedStatus(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if code, ok := o.Status[r.Method+" "+r.URL.Path]; ok {
			writeJSON(w, code, map[string]any{"detail": http.StatusText(code)})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (o Options) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !o.authorized(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"detail": "Not authenticated"})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (o Options) authorized(r *http.Request) bool {
	h := r.Header.Get("Authorization")
	if o.Token == "" || !strings.HasPrefix(strings.ToLower(h), "bearer ") {
		return false
	}
	return strings.TrimSpace(h[7:]) == o.Token
}

func chat(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Message   string `json:"message"`
		AgentType string `json:"agent_type"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Message == "" {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"detail": "message required"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"response": "ok", "agent_type": body.AgentType})
}

func ok(body map[string]any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, body)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
