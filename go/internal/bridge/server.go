package bridge

import (
	"encoding/json"
	"net/http"

	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// NewServer serves the hub at /ws alongside a snapshot endpoint and a health
// check.
func NewServer(addr string, allowedOrigins []string, hub *Hub) *http.Server {
	mux := http.NewServeMux()
	RegisterRoutes(mux, hub)

	if len(allowedOrigins) == 0 {
		allowedOrigins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowedOrigins: allowedOrigins,
		AllowedHeaders: []string{"*"},
	})

	return &http.Server{
		Addr:    addr,
		Handler: h2c.NewHandler(c.Handler(mux), &http2.Server{}),
	}
}

func RegisterRoutes(mux *http.ServeMux, hub *Hub) {
	mux.HandleFunc("/ws", hub.ServeWS)
	mux.HandleFunc("/api/session", hub.handleSnapshot)
	mux.HandleFunc("/ws/stats", hub.handleStats)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			log.Error().Err(err).Msg("failed to write health check response")
		}
	})
}

func (h *Hub) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	s, err := h.driver.Snapshot()
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, s)
}

func (h *Hub) handleStats(w http.ResponseWriter, r *http.Request) {
	conns := h.Stats()
	writeJSON(w, struct {
		Total       int               `json:"total_connections"`
		Connections []ConnectionStats `json:"connections"`
	}{Total: len(conns), Connections: conns})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write response")
	}
}
