package minter

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Server is the worker's local introspection surface: live operation state
// and the journal, read-only.
type Server struct {
	minter  *Minter
	journal *Journal
	l       log.Logger

	srv *http.Server
}

func NewServer(addr string, m *Minter, journal *Journal, l log.Logger, registry *prometheus.Registry) *Server {
	s := &Server{
		minter:  m,
		journal: journal,
		l:       l.New("service", "introspection"),
	}

	r := mux.NewRouter()
	r.HandleFunc("/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/mints", s.handleMints).Methods(http.MethodGet)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{Addr: addr, Handler: r}
	return s
}

func (s *Server) Start() error {
	s.l.Info("introspection server listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"uptime":           int64(s.minter.Uptime().Seconds()),
		"activeOperations": s.minter.ActiveOperations(),
		"pendingRetries":   s.minter.PendingRetries(),
		"totalMints":       s.journal.Count(),
	})
}

func (s *Server) handleMints(w http.ResponseWriter, r *http.Request) {
	entries, err := s.journal.Entries()
	if err != nil {
		s.l.Error("failed to read journal", "err", err)
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "journal read failed",
		})
		return
	}
	if entries == nil {
		entries = []JournalEntry{}
	}
	writeJSON(w, http.StatusOK, entries)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
