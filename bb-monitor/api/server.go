// Package api exposes the minting ledger over HTTP/JSON. It is a thin
// surface: every operation maps onto exactly one ledger call.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	qrcode "github.com/skip2/go-qrcode"

	"github.com/bitbarlabs/bitbar/bb-monitor/ledger"
	"github.com/bitbarlabs/bitbar/bb-monitor/metrics"
)

// Server serves the monitor API over a single listener.
type Server struct {
	ledger    *ledger.Ledger
	l         log.Logger
	metr      metrics.Metricer
	address   string // watched deposit address, for the landing page and QR
	lastCheck func() time.Time
	startedAt time.Time

	srv *http.Server
}

func NewServer(addr string, lgr *ledger.Ledger, watched string, lastCheck func() time.Time, l log.Logger, m metrics.Metricer, registry *prometheus.Registry) *Server {
	s := &Server{
		ledger:    lgr,
		l:         l.New("service", "api"),
		metr:      m,
		address:   watched,
		lastCheck: lastCheck,
		startedAt: time.Now(),
	}

	r := mux.NewRouter()
	r.HandleFunc("/api/pending-mints", s.handlePendingMints).Methods(http.MethodGet)
	r.HandleFunc("/api/confirm-mint", s.handleConfirmMint).Methods(http.MethodPost)
	r.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/api/minted", s.handleMinted).Methods(http.MethodGet)
	r.HandleFunc("/qrcode", s.handleQRCode).Methods(http.MethodGet)
	r.HandleFunc("/", s.handleIndex).Methods(http.MethodGet)
	if registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	}

	s.srv = &http.Server{
		Addr:    addr,
		Handler: r,
	}
	return s
}

// Start blocks serving requests until Shutdown is called.
func (s *Server) Start() error {
	s.l.Info("monitor API listening", "addr", s.srv.Addr)
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests and stops the listener.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}

// PendingMint is one queued minting job as seen by the worker.
type PendingMint struct {
	Txid          string `json:"txid"`
	Amount        int64  `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	SenderAddress string `json:"sender_address"`
}

func (s *Server) handlePendingMints(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ledger.ListPending(r.Context())
	if err != nil {
		s.serverError(w, "list pending", err)
		return
	}
	// Always an array, never null.
	out := make([]PendingMint, 0, len(recs))
	for _, rec := range recs {
		if rec.SenderAddress == "" {
			// Pending implies a sender; a violating row is not served.
			s.l.Error("pending record without sender", "txid", rec.Txid)
			continue
		}
		out = append(out, PendingMint{
			Txid:          rec.Txid,
			Amount:        rec.AmountSats,
			Timestamp:     rec.FirstSeenMS,
			SenderAddress: rec.SenderAddress,
		})
	}
	writeJSON(w, http.StatusOK, out)
}

type confirmRequest struct {
	Txid          string `json:"txid"`
	InscriptionID string `json:"inscription_id"`
}

func (s *Server) handleConfirmMint(w http.ResponseWriter, r *http.Request) {
	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "invalid request body",
		})
		return
	}
	if req.Txid == "" {
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "txid is required",
		})
		return
	}

	res, err := s.ledger.Confirm(r.Context(), req.Txid, req.InscriptionID)
	if err != nil {
		s.serverError(w, "confirm mint", err)
		return
	}
	s.metr.RecordConfirm(res.String())

	switch res {
	case ConfirmOK:
		rec, err := s.ledger.Get(r.Context(), req.Txid)
		if err != nil {
			s.serverError(w, "load confirmed record", err)
			return
		}
		s.l.Info("mint confirmed", "txid", req.Txid, "inscriptionID", req.InscriptionID)
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true, "transaction": rec,
		})
	case ConfirmNotFound:
		writeJSON(w, http.StatusNotFound, map[string]interface{}{
			"success": false, "error": "unknown txid",
		})
	default:
		writeJSON(w, http.StatusBadRequest, map[string]interface{}{
			"success": false, "error": "already completed",
		})
	}
}

// Aliases keep the switch above readable without importing the constants
// at every use site.
const (
	ConfirmOK       = ledger.ConfirmOK
	ConfirmNotFound = ledger.ConfirmNotFound
)

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	total, pending, err := s.ledger.Counts(r.Context())
	if err != nil {
		s.serverError(w, "count transactions", err)
		return
	}
	var last interface{}
	if t := s.lastCheck(); !t.IsZero() {
		last = t.UTC().Format(time.RFC3339)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalTransactions": total,
		"pendingMints":      pending,
		"uptime":            int64(time.Since(s.startedAt).Seconds()),
		"lastCheck":         last,
	})
}

func (s *Server) handleMinted(w http.ResponseWriter, r *http.Request) {
	recs, err := s.ledger.ListCompleted(r.Context())
	if err != nil {
		s.serverError(w, "list completed", err)
		return
	}
	if recs == nil {
		recs = []ledger.Record{}
	}
	writeJSON(w, http.StatusOK, recs)
}

func (s *Server) handleQRCode(w http.ResponseWriter, r *http.Request) {
	png, err := qrcode.Encode(s.address, qrcode.Medium, 256)
	if err != nil {
		s.serverError(w, "render qr code", err)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

var indexTmpl = template.Must(template.New("index").Parse(`<!DOCTYPE html>
<html>
<head><title>bitbar monitor</title></head>
<body>
<h1>bitbar monitor</h1>
<p>Deposit address: <code>{{.Address}}</code> <img src="/qrcode" alt="deposit address" width="128"></p>
<table border="1" cellpadding="4">
<tr><th>txid</th><th>amount (sats)</th><th>status</th><th>inscription</th></tr>
{{range .Records}}<tr>
<td><code>{{.Txid}}</code></td><td>{{.AmountSats}}</td><td>{{.Status}}</td><td>{{.InscriptionID}}</td>
</tr>{{end}}
</table>
</body>
</html>
`))

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	pending, err := s.ledger.ListPending(r.Context())
	if err != nil {
		s.serverError(w, "list pending", err)
		return
	}
	completed, err := s.ledger.ListCompleted(r.Context())
	if err != nil {
		s.serverError(w, "list completed", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	err = indexTmpl.Execute(w, map[string]interface{}{
		"Address": s.address,
		"Records": append(pending, completed...),
	})
	if err != nil {
		s.l.Error("failed to render index", "err", err)
	}
}

func (s *Server) serverError(w http.ResponseWriter, op string, err error) {
	s.l.Error("request failed", "op", op, "err", err)
	writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
		"success": false, "error": fmt.Sprintf("%s failed", op),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
