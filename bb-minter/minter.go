// Package minter implements the bitbar minter worker: it polls the monitor
// for pending mints, invokes the external inscription tool once per
// eligible transaction with bounded retries, and confirms completions back
// to the monitor's ledger.
package minter

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"golang.org/x/time/rate"

	"github.com/bitbarlabs/bitbar/bb-minter/metrics"
	"github.com/bitbarlabs/bitbar/bb-service/monclient"
)

// MonitorClient is the slice of the monitor API the worker consumes.
type MonitorClient interface {
	PendingMints(ctx context.Context) ([]monclient.PendingMint, error)
	ConfirmMint(ctx context.Context, txid, inscriptionID string) (monclient.ConfirmStatus, error)
}

// RetryState is one entry of the worker's attempt bookkeeping, surfaced on
// the introspection endpoint.
type RetryState struct {
	Txid       string `json:"txid"`
	Attempts   int    `json:"attempts"`
	MaxRetries int    `json:"maxRetries"`
}

// Minter is the worker service. The in-flight set guarantees at most one
// concurrent subprocess per txid within this process; the execution
// semaphore keeps distinct-txid subprocesses sequential by default since
// they all share one physical wallet.
type Minter struct {
	cfg     Config
	l       log.Logger
	metr    metrics.Metricer
	client  MonitorClient
	journal *Journal
	runner  CommandRunner
	limiter *rate.Limiter

	mu       sync.Mutex
	inflight map[string]struct{}
	attempts map[string]int

	execSlots chan struct{}
	wg        sync.WaitGroup
	startedAt time.Time
	now       func() time.Time
}

func New(cfg Config, client MonitorClient, journal *Journal, l log.Logger, m metrics.Metricer) *Minter {
	concurrency := cfg.MaxConcurrent
	if concurrency <= 0 {
		concurrency = 1
	}
	return &Minter{
		cfg:       cfg,
		l:         l.New("service", "minter"),
		metr:      m,
		client:    client,
		journal:   journal,
		runner:    shellRunner{},
		limiter:   rate.NewLimiter(rate.Every(cfg.InterDispatch), 1),
		inflight:  make(map[string]struct{}),
		attempts:  make(map[string]int),
		execSlots: make(chan struct{}, concurrency),
		startedAt: time.Now(),
		now:       time.Now,
	}
}

// Start runs the scheduler loop until ctx is cancelled.
func (m *Minter) Start(ctx context.Context) {
	m.l.Info("minter started",
		"interval", m.cfg.Interval, "wallet", m.cfg.WalletName, "file", m.cfg.FilePath)
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	m.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			// In-flight subprocesses are orphaned on purpose; the next
			// run rediscovers their transactions via the pending list.
			if active := m.ActiveOperations(); len(active) > 0 {
				m.l.Warn("exiting with operations in flight", "txids", active)
			}
			m.l.Info("minter stopping")
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick fetches the pending list and dispatches a handler per new txid.
// Dispatches are spaced by the rate limiter so the wallet tool is never
// hammered; txids already in flight from a previous tick are skipped.
func (m *Minter) tick(ctx context.Context) {
	m.metr.RecordTick()

	pending, err := m.client.PendingMints(ctx)
	if err != nil {
		m.metr.RecordFetchError()
		if monclient.IsConnRefused(err) {
			m.l.Error("monitor is not reachable, is bitbar-monitor running?", "url", m.cfg.ServerURL, "err", err)
		} else {
			m.l.Warn("pending-mints fetch failed, retrying next tick", "err", err)
		}
		return
	}
	if len(pending) > 0 {
		m.l.Info("fetched pending mints", "count", len(pending))
	}

	for _, job := range pending {
		if !m.acquire(job.Txid) {
			continue
		}
		if err := m.limiter.Wait(ctx); err != nil {
			m.release(job.Txid)
			return
		}
		job := job
		m.wg.Add(1)
		go func() {
			defer m.wg.Done()
			defer m.release(job.Txid)
			m.handle(ctx, job)
		}()
	}
}

// handle runs one minting attempt for a pending transaction.
func (m *Minter) handle(ctx context.Context, job monclient.PendingMint) {
	l := m.l.New("txid", job.Txid)

	attempts := m.attemptsFor(job.Txid)
	if attempts >= m.cfg.MaxRetries {
		l.Debug("retries exhausted, skipping", "attempts", attempts)
		return
	}

	if job.SenderAddress == "" {
		// The monitor should never list such a record; poison it so we
		// don't spin on it forever.
		l.Error("pending mint without sender address, poisoning")
		m.setAttempts(job.Txid, m.cfg.MaxRetries)
		return
	}

	select {
	case m.execSlots <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-m.execSlots }()

	m.metr.RecordMintAttempt()
	command := buildCommand(m.cfg.CommandTemplate, m.cfg.WalletName, m.cfg.FilePath, job.SenderAddress)
	l.Info("invoking inscription tool", "destination", job.SenderAddress, "attempt", attempts+1)

	stdout, stderr, err := m.runner.Run(ctx, command)
	if err != nil {
		l.Error("inscription tool failed", "err", err, "stderr", firstLine(stderr))
		m.recordFailure(job.Txid, "exec")
		return
	}
	if stderrSignalsFailure(stderr) {
		l.Error("inscription tool reported failure", "stderr", firstLine(stderr))
		m.recordFailure(job.Txid, "stderr")
		return
	}
	inscriptionID, ok := parseInscriptionID(stdout)
	if !ok {
		l.Error("could not parse inscription id from tool output", "stdout", firstLine(stdout))
		m.recordFailure(job.Txid, "parse")
		return
	}
	l.Info("inscription created", "inscriptionID", inscriptionID)

	if err := m.journal.Append(JournalEntry{
		Txid:          job.Txid,
		InscriptionID: inscriptionID,
		Destination:   job.SenderAddress,
		Timestamp:     m.now().UTC().Format(time.RFC3339),
	}); err != nil {
		// The ledger is authoritative; a journal write failure must not
		// block confirmation.
		l.Error("journal append failed", "err", err)
	}

	status, err := m.client.ConfirmMint(ctx, job.Txid, inscriptionID)
	if err != nil {
		// The inscription is on-chain but the ledger doesn't know yet.
		// Attempts stay unchanged so the next tick retries the confirm;
		// the monitor's already-completed answer makes that idempotent
		// only if this confirm actually landed.
		l.Error("inscription succeeded but confirm failed, will retry", "err", err)
		m.metr.RecordMintFailure("confirm")
		return
	}
	switch status {
	case monclient.Confirmed, monclient.AlreadyCompleted:
		m.clearAttempts(job.Txid)
		m.metr.RecordMintSuccess()
		l.Info("mint confirmed", "inscriptionID", inscriptionID)
	case monclient.NotFound:
		l.Error("monitor does not know this txid, dropping")
		m.setAttempts(job.Txid, m.cfg.MaxRetries)
	}
}

func (m *Minter) recordFailure(txid, reason string) {
	m.metr.RecordMintFailure(reason)
	m.mu.Lock()
	m.attempts[txid]++
	attempts := m.attempts[txid]
	m.mu.Unlock()
	if attempts >= m.cfg.MaxRetries {
		m.l.Warn("mint retries exhausted", "txid", txid, "attempts", attempts)
	}
}

func (m *Minter) acquire(txid string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.inflight[txid]; ok {
		return false
	}
	m.inflight[txid] = struct{}{}
	m.metr.RecordInflight(int64(len(m.inflight)))
	return true
}

func (m *Minter) release(txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inflight, txid)
	m.metr.RecordInflight(int64(len(m.inflight)))
}

func (m *Minter) attemptsFor(txid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.attempts[txid]
}

func (m *Minter) setAttempts(txid string, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.attempts[txid] = n
}

func (m *Minter) clearAttempts(txid string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attempts, txid)
}

// ActiveOperations returns the txids currently in flight.
func (m *Minter) ActiveOperations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, 0, len(m.inflight))
	for txid := range m.inflight {
		out = append(out, txid)
	}
	return out
}

// PendingRetries returns the attempt counters for txids that have failed
// at least once and not yet succeeded.
func (m *Minter) PendingRetries() []RetryState {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]RetryState, 0, len(m.attempts))
	for txid, n := range m.attempts {
		out = append(out, RetryState{Txid: txid, Attempts: n, MaxRetries: m.cfg.MaxRetries})
	}
	return out
}

func (m *Minter) Uptime() time.Duration {
	return time.Since(m.startedAt)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
