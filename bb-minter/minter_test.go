package minter

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/bitbarlabs/bitbar/bb-minter/metrics"
	"github.com/bitbarlabs/bitbar/bb-service/monclient"
	"github.com/bitbarlabs/bitbar/bb-service/testlog"
)

// mockMonitor serves a pending list and records confirms. A confirmed
// txid drops off the pending list, like the real ledger.
type mockMonitor struct {
	mu         sync.Mutex
	pending    []monclient.PendingMint
	confirmErr error
	confirmed  map[string]string
}

func newMockMonitor(pending ...monclient.PendingMint) *mockMonitor {
	return &mockMonitor{pending: pending, confirmed: make(map[string]string)}
}

func (m *mockMonitor) PendingMints(ctx context.Context) ([]monclient.PendingMint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]monclient.PendingMint, len(m.pending))
	copy(out, m.pending)
	return out, nil
}

func (m *mockMonitor) ConfirmMint(ctx context.Context, txid, inscriptionID string) (monclient.ConfirmStatus, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.confirmErr != nil {
		return monclient.NotFound, m.confirmErr
	}
	if _, ok := m.confirmed[txid]; ok {
		return monclient.AlreadyCompleted, nil
	}
	m.confirmed[txid] = inscriptionID
	for i, p := range m.pending {
		if p.Txid == txid {
			m.pending = append(m.pending[:i], m.pending[i+1:]...)
			break
		}
	}
	return monclient.Confirmed, nil
}

// mockRunner scripts subprocess outcomes per invocation.
type mockRunner struct {
	mu      sync.Mutex
	calls   int
	started chan struct{} // closed-ish signal per call, optional
	block   chan struct{} // when set, Run blocks until closed
	script  func(call int) (stdout, stderr string, err error)
}

func (r *mockRunner) Run(ctx context.Context, command string) (string, string, error) {
	r.mu.Lock()
	r.calls++
	call := r.calls
	block := r.block
	if r.started != nil {
		select {
		case r.started <- struct{}{}:
		default:
		}
	}
	r.mu.Unlock()
	if block != nil {
		<-block
	}
	return r.script(call)
}

func (r *mockRunner) callCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func successScript(id string) func(int) (string, string, error) {
	return func(int) (string, string, error) {
		return `{"inscriptions":[{"id":"` + id + `"}]}`, "", nil
	}
}

func newTestMinter(t *testing.T, mon MonitorClient, runner CommandRunner) *Minter {
	t.Helper()
	cfg := Config{
		ServerURL:       "http://localhost:3000",
		WalletName:      "hot",
		FilePath:        "bitbar.png",
		Interval:        30 * time.Second,
		MaxRetries:      3,
		InterDispatch:   0, // no pacing in tests
		MaxConcurrent:   1,
		CommandTemplate: "inscribe {wallet} {file} {destination}",
		JournalPath:     filepath.Join(t.TempDir(), "mints.json"),
	}
	m := New(cfg, mon, NewJournal(cfg.JournalPath), testlog.Logger(t, log.LvlCrit), &metrics.NoopMetrics{})
	m.runner = runner
	return m
}

func runTick(m *Minter) {
	m.tick(context.Background())
	m.wg.Wait()
}

func job(txid, sender string) monclient.PendingMint {
	return monclient.PendingMint{Txid: txid, Amount: 2000, Timestamp: 1, SenderAddress: sender}
}

func TestHappyPath(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{script: successScript("abc123i0")}
	m := newTestMinter(t, mon, runner)

	runTick(m)

	require.Equal(t, 1, runner.callCount())
	require.Equal(t, "abc123i0", mon.confirmed["aa"])
	require.Empty(t, m.PendingRetries())
	require.Empty(t, m.ActiveOperations())

	entries, err := m.journal.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "aa", entries[0].Txid)
	require.Equal(t, "bc1qsender", entries[0].Destination)

	// The job is gone from the pending list; no further invocations.
	runTick(m)
	require.Equal(t, 1, runner.callCount())
}

func TestInflightGuardAcrossTicks(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{
		script:  successScript("abc123i0"),
		started: make(chan struct{}, 1),
		block:   make(chan struct{}),
	}
	m := newTestMinter(t, mon, runner)

	ctx := context.Background()
	m.tick(ctx)
	<-runner.started // subprocess for aa is now executing

	// The monitor still lists aa (its confirm hasn't round-tripped);
	// a second tick must not dispatch it again.
	m.tick(ctx)
	require.Equal(t, []string{"aa"}, m.ActiveOperations())

	close(runner.block)
	m.wg.Wait()
	require.Equal(t, 1, runner.callCount())
}

func TestRetryThenSucceed(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{script: func(call int) (string, string, error) {
		if call <= 2 {
			return "", "error: insufficient funds", nil
		}
		return "inscription_id: late789i0\n", "", nil
	}}
	m := newTestMinter(t, mon, runner)

	runTick(m)
	runTick(m)
	require.Len(t, m.PendingRetries(), 1)
	require.Equal(t, 2, m.PendingRetries()[0].Attempts)

	runTick(m)
	require.Equal(t, 3, runner.callCount())
	require.Equal(t, "late789i0", mon.confirmed["aa"])
	// Success clears the attempt counter.
	require.Empty(t, m.PendingRetries())
}

func TestRetriesExhausted(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{script: func(int) (string, string, error) {
		return "", "broadcast failed", errors.New("exit status 1")
	}}
	m := newTestMinter(t, mon, runner)

	for i := 0; i < 5; i++ {
		runTick(m)
	}

	// Exactly MaxRetries invocations, then the txid is skipped forever.
	require.Equal(t, 3, runner.callCount())
	retries := m.PendingRetries()
	require.Len(t, retries, 1)
	require.Equal(t, RetryState{Txid: "aa", Attempts: 3, MaxRetries: 3}, retries[0])
	require.Empty(t, mon.confirmed)
}

func TestMissingSenderIsPoisoned(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", ""))
	runner := &mockRunner{script: successScript("never")}
	m := newTestMinter(t, mon, runner)

	runTick(m)
	runTick(m)

	require.Zero(t, runner.callCount())
	retries := m.PendingRetries()
	require.Len(t, retries, 1)
	require.Equal(t, 3, retries[0].Attempts)
}

func TestStderrFailureOverridesParseableStdout(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{script: func(int) (string, string, error) {
		return `{"inscriptions":[{"id":"abc123i0"}]}`, "error: something odd", nil
	}}
	m := newTestMinter(t, mon, runner)

	runTick(m)

	require.Empty(t, mon.confirmed)
	require.Equal(t, 1, m.PendingRetries()[0].Attempts)
}

func TestUnparseableStdoutIsFailure(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	runner := &mockRunner{script: func(int) (string, string, error) {
		return "inscribing... done", "", nil
	}}
	m := newTestMinter(t, mon, runner)

	runTick(m)

	require.Empty(t, mon.confirmed)
	require.Equal(t, 1, m.PendingRetries()[0].Attempts)
}

func TestConfirmFailureLeavesAttemptsUnchanged(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	mon.confirmErr = errors.New("connection reset")
	runner := &mockRunner{script: successScript("abc123i0")}
	m := newTestMinter(t, mon, runner)

	runTick(m)

	// Inscription happened and is journaled, but the ledger is behind.
	entries, err := m.journal.Entries()
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Empty(t, m.PendingRetries())

	// Next tick re-executes: this is the documented residual hazard of
	// the confirm step, bounded by MaxRetries only on tool failures.
	mon.mu.Lock()
	mon.confirmErr = nil
	mon.mu.Unlock()
	runTick(m)
	require.Equal(t, 2, runner.callCount())
	require.Equal(t, "abc123i0", mon.confirmed["aa"])
}

func TestAlreadyCompletedIsIdempotentSuccess(t *testing.T) {
	t.Parallel()

	mon := newMockMonitor(job("aa", "bc1qsender"))
	mon.confirmed["aa"] = "earlier0i0"
	runner := &mockRunner{script: successScript("abc123i0")}
	m := newTestMinter(t, mon, runner)

	runTick(m)

	require.Empty(t, m.PendingRetries())
	require.Equal(t, "earlier0i0", mon.confirmed["aa"])
}
