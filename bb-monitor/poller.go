package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/bitbarlabs/bitbar/bb-monitor/ledger"
	"github.com/bitbarlabs/bitbar/bb-monitor/metrics"
	"github.com/bitbarlabs/bitbar/bb-service/esplora"
)

// ExplorerBackend is the set of upstream explorer methods the poller uses.
type ExplorerBackend interface {
	AddressTxs(ctx context.Context, addr string) ([]esplora.Tx, error)
	Tx(ctx context.Context, txid string) (*esplora.Tx, error)
}

// Poller periodically fetches the watched address history and feeds each
// transaction through ingestion. The upstream is the source of truth; the
// ledger is a faithful cache of it plus the minting state machine.
type Poller struct {
	cfg     Config
	backend ExplorerBackend
	ledger  *ledger.Ledger
	l       log.Logger
	metr    metrics.Metricer

	lastCheck atomic.Int64 // unix ms of the last successful tick
	lastSweep time.Time
	now       func() time.Time
}

func NewPoller(cfg Config, backend ExplorerBackend, lgr *ledger.Ledger, l log.Logger, m metrics.Metricer) *Poller {
	return &Poller{
		cfg:     cfg,
		backend: backend,
		ledger:  lgr,
		l:       l.New("service", "poller"),
		metr:    m,
		now:     time.Now,
	}
}

// Start runs the poll loop until ctx is cancelled. Ticks run serially on
// this goroutine, so a slow tick cannot overlap the next one; the ticker
// drops missed ticks instead of queueing them.
func (p *Poller) Start(ctx context.Context) {
	p.l.Info("poller started", "address", p.cfg.WatchedAddress, "interval", p.cfg.PollInterval)
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	p.tick(ctx)
	for {
		select {
		case <-ctx.Done():
			p.l.Info("poller stopped")
			return
		case <-ticker.C:
			p.tick(ctx)
		}
	}
}

// LastCheck reports when the last successful upstream fetch completed, or
// the zero time if none has yet.
func (p *Poller) LastCheck() time.Time {
	ms := p.lastCheck.Load()
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

func (p *Poller) tick(ctx context.Context) {
	txs, err := p.backend.AddressTxs(ctx, p.cfg.WatchedAddress)
	if err != nil {
		p.metr.RecordUpstreamError()
		p.l.Warn("upstream fetch failed, aborting tick", "err", err)
		return
	}

	for _, tx := range txs {
		if err := p.ingest(ctx, tx); err != nil {
			p.l.Error("failed to ingest transaction", "txid", tx.Txid, "err", err)
			// Ledger write failures abort only this record; the next
			// poll retries it since nothing was persisted.
		}
	}

	p.lastCheck.Store(p.now().UnixMilli())
	p.metr.RecordPollTick()

	if _, pending, err := p.ledger.Counts(ctx); err == nil {
		p.metr.RecordPendingMints(pending)
	}

	p.maybeSweep(ctx)
}

// ingest normalizes one upstream transaction and persists it. Re-ingesting
// a known txid is a no-op; this is what makes replaying the same upstream
// response idempotent.
func (p *Poller) ingest(ctx context.Context, tx esplora.Tx) error {
	if tx.Txid == "" || len(tx.Vout) == 0 {
		p.l.Warn("skipping malformed upstream transaction", "txid", tx.Txid)
		return nil
	}

	existing, err := p.ledger.Get(ctx, tx.Txid)
	if err != nil {
		return err
	}
	if existing != nil {
		return nil
	}

	var amount int64
	for _, out := range tx.Vout {
		if out.ScriptpubkeyAddress == p.cfg.WatchedAddress {
			amount += out.Value
		}
	}
	if amount == 0 {
		// The address listing includes transactions that only spend from
		// the watched address; those never pay us and are not persisted.
		return nil
	}

	sender, height := p.resolveSender(ctx, tx)

	status := ledger.StatusNotRequired
	if amount >= p.cfg.ThresholdSats && sender != "" {
		status = ledger.StatusPending
	}

	inserted, err := p.ledger.Insert(ctx, ledger.Record{
		Txid:          tx.Txid,
		FirstSeenMS:   p.now().UnixMilli(),
		AmountSats:    amount,
		BlockHeight:   height,
		SenderAddress: sender,
		Status:        status,
	})
	if err != nil {
		return err
	}
	if !inserted {
		// Lost a race with a concurrent ingestion of the same txid.
		return nil
	}

	p.metr.RecordIngested(string(status))
	p.l.Info("ingested transaction",
		"txid", tx.Txid, "amountSats", amount, "status", status, "sender", sender)
	return nil
}

// resolveSender returns the sender address and block height for a
// transaction. The listing endpoint may omit input prevouts; in that case
// the detail endpoint is consulted, and its block height is taken as
// canonical. A failed lookup leaves the sender absent — the record then
// lands as not_required even above threshold, since minting needs a
// destination.
func (p *Poller) resolveSender(ctx context.Context, tx esplora.Tx) (string, *int64) {
	if sender := firstPrevoutAddress(tx.Vin); sender != "" {
		return sender, tx.Status.BlockHeight
	}

	detail, err := p.backend.Tx(ctx, tx.Txid)
	if err != nil {
		p.l.Warn("sender lookup failed, persisting without sender", "txid", tx.Txid, "err", err)
		p.metr.RecordUpstreamError()
		return "", tx.Status.BlockHeight
	}
	height := detail.Status.BlockHeight
	if height == nil {
		height = tx.Status.BlockHeight
	}
	return firstPrevoutAddress(detail.Vin), height
}

func firstPrevoutAddress(vins []esplora.Vin) string {
	for _, in := range vins {
		if in.Prevout != nil && in.Prevout.ScriptpubkeyAddress != "" {
			return in.Prevout.ScriptpubkeyAddress
		}
	}
	return ""
}

// maybeSweep runs the retention sweep at most once per hour, and only when
// a retention horizon is configured. Pending records are never swept.
func (p *Poller) maybeSweep(ctx context.Context) {
	if p.cfg.RetentionHorizon <= 0 {
		return
	}
	if now := p.now(); now.Sub(p.lastSweep) >= time.Hour {
		p.lastSweep = now
		n, err := p.ledger.SweepNonPending(ctx, p.cfg.RetentionHorizon)
		if err != nil {
			p.l.Error("retention sweep failed", "err", err)
			return
		}
		if n > 0 {
			p.l.Info("retention sweep removed records", "count", n)
		}
	}
}
