// Package ledger owns the durable minting ledger: the single authoritative
// mapping of chain txid to transaction record. All other components read
// and write through it; records are never mutated except for the single
// pending -> completed transition.
package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

type Status string

const (
	StatusNotRequired Status = "not_required"
	StatusPending     Status = "pending"
	StatusCompleted   Status = "completed"
)

// Record is the persistent transaction entity. SenderAddress == "" and
// BlockHeight == nil mean "absent", not zero values reported upstream.
type Record struct {
	Txid          string `json:"txid"`
	FirstSeenMS   int64  `json:"first_seen_ms"`
	AmountSats    int64  `json:"amount_sats"`
	BlockHeight   *int64 `json:"block_height,omitempty"`
	SenderAddress string `json:"sender_address,omitempty"`
	Status        Status `json:"status"`
	InscriptionID string `json:"inscription_id,omitempty"`
	CompletedAtMS int64  `json:"completed_at_ms,omitempty"`
}

// ConfirmResult reports the outcome of a Confirm call.
type ConfirmResult int

const (
	ConfirmOK ConfirmResult = iota
	ConfirmNotFound
	ConfirmAlreadyCompleted
)

func (r ConfirmResult) String() string {
	switch r {
	case ConfirmOK:
		return "ok"
	case ConfirmNotFound:
		return "not_found"
	case ConfirmAlreadyCompleted:
		return "already_completed"
	default:
		return fmt.Sprintf("ConfirmResult(%d)", int(r))
	}
}

const schema = `
CREATE TABLE IF NOT EXISTS transactions (
	txid            TEXT PRIMARY KEY,
	first_seen_ms   INTEGER NOT NULL,
	amount_sats     INTEGER NOT NULL CHECK (amount_sats >= 0),
	block_height    INTEGER,
	sender_address  TEXT,
	status          TEXT NOT NULL,
	inscription_id  TEXT,
	completed_at_ms INTEGER
);

CREATE INDEX IF NOT EXISTS idx_transactions_status ON transactions(status);
`

// Ledger is a single-file SQLite store. SQLite has a single writer, so the
// pool is capped at one connection; this also makes Confirm serializable.
type Ledger struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens (or creates) the ledger database at path.
func Open(path string) (*Ledger, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open ledger db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping ledger db: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init ledger schema: %w", err)
	}
	return &Ledger{db: db, now: time.Now}, nil
}

func (l *Ledger) Close() error {
	return l.db.Close()
}

// Insert persists a new record. It returns false without error when a
// record with the same txid already exists; ingestion relies on this as its
// idempotence anchor.
func (l *Ledger) Insert(ctx context.Context, rec Record) (bool, error) {
	if rec.AmountSats < 0 {
		return false, fmt.Errorf("negative amount %d for tx %s", rec.AmountSats, rec.Txid)
	}
	res, err := l.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO transactions
			(txid, first_seen_ms, amount_sats, block_height, sender_address, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		rec.Txid, rec.FirstSeenMS, rec.AmountSats,
		rec.BlockHeight, nullIfEmpty(rec.SenderAddress), string(rec.Status),
	)
	if err != nil {
		return false, fmt.Errorf("insert tx %s: %w", rec.Txid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// Get returns the record for txid, or nil if unknown.
func (l *Ledger) Get(ctx context.Context, txid string) (*Record, error) {
	row := l.db.QueryRowContext(ctx, selectCols+` WHERE txid = ?`, txid)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tx %s: %w", txid, err)
	}
	return rec, nil
}

// ListPending returns all pending records, oldest first.
func (l *Ledger) ListPending(ctx context.Context) ([]Record, error) {
	return l.list(ctx, selectCols+` WHERE status = ? ORDER BY first_seen_ms ASC`, string(StatusPending))
}

// ListCompleted returns all completed records, newest completion first.
func (l *Ledger) ListCompleted(ctx context.Context) ([]Record, error) {
	return l.list(ctx, selectCols+` WHERE status = ? ORDER BY completed_at_ms DESC`, string(StatusCompleted))
}

// Counts returns the total number of records and the number still pending.
func (l *Ledger) Counts(ctx context.Context) (total, pending int64, err error) {
	row := l.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COUNT(CASE WHEN status = ? THEN 1 END) FROM transactions`,
		string(StatusPending))
	if err := row.Scan(&total, &pending); err != nil {
		return 0, 0, fmt.Errorf("count transactions: %w", err)
	}
	return total, pending, nil
}

// Confirm transitions txid from pending to completed, recording the
// inscription id and completion time. Confirming a record that is not
// pending (completed or not_required) reports ConfirmAlreadyCompleted so
// the caller can treat the transition as idempotent; a not_required record
// is deliberately never resurrected into the mint path.
func (l *Ledger) Confirm(ctx context.Context, txid, inscriptionID string) (ConfirmResult, error) {
	tx, err := l.db.BeginTx(ctx, nil)
	if err != nil {
		return ConfirmNotFound, fmt.Errorf("begin confirm tx: %w", err)
	}
	defer tx.Rollback()

	var status string
	err = tx.QueryRowContext(ctx, `SELECT status FROM transactions WHERE txid = ?`, txid).Scan(&status)
	if err == sql.ErrNoRows {
		return ConfirmNotFound, nil
	}
	if err != nil {
		return ConfirmNotFound, fmt.Errorf("confirm lookup %s: %w", txid, err)
	}
	if Status(status) != StatusPending {
		return ConfirmAlreadyCompleted, nil
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE transactions
		SET status = ?, inscription_id = ?, completed_at_ms = ?
		WHERE txid = ? AND status = ?`,
		string(StatusCompleted), inscriptionID, l.now().UnixMilli(),
		txid, string(StatusPending),
	)
	if err != nil {
		return ConfirmNotFound, fmt.Errorf("confirm update %s: %w", txid, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return ConfirmNotFound, err
	}
	if n != 1 {
		return ConfirmAlreadyCompleted, nil
	}
	if err := tx.Commit(); err != nil {
		return ConfirmNotFound, fmt.Errorf("commit confirm %s: %w", txid, err)
	}
	return ConfirmOK, nil
}

// SweepNonPending deletes completed and not_required records older than
// horizon. Pending records are immortal. Returns the number of rows removed.
func (l *Ledger) SweepNonPending(ctx context.Context, horizon time.Duration) (int64, error) {
	cutoff := l.now().Add(-horizon).UnixMilli()
	res, err := l.db.ExecContext(ctx, `
		DELETE FROM transactions WHERE status != ? AND first_seen_ms < ?`,
		string(StatusPending), cutoff)
	if err != nil {
		return 0, fmt.Errorf("retention sweep: %w", err)
	}
	return res.RowsAffected()
}

const selectCols = `
	SELECT txid, first_seen_ms, amount_sats, block_height, sender_address,
	       status, inscription_id, completed_at_ms
	FROM transactions`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row scanner) (*Record, error) {
	var (
		rec         Record
		height      sql.NullInt64
		sender      sql.NullString
		inscription sql.NullString
		completedAt sql.NullInt64
	)
	err := row.Scan(&rec.Txid, &rec.FirstSeenMS, &rec.AmountSats,
		&height, &sender, &rec.Status, &inscription, &completedAt)
	if err != nil {
		return nil, err
	}
	if height.Valid {
		h := height.Int64
		rec.BlockHeight = &h
	}
	rec.SenderAddress = sender.String
	rec.InscriptionID = inscription.String
	rec.CompletedAtMS = completedAt.Int64
	return &rec, nil
}

func (l *Ledger) list(ctx context.Context, query string, args ...interface{}) ([]Record, error) {
	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	var recs []Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		recs = append(recs, *rec)
	}
	return recs, rows.Err()
}

func nullIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}
