package minter

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"sync"
)

// JournalEntry is one successfully executed inscription. The journal is a
// private, local projection for forensics and the introspection endpoint;
// the monitor's ledger stays authoritative.
type JournalEntry struct {
	Txid          string `json:"txid"`
	InscriptionID string `json:"inscription_id"`
	Destination   string `json:"destination"`
	Timestamp     string `json:"timestamp"`
}

// Journal is an append-only file of JSON records, one per line. Appends are
// crash-safe at whole-record granularity: a torn write leaves at most one
// partial trailing line, which readers drop.
type Journal struct {
	path string
	mu   sync.Mutex
}

func NewJournal(path string) *Journal {
	return &Journal{path: path}
}

// Append durably adds one entry.
func (j *Journal) Append(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	line, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal journal entry: %w", err)
	}
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat journal: %w", err)
	}
	if size := fi.Size(); size > 0 {
		var last [1]byte
		if _, err := f.ReadAt(last[:], size-1); err != nil {
			return fmt.Errorf("inspect journal tail: %w", err)
		}
		if last[0] != '\n' {
			// A torn write left a partial trailing line. Terminate it so
			// this record starts on its own line and stays parseable.
			line = append([]byte{'\n'}, line...)
		}
	}

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append journal entry: %w", err)
	}
	return f.Sync()
}

// Entries returns all readable records. Unparseable lines (a torn trailing
// write after a crash) are skipped, never fatal.
func (j *Journal) Entries() ([]JournalEntry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	defer f.Close()

	var entries []JournalEntry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var e JournalEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			continue
		}
		entries = append(entries, e)
	}
	if err := sc.Err(); err != nil {
		return entries, fmt.Errorf("read journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of readable records.
func (j *Journal) Count() int {
	entries, _ := j.Entries()
	return len(entries)
}
