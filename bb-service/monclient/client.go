// Package monclient is the minter's client for the monitor HTTP API.
package monclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"syscall"
	"time"
)

// PendingMint is one queued minting job.
type PendingMint struct {
	Txid          string `json:"txid"`
	Amount        int64  `json:"amount"`
	Timestamp     int64  `json:"timestamp"`
	SenderAddress string `json:"sender_address"`
}

// ConfirmStatus is the monitor's verdict on a confirm-mint call.
type ConfirmStatus int

const (
	// Confirmed means the ledger transitioned the record to completed.
	Confirmed ConfirmStatus = iota
	// AlreadyCompleted means the record was confirmed before; the caller
	// should treat this as idempotent success.
	AlreadyCompleted
	// NotFound means the monitor does not know the txid.
	NotFound
)

type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: timeout},
	}
}

// PendingMints fetches the current minting queue.
func (c *Client) PendingMints(ctx context.Context) ([]PendingMint, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/pending-mints", nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch pending mints: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("pending-mints status %d", resp.StatusCode)
	}
	var out []PendingMint
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode pending mints: %w", err)
	}
	return out, nil
}

// ConfirmMint reports a finished inscription back to the monitor.
func (c *Client) ConfirmMint(ctx context.Context, txid, inscriptionID string) (ConfirmStatus, error) {
	body, err := json.Marshal(map[string]string{
		"txid":           txid,
		"inscription_id": inscriptionID,
	})
	if err != nil {
		return NotFound, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/confirm-mint", bytes.NewReader(body))
	if err != nil {
		return NotFound, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return NotFound, fmt.Errorf("confirm mint %s: %w", txid, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return Confirmed, nil
	case http.StatusBadRequest:
		// 400 also covers request validation errors; only the monitor's
		// already-completed answer counts as idempotent success.
		var body struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&body); err == nil && body.Error == "already completed" {
			return AlreadyCompleted, nil
		}
		return NotFound, fmt.Errorf("confirm-mint rejected for %s: %s", txid, body.Error)
	case http.StatusNotFound:
		return NotFound, nil
	default:
		return NotFound, fmt.Errorf("confirm-mint status %d for %s", resp.StatusCode, txid)
	}
}

// IsConnRefused reports whether err stems from the monitor not listening
// at all, as opposed to any other network failure.
func IsConnRefused(err error) bool {
	return errors.Is(err, syscall.ECONNREFUSED)
}
