// Package esplora is a thin client for Esplora-compatible block explorer
// APIs (blockstream.info, mempool.space). Only the two endpoints the
// monitor consumes are wrapped; responses are decoded as-is and never
// partially returned.
package esplora

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TxStatus is the confirmation status attached to a transaction. An
// unconfirmed (mempool) transaction has Confirmed=false and no height.
type TxStatus struct {
	Confirmed   bool   `json:"confirmed"`
	BlockHeight *int64 `json:"block_height,omitempty"`
}

// Vout is a transaction output.
type Vout struct {
	ScriptpubkeyAddress string `json:"scriptpubkey_address"`
	Value               int64  `json:"value"`
}

// Vin is a transaction input. Prevout is only populated by the detail
// endpoint on some deployments; the address listing may omit it.
type Vin struct {
	Prevout *Vout `json:"prevout"`
}

// Tx is a transaction as reported by the explorer. Fields the monitor does
// not consume are not decoded.
type Tx struct {
	Txid   string   `json:"txid"`
	Vin    []Vin    `json:"vin"`
	Vout   []Vout   `json:"vout"`
	Status TxStatus `json:"status"`
}

// Client queries a single Esplora base URL. Each call is bounded by the
// configured timeout independently of the caller's context deadline.
type Client struct {
	baseURL string
	timeout time.Duration
	hc      *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: baseURL,
		timeout: timeout,
		hc:      &http.Client{Timeout: timeout},
	}
}

// AddressTxs returns the transaction history for addr, confirmed and
// mempool entries in upstream-reported order.
func (c *Client) AddressTxs(ctx context.Context, addr string) ([]Tx, error) {
	var txs []Tx
	if err := c.get(ctx, fmt.Sprintf("%s/address/%s/txs", c.baseURL, addr), &txs); err != nil {
		return nil, err
	}
	return txs, nil
}

// Tx returns the full transaction, including input prevouts.
func (c *Client) Tx(ctx context.Context, txid string) (*Tx, error) {
	var tx Tx
	if err := c.get(ctx, fmt.Sprintf("%s/tx/%s", c.baseURL, txid), &tx); err != nil {
		return nil, err
	}
	return &tx, nil
}

func (c *Client) get(ctx context.Context, url string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("upstream request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("upstream status %d for %s", resp.StatusCode, url)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode upstream response: %w", err)
	}
	return nil
}
