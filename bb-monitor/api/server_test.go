package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/stretchr/testify/require"

	"github.com/bitbarlabs/bitbar/bb-monitor/ledger"
	"github.com/bitbarlabs/bitbar/bb-monitor/metrics"
	"github.com/bitbarlabs/bitbar/bb-service/testlog"
)

func newTestServer(t *testing.T) (*ledger.Ledger, *httptest.Server) {
	t.Helper()
	lgr, err := ledger.Open(filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { lgr.Close() })

	s := NewServer(":0", lgr, "bc1qwatched",
		func() time.Time { return time.Unix(1700000000, 0) },
		testlog.Logger(t, log.LvlCrit), &metrics.NoopMetrics{}, nil)
	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return lgr, ts
}

func getJSON(t *testing.T, url string, out interface{}) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp
}

func TestPendingMintsEmpty(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	var out []PendingMint
	resp := getJSON(t, ts.URL+"/api/pending-mints", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, out)
}

func TestPendingMintsContract(t *testing.T) {
	t.Parallel()
	lgr, ts := newTestServer(t)
	ctx := context.Background()

	_, err := lgr.Insert(ctx, ledger.Record{
		Txid: "aa", FirstSeenMS: 10, AmountSats: 2000,
		SenderAddress: "bc1qsender", Status: ledger.StatusPending,
	})
	require.NoError(t, err)
	_, err = lgr.Insert(ctx, ledger.Record{
		Txid: "bb", FirstSeenMS: 20, AmountSats: 100, Status: ledger.StatusNotRequired,
	})
	require.NoError(t, err)

	var out []PendingMint
	getJSON(t, ts.URL+"/api/pending-mints", &out)
	require.Len(t, out, 1)
	require.Equal(t, "aa", out[0].Txid)
	require.EqualValues(t, 2000, out[0].Amount)
	require.Equal(t, "bc1qsender", out[0].SenderAddress)
}

func TestConfirmMintLifecycle(t *testing.T) {
	t.Parallel()
	lgr, ts := newTestServer(t)
	ctx := context.Background()

	_, err := lgr.Insert(ctx, ledger.Record{
		Txid: "aa", FirstSeenMS: 10, AmountSats: 2000,
		SenderAddress: "bc1qsender", Status: ledger.StatusPending,
	})
	require.NoError(t, err)

	post := func(body string) *http.Response {
		resp, err := http.Post(ts.URL+"/api/confirm-mint", "application/json",
			bytes.NewBufferString(body))
		require.NoError(t, err)
		t.Cleanup(func() { resp.Body.Close() })
		return resp
	}

	// Missing txid.
	resp := post(`{"inscription_id":"x"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// Unknown txid.
	resp = post(`{"txid":"nope","inscription_id":"x"}`)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	// First confirm succeeds and returns the transaction.
	resp = post(`{"txid":"aa","inscription_id":"abc123i0"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var ok struct {
		Success     bool          `json:"success"`
		Transaction ledger.Record `json:"transaction"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&ok))
	require.True(t, ok.Success)
	require.Equal(t, ledger.StatusCompleted, ok.Transaction.Status)
	require.Equal(t, "abc123i0", ok.Transaction.InscriptionID)

	// Repeat confirm is a 400.
	resp = post(`{"txid":"aa","inscription_id":"abc123i0"}`)
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	// The pending queue is now empty and minted lists the record.
	var pending []PendingMint
	getJSON(t, ts.URL+"/api/pending-mints", &pending)
	require.Empty(t, pending)

	var minted []ledger.Record
	getJSON(t, ts.URL+"/api/minted", &minted)
	require.Len(t, minted, 1)
	require.Equal(t, "aa", minted[0].Txid)
}

func TestStatus(t *testing.T) {
	t.Parallel()
	lgr, ts := newTestServer(t)
	ctx := context.Background()

	_, err := lgr.Insert(ctx, ledger.Record{
		Txid: "aa", FirstSeenMS: 10, AmountSats: 2000,
		SenderAddress: "s", Status: ledger.StatusPending,
	})
	require.NoError(t, err)

	var out struct {
		TotalTransactions int64  `json:"totalTransactions"`
		PendingMints      int64  `json:"pendingMints"`
		LastCheck         string `json:"lastCheck"`
	}
	resp := getJSON(t, ts.URL+"/api/status", &out)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.EqualValues(t, 1, out.TotalTransactions)
	require.EqualValues(t, 1, out.PendingMints)
	require.NotEmpty(t, out.LastCheck)
}

func TestQRCodeAndIndex(t *testing.T) {
	t.Parallel()
	_, ts := newTestServer(t)

	resp, err := http.Get(ts.URL + "/qrcode")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "image/png", resp.Header.Get("Content-Type"))

	resp, err = http.Get(ts.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
}
