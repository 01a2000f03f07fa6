package monclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestPendingMints(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/pending-mints", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"txid":"aa","amount":2000,"timestamp":1700000000,"sender_address":"bc1qs"}]`))
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	mints, err := c.PendingMints(context.Background())
	require.NoError(t, err)
	require.Len(t, mints, 1)
	require.Equal(t, PendingMint{
		Txid: "aa", Amount: 2000, Timestamp: 1700000000, SenderAddress: "bc1qs",
	}, mints[0])
}

func TestPendingMintsServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := New(srv.URL, time.Second).PendingMints(context.Background())
	require.Error(t, err)
}

func TestConfirmMintStatusMapping(t *testing.T) {
	t.Parallel()

	var (
		code    int
		errBody string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/confirm-mint", r.URL.Path)
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "aa", body["txid"])
		require.Equal(t, "abc123i0", body["inscription_id"])
		w.WriteHeader(code)
		if errBody != "" {
			json.NewEncoder(w).Encode(map[string]interface{}{"success": false, "error": errBody})
		}
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	for _, tt := range []struct {
		code    int
		errBody string
		want    ConfirmStatus
	}{
		{http.StatusOK, "", Confirmed},
		{http.StatusBadRequest, "already completed", AlreadyCompleted},
		{http.StatusNotFound, "unknown txid", NotFound},
	} {
		code, errBody = tt.code, tt.errBody
		got, err := c.ConfirmMint(context.Background(), "aa", "abc123i0")
		require.NoError(t, err)
		require.Equal(t, tt.want, got)
	}

	// A validation 400 is an error, never idempotent success.
	code, errBody = http.StatusBadRequest, "txid is required"
	_, err := c.ConfirmMint(context.Background(), "aa", "abc123i0")
	require.Error(t, err)
	require.Contains(t, err.Error(), "txid is required")

	code, errBody = http.StatusBadGateway, ""
	_, err = c.ConfirmMint(context.Background(), "aa", "abc123i0")
	require.Error(t, err)
}

func TestIsConnRefused(t *testing.T) {
	t.Parallel()

	// Nothing listens on this port; the dial fails with ECONNREFUSED.
	c := New("http://127.0.0.1:1", 500*time.Millisecond)
	_, err := c.PendingMints(context.Background())
	require.Error(t, err)
	require.True(t, IsConnRefused(err))
}
