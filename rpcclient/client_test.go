package rpcclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

func TestGetBlockHashSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Method != "getblockhash" {
			t.Fatalf("unexpected method %s", req.Method)
		}
		json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage(`"00000000abc"`), ID: req.ID})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	hash, err := c.GetBlockHash(100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if hash != "00000000abc" {
		t.Fatalf("unexpected hash: %s", hash)
	}
}

func TestCallRetriesTransientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := atomic.AddInt32(&calls, 1)
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		var req rpcRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(rpcResponse{Result: json.RawMessage(`12345`), ID: req.ID})
	}))
	defer srv.Close()

	c := New(srv.URL, "", "")
	height, err := c.GetBlockCount()
	if err != nil {
		t.Fatalf("unexpected error after transient retries: %v", err)
	}
	if height != 12345 {
		t.Fatalf("unexpected height: %d", height)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls)
	}
}

func TestCallDoesNotRetryAuthFailure(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	c := New(srv.URL, "baduser", "badpass")
	_, err := c.GetBlockCount()
	if err == nil {
		t.Fatal("expected error")
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("expected exactly 1 attempt for a permanent auth failure, got %d", calls)
	}
}
