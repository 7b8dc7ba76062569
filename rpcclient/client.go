// Package rpcclient is a minimal blocking JSON-RPC-over-HTTP client for the
// Flux node's block/transaction RPC surface. Grounded on the Cmd-per-method
// shape of the teacher's rpcclient/btcjson, but deliberately drops their
// Future/websocket/notification machinery: this system's contract with the
// node is request/response only (SPEC_FULL.md §2), so there is nothing to
// subscribe to and nothing to keep a persistent connection alive for.
package rpcclient

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
)

const (
	maxRetryAttempts = 5
	retryBaseDelay   = 1 * time.Second
)

// Client talks to a single Flux node's JSON-RPC endpoint over HTTP basic
// auth, matching the daemon's standard `bitcoin-rpc`-style surface.
type Client struct {
	httpClient *http.Client
	url        string
	user       string
	pass       string
	nextID     int
}

// New returns a Client for the given RPC endpoint.
func New(url, user, pass string) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		url:        url,
		user:       user,
		pass:       pass,
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      int           `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
	ID     int             `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// errAuthFailure is the cause of the error call returns for an HTTP 401 or
// 403 response.
var errAuthFailure = errors.New("permanent auth failure")

// isPermanentRPCError reports whether err is an auth failure or an
// *rpcError representing a permanent failure (unsupported method) rather
// than a transient one, per
// SPEC_FULL.md §7's "RPC permanent: fatal, halt" vs. "RPC transient:
// retry" distinction. Node RPC servers conventionally use negative codes
// in the -32600..-32603 (protocol) and -1..-39 (wallet/method) ranges for
// structural problems; anything in that space is treated as permanent.
func isPermanentRPCError(err error) bool {
	cause := errors.Cause(err)
	if cause == errAuthFailure {
		return true
	}
	rpcErr, ok := cause.(*rpcError)
	if !ok {
		return false
	}
	return rpcErr.Code <= -32600 || (rpcErr.Code < 0 && rpcErr.Code > -40)
}

// call performs one RPC round-trip with no retry logic.
func (c *Client) call(method string, params []interface{}, result interface{}) error {
	c.nextID++
	reqBody, err := json.Marshal(rpcRequest{
		JSONRPC: "1.0",
		ID:      c.nextID,
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return errors.Wrapf(err, "marshaling %s request", method)
	}

	req, err := http.NewRequest(http.MethodPost, c.url, bytes.NewReader(reqBody))
	if err != nil {
		return errors.Wrapf(err, "building %s request", method)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.user != "" {
		req.SetBasicAuth(c.user, c.pass)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "executing %s request", method)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return errors.Wrapf(err, "reading %s response", method)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return errors.Wrapf(errAuthFailure, "%s: HTTP %d", method, resp.StatusCode)
	}
	if resp.StatusCode >= 500 {
		return errors.Errorf("%s: transient server error, HTTP %d", method, resp.StatusCode)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(body, &rpcResp); err != nil {
		return errors.Wrapf(err, "unmarshaling %s response", method)
	}
	if rpcResp.Error != nil {
		return errors.WithStack(rpcResp.Error)
	}

	if result == nil {
		return nil
	}
	return errors.Wrapf(json.Unmarshal(rpcResp.Result, result), "unmarshaling %s result", method)
}

// callWithRetry retries transient failures with exponential backoff: up to
// maxRetryAttempts attempts, 1s base delay doubling each time
// (SPEC_FULL.md §4.5 step 1, §7).
func (c *Client) callWithRetry(method string, params []interface{}, result interface{}) error {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err := c.call(method, params, result)
		if err == nil {
			return nil
		}
		if isPermanentRPCError(err) {
			return err
		}
		lastErr = err
		if attempt < maxRetryAttempts {
			time.Sleep(delay)
			delay *= 2
		}
	}
	return errors.Wrapf(lastErr, "%s failed after %d attempts", method, maxRetryAttempts)
}
