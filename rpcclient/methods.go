package rpcclient

import "github.com/pkg/errors"

// GetBlockCount returns the current chain tip height.
func (c *Client) GetBlockCount() (uint32, error) {
	var height uint32
	if err := c.callWithRetry("getblockcount", nil, &height); err != nil {
		return 0, err
	}
	return height, nil
}

// GetBlockHash returns the block hash at the given height.
func (c *Client) GetBlockHash(height uint32) (string, error) {
	var hash string
	if err := c.callWithRetry("getblockhash", []interface{}{height}, &hash); err != nil {
		return "", errors.Wrapf(err, "getblockhash(%d)", height)
	}
	return hash, nil
}

// GetRawBlockHex fetches the raw hex-encoded block for the given hash
// (verbosity 0), which is what the Block Parser re-scans to recover
// byte-exact transaction slices (SPEC_FULL.md §4.5 step 2).
func (c *Client) GetRawBlockHex(hash string) (string, error) {
	var hex string
	if err := c.callWithRetry("getblock", []interface{}{hash, 0}, &hex); err != nil {
		return "", errors.Wrapf(err, "getblock(%s, verbosity=0)", hash)
	}
	return hex, nil
}

// GetRawTransactionHex fetches a single transaction's raw hex as a
// fallback path when a block's JSON form omits it (e.g. node-operation
// transactions, per §4.5 step 2).
func (c *Client) GetRawTransactionHex(txid string) (string, error) {
	var hex string
	if err := c.callWithRetry("getrawtransaction", []interface{}{txid, 0}, &hex); err != nil {
		return "", errors.Wrapf(err, "getrawtransaction(%s)", txid)
	}
	return hex, nil
}
