// Package electrum is a reference syncer.Syncer implementation that
// speaks the Electrum line-delimited JSON-RPC protocol over a TCP
// connection, optionally wrapped in TLS. Electrum's wire protocol needs nothing beyond the standard
// library: one JSON object per line, request IDs correlate responses,
// no framing beyond '\n'.
package electrum

import (
	"bufio"
	"bytes"
	"context"
	"crypto/tls"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
)

// request is a single Electrum JSON-RPC request.
type request struct {
	ID     int64         `json:"id"`
	Method string        `json:"method"`
	Params []interface{} `json:"params"`
}

// response is a single Electrum JSON-RPC response.
type response struct {
	ID     int64           `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// RPCError is returned when the server responds with an error object.
type RPCError struct {
	Code    int
	Message string
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("electrum: server error %d: %s", e.Code, e.Message)
}

// Client is a minimal Electrum protocol client: enough to scripthash-scan
// history, fetch full transactions, and broadcast a raw transaction.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader

	mu      sync.Mutex
	nextID  int64
	pending map[int64]chan response
}

// Dial connects to an Electrum server at addr ("host:port"). When useTLS
// is true the connection is wrapped in TLS, matching the "ssl://" scheme
// servers like electrum.blockstream.info require.
func Dial(ctx context.Context, addr string, useTLS bool) (*Client, error) {
	dialer := net.Dialer{Timeout: 10 * time.Second}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("dial electrum server %s: %w", addr, err)
	}
	if useTLS {
		host, _, splitErr := net.SplitHostPort(addr)
		if splitErr != nil {
			host = addr
		}
		conn = tls.Client(conn, &tls.Config{ServerName: host})
	}

	c := &Client{
		conn:    conn,
		reader:  bufio.NewReader(conn),
		pending: make(map[int64]chan response),
	}
	go c.readLoop()
	return c, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// readLoop demultiplexes responses onto each call's waiting channel.
// Electrum also pushes unsolicited subscription notifications; those
// carry no "id" field and are dropped since this client never subscribes.
func (c *Client) readLoop() {
	for {
		line, err := c.reader.ReadBytes('\n')
		if len(line) > 0 {
			var resp response
			if json.Unmarshal(line, &resp) == nil && resp.ID != 0 {
				c.mu.Lock()
				ch, ok := c.pending[resp.ID]
				if ok {
					delete(c.pending, resp.ID)
				}
				c.mu.Unlock()
				if ok {
					ch <- resp
				}
			}
		}
		if err != nil {
			c.mu.Lock()
			for id, ch := range c.pending {
				close(ch)
				delete(c.pending, id)
			}
			c.mu.Unlock()
			return
		}
	}
}

// call issues a request and blocks for its matching response.
func (c *Client) call(ctx context.Context, method string, params []interface{}, result interface{}) error {
	id := atomic.AddInt64(&c.nextID, 1)
	ch := make(chan response, 1)

	c.mu.Lock()
	c.pending[id] = ch
	c.mu.Unlock()

	body, err := json.Marshal(request{ID: id, Method: method, Params: params})
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	body = append(body, '\n')
	if _, err := c.conn.Write(body); err != nil {
		return fmt.Errorf("write request: %w", err)
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case resp, ok := <-ch:
		if !ok {
			return fmt.Errorf("electrum: connection closed while awaiting %s", method)
		}
		if resp.Error != nil {
			return &RPCError{Code: resp.Error.Code, Message: resp.Error.Message}
		}
		if result != nil {
			if err := json.Unmarshal(resp.Result, result); err != nil {
				return fmt.Errorf("decode %s result: %w", method, err)
			}
		}
		return nil
	}
}

// HistoryEntry is one row of blockchain.scripthash.get_history's result.
type HistoryEntry struct {
	TxHash string `json:"tx_hash"`
	Height int32  `json:"height"`
}

// Script is a scriptPubKey being watched for activity.
type Script = []byte

// ScripthashGetHistory returns the confirmed and mempool history of the
// given scriptPubKey's Electrum scripthash.
func (c *Client) ScripthashGetHistory(ctx context.Context, scriptPubKey []byte) ([]HistoryEntry, error) {
	sh := scripthash(scriptPubKey)
	var entries []HistoryEntry
	err := c.call(ctx, "blockchain.scripthash.get_history", []interface{}{sh}, &entries)
	return entries, err
}

// GetTransaction fetches a full transaction by txid.
func (c *Client) GetTransaction(ctx context.Context, txid chainhash.Hash) (*wire.MsgTx, error) {
	var rawHex string
	if err := c.call(ctx, "blockchain.transaction.get", []interface{}{txid.String()}, &rawHex); err != nil {
		return nil, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil {
		return nil, fmt.Errorf("decode raw tx %s: %w", txid, err)
	}
	tx := wire.NewMsgTx(wire.TxVersion)
	if err := tx.Deserialize(bytes.NewReader(raw)); err != nil {
		return nil, fmt.Errorf("deserialize tx %s: %w", txid, err)
	}
	return tx, nil
}

// BlockHeader is the subset of blockchain.block.header's result this
// client needs: just enough to confirm a block hash at a height.
func (c *Client) BlockHeader(ctx context.Context, height int32) (chainhash.Hash, error) {
	var rawHex string
	if err := c.call(ctx, "blockchain.block.header", []interface{}{height}, &rawHex); err != nil {
		return chainhash.Hash{}, err
	}
	raw, err := hex.DecodeString(rawHex)
	if err != nil || len(raw) < 80 {
		return chainhash.Hash{}, fmt.Errorf("decode block header at height %d", height)
	}
	var hdr wire.BlockHeader
	if err := hdr.Deserialize(bytes.NewReader(raw)); err != nil {
		return chainhash.Hash{}, fmt.Errorf("parse block header at height %d: %w", height, err)
	}
	return hdr.BlockHash(), nil
}

// Broadcast submits a raw transaction to the network.
func (c *Client) Broadcast(ctx context.Context, rawTx []byte) error {
	var txid string
	return c.call(ctx, "blockchain.transaction.broadcast", []interface{}{hex.EncodeToString(rawTx)}, &txid)
}

// scripthash computes the Electrum protocol's scripthash identifier:
// reversed SHA256 of the scriptPubKey, hex-encoded.
func scripthash(scriptPubKey []byte) string {
	sum := chainhash.HashB(scriptPubKey)
	for i, j := 0, len(sum)-1; i < j; i, j = i+1, j-1 {
		sum[i], sum[j] = sum[j], sum[i]
	}
	return hex.EncodeToString(sum)
}
