// Package rpc is the JSON-RPC 2.0 adapter boundary: it dispatches by method
// name string over a fixed closed set (a map of request kind to handler,
// not polymorphic handlers) and translates chainerr.Kind faults into
// JSON-RPC error codes.
package rpc

import (
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/golang-jwt/jwt/v4"
	"github.com/rs/cors"

	"github.com/rubinchain/chaind/chainerr"
	"github.com/rubinchain/chaind/consensus"
	"github.com/rubinchain/chaind/internal/log"
	"github.com/rubinchain/chaind/objectstore"
)

// Engine is the subset of engine.Engine the RPC adapter depends on.
type Engine interface {
	GetChainHeight() (uint64, bool)
	GetBlockByHeight(height uint64) (consensus.Block, bool, error)
	GetBlockByHash(hash [32]byte) (consensus.Block, bool, error)
	SubmitTransaction(tx consensus.Transaction) ([32]byte, error)
}

// ObjectStore is the subset of objectstore.Store the RPC adapter depends on.
type ObjectStore interface {
	Store(data []byte) ([32]byte, error)
	Retrieve(hash [32]byte) ([]byte, error)
}

const (
	codeParseError     = -32700
	codeInvalidRequest = -32600
	codeMethodNotFound = -32601
	codeEngine         = -32000
	codeStorage        = -32001
	codeObjectStore    = -32002
	codeInvalidParams  = -32602
)

type request struct {
	JSONRPC string          `json:"jsonrpc"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params"`
	ID      json.RawMessage `json:"id"`
}

type response struct {
	JSONRPC string          `json:"jsonrpc"`
	Result  any             `json:"result,omitempty"`
	Error   *rpcError       `json:"error,omitempty"`
	ID      json.RawMessage `json:"id"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type handlerFunc func(s *Server, params json.RawMessage) (any, error)

// Server is the JSON-RPC 2.0 HTTP server. Its dispatch table is built once
// at construction and never mutated, per the closed-method-set design.
type Server struct {
	engine      Engine
	objectStore ObjectStore
	log         *log.Logger
	jwtSecret   []byte
	handlers    map[string]handlerFunc
	httpHandler http.Handler
}

// Option configures a Server at construction time.
type Option func(*Server)

// WithLogger overrides the discard default logger.
func WithLogger(l *log.Logger) Option {
	return func(s *Server) { s.log = l }
}

// WithJWTSecret enables bearer-JWT authentication on every request using
// secret to verify HMAC-signed tokens. An empty secret (the default)
// disables authentication entirely.
func WithJWTSecret(secret []byte) Option {
	return func(s *Server) { s.jwtSecret = secret }
}

// New builds a Server and wraps it with CORS middleware.
func New(engine Engine, objectStore ObjectStore, opts ...Option) *Server {
	s := &Server{
		engine:      engine,
		objectStore: objectStore,
		log:         log.Discard(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.handlers = map[string]handlerFunc{
		"get_chain_height":    handleGetChainHeight,
		"get_block_by_height": handleGetBlockByHeight,
		"get_block_by_hash":   handleGetBlockByHash,
		"send_transaction":    handleSendTransaction,
		"get_offchain_data":   handleGetOffchainData,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveHTTP)
	s.httpHandler = cors.Default().Handler(mux)
	return s
}

// ListenAndServe starts the HTTP server on addr, blocking until it returns
// an error (e.g. on shutdown).
func (s *Server) ListenAndServe(addr string) error {
	s.log.Info("rpc server listening", "addr", addr)
	return http.ListenAndServe(addr, s.httpHandler)
}

// Handler exposes the wrapped http.Handler, e.g. for use with a custom
// http.Server (graceful shutdown, TLS, etc).
func (s *Server) Handler() http.Handler {
	return s.httpHandler
}

func (s *Server) serveHTTP(w http.ResponseWriter, r *http.Request) {
	if len(s.jwtSecret) > 0 {
		if err := s.authenticate(r); err != nil {
			writeJSON(w, http.StatusUnauthorized, response{JSONRPC: "2.0", Error: &rpcError{Code: codeInvalidRequest, Message: "unauthorized"}})
			return
		}
	}

	var req request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusOK, response{JSONRPC: "2.0", Error: &rpcError{Code: codeParseError, Message: "parse error"}})
		return
	}

	handler, ok := s.handlers[req.Method]
	if !ok {
		writeJSON(w, http.StatusOK, response{JSONRPC: "2.0", ID: req.ID, Error: &rpcError{Code: codeMethodNotFound, Message: "Method not found"}})
		return
	}

	result, err := handler(s, req.Params)
	if err != nil {
		writeJSON(w, http.StatusOK, response{JSONRPC: "2.0", ID: req.ID, Error: translateError(err)})
		return
	}
	writeJSON(w, http.StatusOK, response{JSONRPC: "2.0", ID: req.ID, Result: result})
}

func (s *Server) authenticate(r *http.Request) error {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) <= len(prefix) || header[:len(prefix)] != prefix {
		return chainerr.Newf(chainerr.KindValidation, "rpc.authenticate", "missing bearer token")
	}
	token := header[len(prefix):]
	_, err := jwt.Parse(token, func(t *jwt.Token) (any, error) {
		return s.jwtSecret, nil
	})
	if err != nil {
		return chainerr.New(chainerr.KindValidation, "rpc.authenticate", err)
	}
	return nil
}

func translateError(err error) *rpcError {
	switch {
	case chainerr.Is(err, chainerr.KindStorage):
		return &rpcError{Code: codeStorage, Message: err.Error()}
	case chainerr.Is(err, chainerr.KindObjectStore):
		return &rpcError{Code: codeObjectStore, Message: err.Error()}
	case chainerr.Is(err, chainerr.KindValidation):
		return &rpcError{Code: codeInvalidParams, Message: err.Error()}
	default:
		return &rpcError{Code: codeEngine, Message: err.Error()}
	}
}

func writeJSON(w http.ResponseWriter, status int, body response) {
	body.JSONRPC = "2.0"
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// --- handlers ---

func handleGetChainHeight(s *Server, _ json.RawMessage) (any, error) {
	height, ok := s.engine.GetChainHeight()
	if !ok {
		return nil, nil
	}
	return height, nil
}

type blockByHeightParams struct {
	Height uint64 `json:"height"`
}

func handleGetBlockByHeight(s *Server, raw json.RawMessage) (any, error) {
	var p blockByHeightParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, chainerr.New(chainerr.KindValidation, "rpc.get_block_by_height", err)
	}
	block, ok, err := s.engine.GetBlockByHeight(p.Height)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return blockToJSON(block), nil
}

type blockByHashParams struct {
	Hash string `json:"hash"`
}

func handleGetBlockByHash(s *Server, raw json.RawMessage) (any, error) {
	var p blockByHashParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, chainerr.New(chainerr.KindValidation, "rpc.get_block_by_hash", err)
	}
	hash, err := parseHash(p.Hash)
	if err != nil {
		return nil, err
	}
	block, ok, err := s.engine.GetBlockByHash(hash)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return blockToJSON(block), nil
}

type sendTransactionParams struct {
	Sender    string `json:"sender"`
	Receiver  string `json:"receiver"`
	Amount    uint64 `json:"amount"`
	Payload   string `json:"payload"`
	Timestamp uint64 `json:"timestamp"`
}

func handleSendTransaction(s *Server, raw json.RawMessage) (any, error) {
	var p sendTransactionParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, chainerr.New(chainerr.KindValidation, "rpc.send_transaction", err)
	}
	if p.Sender == "" {
		return nil, chainerr.Newf(chainerr.KindValidation, "rpc.send_transaction", "sender is required")
	}
	sender := []byte(p.Sender)

	var tx consensus.Transaction
	if p.Payload != "" {
		decoded, err := base64.StdEncoding.DecodeString(p.Payload)
		if err != nil {
			return nil, chainerr.New(chainerr.KindValidation, "rpc.send_transaction", err)
		}
		payloadHash, err := s.objectStore.Store(decoded)
		if err != nil {
			// Deliberately not a *chainerr.Error: §6 documents only
			// InvalidParams/Engine for send_transaction, so a payload-store
			// fault here surfaces as the generic Engine code rather than
			// codeObjectStore.
			return nil, fmt.Errorf("rpc.send_transaction: storing payload: %v", err)
		}
		tx = consensus.NewStoragePointer(sender, payloadHash, uint64(len(decoded)), p.Timestamp)
	} else {
		if p.Receiver == "" {
			return nil, chainerr.Newf(chainerr.KindValidation, "rpc.send_transaction", "receiver is required for a transfer")
		}
		tx = consensus.NewTransfer(sender, []byte(p.Receiver), p.Amount, p.Timestamp)
	}

	hash, err := s.engine.SubmitTransaction(tx)
	if err != nil {
		return nil, err
	}
	return hex.EncodeToString(hash[:]), nil
}

type offchainDataParams struct {
	Hash string `json:"hash"`
}

func handleGetOffchainData(s *Server, raw json.RawMessage) (any, error) {
	var p offchainDataParams
	if err := json.Unmarshal(raw, &p); err != nil {
		return nil, chainerr.New(chainerr.KindValidation, "rpc.get_offchain_data", err)
	}
	hash, err := parseHash(p.Hash)
	if err != nil {
		return nil, err
	}
	data, err := s.objectStore.Retrieve(hash)
	if err == objectstore.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return base64.StdEncoding.EncodeToString(data), nil
}

func parseHash(s string) ([32]byte, error) {
	var out [32]byte
	if len(s) != 64 {
		return out, chainerr.Newf(chainerr.KindValidation, "rpc.parse_hash", "hash must be 64 hex characters, got %d", len(s))
	}
	decoded, err := hex.DecodeString(s)
	if err != nil {
		return out, chainerr.New(chainerr.KindValidation, "rpc.parse_hash", err)
	}
	copy(out[:], decoded)
	return out, nil
}

type txJSON struct {
	Kind        byte   `json:"kind"`
	Sender      string `json:"sender"`
	Receiver    string `json:"receiver,omitempty"`
	Amount      uint64 `json:"amount,omitempty"`
	PayloadHash string `json:"payload_hash,omitempty"`
	PayloadSize uint64 `json:"payload_size,omitempty"`
	Timestamp   uint64 `json:"timestamp"`
	Hash        string `json:"hash"`
}

type blockJSON struct {
	PreviousHash string   `json:"previous_hash"`
	MerkleRoot   string   `json:"merkle_root"`
	Timestamp    uint64   `json:"timestamp"`
	Nonce        uint64   `json:"nonce"`
	Difficulty   uint32   `json:"difficulty"`
	Height       uint64   `json:"height"`
	Hash         string   `json:"hash"`
	Transactions []txJSON `json:"transactions"`
}

func blockToJSON(b consensus.Block) blockJSON {
	txs := make([]txJSON, len(b.Transactions))
	for i, tx := range b.Transactions {
		h := tx.Hash()
		txs[i] = txJSON{
			Kind:        byte(tx.Kind),
			Sender:      string(tx.Sender),
			Receiver:    string(tx.Receiver),
			Amount:      tx.Amount,
			PayloadHash: hex.EncodeToString(tx.PayloadHash[:]),
			PayloadSize: tx.PayloadSize,
			Timestamp:   tx.Timestamp,
			Hash:        hex.EncodeToString(h[:]),
		}
	}
	hash := b.Hash()
	return blockJSON{
		PreviousHash: hex.EncodeToString(b.Header.PrevHash[:]),
		MerkleRoot:   hex.EncodeToString(b.Header.MerkleRoot[:]),
		Timestamp:    b.Header.Timestamp,
		Nonce:        b.Header.Nonce,
		Difficulty:   b.Header.Difficulty,
		Height:       b.Header.Height,
		Hash:         hex.EncodeToString(hash[:]),
		Transactions: txs,
	}
}
