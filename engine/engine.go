// Package engine is the ChainEngine orchestrator: it owns the single
// exclusive lock under which blocks are validated and appended and mining
// candidates are assembled (the nonce search itself runs without the lock),
// and reconciles the Mempool with the persisted chain.
package engine

import (
	"sync"
	"time"

	"github.com/rubinchain/chaind/chainerr"
	"github.com/rubinchain/chaind/chainstore"
	"github.com/rubinchain/chaind/consensus"
	"github.com/rubinchain/chaind/mempool"
)

// DefaultMaxTransactionsPerBlock bounds how many pending transactions a
// mined block draws from the mempool when none is configured.
const DefaultMaxTransactionsPerBlock = 100

// SenderAuthenticator validates that a submitted transaction's sender is
// authorized to spend/publish on its behalf. The reference implementation
// stubs this out; see AlwaysValidAuthenticator.
type SenderAuthenticator interface {
	Authenticate(tx consensus.Transaction) error
}

// AlwaysValidAuthenticator accepts every transaction. Signature verification
// is an open question the specification explicitly permits stubbing.
type AlwaysValidAuthenticator struct{}

func (AlwaysValidAuthenticator) Authenticate(consensus.Transaction) error { return nil }

// nowFunc is indirected so tests can pin the clock.
var nowFunc = func() uint64 { return uint64(time.Now().Unix()) }

// Engine is the ChainEngine: a single-owner orchestrator behind an exclusive
// mutex, holding a cached tip in agreement with ChainStore whenever the
// engine is at rest.
type Engine struct {
	mu    sync.Mutex
	store *chainstore.Store
	pool  *mempool.Pool
	auth  SenderAuthenticator

	maxTxsPerBlock int

	initialized bool
	tipHash     [32]byte
	tipHeight   uint64
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithAuthenticator overrides the default AlwaysValidAuthenticator.
func WithAuthenticator(auth SenderAuthenticator) Option {
	return func(e *Engine) { e.auth = auth }
}

// WithMaxTransactionsPerBlock overrides DefaultMaxTransactionsPerBlock.
func WithMaxTransactionsPerBlock(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxTxsPerBlock = n
		}
	}
}

// New constructs an Engine over an already-open ChainStore and Mempool and
// reads tip state to determine whether the chain is initialized. It refuses
// to return an Engine if exactly one of tip_hash/tip_height is present.
func New(store *chainstore.Store, pool *mempool.Pool, opts ...Option) (*Engine, error) {
	e := &Engine{
		store:          store,
		pool:           pool,
		auth:           AlwaysValidAuthenticator{},
		maxTxsPerBlock: DefaultMaxTransactionsPerBlock,
	}
	for _, opt := range opts {
		opt(e)
	}

	tipHash, hasHash, err := store.GetTipHash()
	if err != nil {
		return nil, err
	}
	tipHeight, hasHeight, err := store.GetTipHeight()
	if err != nil {
		return nil, err
	}
	if hasHash != hasHeight {
		return nil, chainerr.Newf(chainerr.KindInitialization, "engine.new", "inconsistent persisted tip metadata: tip_hash present=%v tip_height present=%v", hasHash, hasHeight)
	}

	e.initialized = hasHash
	e.tipHash = tipHash
	e.tipHeight = tipHeight
	return e, nil
}

// InitializeGenesisIfNeeded writes the height-0 genesis block if the chain
// has not yet been initialized. It is a no-op if a tip already exists.
func (e *Engine) InitializeGenesisIfNeeded() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.initialized {
		return nil
	}

	genesis := consensus.Block{
		Header: consensus.BlockHeader{
			PrevHash:   [32]byte{},
			MerkleRoot: consensus.MerkleRoot(nil),
			Timestamp:  nowFunc(),
			Nonce:      0,
			Difficulty: consensus.MinDifficulty,
			Height:     0,
		},
	}

	if err := e.store.PutBlock(genesis); err != nil {
		return err
	}
	e.initialized = true
	e.tipHash = genesis.Hash()
	e.tipHeight = 0
	return nil
}

// GetChainHeight returns the current tip height, or ok=false if the chain
// has not yet been initialized.
func (e *Engine) GetChainHeight() (uint64, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.tipHeight, e.initialized
}

// GetBlockByHeight and GetBlockByHash are read-through to ChainStore; a
// "not found" outcome is ok=false with a nil error, never an error.
func (e *Engine) GetBlockByHeight(height uint64) (consensus.Block, bool, error) {
	return e.store.GetBlockByHeight(height)
}

func (e *Engine) GetBlockByHash(hash [32]byte) (consensus.Block, bool, error) {
	return e.store.GetBlockByHash(hash)
}

// SubmitTransaction authenticates and adds tx to the mempool. An
// already-pending transaction is reported as success with its existing
// hash, per the idempotent-from-the-client's-perspective contract.
func (e *Engine) SubmitTransaction(tx consensus.Transaction) ([32]byte, error) {
	if err := e.auth.Authenticate(tx); err != nil {
		return [32]byte{}, chainerr.New(chainerr.KindValidation, "engine.submit_transaction", err)
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.pool.Add(tx)
	return tx.Hash(), nil
}

// requireInitializedLocked must be called with mu held.
func (e *Engine) requireInitializedLocked() error {
	if !e.initialized {
		return chainerr.Newf(chainerr.KindInitialization, "engine", "chain not initialized: genesis has not been created")
	}
	return nil
}

// AddBlock runs the append path in the exact order the consensus design
// specifies: any failure aborts without side effects. On success the
// cached tip advances and the block is atomically persisted.
func (e *Engine) AddBlock(block consensus.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.addBlockLocked(block)
}

func (e *Engine) addBlockLocked(block consensus.Block) error {
	if err := e.requireInitializedLocked(); err != nil {
		return err
	}

	header := block.Header

	if header.Height != e.tipHeight+1 {
		return chainerr.Newf(chainerr.KindValidation, "engine.add_block", "height %d does not follow tip height %d", header.Height, e.tipHeight)
	}
	if header.PrevHash != e.tipHash {
		return chainerr.Newf(chainerr.KindValidation, "engine.add_block", "previous_hash does not match tip hash")
	}
	if consensus.MerkleRoot(block.TxHashes()) != header.MerkleRoot {
		return chainerr.Newf(chainerr.KindValidation, "engine.add_block", "merkle_root does not match transactions")
	}
	if !consensus.VerifyPoW(block.Hash(), header.Difficulty) {
		return chainerr.Newf(chainerr.KindConsensus, "engine.add_block", "proof of work does not satisfy claimed difficulty %d", header.Difficulty)
	}
	if header.Height > 0 {
		expected := consensus.ExpectedDifficulty(e.tipHeight, e.currentDifficultyLocked(), e.store)
		if header.Difficulty != expected {
			return chainerr.Newf(chainerr.KindConsensus, "engine.add_block", "difficulty %d does not match expected %d", header.Difficulty, expected)
		}
	}

	if err := e.store.PutBlock(block); err != nil {
		return err
	}

	e.tipHash = block.Hash()
	e.tipHeight = header.Height
	return nil
}

// currentDifficultyLocked returns the tip block's difficulty. Called only
// while mu is held and the engine is initialized.
func (e *Engine) currentDifficultyLocked() uint32 {
	tip, ok, err := e.store.GetBlockByHash(e.tipHash)
	if err != nil || !ok {
		return consensus.MinDifficulty
	}
	return tip.Header.Difficulty
}

// MineNewBlock drains up to maxTxsPerBlock pending transactions (without
// removing them), derives the expected difficulty, assembles a fresh header
// atop the current tip, and runs the proof-of-work search to completion.
func (e *Engine) MineNewBlock() (consensus.Block, error) {
	e.mu.Lock()
	if err := e.requireInitializedLocked(); err != nil {
		e.mu.Unlock()
		return consensus.Block{}, err
	}
	txs := e.pool.Take(e.maxTxsPerBlock)
	tipHash := e.tipHash
	tipHeight := e.tipHeight
	difficulty := consensus.ExpectedDifficulty(tipHeight, e.currentDifficultyLocked(), e.store)
	e.mu.Unlock()

	txHashes := make([][32]byte, len(txs))
	for i, tx := range txs {
		txHashes[i] = tx.Hash()
	}

	header := consensus.BlockHeader{
		PrevHash:   tipHash,
		MerkleRoot: consensus.MerkleRoot(txHashes),
		Timestamp:  nowFunc(),
		Nonce:      0,
		Height:     tipHeight + 1,
	}

	if _, err := consensus.Mine(&header, difficulty); err != nil {
		return consensus.Block{}, chainerr.New(chainerr.KindConsensus, "engine.mine_new_block", err)
	}

	return consensus.Block{Header: header, Transactions: txs}, nil
}

// ProcessMinedBlock runs the append path; on success it purges the block's
// transactions from the mempool. The mempool is left untouched on failure,
// whether the block was locally mined or externally delivered.
func (e *Engine) ProcessMinedBlock(block consensus.Block) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.addBlockLocked(block); err != nil {
		return err
	}
	e.pool.Remove(block.TxHashes())
	return nil
}
