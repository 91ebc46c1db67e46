package engine

import (
	"testing"

	"github.com/rubinchain/chaind/chainerr"
	"github.com/rubinchain/chaind/chainstore"
	"github.com/rubinchain/chaind/consensus"
	"github.com/rubinchain/chaind/mempool"
)

func newTestEngine(t *testing.T) (*Engine, *chainstore.Store) {
	t.Helper()
	store, err := chainstore.Open(t.TempDir())
	if err != nil {
		t.Fatalf("chainstore.Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	pool := mempool.New(10)
	e, err := New(store, pool)
	if err != nil {
		t.Fatalf("engine.New: %v", err)
	}
	return e, store
}

func TestBootstrapAndFirstAppend(t *testing.T) {
	e, store := newTestEngine(t)

	if err := e.InitializeGenesisIfNeeded(); err != nil {
		t.Fatalf("InitializeGenesisIfNeeded: %v", err)
	}
	height, ok := e.GetChainHeight()
	if !ok || height != 0 {
		t.Fatalf("GetChainHeight = %d, ok=%v, want 0,true", height, ok)
	}

	genesis, ok, err := store.GetBlockByHeight(0)
	if err != nil || !ok {
		t.Fatalf("genesis not persisted: ok=%v err=%v", ok, err)
	}
	if genesis.Header.PrevHash != ([32]byte{}) {
		t.Fatalf("genesis previous_hash not zero")
	}
	if genesis.Header.Difficulty != consensus.MinDifficulty {
		t.Fatalf("genesis difficulty = %d, want %d", genesis.Header.Difficulty, consensus.MinDifficulty)
	}
	if len(genesis.Transactions) != 0 {
		t.Fatalf("genesis must have no transactions")
	}

	mined, err := e.MineNewBlock()
	if err != nil {
		t.Fatalf("MineNewBlock: %v", err)
	}
	if err := e.ProcessMinedBlock(mined); err != nil {
		t.Fatalf("ProcessMinedBlock: %v", err)
	}

	height, ok = e.GetChainHeight()
	if !ok || height != 1 {
		t.Fatalf("GetChainHeight after first append = %d, ok=%v, want 1,true", height, ok)
	}

	block1, ok, err := e.GetBlockByHeight(1)
	if err != nil || !ok {
		t.Fatalf("GetBlockByHeight(1): ok=%v err=%v", ok, err)
	}
	if block1.Header.PrevHash != genesis.Hash() {
		t.Fatalf("block 1 previous_hash does not match genesis hash")
	}
}

func TestAddBlockBeforeGenesisFailsWithInitializationError(t *testing.T) {
	e, _ := newTestEngine(t)

	var block consensus.Block
	err := e.AddBlock(block)
	if !chainerr.Is(err, chainerr.KindInitialization) {
		t.Fatalf("expected Initialization error, got %v", err)
	}
}

func TestRejectedBlockLeavesMempoolAndTipIntact(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.InitializeGenesisIfNeeded(); err != nil {
		t.Fatalf("InitializeGenesisIfNeeded: %v", err)
	}

	tx := consensus.NewTransfer([]byte{1}, []byte{2}, 10, 1)
	if _, err := e.SubmitTransaction(tx); err != nil {
		t.Fatalf("SubmitTransaction: %v", err)
	}

	mined, err := e.MineNewBlock()
	if err != nil {
		t.Fatalf("MineNewBlock: %v", err)
	}
	// Mutate the nonce so the proof of work no longer satisfies the claimed
	// difficulty. A neighbouring nonce can satisfy a low difficulty by
	// chance, so keep advancing until the hash fails VerifyPoW.
	mined.Header.Nonce++
	for consensus.VerifyPoW(mined.Hash(), mined.Header.Difficulty) {
		mined.Header.Nonce++
	}

	heightBefore, _ := e.GetChainHeight()

	err = e.ProcessMinedBlock(mined)
	if err == nil {
		t.Fatalf("expected Consensus error from mutated block")
	}

	heightAfter, _ := e.GetChainHeight()
	if heightAfter != heightBefore {
		t.Fatalf("tip advanced despite rejected block")
	}
	if e.pool.Size() != 1 {
		t.Fatalf("mempool should still contain the pending transaction, size=%d", e.pool.Size())
	}
}

func TestSubmitTransactionIsIdempotent(t *testing.T) {
	e, _ := newTestEngine(t)
	if err := e.InitializeGenesisIfNeeded(); err != nil {
		t.Fatalf("InitializeGenesisIfNeeded: %v", err)
	}

	tx := consensus.NewTransfer([]byte{1}, []byte{2}, 10, 1)
	h1, err := e.SubmitTransaction(tx)
	if err != nil {
		t.Fatalf("first SubmitTransaction: %v", err)
	}
	h2, err := e.SubmitTransaction(tx)
	if err != nil {
		t.Fatalf("second SubmitTransaction: %v", err)
	}
	if h1 != h2 {
		t.Fatalf("expected identical hash on idempotent resubmission")
	}
	if e.pool.Size() != 1 {
		t.Fatalf("resubmission should not duplicate the pending transaction")
	}
}
