package chainstore

import (
	"testing"

	"github.com/rubinchain/chaind/consensus"
)

func genesisBlock() consensus.Block {
	return consensus.Block{
		Header: consensus.BlockHeader{
			Timestamp:  1,
			Difficulty: 4,
			Height:     0,
		},
	}
}

func childBlock(parent consensus.Block) consensus.Block {
	tx := consensus.NewTransfer([]byte{1}, []byte{2}, 10, 2)
	block := consensus.Block{
		Header: consensus.BlockHeader{
			PrevHash:   parent.Hash(),
			MerkleRoot: consensus.MerkleRoot([][32]byte{tx.Hash()}),
			Timestamp:  2,
			Difficulty: 4,
			Height:     parent.Header.Height + 1,
		},
		Transactions: []consensus.Transaction{tx},
	}
	return block
}

func TestEmptyStoreHasNoTip(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	if _, ok, err := store.GetTipHash(); err != nil || ok {
		t.Fatalf("expected no tip on empty store, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetTipHeight(); err != nil || ok {
		t.Fatalf("expected no tip height on empty store, ok=%v err=%v", ok, err)
	}
	if _, ok, err := store.GetBlockByHeight(0); err != nil || ok {
		t.Fatalf("expected no block at height 0, ok=%v err=%v", ok, err)
	}
}

func TestPutBlockAdvancesTipAtomically(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	genesis := genesisBlock()
	if err := store.PutBlock(genesis); err != nil {
		t.Fatalf("PutBlock(genesis): %v", err)
	}

	tipHash, ok, err := store.GetTipHash()
	if err != nil || !ok {
		t.Fatalf("GetTipHash after genesis: ok=%v err=%v", ok, err)
	}
	if tipHash != genesis.Hash() {
		t.Fatalf("tip hash mismatch after genesis")
	}
	tipHeight, ok, err := store.GetTipHeight()
	if err != nil || !ok || tipHeight != 0 {
		t.Fatalf("tip height after genesis = %d, ok=%v err=%v", tipHeight, ok, err)
	}

	child := childBlock(genesis)
	if err := store.PutBlock(child); err != nil {
		t.Fatalf("PutBlock(child): %v", err)
	}

	tipHash, ok, err = store.GetTipHash()
	if err != nil || !ok || tipHash != child.Hash() {
		t.Fatalf("tip hash after child append: ok=%v err=%v hash=%x", ok, err, tipHash)
	}
	tipHeight, ok, err = store.GetTipHeight()
	if err != nil || !ok || tipHeight != 1 {
		t.Fatalf("tip height after child append = %d, ok=%v err=%v", tipHeight, ok, err)
	}

	// Invariant: get_block_by_height(tip_height) returns a block whose hash
	// equals the persisted tip hash.
	byHeight, ok, err := store.GetBlockByHeight(tipHeight)
	if err != nil || !ok {
		t.Fatalf("GetBlockByHeight(tip): ok=%v err=%v", ok, err)
	}
	if byHeight.Hash() != tipHash {
		t.Fatalf("block at tip height does not match tip hash")
	}
}

func TestGetBlockByHashRoundTrip(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	genesis := genesisBlock()
	if err := store.PutBlock(genesis); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}

	got, ok, err := store.GetBlockByHash(genesis.Hash())
	if err != nil || !ok {
		t.Fatalf("GetBlockByHash: ok=%v err=%v", ok, err)
	}
	if got.Header.Height != genesis.Header.Height || got.Hash() != genesis.Hash() {
		t.Fatalf("round-tripped block mismatch")
	}
}

func TestGetBlockByHashMissingIsAbsenceNotError(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	var missing [32]byte
	missing[0] = 0xff
	_, ok, err := store.GetBlockByHash(missing)
	if err != nil {
		t.Fatalf("unexpected error for missing hash: %v", err)
	}
	if ok {
		t.Fatalf("expected ok=false for missing hash")
	}
}

func TestSecondOpenOnSameDataDirFails(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("first Open: %v", err)
	}
	defer store.Close()

	if _, err := Open(dir); err == nil {
		t.Fatalf("expected second Open on same data dir to fail while first is held open")
	}
}

func TestReopenAfterCloseSucceedsAndPreservesTip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(dir)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	genesis := genesisBlock()
	if err := store.PutBlock(genesis); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(dir)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	tipHash, ok, err := reopened.GetTipHash()
	if err != nil || !ok || tipHash != genesis.Hash() {
		t.Fatalf("tip not preserved across reopen: ok=%v err=%v", ok, err)
	}
}

func TestHeaderHistoryAdaptersReadStoredBlocks(t *testing.T) {
	store, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer store.Close()

	genesis := genesisBlock()
	if err := store.PutBlock(genesis); err != nil {
		t.Fatalf("PutBlock: %v", err)
	}

	difficulty, ok := store.DifficultyAt(0)
	if !ok || difficulty != genesis.Header.Difficulty {
		t.Fatalf("DifficultyAt(0) = %d, ok=%v", difficulty, ok)
	}
	ts, ok := store.TimestampAt(0)
	if !ok || ts != genesis.Header.Timestamp {
		t.Fatalf("TimestampAt(0) = %d, ok=%v", ts, ok)
	}
	if _, ok := store.DifficultyAt(99); ok {
		t.Fatalf("DifficultyAt(99) should report ok=false")
	}
}
