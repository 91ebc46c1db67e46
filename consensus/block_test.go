package consensus

import "testing"

func TestBlockHeaderRoundTrip(t *testing.T) {
	h := BlockHeader{
		PrevHash:   [32]byte{1, 2, 3},
		MerkleRoot: [32]byte{4, 5, 6},
		Timestamp:  1700000000,
		Nonce:      42,
		Difficulty: 8,
		Height:     7,
	}
	encoded := h.Encode()
	if len(encoded) != BlockHeaderBytes {
		t.Fatalf("encoded header length = %d, want %d", len(encoded), BlockHeaderBytes)
	}
	decoded, err := DecodeBlockHeader(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != h {
		t.Fatalf("decoded header %+v != original %+v", decoded, h)
	}
	if decoded.Hash() != h.Hash() {
		t.Fatalf("hash not preserved across round trip")
	}
}

func TestBlockRoundTripWithTransactions(t *testing.T) {
	txs := []Transaction{
		NewTransfer([]byte("alice"), []byte("bob"), 10, 1),
		NewTransfer([]byte("bob"), []byte("carol"), 5, 2),
	}
	hashes := make([][32]byte, len(txs))
	for i, tx := range txs {
		hashes[i] = tx.Hash()
	}
	block := Block{
		Header: BlockHeader{
			PrevHash:   [32]byte{9},
			MerkleRoot: MerkleRoot(hashes),
			Timestamp:  100,
			Height:     1,
			Difficulty: 4,
		},
		Transactions: txs,
	}
	encoded := block.Encode()
	decoded, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Transactions) != 2 {
		t.Fatalf("expected 2 transactions, got %d", len(decoded.Transactions))
	}
	if decoded.Hash() != block.Hash() {
		t.Fatalf("block hash not preserved across round trip")
	}
	for i := range txs {
		if decoded.Transactions[i].Hash() != txs[i].Hash() {
			t.Fatalf("tx[%d] hash mismatch after round trip", i)
		}
	}
}

func TestDecodeBlockRejectsTooShort(t *testing.T) {
	if _, err := DecodeBlock([]byte{1, 2, 3}); err == nil {
		t.Fatalf("expected error for too-short block bytes")
	}
}

func TestEmptyBlockEncodesAndDecodes(t *testing.T) {
	block := Block{
		Header: BlockHeader{
			MerkleRoot: MerkleRoot(nil),
		},
	}
	encoded := block.Encode()
	decoded, err := DecodeBlock(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded.Transactions) != 0 {
		t.Fatalf("expected no transactions")
	}
}
