package consensus

import (
	"crypto/sha256"
	"fmt"
)

// BlockHeaderBytes is the fixed, canonical-encoded size of a BlockHeader:
// prev_hash(32) + merkle_root(32) + timestamp(8) + nonce(8) + difficulty(4) + height(8).
const BlockHeaderBytes = 32 + 32 + 8 + 8 + 4 + 8

// BlockHeader is the portion of a Block whose hash identifies it. Only the
// header is hashed; transactions are bound to it via MerkleRoot.
type BlockHeader struct {
	PrevHash   [32]byte
	MerkleRoot [32]byte
	Timestamp  uint64
	Nonce      uint64
	Difficulty uint32
	Height     uint64
}

// Encode returns the canonical fixed-layout serialization of the header.
func (h BlockHeader) Encode() []byte {
	out := make([]byte, 0, BlockHeaderBytes)
	out = appendHash32(out, h.PrevHash)
	out = appendHash32(out, h.MerkleRoot)
	out = appendU64LE(out, h.Timestamp)
	out = appendU64LE(out, h.Nonce)
	out = appendU32LE(out, h.Difficulty)
	out = appendU64LE(out, h.Height)
	return out
}

func DecodeBlockHeader(b []byte) (BlockHeader, error) {
	if len(b) != BlockHeaderBytes {
		return BlockHeader{}, fmt.Errorf("block header: expected %d bytes, got %d", BlockHeaderBytes, len(b))
	}
	cur := newCursor(b)
	prevHash, err := cur.readHash32()
	if err != nil {
		return BlockHeader{}, err
	}
	merkleRoot, err := cur.readHash32()
	if err != nil {
		return BlockHeader{}, err
	}
	timestamp, err := cur.readU64LE()
	if err != nil {
		return BlockHeader{}, err
	}
	nonce, err := cur.readU64LE()
	if err != nil {
		return BlockHeader{}, err
	}
	difficulty, err := cur.readU32LE()
	if err != nil {
		return BlockHeader{}, err
	}
	height, err := cur.readU64LE()
	if err != nil {
		return BlockHeader{}, err
	}
	return BlockHeader{
		PrevHash:   prevHash,
		MerkleRoot: merkleRoot,
		Timestamp:  timestamp,
		Nonce:      nonce,
		Difficulty: difficulty,
		Height:     height,
	}, nil
}

// Hash returns the block hash: SHA-256 of the canonical header serialization.
func (h BlockHeader) Hash() [32]byte {
	return sha256.Sum256(h.Encode())
}

// Block is a header plus its ordered transaction list.
type Block struct {
	Header       BlockHeader
	Transactions []Transaction
}

// Hash returns the block's identity, i.e. its header's hash.
func (b Block) Hash() [32]byte {
	return b.Header.Hash()
}

// Encode returns the canonical serialization of the whole block: the header
// followed by a compact-size transaction count and each transaction's own
// length-prefixed encoding.
func (b Block) Encode() []byte {
	out := b.Header.Encode()
	out = appendCompactSize(out, uint64(len(b.Transactions)))
	for _, tx := range b.Transactions {
		out = appendLengthPrefixed(out, tx.Encode())
	}
	return out
}

func DecodeBlock(b []byte) (Block, error) {
	if len(b) < BlockHeaderBytes {
		return Block{}, fmt.Errorf("block: too short")
	}
	header, err := DecodeBlockHeader(b[:BlockHeaderBytes])
	if err != nil {
		return Block{}, fmt.Errorf("block: header: %w", err)
	}
	cur := newCursor(b[BlockHeaderBytes:])
	txCountU64, err := cur.readCompactSize()
	if err != nil {
		return Block{}, fmt.Errorf("block: tx_count: %w", err)
	}
	txs := make([]Transaction, 0, txCountU64)
	for i := uint64(0); i < txCountU64; i++ {
		raw, err := cur.readLengthPrefixed()
		if err != nil {
			return Block{}, fmt.Errorf("block: tx[%d]: %w", i, err)
		}
		tx, err := DecodeTransaction(raw)
		if err != nil {
			return Block{}, fmt.Errorf("block: tx[%d]: %w", i, err)
		}
		txs = append(txs, tx)
	}
	if cur.remaining() != 0 {
		return Block{}, fmt.Errorf("block: trailing bytes")
	}
	return Block{Header: header, Transactions: txs}, nil
}

// TxHashes returns the Hash() of every transaction, in order.
func (b Block) TxHashes() [][32]byte {
	out := make([][32]byte, len(b.Transactions))
	for i, tx := range b.Transactions {
		out[i] = tx.Hash()
	}
	return out
}
