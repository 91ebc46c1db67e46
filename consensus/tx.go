package consensus

import (
	"crypto/sha256"
	"fmt"
)

// TxKind tags which variant a Transaction carries. The tag byte is the first
// byte of the canonical encoding and is the sole discriminant — the wire
// format never uses optional/nullable fields to distinguish variants.
type TxKind byte

const (
	TxKindTransfer       TxKind = 0x00
	TxKindStoragePointer TxKind = 0x01
)

// Transaction is a tagged union of the two transaction variants this chain
// supports. Exactly one of Transfer/StoragePointer is meaningful, selected by
// Kind; the other is the zero value. Construct with NewTransfer or
// NewStoragePointer rather than populating the struct directly.
type Transaction struct {
	Kind        TxKind
	Sender      []byte
	Receiver    []byte   // Transfer only
	Amount      uint64   // Transfer only
	PayloadHash [32]byte // StoragePointer only
	PayloadSize uint64   // StoragePointer only
	Timestamp   uint64
}

func NewTransfer(sender, receiver []byte, amount uint64, timestamp uint64) Transaction {
	return Transaction{
		Kind:      TxKindTransfer,
		Sender:    append([]byte(nil), sender...),
		Receiver:  append([]byte(nil), receiver...),
		Amount:    amount,
		Timestamp: timestamp,
	}
}

func NewStoragePointer(sender []byte, payloadHash [32]byte, payloadSize uint64, timestamp uint64) Transaction {
	return Transaction{
		Kind:        TxKindStoragePointer,
		Sender:      append([]byte(nil), sender...),
		PayloadHash: payloadHash,
		PayloadSize: payloadSize,
		Timestamp:   timestamp,
	}
}

// Encode returns the canonical binary serialization of tx: fixed field
// order, little-endian integers, length-prefixed byte strings. This is the
// encoding used both for hashing (Hash) and for on-disk storage, so that
// hash(decode(encode(tx))) == hash(tx) always holds.
func (tx Transaction) Encode() []byte {
	out := make([]byte, 0, 96)
	out = append(out, byte(tx.Kind))
	out = appendLengthPrefixed(out, tx.Sender)
	switch tx.Kind {
	case TxKindTransfer:
		out = appendLengthPrefixed(out, tx.Receiver)
		out = appendU64LE(out, tx.Amount)
	case TxKindStoragePointer:
		out = appendHash32(out, tx.PayloadHash)
		out = appendU64LE(out, tx.PayloadSize)
	}
	out = appendU64LE(out, tx.Timestamp)
	return out
}

// DecodeTransaction parses a Transaction from its canonical encoding. It
// rejects trailing bytes and unknown tag values.
func DecodeTransaction(b []byte) (Transaction, error) {
	cur := newCursor(b)
	tagByte, err := cur.readExact(1)
	if err != nil {
		return Transaction{}, fmt.Errorf("tx: %w", err)
	}
	kind := TxKind(tagByte[0])

	sender, err := cur.readLengthPrefixed()
	if err != nil {
		return Transaction{}, fmt.Errorf("tx: sender: %w", err)
	}

	tx := Transaction{Kind: kind, Sender: sender}

	switch kind {
	case TxKindTransfer:
		receiver, err := cur.readLengthPrefixed()
		if err != nil {
			return Transaction{}, fmt.Errorf("tx: receiver: %w", err)
		}
		amount, err := cur.readU64LE()
		if err != nil {
			return Transaction{}, fmt.Errorf("tx: amount: %w", err)
		}
		tx.Receiver = receiver
		tx.Amount = amount
	case TxKindStoragePointer:
		payloadHash, err := cur.readHash32()
		if err != nil {
			return Transaction{}, fmt.Errorf("tx: payload_hash: %w", err)
		}
		payloadSize, err := cur.readU64LE()
		if err != nil {
			return Transaction{}, fmt.Errorf("tx: payload_size: %w", err)
		}
		tx.PayloadHash = payloadHash
		tx.PayloadSize = payloadSize
	default:
		return Transaction{}, fmt.Errorf("tx: unknown tx_kind 0x%02x", byte(kind))
	}

	timestamp, err := cur.readU64LE()
	if err != nil {
		return Transaction{}, fmt.Errorf("tx: timestamp: %w", err)
	}
	tx.Timestamp = timestamp

	if cur.remaining() != 0 {
		return Transaction{}, fmt.Errorf("tx: trailing bytes")
	}
	return tx, nil
}

// Hash returns the transaction identity: SHA-256 of the canonical
// serialization of all fields. Identity is used for equality and mempool
// deduplication.
func (tx Transaction) Hash() [32]byte {
	return sha256.Sum256(tx.Encode())
}
