package consensus

import "crypto/sha256"

// MerkleRoot implements the simplified merkle construction this chain uses:
// SHA-256 over the concatenation of the transaction hashes in insertion
// order. An empty transaction list yields the all-zero hash. This is a
// deliberate simplification over a binary merkle tree; upgrading it would be
// a consensus-breaking change and is out of scope.
func MerkleRoot(txHashes [][32]byte) [32]byte {
	if len(txHashes) == 0 {
		return [32]byte{}
	}
	buf := make([]byte, 0, len(txHashes)*32)
	for _, h := range txHashes {
		buf = append(buf, h[:]...)
	}
	return sha256.Sum256(buf)
}
