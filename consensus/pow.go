package consensus

import "math"

// VerifyPoW reports whether hash satisfies the proof-of-work target
// expressed as a count of required leading zero bits: the first
// floor(difficulty/8) bytes of hash must be zero, and the next byte's top
// (difficulty mod 8) bits must be zero. difficulty == 0 accepts any hash.
func VerifyPoW(hash [32]byte, difficulty uint32) bool {
	fullBytes := int(difficulty / 8)
	remBits := difficulty % 8
	if fullBytes > len(hash) {
		return false
	}
	for i := 0; i < fullBytes; i++ {
		if hash[i] != 0 {
			return false
		}
	}
	if remBits == 0 {
		return true
	}
	if fullBytes >= len(hash) {
		return false
	}
	mask := byte(0xFF << (8 - remBits))
	return hash[fullBytes]&mask == 0
}

// ErrNonceExhausted is returned by Mine when every nonce in the uint64 range
// has been tried without finding a satisfying hash. This cannot happen in
// practice for realistic difficulties but is a fatal condition per spec.
type ErrNonceExhausted struct{}

func (ErrNonceExhausted) Error() string { return "pow: nonce space exhausted" }

// Mine sets header.Difficulty to difficulty, then searches nonces starting
// from header.Nonce's current value until VerifyPoW accepts the resulting
// header hash. header.Timestamp is fixed by the caller before Mine is
// invoked and is never modified mid-search. On success header.Nonce holds
// the winning nonce and the winning hash is returned.
func Mine(header *BlockHeader, difficulty uint32) ([32]byte, error) {
	header.Difficulty = difficulty
	nonce := header.Nonce
	for {
		header.Nonce = nonce
		h := header.Hash()
		if VerifyPoW(h, difficulty) {
			return h, nil
		}
		if nonce == math.MaxUint64 {
			return [32]byte{}, ErrNonceExhausted{}
		}
		nonce++
	}
}
