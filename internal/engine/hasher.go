package engine

import (
	"crypto/sha256"
	"encoding/binary"
)

const genesisHashSeed = "SynthVault:genesis:v1"

// stateHasher maintains the state-hash chain:
// state_hash[N] = SHA-256(prev_hash || sequence || state_digest)
type stateHasher struct {
	prevHash [32]byte
}

func newStateHasher() *stateHasher {
	return &stateHasher{prevHash: sha256.Sum256([]byte(genesisHashSeed))}
}

func (h *stateHasher) computeHash(sequence int64, stateDigest []byte) [32]byte {
	hasher := sha256.New()
	hasher.Write(h.prevHash[:])

	var seqBuf [8]byte
	binary.LittleEndian.PutUint64(seqBuf[:], uint64(sequence))
	hasher.Write(seqBuf[:])

	hasher.Write(stateDigest)

	var hash [32]byte
	copy(hash[:], hasher.Sum(nil))
	h.prevHash = hash
	return hash
}

func (h *stateHasher) tip() [32]byte {
	return h.prevHash
}

// setTip resets the chain head, used when resuming from a snapshot.
func (h *stateHasher) setTip(hash [32]byte) {
	h.prevHash = hash
}
