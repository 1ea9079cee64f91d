package matroska

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/mutwol/tagparser/containererr"
)

// maxUIDCollisionAttempts bounds the retry loop spec §9 asks for ("retry up
// to 255 collisions... on exhaustion, fail with invalid_data").
const maxUIDCollisionAttempts = 255

// generateUID returns 16 statistically independent random bytes, retrying
// on collision against taken. Grounded on google/uuid (dependency carried
// from deepch-vdk and seqsense-kinesisvideomanager in the example pack) as
// the cryptographically-adequate RNG source spec §9 calls for, replacing
// the original's wall-clock-seeded PRNG.
func generateUID(taken map[[16]byte]bool) ([16]byte, error) {
	for attempt := 0; attempt < maxUIDCollisionAttempts; attempt++ {
		id := uuid.New()
		var out [16]byte
		copy(out[:], id[:])
		if !taken[out] {
			return out, nil
		}
	}
	return [16]byte{}, fmt.Errorf("could not generate a unique UID after %d attempts: %w", maxUIDCollisionAttempts, containererr.ErrInvalidData)
}

// generateUID64 returns a random non-zero 64-bit UID (used for
// AttachmentUID, which is 8 bytes wide rather than the 16-byte SegmentUID).
func generateUID64(taken map[uint64]bool) (uint64, error) {
	for attempt := 0; attempt < maxUIDCollisionAttempts; attempt++ {
		id := uuid.New()
		var v uint64
		for _, b := range id[:8] {
			v = (v << 8) | uint64(b)
		}
		if v != 0 && !taken[v] {
			return v, nil
		}
	}
	return 0, fmt.Errorf("could not generate a unique 64-bit UID after %d attempts: %w", maxUIDCollisionAttempts, containererr.ErrInvalidData)
}
