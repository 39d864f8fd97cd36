package protocol

import (
	"crypto/rand"
	"fmt"

	"github.com/google/uuid"
)

// Handle is the opaque 128-bit identifier the leader hands out for a live
// statement or reader. It is wide enough that a cryptographic or random
// allocation scheme can replace a monotonic counter without a protocol
// change; NewHandle does exactly that.
type Handle [16]byte

// ZeroHandle is never returned by NewHandle and is used as a sentinel for
// "no handle".
var ZeroHandle Handle

// NewHandle allocates a fresh random handle. Collisions are astronomically
// unlikely; callers that maintain a handle table should still assert
// uniqueness on insert.
func NewHandle() Handle {
	var h Handle
	for {
		if _, err := rand.Read(h[:]); err != nil {
			panic(fmt.Sprintf("protocol: could not read random bytes: %v", err))
		}
		if h != ZeroHandle {
			return h
		}
	}
}

// String renders h in canonical UUID form (it is bit-for-bit the same size
// and has no distinguishing version/variant requirements of its own), which
// reads far better in logs than a bare hex dump.
func (h Handle) String() string {
	id, _ := uuid.FromBytes(h[:])
	return id.String()
}

// PutHandle writes h's wire representation (big-endian halves) to b, which
// must be at least 16 bytes.
func PutHandle(b []byte, h Handle) {
	copy(b, h[:])
}

// AppendHandle appends h's wire representation to b.
func AppendHandle(b []byte, h Handle) []byte {
	return append(b, h[:]...)
}

// readHandle decodes a handle from the front of b, returning the handle and
// the number of bytes consumed.
func readHandle(b []byte) (Handle, int, error) {
	if len(b) < 16 {
		return ZeroHandle, 0, fmt.Errorf("protocol: short handle: need 16 bytes, have %d", len(b))
	}
	var h Handle
	copy(h[:], b[:16])
	return h, 16, nil
}
