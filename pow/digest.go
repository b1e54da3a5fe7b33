package pow

import (
	"encoding/hex"
	"strconv"

	"github.com/spacemeshos/sha256-simd"
)

const DigestSize = sha256.Size

// hasher computes digests of prefix||decimal(counter) reusing a single buffer.
type hasher struct {
	buf       []byte
	prefixLen int
}

func newHasher(prefix string) *hasher {
	// 20 digits fit any uint64.
	buf := make([]byte, len(prefix), len(prefix)+20)
	copy(buf, prefix)
	return &hasher{buf: buf, prefixLen: len(prefix)}
}

func (h *hasher) sum(counter uint64) [DigestSize]byte {
	h.buf = strconv.AppendUint(h.buf[:h.prefixLen], counter, 10)
	return sha256.Sum256(h.buf)
}

// hasLeadingZeros reports whether the hex rendering of d starts with n '0' characters.
func hasLeadingZeros(d *[DigestSize]byte, n int) bool {
	full := n / 2
	for i := 0; i < full; i++ {
		if d[i] != 0 {
			return false
		}
	}
	if n%2 == 1 {
		return d[full]>>4 == 0
	}
	return true
}

// Digest returns the lowercase hex SHA-256 of prefix followed by the decimal counter.
func Digest(prefix string, counter uint64) string {
	d := newHasher(prefix).sum(counter)
	return hex.EncodeToString(d[:])
}
