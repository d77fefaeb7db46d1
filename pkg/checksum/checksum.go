// Package checksum computes SHA-256 digests of uploaded media while the
// content streams to a backend.
package checksum

import (
	"crypto/sha256"
	"encoding/hex"
	"hash"
	"io"
)

// Reader hashes everything read through it
type Reader struct {
	r io.Reader
	h hash.Hash
	n int64
}

// NewReader wraps r so the digest is available once it has been drained
func NewReader(r io.Reader) *Reader {
	h := sha256.New()
	return &Reader{r: io.TeeReader(r, h), h: h}
}

func (r *Reader) Read(p []byte) (int, error) {
	n, err := r.r.Read(p)
	r.n += int64(n)
	return n, err
}

// Sum returns the lowercase hex digest of the bytes read so far
func (r *Reader) Sum() string {
	return hex.EncodeToString(r.h.Sum(nil))
}

// BytesRead is the number of bytes read so far
func (r *Reader) BytesRead() int64 {
	return r.n
}
