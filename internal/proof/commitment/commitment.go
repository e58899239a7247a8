// Package commitment binds an attribute record and an issuance instant into
// an opaque value. The pre-image includes a random blinding factor that is
// never published, so the commitment reveals nothing about the record, and
// BLAKE2b-256 makes it infeasible to find a second record with the same value.
package commitment

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/multiformats/go-multibase"
	"golang.org/x/crypto/blake2b"

	"checkin/internal/proof/models"
)

// BlindingSize is the byte length of the blinding factor.
const BlindingSize = 32

// domainTag separates this pre-image from any other use of the hash.
const domainTag = "checkin/commitment/v1"

var (
	errEncoding = errors.New("commitment must be base58btc multibase")
	errLength   = errors.New("commitment digest has wrong length")
)

// NewBlinding reads a fresh blinding factor from entropy.
func NewBlinding(entropy io.Reader) ([]byte, error) {
	b := make([]byte, BlindingSize)
	if _, err := io.ReadFull(entropy, b); err != nil {
		return nil, fmt.Errorf("read blinding factor: %w", err)
	}
	return b, nil
}

// Commit computes the commitment over record and issuedAt under blinding.
func Commit(record models.AttributeRecord, issuedAt models.Timestamp, blinding []byte) (string, error) {
	if len(blinding) != BlindingSize {
		return "", fmt.Errorf("blinding factor must be %d bytes, got %d", BlindingSize, len(blinding))
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return "", fmt.Errorf("init hash: %w", err)
	}
	h.Write([]byte(domainTag))
	h.Write(blinding)
	writeField(h, []byte(record.Name))
	writeUint64(h, uint64(int64(record.Age)))
	writeField(h, []byte(record.IDFragment))
	if record.HasPaymentMethod {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	writeUint64(h, uint64(issuedAt))

	encoded, err := multibase.Encode(multibase.Base58BTC, h.Sum(nil))
	if err != nil {
		return "", fmt.Errorf("encode commitment: %w", err)
	}
	return encoded, nil
}

// Validate checks that s has the shape of a commitment produced by Commit.
// It says nothing about what was committed to.
func Validate(s string) error {
	enc, digest, err := multibase.Decode(s)
	if err != nil {
		return fmt.Errorf("decode commitment: %w", err)
	}
	if enc != multibase.Base58BTC {
		return errEncoding
	}
	if len(digest) != blake2b.Size256 {
		return errLength
	}
	return nil
}

// Fingerprint returns a short, log-safe identifier for a commitment.
func Fingerprint(s string) string {
	sum := blake2b.Sum256([]byte(s))
	return fmt.Sprintf("%x", sum[:6])
}

// Fields are length-prefixed so that ("ab","c") and ("a","bc") hash differently.
func writeField(w io.Writer, b []byte) {
	writeUint64(w, uint64(len(b)))
	_, _ = w.Write(b)
}

func writeUint64(w io.Writer, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	_, _ = w.Write(buf[:])
}
