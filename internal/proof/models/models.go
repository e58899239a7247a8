// Package models holds the proof data model shared by the generator, the
// verifier and the codec.
package models

import (
	"errors"
	"math"
	"time"
)

// CurrentVersion is the only proof encoding version this build emits and accepts.
const CurrentVersion = 1

// DefaultTTL is the validity window applied when a caller supplies none.
const DefaultTTL = 5 * time.Minute

var (
	// ErrInvalidAttribute marks an attribute record that fails domain constraints.
	ErrInvalidAttribute = errors.New("invalid attribute")
	// ErrMalformedProof marks verification input that is not a structurally valid proof.
	ErrMalformedProof = errors.New("malformed proof")
)

// AttributeRecord is the holder's private input. It never leaves the generator.
type AttributeRecord struct {
	Name             string
	Age              int
	IDFragment       string
	HasPaymentMethod bool
}

// Timestamp is a wall-clock instant in milliseconds since the Unix epoch.
type Timestamp int64

// MaxTimestamp is the largest issuedAt a proof may carry: the top of the
// integer range a JSON number holds exactly.
const MaxTimestamp Timestamp = 1<<53 - 1

// TimestampOf converts t to millisecond precision.
func TimestampOf(t time.Time) Timestamp {
	return Timestamp(t.UnixMilli())
}

// Time returns the instant as a UTC time.Time.
func (ts Timestamp) Time() time.Time {
	return time.UnixMilli(int64(ts)).UTC()
}

// Sub returns the duration ts - other, saturating at the bounds of
// time.Duration instead of wrapping.
func (ts Timestamp) Sub(other Timestamp) time.Duration {
	a, b := int64(ts), int64(other)
	ms := a - b
	if (b > 0 && ms > a) || (b < 0 && ms < a) {
		if b > 0 {
			return math.MinInt64
		}
		return math.MaxInt64
	}
	const maxMs = math.MaxInt64 / int64(time.Millisecond)
	switch {
	case ms > maxMs:
		return math.MaxInt64
	case ms < -maxMs:
		return math.MinInt64
	}
	return time.Duration(ms) * time.Millisecond
}

// Claims are the derived boolean assertions carried by a proof.
type Claims struct {
	HasValidID          bool
	AgeOver18           bool
	HasPaymentMethod    bool
	NationalityVerified bool
}

// Proof is the transportable artifact. It is a comparable value; two proofs
// are the same proof iff they are ==.
type Proof struct {
	Version    int
	Commitment string
	IssuedAt   Timestamp
	Claims     Claims
}

// ExpiresAt returns the instant after which the proof is stale under ttl.
func (p Proof) ExpiresAt(ttl time.Duration) Timestamp {
	return p.IssuedAt + Timestamp(ttl.Milliseconds())
}
