// Package codec converts proofs to and from their canonical text form.
//
// Decode is the only structural gate for untrusted artifacts: anything it
// returns satisfies the proof schema, so the verifier never sees a partially
// populated proof.
package codec

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/xeipuuv/gojsonschema"

	"checkin/internal/proof/commitment"
	"checkin/internal/proof/models"
	dErrors "checkin/pkg/domain-errors"
)

// MaxEncodedSize bounds the artifact length accepted by Decode.
const MaxEncodedSize = 4 << 10

const proofSchema = `{
  "$schema": "http://json-schema.org/draft-07/schema#",
  "type": "object",
  "additionalProperties": false,
  "required": ["version", "commitment", "issuedAt", "claims"],
  "properties": {
    "version": {"type": "integer"},
    "commitment": {"type": "string", "minLength": 1, "maxLength": 128},
    "issuedAt": {"type": "integer", "minimum": 0, "maximum": 9007199254740991},
    "claims": {
      "type": "object",
      "additionalProperties": false,
      "required": ["hasValidID", "ageOver18", "hasPaymentMethod", "nationalityVerified"],
      "properties": {
        "hasValidID": {"type": "boolean"},
        "ageOver18": {"type": "boolean"},
        "hasPaymentMethod": {"type": "boolean"},
        "nationalityVerified": {"type": "boolean"}
      }
    }
  }
}`

var (
	schemaOnce sync.Once
	schema     *gojsonschema.Schema
	schemaErr  error
)

func compiledSchema() (*gojsonschema.Schema, error) {
	schemaOnce.Do(func() {
		schema, schemaErr = gojsonschema.NewSchema(gojsonschema.NewStringLoader(proofSchema))
	})
	return schema, schemaErr
}

// Field order here is the canonical order of the encoding.
type wireProof struct {
	Version    int        `json:"version"`
	Commitment string     `json:"commitment"`
	IssuedAt   int64      `json:"issuedAt"`
	Claims     wireClaims `json:"claims"`
}

type wireClaims struct {
	HasValidID          bool `json:"hasValidID"`
	AgeOver18           bool `json:"ageOver18"`
	HasPaymentMethod    bool `json:"hasPaymentMethod"`
	NationalityVerified bool `json:"nationalityVerified"`
}

// Encode returns the canonical text form of p. It refuses proofs that Decode
// would reject, so every emitted artifact round-trips.
func Encode(p models.Proof) (string, error) {
	if err := checkSemantics(p); err != nil {
		return "", fmt.Errorf("encode proof: %w", err)
	}
	b, err := json.Marshal(wireProof{
		Version:    p.Version,
		Commitment: p.Commitment,
		IssuedAt:   int64(p.IssuedAt),
		Claims: wireClaims{
			HasValidID:          p.Claims.HasValidID,
			AgeOver18:           p.Claims.AgeOver18,
			HasPaymentMethod:    p.Claims.HasPaymentMethod,
			NationalityVerified: p.Claims.NationalityVerified,
		},
	})
	if err != nil {
		return "", fmt.Errorf("encode proof: %w", err)
	}
	return string(b), nil
}

// Decode parses untrusted text into a Proof. Only the canonical form produced
// by Encode is accepted, apart from surrounding whitespace. Every failure
// matches models.ErrMalformedProof and carries dErrors.CodeBadRequest.
func Decode(text string) (models.Proof, error) {
	if len(text) > MaxEncodedSize {
		return models.Proof{}, malformed(fmt.Sprintf("proof exceeds %d bytes", MaxEncodedSize))
	}
	data := []byte(strings.TrimSpace(text))
	if len(data) == 0 {
		return models.Proof{}, malformed("proof is empty")
	}

	s, err := compiledSchema()
	if err != nil {
		return models.Proof{}, dErrors.Wrap(err, dErrors.CodeInternal, "compile proof schema")
	}
	result, err := s.Validate(gojsonschema.NewBytesLoader(data))
	if err != nil {
		return models.Proof{}, malformed("proof is not valid JSON")
	}
	if !result.Valid() {
		return models.Proof{}, malformed(describe(result.Errors()))
	}

	var w wireProof
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return models.Proof{}, malformed(fmt.Sprintf("decode proof: %v", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return models.Proof{}, malformed("trailing data after proof")
	}

	p := models.Proof{
		Version:    w.Version,
		Commitment: w.Commitment,
		IssuedAt:   models.Timestamp(w.IssuedAt),
		Claims: models.Claims{
			HasValidID:          w.Claims.HasValidID,
			AgeOver18:           w.Claims.AgeOver18,
			HasPaymentMethod:    w.Claims.HasPaymentMethod,
			NationalityVerified: w.Claims.NationalityVerified,
		},
	}
	if err := checkSemantics(p); err != nil {
		return models.Proof{}, malformed(err.Error())
	}
	// Duplicate keys and reordered fields both survive json.Decode.
	canonical, err := Encode(p)
	if err != nil || canonical != string(data) {
		return models.Proof{}, malformed("proof is not in canonical form")
	}
	return p, nil
}

func checkSemantics(p models.Proof) error {
	if p.Version != models.CurrentVersion {
		return fmt.Errorf("unsupported proof version %d", p.Version)
	}
	if p.IssuedAt < 0 {
		return errors.New("issuedAt must not be negative")
	}
	if p.IssuedAt > models.MaxTimestamp {
		return fmt.Errorf("issuedAt exceeds %d", models.MaxTimestamp)
	}
	if err := commitment.Validate(p.Commitment); err != nil {
		return err
	}
	return nil
}

func describe(errs []gojsonschema.ResultError) string {
	parts := make([]string, 0, len(errs))
	for _, e := range errs {
		parts = append(parts, e.String())
	}
	return "proof does not match schema: " + strings.Join(parts, "; ")
}

func malformed(msg string) error {
	return dErrors.Wrap(models.ErrMalformedProof, dErrors.CodeBadRequest, msg)
}
