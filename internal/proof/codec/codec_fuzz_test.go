//go:build go1.18

package codec

import (
	"errors"
	"strings"
	"testing"

	"checkin/internal/proof/models"
)

// FuzzDecode checks that untrusted input never panics the decoder and that
// anything it accepts is canonical, in range and survives a round trip.
func FuzzDecode(f *testing.F) {
	f.Add("")
	f.Add("{}")
	f.Add("not json")
	f.Add(`{"version":1,"commitment":"z","issuedAt":0,"claims":{}}`)
	f.Add(`{"version":1,"commitment":"zQmYtUc4iTCbbfVSDNKvtQqrfyezPPnFvE33wFmutw9PBBk","issuedAt":1000,"claims":{"hasValidID":true,"ageOver18":true,"hasPaymentMethod":true,"nationalityVerified":true}}`)
	f.Add(string([]byte{0x00, 0xff, '{'}))
	f.Add(`{"version":1,"commitment":"zQmYtUc4iTCbbfVSDNKvtQqrfyezPPnFvE33wFmutw9PBBk","issuedAt":8935143360703064063,"claims":{"hasValidID":true,"ageOver18":true,"hasPaymentMethod":true,"nationalityVerified":true}}`)
	f.Add(`{"version":1,"version":1,"commitment":"zQmYtUc4iTCbbfVSDNKvtQqrfyezPPnFvE33wFmutw9PBBk","issuedAt":1000,"claims":{"hasValidID":true,"ageOver18":true,"hasPaymentMethod":true,"nationalityVerified":true}}`)

	f.Fuzz(func(t *testing.T, input string) {
		p, err := Decode(input)
		if err != nil {
			if !errors.Is(err, models.ErrMalformedProof) {
				t.Fatalf("decode error does not match ErrMalformedProof: %v", err)
			}
			return
		}
		if p.IssuedAt < 0 || p.IssuedAt > models.MaxTimestamp {
			t.Fatalf("accepted out-of-range issuedAt %d", p.IssuedAt)
		}
		text, err := Encode(p)
		if err != nil {
			t.Fatalf("accepted proof failed to encode: %v", err)
		}
		if text != strings.TrimSpace(input) {
			t.Fatalf("accepted non-canonical input %q", input)
		}
		again, err := Decode(text)
		if err != nil {
			t.Fatalf("canonical form failed to decode: %v", err)
		}
		if again != p {
			t.Fatalf("round trip changed proof: %+v != %+v", again, p)
		}
	})
}
