package requesttime

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"checkin/pkg/requestcontext"
)

func TestWithClockPinsRequestTime(t *testing.T) {
	fixed := time.UnixMilli(1_700_000_000_123)
	var first, second time.Time

	h := WithClock(func() time.Time { return fixed })(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		first = requestcontext.Now(r.Context())
		second = requestcontext.Now(r.Context())
	}))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))

	assert.True(t, fixed.Equal(first))
	assert.True(t, first.Equal(second))
}
