package transport

import (
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestKindForStatus(t *testing.T) {
	cases := []struct {
		status int
		kind   Kind
	}{
		{400, KindBadRequest},
		{401, KindAuthorizationFailure},
		{403, KindForbidden},
		{404, KindNotFound},
		{405, KindMethodNotAllowed},
		{409, KindConflict},
		{413, KindOverLimit},
		{422, KindUnprocessableEntity},
		{500, KindInternalServerError},
		{503, KindServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(fmt.Sprintf("%d", tc.status), func(t *testing.T) {
			assert.Equal(t, tc.kind, kindForStatus(tc.status))
		})
	}
}

func TestErrorFromResponseFlatBody(t *testing.T) {
	err := ErrorFromResponse(404, nil, []byte(`{"message":"no such instance","code":404}`))
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, 404, err.Status)
	assert.Equal(t, "no such instance", err.Message)
}

func TestErrorFromResponseWrappedBody(t *testing.T) {
	body := []byte(`{"overLimit":{"message":"quota exceeded","code":413}}`)
	err := ErrorFromResponse(413, nil, body)
	assert.Equal(t, KindOverLimit, err.Kind)
	assert.Equal(t, "quota exceeded", err.Message)
}

func TestErrorFromResponseUnparseableBodyStillTyped(t *testing.T) {
	err := ErrorFromResponse(500, nil, []byte("<html>gateway exploded</html>"))
	assert.Equal(t, KindInternalServerError, err.Kind)
	assert.Equal(t, 500, err.Status)
	assert.NotEmpty(t, err.Message)
}

func TestErrorFromResponsePrefersRequestIDHeader(t *testing.T) {
	h := http.Header{}
	h.Set("X-Compute-Request-Id", "req-compute-1")
	err := ErrorFromResponse(409, h, []byte(`{"message":"busy","code":409}`))
	assert.Equal(t, "req-compute-1", err.RequestID)
}

func TestOverLimitCarriesRetryAfter(t *testing.T) {
	h := http.Header{}
	h.Set("Retry-After", "30")
	err := ErrorFromResponse(413, h, []byte(`{"overLimit":{"message":"slow down","code":413}}`))
	assert.Equal(t, KindOverLimit, err.Kind)
	assert.Equal(t, 30*time.Second, err.RetryAfter)

	// Other statuses never parse the header.
	err = ErrorFromResponse(409, h, nil)
	assert.Zero(t, err.RetryAfter)

	h.Set("Retry-After", "not-a-date")
	err = ErrorFromResponse(413, h, []byte(`{"message":"slow down","code":413}`))
	assert.Equal(t, KindOverLimit, err.Kind)
	assert.Zero(t, err.RetryAfter)
}

func Test413WithoutRateLimitBodyIsNotOverLimit(t *testing.T) {
	// A proxy rejecting an oversized payload sends 413 without the
	// rate-limit body; that must not read as a quota condition.
	err := ErrorFromResponse(413, nil, []byte("<html>entity too large</html>"))
	assert.Equal(t, KindBadRequest, err.Kind)
	assert.Zero(t, err.RetryAfter)

	err = ErrorFromResponse(413, nil, nil)
	assert.Equal(t, KindBadRequest, err.Kind)
}

func TestIsKindUnwraps(t *testing.T) {
	inner := NewError(KindValidationError, "size must be positive")
	wrapped := fmt.Errorf("resize instance: %w", inner)
	assert.True(t, IsKind(wrapped, KindValidationError))
	assert.False(t, IsKind(wrapped, KindNotFound))
	assert.Nil(t, AsError(fmt.Errorf("plain failure")))
}
