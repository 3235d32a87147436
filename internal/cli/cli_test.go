package cli

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

func TestRenderErrorExitCodes(t *testing.T) {
	cases := []struct {
		name string
		err  error
		code int
	}{
		{"interrupt", context.Canceled, ExitInterrupt},
		{"wrapped interrupt", fmt.Errorf("instance wait: %w", context.Canceled), ExitInterrupt},
		{"usage", usagef("missing argument"), ExitUsage},
		{"validation", transport.NewError(transport.KindValidationError, "bad size"), ExitUsage},
		{"api failure", &transport.Error{Kind: transport.KindNotFound, Status: http.StatusNotFound, Message: "gone"}, ExitError},
		{"plain", fmt.Errorf("boom"), ExitError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var buf bytes.Buffer
			assert.Equal(t, tc.code, renderError(&buf, tc.err))
			assert.Contains(t, buf.String(), "ERROR:")
		})
	}
}

func TestRenderErrorNamesTheKind(t *testing.T) {
	var buf bytes.Buffer
	renderError(&buf, &transport.Error{Kind: transport.KindOverLimit, Message: "quota exceeded"})
	assert.Contains(t, buf.String(), string(transport.KindOverLimit))
	assert.Contains(t, buf.String(), "quota exceeded")
}

func TestMainUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Main(context.Background(), []string{"frobnicate"}, &out, &errOut)
	assert.Equal(t, ExitUsage, code)
	assert.Contains(t, errOut.String(), "unknown command")
}

func TestMainHelpNeverAuthenticates(t *testing.T) {
	var out, errOut bytes.Buffer
	code := Main(context.Background(), []string{"help", "instance-list"}, &out, &errOut)
	assert.Equal(t, ExitOK, code)
	assert.Contains(t, errOut.String(), "instance-list")
}

func TestParseValues(t *testing.T) {
	values, err := parseValues([]string{"max_connections=512", "slow_query_log=true", "collation=utf8_bin"})
	require.NoError(t, err)
	assert.Equal(t, float64(512), values["max_connections"])
	assert.Equal(t, true, values["slow_query_log"])
	// Bare words that are not valid JSON stay strings.
	assert.Equal(t, "utf8_bin", values["collation"])

	values, err = parseValues([]string{`{"max_connections": 512}`})
	require.NoError(t, err)
	assert.Equal(t, float64(512), values["max_connections"])

	_, err = parseValues([]string{"no-equals-sign"})
	var ue *usageError
	assert.ErrorAs(t, err, &ue)
}

func TestParseDuration(t *testing.T) {
	d, err := parseDuration("90s")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	d, err = parseDuration("90")
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, d)

	_, err = parseDuration("soon")
	assert.Error(t, err)
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitCSV("a, b,"))
	assert.Nil(t, splitCSV(""))
}
