package dbaas

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

func TestEncodeUserRef(t *testing.T) {
	cases := []struct {
		name, host string
		want       string
	}{
		{"admin", "10.0.0.1", "admin%4010.0.0.1"},
		{"ad.min", "10.0.0.1", "ad%2emin%4010.0.0.1"},
		{"app", "", "app%40%25"},
		{"app", "%", "app%40%25"},
		{"we.b.app", "db.internal", "we%2eb%2eapp%40db.internal"},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, EncodeUserRef(tc.name, tc.host), "%s@%s", tc.name, tc.host)
	}
}

func TestUserRefRoundTrips(t *testing.T) {
	for _, pair := range [][2]string{
		{"admin", "10.0.0.1"},
		{"ad.min", "%"},
		{"we.b.app", "db.internal"},
	} {
		name, host, err := DecodeUserRef(EncodeUserRef(pair[0], pair[1]))
		require.NoError(t, err)
		assert.Equal(t, pair[0], name)
		assert.Equal(t, pair[1], host)
	}
}

func TestDecodeUserRefWithoutSeparator(t *testing.T) {
	_, _, err := DecodeUserRef("admin")
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
}
