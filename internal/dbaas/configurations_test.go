package dbaas

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/dbaas/internal/transport"
)

func f64(v float64) *float64 { return &v }

func TestValidateValues(t *testing.T) {
	params := []Parameter{
		{Name: "max_connections", Type: "integer", Min: f64(1), Max: f64(100000)},
		{Name: "innodb_buffer_pool_size", Type: "integer", Min: f64(0)},
		{Name: "character_set_server", Type: "string"},
	}

	cases := []struct {
		name   string
		values map[string]any
		ok     bool
	}{
		{"in range", map[string]any{"max_connections": 500}, true},
		{"at the bounds", map[string]any{"max_connections": 1}, true},
		{"below minimum", map[string]any{"max_connections": 0}, false},
		{"above maximum", map[string]any{"max_connections": 200000}, false},
		{"numeric string accepted", map[string]any{"max_connections": "512"}, true},
		{"non-numeric for integer", map[string]any{"max_connections": "lots"}, false},
		{"string type skips bounds", map[string]any{"character_set_server": "utf8mb4"}, true},
		{"unknown parameter", map[string]any{"bogus": 1}, false},
		{"no maximum means unbounded", map[string]any{"innodb_buffer_pool_size": 1 << 34}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidateValues(params, tc.values)
			if tc.ok {
				assert.NoError(t, err)
			} else {
				assert.True(t, transport.IsKind(err, transport.KindValidationError))
			}
		})
	}
}
