package dbaas

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/dbaas/internal/transport"
)

func TestModulePayloadRoundTrip(t *testing.T) {
	contents := []byte{0x00, 0xff, 0x10, 'a', '\n'}
	decoded, err := DecodePayload(EncodePayload(contents))
	require.NoError(t, err)
	assert.Equal(t, contents, decoded)
}

func TestDecodePayloadRejectsBadFraming(t *testing.T) {
	_, err := DecodePayload("not base64!!!")
	assert.True(t, transport.IsKind(err, transport.KindResponseFormatError))
}

func TestModuleUpdateSerializesUnbindAsNull(t *testing.T) {
	var body map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /modules/m-1", func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		var envelope map[string]map[string]json.RawMessage
		require.NoError(t, json.Unmarshal(raw, &envelope))
		body = envelope["module"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"module":{"id":"m-1"}}`))
	})
	c := testClient(t, mux)

	_, err := c.Modules.Update(context.Background(), "m-1", ModuleUpdate{
		Name:      "renamed",
		Datastore: AllDatastores,
	})
	require.NoError(t, err)

	assert.JSONEq(t, `"renamed"`, string(body["name"]))
	// The sentinel unbinds with an explicit null; an absent key leaves the
	// binding alone.
	assert.Equal(t, "null", string(body["datastore"]))
	_, present := body["datastore_version"]
	assert.False(t, present)
}

func TestModuleUpdateKeepsPlainDatastore(t *testing.T) {
	var body map[string]json.RawMessage
	mux := http.NewServeMux()
	mux.HandleFunc("PUT /modules/m-1", func(w http.ResponseWriter, r *http.Request) {
		var envelope map[string]map[string]json.RawMessage
		require.NoError(t, json.NewDecoder(r.Body).Decode(&envelope))
		body = envelope["module"]
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"module":{"id":"m-1"}}`))
	})
	c := testClient(t, mux)

	_, err := c.Modules.Update(context.Background(), "m-1", ModuleUpdate{Datastore: "mysql"})
	require.NoError(t, err)
	assert.JSONEq(t, `"mysql"`, string(body["datastore"]))
}

func TestModuleUpdateRequiresSomeChange(t *testing.T) {
	c := testClient(t, jsonHandler(http.StatusOK, `{"module":{"id":"m-1"}}`))

	_, err := c.Modules.Update(context.Background(), "m-1", ModuleUpdate{})
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
}
