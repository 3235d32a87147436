package dbaas

import (
	"context"
	"net/http"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/edvin/dbaas/internal/transport"
)

func countingHandler(calls *atomic.Int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{}`))
	}
}

func TestResizeVolumeRejectsNonPositiveSizeLocally(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, countingHandler(&calls))

	for _, size := range []int{0, -5} {
		err := c.Instances.ResizeVolume(context.Background(), "i-1", size)
		assert.True(t, transport.IsKind(err, transport.KindValidationError), "size %d", size)
	}
	assert.Equal(t, int64(0), calls.Load())
}

func TestCreateRejectsLocalityOnReplica(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, countingHandler(&calls))

	_, err := c.Instances.Create(context.Background(), InstanceCreate{
		Name:      "replica-1",
		FlavorRef: "2",
		ReplicaOf: "i-1",
		Locality:  LocalityAntiAffinity,
	})
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
	assert.Equal(t, int64(0), calls.Load())
}

func TestCreateValidatesVolumeSize(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, countingHandler(&calls))

	_, err := c.Instances.Create(context.Background(), InstanceCreate{
		Name:      "small",
		FlavorRef: "2",
		Volume:    &VolumeSpec{Size: 0},
	})
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
	assert.Equal(t, int64(0), calls.Load())
}

func TestEditRejectsAttachAndDetachTogether(t *testing.T) {
	var calls atomic.Int64
	c := testClient(t, countingHandler(&calls))

	err := c.Instances.Edit(context.Background(), "i-1", InstanceEdit{
		Configuration:       "cfg-1",
		RemoveConfiguration: true,
	})
	assert.True(t, transport.IsKind(err, transport.KindValidationError))

	err = c.Instances.Edit(context.Background(), "i-1", InstanceEdit{})
	assert.True(t, transport.IsKind(err, transport.KindValidationError))
	assert.Equal(t, int64(0), calls.Load())
}
