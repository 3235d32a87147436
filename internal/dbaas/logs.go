package dbaas

import (
	"context"
	"fmt"
	"net/url"

	"github.com/edvin/dbaas/internal/resource"
	"github.com/edvin/dbaas/internal/transport"
)

// GuestLog is the metadata of one published guest log: where the service
// has placed its segments in the object store.
type GuestLog struct {
	Name      string `json:"name"`
	Type      string `json:"type"`
	Status    string `json:"status"`
	Container string `json:"container"`
	Prefix    string `json:"prefix"`
	Metafile  string `json:"metafile"`
	Published int64  `json:"published"`
	Pending   int64  `json:"pending"`
}

// LogManager drives guest log publication through the per-instance log
// endpoint.
type LogManager struct {
	manager
}

func logPath(instanceID string) string {
	return fmt.Sprintf("/instances/%s/log", url.PathEscape(instanceID))
}

// List returns all guest logs the datastore exposes on the instance.
func (m *LogManager) List(ctx context.Context, instanceID string) ([]resource.Record, error) {
	resp, err := m.t.Get(ctx, logPath(instanceID), nil)
	if err != nil {
		return nil, guestLogError(err)
	}
	page, err := decodeList(resp, "logs")
	if err != nil {
		return nil, err
	}
	return page.Items, nil
}

// LogAction selects what to do with a named guest log.
type LogAction struct {
	Enable  bool `json:"enable,omitempty"`
	Disable bool `json:"disable,omitempty"`
	Publish bool `json:"publish,omitempty"`
	Discard bool `json:"discard,omitempty"`
}

// Set posts a log action and returns the resulting metadata. Publishing
// flushes buffered log bytes into new object-store segments.
func (m *LogManager) Set(ctx context.Context, instanceID, logName string, action LogAction) (*GuestLog, error) {
	if err := requireID(logName, "log name"); err != nil {
		return nil, err
	}
	if action.Enable && action.Disable {
		return nil, transport.NewError(transport.KindValidationError,
			"enable and disable are mutually exclusive")
	}
	body := map[string]any{"name": logName}
	if action.Enable {
		body["enable"] = 1
	}
	if action.Disable {
		body["disable"] = 1
	}
	if action.Publish {
		body["publish"] = 1
	}
	if action.Discard {
		body["discard"] = 1
	}

	resp, err := m.t.Post(ctx, logPath(instanceID), body)
	if err != nil {
		return nil, guestLogError(err)
	}
	return decodeGuestLog(resp)
}

// Show returns the metadata of one guest log without changing its state.
func (m *LogManager) Show(ctx context.Context, instanceID, logName string) (*GuestLog, error) {
	return m.Set(ctx, instanceID, logName, LogAction{})
}

func decodeGuestLog(resp *transport.Response) (*GuestLog, error) {
	var envelope struct {
		Log *GuestLog `json:"log"`
	}
	if err := resp.Decode(&envelope); err != nil {
		return nil, err
	}
	if envelope.Log == nil {
		return nil, &transport.Error{Kind: transport.KindResponseFormatError, Status: resp.Status,
			Message: "response envelope missing \"log\" key"}
	}
	return envelope.Log, nil
}

// guestLogError narrows a 404 on the log endpoint to GuestLogNotFound.
func guestLogError(err error) error {
	if te := transport.AsError(err); te != nil && te.Kind == transport.KindNotFound {
		return &transport.Error{Kind: transport.KindGuestLogNotFound, Status: te.Status,
			Message: te.Message, RequestID: te.RequestID}
	}
	return err
}
