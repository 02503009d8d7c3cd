package ipc

import (
	"context"

	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/ggerr"
	"github.com/cookpate/aws-greengrass-sdk-lite/pkg/object"
)

// ComponentState is a lifecycle state a component reports about itself.
type ComponentState uint8

const (
	// StateRunning reports the component as running.
	StateRunning ComponentState = iota + 1

	// StateErrored reports the component as errored.
	StateErrored
)

// String returns the state name as sent to the nucleus.
func (s ComponentState) String() string {
	switch s {
	case StateRunning:
		return "RUNNING"
	case StateErrored:
		return "ERRORED"
	default:
		return "UNKNOWN"
	}
}

// ParseComponentState returns the state named s.
func ParseComponentState(s string) (ComponentState, bool) {
	switch s {
	case "RUNNING":
		return StateRunning, true
	case "ERRORED":
		return StateErrored, true
	}
	return 0, false
}

// UpdateState reports the caller's lifecycle state.
func (c *Client) UpdateState(ctx context.Context, state ComponentState) error {
	if state != StateRunning && state != StateErrored {
		return ggerr.Errorf(ggerr.Invalid, "invalid component state %d", state)
	}
	params, _ := object.NewMap(object.NewKV("state", object.Buf[object.Shared](state.String()))).AsMap()
	return c.invoke(ctx, OpUpdateState, params, nil)
}

// RestartComponent asks the nucleus to restart the named component. A
// restartStatus of FAILED is reported as ggerr.Failure.
func (c *Client) RestartComponent(ctx context.Context, name string) error {
	params, _ := object.NewMap(object.NewKV("componentName", object.Buf[object.Shared](name))).AsMap()
	return c.invoke(ctx, OpRestartComponent, params, func(resp object.Map[object.Shared]) error {
		var status object.Object[object.Shared]
		if err := resp.Validate(object.Required("restartStatus", object.TypeBuf, &status)); err != nil {
			c.logger.Error("RestartComponent response missing restartStatus", "error", err)
			return ggerr.Wrap(ggerr.Failure, "RestartComponent response", err)
		}
		if s, _ := status.AsBuf(); s == "FAILED" {
			c.logger.Error("component restart failed", "component", name)
			return ggerr.Errorf(ggerr.Failure, "restart of %s failed", name)
		}
		return nil
	})
}
