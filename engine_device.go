package sessionauth

import (
	"context"
	"log/slog"
)

func (e *Engine) touchDevice(ctx context.Context, userID string) {
	if e.devices == nil {
		return
	}
	if _, err := e.devices.Touch(ctx, userID, userAgentFromContext(ctx)); err != nil {
		e.logger.Warn("device upsert failed", slog.String("user_id", userID), slog.Any("error", err))
	}
}

// ListDevices returns the devices userID logged in from, most recent first.
// Without a device store the list is empty.
func (e *Engine) ListDevices(ctx context.Context, userID string) ([]Device, error) {
	const op = "list_devices"
	if userID == "" {
		return nil, badRequest(op, ErrInvalidInput)
	}
	if e.devices == nil {
		return []Device{}, nil
	}
	devices, err := e.devices.List(ctx, userID, e.config.Devices.ListLimit)
	if err != nil {
		return nil, internalError(op, err)
	}
	return devices, nil
}
