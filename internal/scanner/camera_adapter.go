package scanner

import (
	"context"

	"claimscan/internal/camera"
)

// ManagedCamera adapts *camera.Manager to the Camera interface.
type ManagedCamera struct {
	Manager *camera.Manager
}

func (m ManagedCamera) Acquire(ctx context.Context, deviceID string) (FrameSource, error) {
	session, err := m.Manager.Acquire(ctx, deviceID)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (m ManagedCamera) Release() {
	m.Manager.Release()
}

func (m ManagedCamera) ActiveDevice() string {
	return m.Manager.ActiveDevice()
}
