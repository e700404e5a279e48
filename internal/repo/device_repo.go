package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/ir-comercio/ir-comercio-sistema/internal/model"
)

// DeviceRepo defines the interface for device repository operations
type DeviceRepo interface {
	Upsert(ctx context.Context, device model.Device) (model.Device, error)
}

type deviceRepo struct {
	db *sql.DB
}

// NewDeviceRepo creates a new DeviceRepo instance
func NewDeviceRepo(db *sql.DB) DeviceRepo {
	return &deviceRepo{db: db}
}

// Upsert registers the device or refreshes it, keyed on device_token
func (r *deviceRepo) Upsert(ctx context.Context, device model.Device) (model.Device, error) {
	query := `
		INSERT INTO authorized_devices
			(user_id, device_token, device_fingerprint, device_name, ip_address, user_agent, is_active, last_access)
		VALUES ($1, $2, $3, $4, $5, $6, TRUE, $7)
		ON CONFLICT (device_token) DO UPDATE SET
			user_id            = EXCLUDED.user_id,
			device_fingerprint = EXCLUDED.device_fingerprint,
			device_name        = EXCLUDED.device_name,
			ip_address         = EXCLUDED.ip_address,
			user_agent         = EXCLUDED.user_agent,
			is_active          = TRUE,
			last_access        = EXCLUDED.last_access
		RETURNING id, is_active, created_at
	`
	err := r.db.QueryRowContext(ctx, query,
		device.UserID,
		device.DeviceToken,
		device.Fingerprint,
		device.DeviceName,
		device.IPAddress,
		device.UserAgent,
		device.LastAccess,
	).Scan(&device.ID, &device.IsActive, &device.CreatedAt)
	if err != nil {
		return model.Device{}, fmt.Errorf("failed to upsert device: %w", err)
	}
	return device, nil
}
