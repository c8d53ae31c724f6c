package sqlstore

import (
	"context"

	"github.com/MrEthical07/sessionauth/device"
	"github.com/google/uuid"
)

// UpsertDevice inserts d or bumps last_seen_at and the versions of the existing
// fingerprint.
func (s *DB) UpsertDevice(ctx context.Context, d *device.Device) (*device.Device, error) {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	_, err := s.db.ExecContext(ctx, s.rebind(`
		INSERT INTO devices (id, user_id, vendor, model, type, os, os_version, browser, browser_version, last_seen_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id, vendor, model, type, os, browser)
		DO UPDATE SET last_seen_at = excluded.last_seen_at,
		              os_version = excluded.os_version,
		              browser_version = excluded.browser_version`),
		d.ID, d.UserID, d.Vendor, d.Model, d.Type, d.OS, d.OSVersion, d.Browser, d.BrowserVersion, millis(d.LastSeenAt),
	)
	if err != nil {
		if isForeignKeyViolation(err) {
			return nil, device.ErrInvalidUser
		}
		return nil, unavailable(err)
	}

	var (
		out  device.Device
		seen int64
	)
	err = s.db.QueryRowContext(ctx, s.rebind(`
		SELECT id, user_id, vendor, model, type, os, os_version, browser, browser_version, last_seen_at
		FROM devices
		WHERE user_id = ? AND vendor = ? AND model = ? AND type = ? AND os = ? AND browser = ?`),
		d.UserID, d.Vendor, d.Model, d.Type, d.OS, d.Browser,
	).Scan(&out.ID, &out.UserID, &out.Vendor, &out.Model, &out.Type, &out.OS, &out.OSVersion, &out.Browser, &out.BrowserVersion, &seen)
	if err != nil {
		return nil, unavailable(err)
	}
	out.LastSeenAt = fromMillis(seen)
	return &out, nil
}

// ListDevices returns up to limit devices of userID, most recently seen first.
func (s *DB) ListDevices(ctx context.Context, userID string, limit int) ([]device.Device, error) {
	if limit <= 0 {
		limit = device.DefaultListLimit
	}
	rows, err := s.db.QueryContext(ctx, s.rebind(`
		SELECT id, user_id, vendor, model, type, os, os_version, browser, browser_version, last_seen_at
		FROM devices WHERE user_id = ?
		ORDER BY last_seen_at DESC, id
		LIMIT ?`), userID, limit)
	if err != nil {
		return nil, unavailable(err)
	}
	defer rows.Close()

	out := []device.Device{}
	for rows.Next() {
		var (
			d    device.Device
			seen int64
		)
		if err := rows.Scan(&d.ID, &d.UserID, &d.Vendor, &d.Model, &d.Type, &d.OS, &d.OSVersion, &d.Browser, &d.BrowserVersion, &seen); err != nil {
			return nil, unavailable(err)
		}
		d.LastSeenAt = fromMillis(seen)
		out = append(out, d)
	}
	if err := rows.Err(); err != nil {
		return nil, unavailable(err)
	}
	return out, nil
}
