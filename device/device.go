// Package device derives a coarse device fingerprint from a User-Agent header and
// records when each fingerprint last logged in.
package device

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/mssola/useragent"
)

// Unknown fills every field the User-Agent does not reveal.
const Unknown = "unknown"

// DefaultListLimit is the listing size used when the caller passes zero.
const DefaultListLimit = 10

// ErrInvalidUser is returned when a device is recorded without an owner.
var ErrInvalidUser = errors.New("device: user id is required")

// Device is one fingerprint of one user. The identity is (UserID, Vendor,
// Model, Type, OS, Browser); versions and LastSeenAt are refreshed on upsert.
type Device struct {
	ID             string    `json:"id"`
	UserID         string    `json:"-"`
	Vendor         string    `json:"vendor"`
	Model          string    `json:"model"`
	Type           string    `json:"type"`
	OS             string    `json:"os"`
	OSVersion      string    `json:"osVersion"`
	Browser        string    `json:"browser"`
	BrowserVersion string    `json:"browserVersion"`
	LastSeenAt     time.Time `json:"lastSeenAt"`
}

// Store persists devices.
type Store interface {
	UpsertDevice(ctx context.Context, d *Device) (*Device, error)
	ListDevices(ctx context.Context, userID string, limit int) ([]Device, error)
}

var appleVendors = map[string]bool{
	"iPhone":    true,
	"iPad":      true,
	"iPod":      true,
	"Macintosh": true,
}

// Parse maps a User-Agent header to device fields. Nothing is ever left empty.
func Parse(userAgent string) Device {
	d := Device{
		Vendor:         Unknown,
		Model:          Unknown,
		Type:           Unknown,
		OS:             Unknown,
		OSVersion:      Unknown,
		Browser:        Unknown,
		BrowserVersion: Unknown,
	}
	userAgent = strings.TrimSpace(userAgent)
	if userAgent == "" {
		return d
	}

	ua := useragent.New(userAgent)
	platform := ua.Platform()
	if appleVendors[platform] {
		d.Vendor = "Apple"
	}
	if m := ua.Model(); m != "" {
		d.Model = m
	} else if appleVendors[platform] {
		d.Model = platform
	}

	switch {
	case ua.Bot():
		d.Type = "bot"
	case platform == "iPad":
		d.Type = "tablet"
	case ua.Mobile():
		d.Type = "mobile"
	case platform != "":
		d.Type = "desktop"
	}

	info := ua.OSInfo()
	if info.Name != "" {
		d.OS = info.Name
	}
	if info.Version != "" {
		d.OSVersion = info.Version
	}

	name, version := ua.Browser()
	if name != "" {
		d.Browser = name
	}
	if version != "" {
		d.BrowserVersion = version
	}
	return d
}

// Service records and lists devices.
type Service struct {
	store Store
	now   func() time.Time
}

// NewService returns a Service over store. now defaults to time.Now.
func NewService(store Store, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, now: now}
}

// Touch records that userID logged in from userAgent.
func (s *Service) Touch(ctx context.Context, userID, userAgent string) (*Device, error) {
	if userID == "" {
		return nil, ErrInvalidUser
	}
	d := Parse(userAgent)
	d.UserID = userID
	d.LastSeenAt = s.now()
	return s.store.UpsertDevice(ctx, &d)
}

// List returns up to limit devices of userID, most recently seen first.
func (s *Service) List(ctx context.Context, userID string, limit int) ([]Device, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return s.store.ListDevices(ctx, userID, limit)
}
