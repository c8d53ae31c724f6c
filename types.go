package sessionauth

import (
	"time"

	"github.com/MrEthical07/sessionauth/device"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/MrEthical07/sessionauth/user"
)

// User is the account record.
type User = user.User

// UserStore persists accounts.
type UserStore = user.Store

// SessionStore backs the in-place rotation strategy.
type SessionStore = session.Store

// ChainStore backs the chain rotation strategy.
type ChainStore = session.ChainStore

// SessionInfo is the listing projection of a session. It never carries the nonce.
type SessionInfo = session.Info

// Device is a client a user logged in from.
type Device = device.Device

// DeviceStore persists devices.
type DeviceStore = device.Store

// Mailer delivers account emails.
type Mailer = mail.Mailer

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpires"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpires"`
}

// RegisterInput carries the registration form.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AccessIdentity is what a verified access token proves.
type AccessIdentity struct {
	UserID    string
	Nonce     string
	ExpiresAt time.Time
}
