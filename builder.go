package sessionauth

import (
	"errors"
	"io"
	"log/slog"
	"time"

	"github.com/MrEthical07/sessionauth/device"
	"github.com/MrEthical07/sessionauth/internal/flows"
	"github.com/MrEthical07/sessionauth/internal/rate"
	"github.com/MrEthical07/sessionauth/jwt"
	"github.com/MrEthical07/sessionauth/mail"
	"github.com/MrEthical07/sessionauth/password"
	"github.com/MrEthical07/sessionauth/refresh"
	"github.com/MrEthical07/sessionauth/seal"
	"github.com/MrEthical07/sessionauth/session"
	"github.com/redis/go-redis/v9"
)

// dummyPassword is hashed once per engine so unknown emails cost a full verify.
const dummyPassword = "sessionauth-timing-equalizer"

// Builder assembles an [Engine]. A Builder is single use.
type Builder struct {
	config Config
	redis  redis.UniversalClient

	users        UserStore
	sessionStore SessionStore
	chainStore   ChainStore
	deviceStore  DeviceStore
	mailer       Mailer
	auditSink    AuditSink
	logger       *slog.Logger
	now          func() time.Time

	built bool
}

// New returns a Builder seeded with [DefaultConfig].
func New() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cloneConfig(cfg)
	return b
}

// WithRedis enables login throttling. Without an explicit session store the
// client also backs sessions.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

func (b *Builder) WithUserStore(store UserStore) *Builder {
	b.users = store
	return b
}

// WithSessionStore selects in-place rotation over store.
func (b *Builder) WithSessionStore(store SessionStore) *Builder {
	b.sessionStore = store
	return b
}

// WithChainStore selects chain rotation over store. It wins over WithSessionStore.
func (b *Builder) WithChainStore(store ChainStore) *Builder {
	b.chainStore = store
	return b
}

func (b *Builder) WithDeviceStore(store DeviceStore) *Builder {
	b.deviceStore = store
	return b
}

func (b *Builder) WithMailer(m Mailer) *Builder {
	b.mailer = m
	return b
}

func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

func (b *Builder) WithLogger(logger *slog.Logger) *Builder {
	b.logger = logger
	return b
}

// WithClock overrides time.Now for session and user timestamps.
func (b *Builder) WithClock(now func() time.Time) *Builder {
	b.now = now
	return b
}

func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

func (b *Builder) WithLatencyHistograms(enabled bool) *Builder {
	b.config.Metrics.EnableLatencyHistograms = enabled
	return b
}

// Build validates the configuration and wires the engine.
func (b *Builder) Build() (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	cfg := cloneConfig(b.config)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Session.MismatchPolicy, _ = session.ParseMismatchPolicy(string(cfg.Session.MismatchPolicy))
	if b.users == nil {
		return nil, errors.New("user store required")
	}

	logger := b.logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	now := b.now
	if now == nil {
		now = time.Now
	}

	// -------- SESSIONS --------
	var strategy session.RotationStrategy
	switch {
	case b.chainStore != nil:
		strategy = session.NewChainRotation(b.chainStore)
	case b.sessionStore != nil:
		strategy = session.NewInPlaceRotation(b.sessionStore)
	case b.redis != nil:
		strategy = session.NewInPlaceRotation(session.NewRedisStore(b.redis, cfg.Session.RedisPrefix))
	default:
		return nil, errors.New("session store required")
	}
	sessions, err := session.NewManager(strategy, session.Config{
		RefreshTTL:     cfg.Session.RefreshTTL,
		MismatchPolicy: cfg.Session.MismatchPolicy,
		Now:            now,
		Logger:         logger,
	})
	if err != nil {
		return nil, err
	}

	// -------- TOKENS --------
	sealer, err := seal.NewSealer([]byte(cfg.AppKey))
	if err != nil {
		return nil, err
	}
	privateKey := cfg.JWT.PrivateKey
	if cfg.JWT.SigningMethod == "hs256" && len(privateKey) == 0 {
		privateKey = []byte(cfg.AppKey)
	}
	jm, err := jwt.NewManager(jwt.Config{
		AccessTTL:        cfg.JWT.AccessTTL,
		VerifyEmailTTL:   cfg.JWT.VerifyEmailTTL,
		ResetPasswordTTL: cfg.JWT.ResetPasswordTTL,
		SigningMethod:    jwt.SigningMethod(cfg.JWT.SigningMethod),
		PrivateKey:       cloneBytes(privateKey),
		PublicKey:        cloneBytes(cfg.JWT.PublicKey),
		Issuer:           cfg.JWT.Issuer,
		Audience:         cfg.JWT.Audience,
		Leeway:           cfg.JWT.Leeway,
	})
	if err != nil {
		return nil, err
	}

	ph, err := password.NewArgon2(cfg.Password)
	if err != nil {
		return nil, err
	}
	dummy, err := ph.Hash(dummyPassword)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:       cfg,
		users:        b.users,
		sessions:     sessions,
		codec:        refresh.NewCodec(sealer),
		jwtManager:   jm,
		passwordHash: ph,
		dummyHash:    dummy,
		mailer:       b.mailer,
		composer:     mail.Composer{AppName: cfg.AppName, FrontendURL: cfg.FrontendURL},
		audit:        newAuditDispatcher(cfg.Audit, b.auditSink),
		metrics:      NewMetrics(cfg.Metrics),
		logger:       logger,
		now:          now,
	}
	if engine.mailer == nil {
		engine.mailer = mail.LogMailer{Logger: logger}
	}
	if cfg.RateLimit.Enabled && b.redis != nil {
		engine.limiter = rate.New(b.redis, rate.Config{
			Prefix:           cfg.Session.RedisPrefix,
			EnableIPThrottle: cfg.RateLimit.EnableIPThrottle,
			MaxAttempts:      cfg.RateLimit.MaxAttempts,
			Window:           cfg.RateLimit.Window,
		})
	}
	if cfg.Devices.Enabled && b.deviceStore != nil {
		engine.devices = device.NewService(b.deviceStore, now)
	}

	// -------- FLOWS --------
	engine.flows = flows.Deps{
		Refresh: flows.RefreshDeps{
			VerifyRefreshToken:   engine.codec.VerifyRefreshToken,
			GenerateRefreshToken: engine.codec.GenerateRefreshToken,
			IssueAccessToken:     jm.GenerateAccessToken,
			Sessions:             sessions,
		},
		Logout: flows.LogoutDeps{
			VerifyRefreshToken: engine.codec.VerifyRefreshToken,
			Sessions:           sessions,
		},
		Sessions: flows.SessionsDeps{
			VerifyRefreshToken: engine.codec.VerifyRefreshToken,
			Sessions:           sessions,
			Now:                now,
		},
	}

	b.built = true

	return engine, nil
}
