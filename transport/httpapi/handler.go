package httpapi

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/MrEthical07/sessionauth"
	"github.com/MrEthical07/sessionauth/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Service is the part of *sessionauth.Engine the routes call.
type Service interface {
	Register(ctx context.Context, in sessionauth.RegisterInput) (*sessionauth.User, error)
	Login(ctx context.Context, email, password string) (*sessionauth.TokenPair, error)
	Logout(ctx context.Context, refreshToken string)
	GetSessions(ctx context.Context, refreshToken string) ([]sessionauth.SessionInfo, error)
	RefreshTokens(ctx context.Context, refreshToken string) (*sessionauth.TokenPair, error)
	SendVerificationEmail(ctx context.Context, userID string) error
	VerifyEmail(ctx context.Context, token string) error
	SendResetPasswordEmail(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token, newPassword string) error
	AuthenticateAccess(ctx context.Context, accessToken string) (*sessionauth.AccessIdentity, error)
}

// Handler serves the /auth routes.
type Handler struct {
	svc     Service
	logger  *slog.Logger
	metrics *requestMetrics
}

// Option configures a Handler.
type Option func(*Handler)

// WithLogger sets the logger used for internal failures.
func WithLogger(l *slog.Logger) Option {
	return func(h *Handler) {
		if l != nil {
			h.logger = l
		}
	}
}

// WithMetrics records request counts and latencies on reg.
func WithMetrics(reg prometheus.Registerer) Option {
	return func(h *Handler) {
		if reg != nil {
			h.metrics = newRequestMetrics(reg)
		}
	}
}

// New returns a Handler for svc.
func New(svc Service, opts ...Option) *Handler {
	h := &Handler{
		svc:    svc,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Register mounts the routes on r.
func (h *Handler) Register(r gin.IRouter) {
	g := r.Group("/auth", h.requestContext())
	if h.metrics != nil {
		g.Use(h.metrics.middleware())
	}

	g.POST("/register", h.register)
	g.POST("/login", h.login)
	g.POST("/logout", h.logout)
	g.GET("/sessions", h.sessions)
	g.POST("/refresh-tokens", h.refreshTokens)
	g.POST("/send-verification-email", h.requireAccess(), h.sendVerificationEmail)
	g.POST("/verify-email", h.verifyEmail)
	g.POST("/forgot-password", h.forgotPassword)
	g.POST("/reset-password", h.resetPassword)
}

// Router returns a gin engine with the routes mounted.
func (h *Handler) Router() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	h.Register(r)
	return r
}

// requestContext carries the client address and user agent to the engine.
func (h *Handler) requestContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := sessionauth.WithClientIP(c.Request.Context(), c.ClientIP())
		ctx = sessionauth.WithUserAgent(ctx, c.Request.UserAgent())
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func (h *Handler) requireAccess() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := middleware.BearerToken(c.GetHeader("Authorization"))
		if !ok {
			abortWithError(c, http.StatusUnauthorized, errMissingToken)
			return
		}
		id, err := h.svc.AuthenticateAccess(c.Request.Context(), token)
		if err != nil {
			abortWithError(c, http.StatusUnauthorized, errMissingToken)
			return
		}
		c.Request = c.Request.WithContext(middleware.WithIdentity(c.Request.Context(), id))
		c.Next()
	}
}

type registerRequest struct {
	Name     string `json:"name" binding:"required"`
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type registerResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	u, err := h.svc.Register(c.Request.Context(), sessionauth.RegisterInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, registerResponse{ID: u.ID, Name: u.Name, Email: u.Email})
}

type loginRequest struct {
	Email    string `json:"email" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	pair, err := h.svc.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// refreshToken reads the header first, then the body.
func refreshToken(c *gin.Context) (string, bool) {
	if token, ok := middleware.BearerToken(c.GetHeader("Authorization")); ok {
		return token, true
	}
	var req refreshRequest
	if c.Request.Body == nil || c.ShouldBindJSON(&req) != nil {
		return "", false
	}
	token := strings.TrimSpace(req.RefreshToken)
	return token, token != ""
}

func (h *Handler) logout(c *gin.Context) {
	if token, ok := refreshToken(c); ok {
		h.svc.Logout(c.Request.Context(), token)
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) sessions(c *gin.Context) {
	token, ok := refreshToken(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errMissingToken)
		return
	}
	infos, err := h.svc.GetSessions(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, infos)
}

func (h *Handler) refreshTokens(c *gin.Context) {
	token, ok := refreshToken(c)
	if !ok {
		abortWithError(c, http.StatusUnauthorized, errMissingToken)
		return
	}
	pair, err := h.svc.RefreshTokens(c.Request.Context(), token)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

func (h *Handler) sendVerificationEmail(c *gin.Context) {
	id, _ := middleware.IdentityFromContext(c.Request.Context())
	if err := h.svc.SendVerificationEmail(c.Request.Context(), id.UserID); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type tokenRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// tokenFromRequest reads ?token= first, then the body.
func tokenFromRequest(c *gin.Context) (tokenRequest, bool) {
	var req tokenRequest
	if c.Request.Body != nil && c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			return req, false
		}
	}
	if q := c.Query("token"); q != "" {
		req.Token = q
	}
	return req, req.Token != ""
}

func (h *Handler) verifyEmail(c *gin.Context) {
	req, ok := tokenFromRequest(c)
	if !ok {
		abortWithError(c, http.StatusBadRequest, sessionauth.ErrInvalidToken)
		return
	}
	if err := h.svc.VerifyEmail(c.Request.Context(), req.Token); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

type forgotPasswordRequest struct {
	Email string `json:"email" binding:"required"`
}

func (h *Handler) forgotPassword(c *gin.Context) {
	var req forgotPasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		abortWithError(c, http.StatusBadRequest, err)
		return
	}
	if err := h.svc.SendResetPasswordEmail(c.Request.Context(), req.Email); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *Handler) resetPassword(c *gin.Context) {
	req, ok := tokenFromRequest(c)
	if !ok {
		abortWithError(c, http.StatusBadRequest, sessionauth.ErrInvalidToken)
		return
	}
	if req.Password == "" {
		abortWithError(c, http.StatusBadRequest, sessionauth.ErrPasswordPolicy)
		return
	}
	if err := h.svc.ResetPassword(c.Request.Context(), req.Token, req.Password); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
