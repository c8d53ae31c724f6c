package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/MrEthical07/sessionauth"
	"github.com/gin-gonic/gin"
)

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

var errMissingToken = errors.New("Please authenticate")

func statusFor(err error) int {
	switch sessionauth.KindOf(err) {
	case sessionauth.KindUnauthorized:
		return http.StatusUnauthorized
	case sessionauth.KindBadRequest:
		return http.StatusBadRequest
	case sessionauth.KindNotFound:
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func abortWithError(c *gin.Context, status int, err error) {
	c.AbortWithStatusJSON(status, ErrorResponse{Code: status, Message: err.Error()})
}

func (h *Handler) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		h.logger.Error("request failed",
			slog.String("route", c.FullPath()),
			slog.Any("error", errors.Unwrap(err)),
		)
	}
	abortWithError(c, status, err)
}
