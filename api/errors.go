package api

import (
	"errors"
	"net/http"

	"example.com/backstage/services/fleet/domain"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"
)

// statusFor maps an error kind to its HTTP status
func statusFor(kind domain.ErrorKind) int {
	switch kind {
	case domain.KindNotFound:
		return http.StatusNotFound
	case domain.KindInvalidReference, domain.KindInvalidTransition,
		domain.KindContainerTerminal, domain.KindValidation:
		return http.StatusBadRequest
	case domain.KindConflict:
		return http.StatusConflict
	case domain.KindTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal failures are logged
// and their details withheld from the caller.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	message := err.Error()
	var de *domain.Error
	if errors.As(err, &de) {
		message = de.Message
	}
	if status == http.StatusInternalServerError {
		log.Error().Err(err).Str("request_id", c.GetString(requestIDKey)).Msg("Request failed")
		message = "internal server error"
	}

	c.JSON(status, gin.H{"error": message, "kind": kind})
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": domain.KindValidation})
}
