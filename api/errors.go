package api

import (
	"errors"
	"net/http"

	"creditledger/service"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error string `json:"error"`
}

// respondError maps ledger errors onto HTTP statuses. Store failures are
// logged and reported without detail.
func (h *Handlers) respondError(c *gin.Context, operation string, err error) {
	switch {
	case errors.Is(err, service.ErrInsufficientCredits):
		if h.Metrics != nil {
			h.Metrics.RejectedDebit(operation)
		}
		c.JSON(http.StatusPaymentRequired, errorResponse{Error: "out of credits"})
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse{Error: "not found"})
	case errors.Is(err, service.ErrInvalidAmount):
		c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		log.WithFields(log.Fields{
			"operation": operation,
			"path":      c.FullPath(),
			"error":     err,
		}).Error("Request failed")
		c.JSON(http.StatusInternalServerError, errorResponse{Error: "internal error"})
	}
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: message})
}
