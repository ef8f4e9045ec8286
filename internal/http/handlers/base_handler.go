// README: Base handler utilities (JSON helpers, error mapping, caller extraction).
package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"happyauto/internal/http/middleware"
	"happyauto/internal/modules/delivery"
	"happyauto/internal/modules/location"
	"happyauto/internal/modules/pricing"
	"happyauto/internal/types"
)

type errorResponse struct {
	Error string `json:"error"`
}

// isValidID accepts uuid-style ids and Firebase uids: alphanumerics and '-', at most 64 chars.
func isValidID(v string) bool {
	if v == "" || len(v) > 64 {
		return false
	}
	for _, c := range v {
		if (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '-' {
			continue
		}
		return false
	}
	return true
}

func writeJSON(c *gin.Context, status int, v any) {
	c.JSON(status, v)
}

func writeError(c *gin.Context, status int, msg string) {
	writeJSON(c, status, errorResponse{Error: msg})
}

func writeDeliveryError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, delivery.ErrValidation),
		errors.Is(err, types.ErrInvalidCoordinates),
		errors.Is(err, location.ErrInvalidStatus),
		errors.Is(err, pricing.ErrInvalidDistance):
		writeError(c, http.StatusBadRequest, err.Error())
	case errors.Is(err, delivery.ErrForbidden):
		writeError(c, http.StatusForbidden, err.Error())
	case errors.Is(err, delivery.ErrNotFound), errors.Is(err, location.ErrDriverNotFound):
		writeError(c, http.StatusNotFound, err.Error())
	case errors.Is(err, delivery.ErrInvalidTransition),
		errors.Is(err, delivery.ErrAlreadyAssigned),
		errors.Is(err, delivery.ErrAlreadyCompleted),
		errors.Is(err, delivery.ErrConflict):
		writeError(c, http.StatusConflict, err.Error())
	case errors.Is(err, delivery.ErrPastTime), errors.Is(err, delivery.ErrNotCompleted):
		writeError(c, http.StatusUnprocessableEntity, err.Error())
	default:
		_ = c.Error(err)
		writeError(c, http.StatusInternalServerError, "internal error")
	}
}

func caller(c *gin.Context) delivery.Caller {
	return delivery.Caller{
		ID:   types.ID(middleware.CallerUID(c)),
		Role: delivery.Role(middleware.CallerRole(c)),
	}
}

// pathID reads and checks the :id parameter, writing a 400 on failure.
func pathID(c *gin.Context) (types.ID, bool) {
	id := strings.TrimSpace(c.Param("id"))
	if !isValidID(id) {
		writeError(c, http.StatusBadRequest, "invalid delivery id")
		return "", false
	}
	return types.ID(id), true
}
