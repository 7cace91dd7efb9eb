// internal/handlers/errors.go
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/kleinmarkt/kleinmarkt-backend/internal/apperrors"
	"github.com/kleinmarkt/kleinmarkt-backend/internal/utils"
)

// respondError translates the service error taxonomy into HTTP responses.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		utils.NotFoundResponse(c, "listing")
		return
	case errors.Is(err, apperrors.ErrPermissionDenied):
		utils.ForbiddenResponse(c, "")
		return
	case errors.Is(err, apperrors.ErrNoPendingChanges):
		utils.ErrorResponse(c, http.StatusBadRequest, "NO_PENDING_CHANGES", "There are no pending changes", nil)
		return
	}

	var conflict *apperrors.ConflictError
	if errors.As(err, &conflict) {
		utils.ErrorResponse(c, http.StatusConflict, "CONFLICT", conflict.Error(), gin.H{
			"expected": conflict.Expected,
			"actual":   conflict.Actual,
		})
		return
	}

	var validation *apperrors.ValidationError
	if errors.As(err, &validation) {
		utils.ErrorResponse(c, http.StatusBadRequest, "VALIDATION_ERROR", validation.Error(), gin.H{
			"field": validation.Field,
		})
		return
	}

	if apperrors.IsTransient(err) {
		utils.ErrorResponse(c, http.StatusServiceUnavailable, "STORE_UNAVAILABLE", "Temporary storage failure, please retry", nil)
		return
	}

	utils.InternalErrorResponse(c, "")
}
