package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
)

const (
	defaultLimit = 10
	maxLimit     = 100
)

// respondError renders any service error with its taxonomy code.
func respondError(c *gin.Context, err error) {
	_ = c.Error(err)
	appErr := apperrors.As(err)
	message := appErr.Message
	if appErr.Code == apperrors.CodeInternal {
		message = "internal server error"
	}
	c.JSON(apperrors.StatusCode(appErr), models.CodedErrorResponse(appErr.Code, message, appErr.Details))
}

func badRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, models.CodedErrorResponse(apperrors.CodeValidation, message, nil))
}

func uuidParam(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(c.Param(name)))
	if err != nil {
		badRequest(c, "invalid "+name+" format")
		return uuid.Nil, false
	}
	return id, true
}

func pagination(c *gin.Context) (offset, limit, page int, ok bool) {
	offset, limit, page, err := helpers.ParsePagination(c, defaultLimit, maxLimit)
	if err != nil {
		badRequest(c, err.Error())
		return 0, 0, 0, false
	}
	return offset, limit, page, true
}
