package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/services"
)

func RequestPayout(ps *services.PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form services.PayoutRequestForm
		if err := c.ShouldBindJSON(&form); err != nil {
			badRequest(c, err.Error())
			return
		}
		req, err := ps.RequestPayout(c.Request.Context(), helpers.GetPrincipal(c), form)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(req, "Payout requested"))
	}
}

// ListPayouts returns the host's own requests, or every request for admins.
func ListPayouts(ps *services.PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, page, ok := pagination(c)
		if !ok {
			return
		}
		status := models.PayoutStatus(c.Query("status"))
		requests, total, err := ps.ListPayoutRequests(c.Request.Context(), helpers.GetPrincipal(c), status, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(requests, page, limit, total))
	}
}

func WalletMetrics(ps *services.PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		metrics, err := ps.GetWalletMetrics(c.Request.Context(), helpers.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(metrics, ""))
	}
}

func DecidePayout(ps *services.PayoutService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var decision services.PayoutDecision
		if err := c.ShouldBindJSON(&decision); err != nil {
			badRequest(c, err.Error())
			return
		}
		req, err := ps.ApprovePayout(c.Request.Context(), helpers.GetPrincipal(c), id, decision)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(req, "Payout updated"))
	}
}
