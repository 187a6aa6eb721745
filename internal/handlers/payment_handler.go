package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/payment"
	"github.com/joshua-takyi/staylink/internal/services"
)

func CreatePaymentIntent(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.IntentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		intent, err := ps.CreatePaymentIntent(c.Request.Context(), helpers.GetPrincipal(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(intent, "Payment intent created"))
	}
}

// Checkout hands the widget parameters to the browser and starts waiting for the completion.
func Checkout(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}
		params, err := ps.Checkout(c.Request.Context(), helpers.GetPrincipal(c), bookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(params, ""))
	}
}

// PaymentCallback receives the widget completion the browser forwards.
// A declined or dismissed payment is still a 200; the outcome carries the error.
func PaymentCallback(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var resp payment.CompletionResponse
		if err := c.ShouldBindJSON(&resp); err != nil {
			badRequest(c, err.Error())
			return
		}
		outcome, err := ps.HandlePaymentComplete(c.Request.Context(), helpers.GetPrincipal(c), resp)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(outcome, outcome.Detail))
	}
}

func ResetPayment(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}
		attempt, err := ps.ResetPayment(c.Request.Context(), helpers.GetPrincipal(c), bookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(attempt, ""))
	}
}

func PaymentState(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		bookingID, ok := uuidParam(c, "booking_id")
		if !ok {
			return
		}
		attempt, err := ps.State(helpers.GetPrincipal(c), bookingID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(attempt, ""))
	}
}

func ListPayments(ps *services.PaymentService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, page, ok := pagination(c)
		if !ok {
			return
		}
		records, total, err := ps.ListPayments(c.Request.Context(), helpers.GetPrincipal(c), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(records, page, limit, total))
	}
}
