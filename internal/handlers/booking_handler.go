package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/services"
)

// CheckAvailability works for anonymous visitors too.
func CheckAvailability(a *services.AvailabilityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req services.AvailabilityRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		result, err := a.CheckAvailability(c.Request.Context(), helpers.GetPrincipal(c), req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(result, ""))
	}
}

func CreateBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form models.BookingForm
		if err := c.ShouldBindJSON(&form); err != nil {
			badRequest(c, err.Error())
			return
		}
		booking, err := b.CreateBooking(c.Request.Context(), helpers.GetPrincipal(c), form)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(booking, "Booking created successfully"))
	}
}

func ListBookings(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, page, ok := pagination(c)
		if !ok {
			return
		}
		bookings, total, err := b.ListBookings(c.Request.Context(), helpers.GetPrincipal(c), offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(bookings, page, limit, total))
	}
}

func GetBooking(b *services.BookingService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		booking, err := b.GetBooking(c.Request.Context(), helpers.GetPrincipal(c), id)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, ""))
	}
}

// parseCancellationDate accepts RFC3339 or a bare date; empty means now.
func parseCancellationDate(raw string) (time.Time, bool) {
	if raw == "" {
		return time.Time{}, true
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", raw); err == nil {
		return t, true
	}
	return time.Time{}, false
}

func RefundQuote(r *services.RefundService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		at, ok := parseCancellationDate(c.Query("cancellation_date"))
		if !ok {
			badRequest(c, "cancellation_date must be RFC3339 or YYYY-MM-DD")
			return
		}
		quote, err := r.CalculateRefund(c.Request.Context(), helpers.GetPrincipal(c), id, at)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(quote, ""))
	}
}

func CancelBooking(r *services.RefundService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uuidParam(c, "id")
		if !ok {
			return
		}
		var req services.CancellationRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		booking, err := r.CancelBooking(c.Request.Context(), helpers.GetPrincipal(c), id, req)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(booking, "Booking cancelled"))
	}
}
