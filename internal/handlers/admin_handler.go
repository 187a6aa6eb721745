package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/services"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func AdminOverview(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		overview, err := as.Overview(c.Request.Context(), helpers.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(overview, ""))
	}
}

func PropertyStatistics(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := as.PropertyStatistics(c.Request.Context(), helpers.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(stats, ""))
	}
}

func PropertiesByStatus(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		offset, limit, page, ok := pagination(c)
		if !ok {
			return
		}
		status := models.PropertyStatus(c.Param("status"))
		properties, err := as.ListPropertiesByStatus(c.Request.Context(), helpers.GetPrincipal(c), status, offset, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.PaginatedResponse(properties, page, limit, len(properties)))
	}
}

func OpenDispute(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var form services.DisputeForm
		if err := c.ShouldBindJSON(&form); err != nil {
			badRequest(c, err.Error())
			return
		}
		dispute, err := as.OpenDispute(c.Request.Context(), helpers.GetPrincipal(c), form)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(dispute, "Dispute opened"))
	}
}

func ListDisputes(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit, err := strconv.Atoi(c.DefaultQuery("limit", "50"))
		if err != nil || limit <= 0 {
			badRequest(c, "invalid limit parameter")
			return
		}
		status := models.DisputeStatus(c.Query("status"))
		disputes, err := as.ListDisputes(c.Request.Context(), helpers.GetPrincipal(c), status, limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(disputes, ""))
	}
}

func ResolveDispute(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if _, err := primitive.ObjectIDFromHex(id); err != nil {
			badRequest(c, "invalid dispute id format")
			return
		}
		var decision services.DisputeDecision
		if err := c.ShouldBindJSON(&decision); err != nil {
			badRequest(c, err.Error())
			return
		}
		dispute, err := as.ResolveDispute(c.Request.Context(), helpers.GetPrincipal(c), id, decision)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(dispute, "Dispute updated"))
	}
}

func DisputeStats(as *services.AdminService) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats, err := as.DisputeStats(c.Request.Context(), helpers.GetPrincipal(c))
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, helpers.SuccessResponse(stats, ""))
	}
}
