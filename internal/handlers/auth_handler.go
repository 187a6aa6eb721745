package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/staylink/internal/apperrors"
	"github.com/joshua-takyi/staylink/internal/helpers"
	"github.com/joshua-takyi/staylink/internal/middleware"
	"github.com/joshua-takyi/staylink/internal/models"
	"github.com/joshua-takyi/staylink/internal/services"
)

func Signup(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var user models.User
		if err := c.ShouldBindJSON(&user); err != nil {
			badRequest(c, err.Error())
			return
		}
		// roles are assigned by admins, never self-declared
		user.Role = models.RoleGuest

		created, err := u.CreateUser(c.Request.Context(), &user)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusCreated, helpers.SuccessResponse(created.User, "Account created, check your email to verify it"))
	}
}

func Login(u *services.UserService, secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Email    string `json:"email" binding:"required,email"`
			Password string `json:"password" binding:"required"`
		}
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request payload")
			return
		}

		tokens, err := u.AuthenticateUser(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondError(c, err)
			return
		}
		if tokens.AccessToken == "" {
			respondError(c, apperrors.Internal("invalid token response", nil))
			return
		}
		middleware.SetSessionCookies(c, tokens, secureCookies)

		// the profile row may lag behind a fresh account; the auth user is enough to proceed
		profile, err := u.FetchUserProfile(c.Request.Context(), tokens.User.ID, tokens.AccessToken)
		if err != nil {
			c.JSON(http.StatusOK, gin.H{"user": tokens.User})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": tokens.User, "profile": profile})
	}
}

func Logout(secureCookies bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		middleware.ClearSessionCookies(c, secureCookies)
		c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
	}
}

// Profile returns the caller's own profile.
func Profile(u *services.UserService) gin.HandlerFunc {
	return func(c *gin.Context) {
		p := helpers.GetPrincipal(c)
		if p == nil {
			respondError(c, apperrors.AuthenticationRequired())
			return
		}
		user, err := u.GetUser(c.Request.Context(), p.UserID, p.AccessToken)
		if err != nil {
			respondError(c, err)
			return
		}
		user.Password = ""
		c.JSON(http.StatusOK, helpers.SuccessResponse(user, ""))
	}
}
