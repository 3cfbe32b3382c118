package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/services"
)

// ---------------- REGISTER ----------------
func Register(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.RegisterInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "All fields are required.")
			return
		}

		u, err := app.Accounts.Register(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message": "User registered successfully.",
			"userId":  u.ID.Hex(),
		})
	}
}

// ---------------- LOGIN ----------------
func Login(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		var input services.LoginInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "Missing credentials")
			return
		}

		sess, err := app.Accounts.Login(c.Request.Context(), input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, sess.Token,
			int(app.Config.TokenTTL.Seconds()), "/", "", !app.Config.IsDevelopment(), true)

		c.JSON(http.StatusOK, gin.H{
			"token":      sess.Token,
			"expires_at": sess.ExpiresAt,
			"user":       sess.User,
		})
	}
}

// ---------------- LOGOUT ----------------
func Logout(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.SetSameSite(http.SameSiteLaxMode)
		c.SetCookie(middleware.SessionCookie, "", -1, "/", "", !app.Config.IsDevelopment(), true)
		c.JSON(http.StatusOK, gin.H{"message": "Signed out."})
	}
}

// ---------------- ME ----------------
func Me(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
