package controllers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/phillip/buildtogether-go/middleware"
	"github.com/phillip/buildtogether-go/models"
	"github.com/phillip/buildtogether-go/services"
	"github.com/phillip/buildtogether-go/utils"
)

// ---------------- LIST ----------------
func ListProperties(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		q := c.Query("q")
		props, err := app.Properties.List(c.Request.Context(), q)
		if err != nil {
			respondError(c, err)
			return
		}
		writeList(c, props, q)
	}
}

// ---------------- MY PROJECTS ----------------
func MyProjects(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)
		props, err := app.Properties.ListForUser(c.Request.Context(), user)
		if err != nil {
			respondError(c, err)
			return
		}
		writeList(c, props, user.ID)
	}
}

// writeList sends props (newest first) with validators derived from the
// newest entry and the result size.
func writeList(c *gin.Context, props []models.Property, scope string) {
	if len(props) == 0 {
		c.JSON(http.StatusOK, []models.Property{})
		return
	}

	latest := props[0]
	etag := utils.GenerateETag(latest.ID, latest.CreatedAt, len(props), scope)
	if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
		c.Status(http.StatusNotModified)
		return
	}
	c.Header("ETag", etag)
	c.Header("Last-Modified", latest.CreatedAt.UTC().Format(http.TimeFormat))

	c.JSON(http.StatusOK, props)
}

// ---------------- GET ----------------
func GetProperty(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := app.Properties.Get(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}

		etag := utils.GenerateETag(p.ID, p.CreatedAt, len(p.Members), len(p.ChatMessages))
		if match := c.GetHeader("If-None-Match"); match != "" && match == etag {
			c.Status(http.StatusNotModified)
			return
		}
		c.Header("ETag", etag)

		c.JSON(http.StatusOK, p)
	}
}

// ---------------- CREATE ----------------
func CreateProperty(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)

		var input services.CreatePropertyInput
		if err := c.ShouldBindJSON(&input); err != nil {
			badRequest(c, "Invalid request body.")
			return
		}

		p, err := app.Properties.Create(c.Request.Context(), user, input)
		if err != nil {
			respondError(c, err)
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"message":   "Project created successfully.",
			"projectId": p.ID.Hex(),
		})
	}
}

// ---------------- JOIN ----------------
func JoinProperty(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, _ := middleware.CurrentUser(c)

		if _, err := app.Membership.Join(c.Request.Context(), user, c.Param("id")); err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Successfully joined project!"})
	}
}

// ---------------- MESSAGES ----------------
func PropertyMessages(app *App) gin.HandlerFunc {
	return func(c *gin.Context) {
		limit := 0
		if raw := c.Query("limit"); raw != "" {
			n, err := strconv.Atoi(raw)
			if err != nil || n < 0 {
				badRequest(c, "limit must be a non-negative integer")
				return
			}
			limit = n
		}

		msgs, err := app.Chat.History(c.Request.Context(), c.Param("id"), limit)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, msgs)
	}
}
