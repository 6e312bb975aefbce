package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/models"
)

type CreateUserRequest struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	ClerkID   string `json:"clerkId"`
}

// CreateUser returns the existing user for an email with 200, or inserts one and returns 201.
func CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if !bindJSON(c, &req) {
		return
	}

	user := models.User{
		FirstName: strings.TrimSpace(req.FirstName),
		LastName:  strings.TrimSpace(req.LastName),
		Email:     strings.TrimSpace(req.Email),
		ClerkID:   strings.TrimSpace(req.ClerkID),
	}
	if user.FirstName == "" || user.LastName == "" || user.Email == "" || user.ClerkID == "" {
		helpers.RespondWithAppError(c, apperrors.ErrMissingFields, "")
		return
	}
	if phone := NormalizePhone(req.Phone); phone != "" {
		user.PhoneNumber = &phone
	}

	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	ctx := c.Request.Context()

	existing, err := repos.Users.FindByEmail(ctx, user.Email)
	if err == nil {
		c.JSON(http.StatusOK, gin.H{"data": existing})
		return
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		helpers.RespondWithAppError(c, err, "Error retrieving user.")
		return
	}

	if err := repos.Users.Create(ctx, &user); err != nil {
		if !errors.Is(err, apperrors.ErrConflict) {
			helpers.RespondWithAppError(c, err, "Failed to create user.")
			return
		}
		// Lost a race with a concurrent insert for the same email.
		existing, findErr := repos.Users.FindByEmail(ctx, user.Email)
		if findErr != nil {
			helpers.RespondWithAppError(c, err, "User already exists.")
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": existing})
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": user})
}

// GetUser looks a user up by Clerk user id.
func GetUser(c *gin.Context) {
	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	user, err := repos.Users.FindByClerkID(c.Request.Context(), c.Param("id"))
	if err != nil {
		helpers.RespondWithAppError(c, err, "User not found")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}
