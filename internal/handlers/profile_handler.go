package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
)

// UpdateProfileRequest holds the editable profile fields. Absent fields are left unchanged.
type UpdateProfileRequest struct {
	FirstName   *string `json:"first_name" binding:"omitempty,min=2"`
	LastName    *string `json:"last_name" binding:"omitempty,min=2"`
	Email       *string `json:"email" binding:"omitempty,email"`
	PhoneNumber *string `json:"phone_number" binding:"omitempty,phone"`
}

func trimmed(s *string) *string {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}

func UpdateProfile(c *gin.Context) {
	var req UpdateProfileRequest
	if !bindJSON(c, &req) {
		return
	}
	req.FirstName, req.LastName, req.Email = trimmed(req.FirstName), trimmed(req.LastName), trimmed(req.Email)

	// Blank values skip the binding rules, so they are checked again after trimming.
	if req.FirstName != nil && len([]rune(*req.FirstName)) < 2 {
		helpers.RespondWithAppError(c, apperrors.FieldError("first_name", "first_name must be at least 2 characters"), "")
		return
	}
	if req.LastName != nil && len([]rune(*req.LastName)) < 2 {
		helpers.RespondWithAppError(c, apperrors.FieldError("last_name", "last_name must be at least 2 characters"), "")
		return
	}
	if req.Email != nil && *req.Email == "" {
		helpers.RespondWithAppError(c, apperrors.FieldError("email", "email must be a valid email address"), "")
		return
	}

	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	ctx := c.Request.Context()

	user, err := repos.Users.FindByClerkID(ctx, c.Param("id"))
	if err != nil {
		helpers.RespondWithAppError(c, err, "User not found")
		return
	}

	if req.FirstName != nil {
		user.FirstName = *req.FirstName
	}
	if req.LastName != nil {
		user.LastName = *req.LastName
	}
	if req.Email != nil {
		user.Email = *req.Email
	}
	if req.PhoneNumber != nil {
		if phone := NormalizePhone(*req.PhoneNumber); phone != "" {
			user.PhoneNumber = &phone
		} else {
			user.PhoneNumber = nil
		}
	}

	if err := repos.Users.Update(ctx, user); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			helpers.RespondWithAppError(c, err, "Email is already in use")
			return
		}
		helpers.RespondWithAppError(c, err, "Failed to update user.")
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": user})
}
