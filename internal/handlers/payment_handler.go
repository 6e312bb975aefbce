package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

type CreatePaymentIntentRequest struct {
	Name   string         `json:"name"`
	Email  string         `json:"email"`
	Amount helpers.Amount `json:"amount"`
}

type ConfirmPaymentRequest struct {
	PaymentIntentID string `json:"payment_intent_id"`
	PaymentMethodID string `json:"payment_method_id"`
}

func CreatePaymentIntent(c *gin.Context) {
	var req CreatePaymentIntentRequest
	if !bindJSON(c, &req) {
		return
	}

	name := strings.TrimSpace(req.Name)
	email := strings.TrimSpace(req.Email)
	if name == "" || email == "" || req.Amount.IsZero() {
		helpers.RespondWithAppError(c, apperrors.ErrMissingFields, "")
		return
	}

	amount, err := req.Amount.MinorUnits()
	if err != nil {
		helpers.RespondWithAppError(c, err, "")
		return
	}

	gateway := middleware.GetPaymentGateway(c)
	if gateway == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment processor not configured.")
		return
	}

	initiation, err := payments.NewInitiator(gateway, slog.Default()).Initiate(c.Request.Context(), payments.InitiateRequest{
		Name:           name,
		Email:          email,
		Amount:         amount,
		IdempotencyKey: middleware.GetIdempotencyKey(c),
	})
	if err != nil {
		helpers.RespondWithAppError(c, err, "Failed to create payment intent.")
		return
	}
	intent := initiation.PaymentIntent

	if repos := middleware.GetRepositories(c); repos != nil {
		err := repos.PaymentAttempts.Create(c.Request.Context(), &models.PaymentAttempt{
			PaymentIntentID: intent.ID,
			CustomerID:      initiation.CustomerID,
			Email:           email,
			Amount:          intent.Amount,
			Currency:        payments.Currency,
			Status:          intent.Status,
		})
		if err != nil && !errors.Is(err, apperrors.ErrConflict) {
			slog.Warn("failed to record payment attempt", "payment_intent_id", intent.ID, "error", err)
		}
	}

	events.PublishOrLog(c.Request.Context(), middleware.GetPublisher(c), events.PaymentIntentCreated, events.PaymentEvent{
		PaymentIntentID: intent.ID,
		CustomerID:      initiation.CustomerID,
		Email:           email,
		Amount:          intent.Amount,
		Status:          intent.Status,
		OccurredAt:      time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{
		"paymentIntent": gin.H{
			"id":            intent.ID,
			"client_secret": intent.ClientSecret,
			"status":        intent.Status,
		},
		"ephemeralKey": initiation.EphemeralKey,
		"customer":     initiation.CustomerID,
	})
}

func ConfirmPaymentIntent(c *gin.Context) {
	var req ConfirmPaymentRequest
	if !bindJSON(c, &req) {
		return
	}

	intentID := strings.TrimSpace(req.PaymentIntentID)
	methodID := strings.TrimSpace(req.PaymentMethodID)
	if intentID == "" || methodID == "" {
		helpers.RespondWithAppError(c, apperrors.ErrMissingFields, "")
		return
	}

	gateway := middleware.GetPaymentGateway(c)
	if gateway == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Payment processor not configured.")
		return
	}

	intent, err := gateway.ConfirmPaymentIntent(c.Request.Context(), intentID, methodID, payments.ScopedKey(middleware.GetIdempotencyKey(c), "confirm"))
	if err != nil {
		helpers.RespondWithAppError(c, err, "Failed to confirm payment.")
		return
	}

	if repos := middleware.GetRepositories(c); repos != nil {
		err := repos.PaymentAttempts.UpdateStatus(c.Request.Context(), intent.ID, intent.Status)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			slog.Warn("failed to update payment attempt", "payment_intent_id", intent.ID, "error", err)
		}
	}

	events.PublishOrLog(c.Request.Context(), middleware.GetPublisher(c), events.PaymentConfirmed, events.PaymentEvent{
		PaymentIntentID: intent.ID,
		CustomerID:      intent.CustomerID,
		Amount:          intent.Amount,
		Status:          intent.Status,
		OccurredAt:      time.Now().UTC(),
	})

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Payment successful",
		"result": gin.H{
			"client_secret": intent.ClientSecret,
			"status":        intent.Status,
		},
	})
}
