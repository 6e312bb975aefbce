package handlers

import (
	"errors"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

const (
	defaultRidePageSize = 20
	maxRidePageSize     = 100
)

type CreateRideRequest struct {
	OriginAddress        string   `json:"origin_address" binding:"required"`
	DestinationAddress   string   `json:"destination_address" binding:"required"`
	OriginLatitude       *float64 `json:"origin_latitude" binding:"required,latitude"`
	OriginLongitude      *float64 `json:"origin_longitude" binding:"required,longitude"`
	DestinationLatitude  *float64 `json:"destination_latitude" binding:"required,latitude"`
	DestinationLongitude *float64 `json:"destination_longitude" binding:"required,longitude"`
	RideTime             *float64 `json:"ride_time" binding:"required,gte=0"`
	FarePrice            *int64   `json:"fare_price" binding:"required,gte=0"`
	PaymentStatus        string   `json:"payment_status" binding:"required,oneof=paid pending"`
	DriverID             *int64   `json:"driver_id" binding:"required"`
	UserID               string   `json:"user_id" binding:"required"`
	PaymentIntentID      string   `json:"payment_intent_id"`
}

func CreateRide(c *gin.Context) {
	var req CreateRideRequest
	if !bindJSON(c, &req) {
		return
	}

	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}
	ctx := c.Request.Context()

	ride := models.Ride{
		OriginAddress:        strings.TrimSpace(req.OriginAddress),
		DestinationAddress:   strings.TrimSpace(req.DestinationAddress),
		OriginLatitude:       *req.OriginLatitude,
		OriginLongitude:      *req.OriginLongitude,
		DestinationLatitude:  *req.DestinationLatitude,
		DestinationLongitude: *req.DestinationLongitude,
		RideTime:             int(math.Round(*req.RideTime)),
		FarePrice:            *req.FarePrice,
		PaymentStatus:        req.PaymentStatus,
		DriverID:             *req.DriverID,
		UserID:               strings.TrimSpace(req.UserID),
	}
	intentID := strings.TrimSpace(req.PaymentIntentID)
	if intentID != "" {
		ride.PaymentIntentID = &intentID
	}

	if middleware.GetRideOptions(c).VerifyPayments && ride.PaymentStatus == models.PaymentStatusPaid {
		if err := verifyCapture(c, ride.PaymentIntentID); err != nil {
			message := "Failed to verify payment."
			if errors.Is(err, apperrors.ErrPaymentRequired) {
				message = "Payment has not been captured."
			}
			helpers.RespondWithAppError(c, err, message)
			return
		}
	}

	publisher := middleware.GetPublisher(c)

	if err := repos.Rides.Create(ctx, &ride); err != nil {
		if errors.Is(err, apperrors.ErrConflict) {
			helpers.RespondWithAppError(c, err, "A ride is already recorded for this payment.")
			return
		}
		if ride.PaymentStatus == models.PaymentStatusPaid {
			events.PublishOrLog(ctx, publisher, events.PaymentOrphaned, events.OrphanEvent{
				PaymentIntentID: intentID,
				UserID:          ride.UserID,
				Amount:          ride.FarePrice,
				Reason:          "ride_persist_failed",
				OccurredAt:      time.Now().UTC(),
			})
		}
		helpers.RespondWithAppError(c, err, "Failed to create ride.")
		return
	}

	if ride.PaymentIntentID != nil {
		err := repos.PaymentAttempts.LinkRide(ctx, *ride.PaymentIntentID, ride.ID)
		if err != nil && !errors.Is(err, apperrors.ErrNotFound) {
			slog.Warn("failed to link ride to payment attempt", "ride_id", ride.ID, "payment_intent_id", *ride.PaymentIntentID, "error", err)
		}
	}

	events.PublishOrLog(ctx, publisher, events.RideCreated, events.RideEvent{
		RideID:          ride.ID.String(),
		UserID:          ride.UserID,
		DriverID:        ride.DriverID,
		FarePrice:       ride.FarePrice,
		PaymentIntentID: intentID,
		OccurredAt:      time.Now().UTC(),
	})

	c.JSON(http.StatusCreated, gin.H{"data": ride})
}

// verifyCapture checks with the processor that a ride marked paid has a succeeded intent.
func verifyCapture(c *gin.Context, paymentIntentID *string) error {
	if paymentIntentID == nil {
		return apperrors.ErrPaymentRequired
	}

	gateway := middleware.GetPaymentGateway(c)
	if gateway == nil {
		return errors.New("payment processor not configured")
	}

	intent, err := gateway.GetPaymentIntent(c.Request.Context(), *paymentIntentID)
	if err != nil {
		if perr, ok := payments.AsError(err); ok && perr.Kind == payments.KindInvalidRequest {
			return apperrors.ErrPaymentRequired
		}
		return err
	}
	if intent.Status != payments.StatusSucceeded {
		return apperrors.ErrPaymentRequired
	}
	return nil
}

func GetRide(c *gin.Context) {
	ride, ok := loadRide(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": ride})
}

// loadRide fetches the :id ride and enforces ownership when the caller is authenticated.
func loadRide(c *gin.Context) (*models.Ride, bool) {
	rideID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		helpers.RespondWithError(c, http.StatusBadRequest, "Invalid ride ID")
		return nil, false
	}

	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return nil, false
	}

	ride, err := repos.Rides.FindByID(c.Request.Context(), rideID)
	if err != nil {
		helpers.RespondWithAppError(c, err, "Ride not found")
		return nil, false
	}

	if userID, authenticated := middleware.GetClerkUserID(c); authenticated && userID != ride.UserID {
		helpers.RespondWithError(c, http.StatusForbidden, "You don't have permission to access this ride")
		return nil, false
	}

	return ride, true
}

func ListUserRides(c *gin.Context) {
	repos := middleware.GetRepositories(c)
	if repos == nil {
		helpers.RespondWithError(c, http.StatusInternalServerError, "Database connection not found.")
		return
	}

	limit := helpers.QueryInt(c, "limit", defaultRidePageSize, maxRidePageSize)
	if limit == 0 {
		limit = defaultRidePageSize
	}
	offset := helpers.QueryInt(c, "offset", 0, 0)

	rides, total, err := repos.Rides.ListByUser(c.Request.Context(), c.Param("id"), limit, offset)
	if err != nil {
		helpers.RespondWithAppError(c, err, "Error retrieving rides.")
		return
	}
	if rides == nil {
		rides = []models.Ride{}
	}

	c.JSON(http.StatusOK, gin.H{
		"data":   rides,
		"total":  total,
		"limit":  limit,
		"offset": offset,
	})
}
