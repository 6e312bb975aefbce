// Package checkout drives a single ride purchase from the rider's side:
// create the intent, show the hosted payment sheet, then record the ride.
package checkout

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

// SheetErrorCanceled is the code the payment sheet reports when the rider dismisses it.
const SheetErrorCanceled = "Canceled"

const (
	alertInitFailed   = "Failed to initialize payment sheet"
	alertRideNotSaved = "Payment successful but failed to create ride. Please contact support."
)

var ErrPaymentInProgress = errors.New("a payment is already in progress")

// SheetError is a failure reported by the payment sheet.
type SheetError struct {
	Code    string
	Message string
}

func (e *SheetError) Error() string {
	return e.Message
}

// OrphanedPaymentError means the charge was captured but no ride row exists.
// The payment is not refunded.
type OrphanedPaymentError struct {
	PaymentIntentID string
	Err             error
}

func (e *OrphanedPaymentError) Error() string {
	return fmt.Sprintf("payment %s captured but ride was not recorded: %v", e.PaymentIntentID, e.Err)
}

func (e *OrphanedPaymentError) Unwrap() error {
	return e.Err
}

type BillingDetails struct {
	Name  string
	Email string
}

type SheetConfig struct {
	MerchantDisplayName         string
	CustomerID                  string
	CustomerEphemeralKeySecret  string
	PaymentIntentClientSecret   string
	ReturnURL                   string
	AllowsDelayedPaymentMethods bool
	DefaultBillingDetails       BillingDetails
}

// SheetResult is returned when the rider completes the sheet. PaymentMethodID
// is set when the sheet only collected the card and left confirmation to the server.
type SheetResult struct {
	PaymentMethodID string
}

// PaymentSheet is the processor's hosted payment UI. Present blocks until
// the rider finishes or dismisses it.
type PaymentSheet interface {
	Init(ctx context.Context, cfg SheetConfig) error
	Present(ctx context.Context) (*SheetResult, error)
}

// Alerter shows a blocking message to the rider.
type Alerter interface {
	Alert(title, message string)
}

// Backend is the ride API as seen by the app.
type Backend interface {
	CreatePaymentIntent(ctx context.Context, name, email, amount, idempotencyKey string) (*IntentResponse, error)
	ConfirmPayment(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*ConfirmResponse, error)
	CreateRide(ctx context.Context, ride RideRequest, idempotencyKey string) (*models.Ride, error)
}

type Location struct {
	Address   string
	Latitude  float64
	Longitude float64
}

// Purchase is what the rider is paying for. Amount is in whole currency units.
type Purchase struct {
	FullName    string
	Email       string
	Amount      string
	DriverID    int64
	RideMinutes float64
	UserID      string
	Origin      Location
	Destination Location
}

// billingName is the full name, or the local part of the email when the
// rider has not set one.
func (p Purchase) billingName() string {
	if name := strings.TrimSpace(p.FullName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(strings.TrimSpace(p.Email), "@")
	return local
}

type Outcome struct {
	State           State
	PaymentIntentID string
	Ride            *models.Ride
}

type Config struct {
	MerchantDisplayName string
	ReturnURL           string
}

type Flow struct {
	backend Backend
	sheet   PaymentSheet
	alerter Alerter
	cfg     Config
	logger  *slog.Logger
	newKey  func() string

	mu       sync.Mutex
	inFlight bool
}

func NewFlow(backend Backend, sheet PaymentSheet, alerter Alerter, cfg Config, logger *slog.Logger) *Flow {
	if cfg.MerchantDisplayName == "" {
		cfg.MerchantDisplayName = "Ryde Inc."
	}
	if cfg.ReturnURL == "" {
		cfg.ReturnURL = "myapp://book-ride"
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Flow{
		backend: backend,
		sheet:   sheet,
		alerter: alerter,
		cfg:     cfg,
		logger:  logger.With("component", "checkout"),
		newKey:  uuid.NewString,
	}
}

func (f *Flow) begin() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inFlight {
		return false
	}
	f.inFlight = true
	return true
}

func (f *Flow) end() {
	f.mu.Lock()
	f.inFlight = false
	f.mu.Unlock()
}

// Pay runs one purchase attempt. A dismissed sheet is not an error: the
// outcome is back in StateCreated and the rider may try again.
func (f *Flow) Pay(ctx context.Context, p Purchase) (*Outcome, error) {
	if !f.begin() {
		return nil, ErrPaymentInProgress
	}
	defer f.end()

	fare, err := helpers.Amount(p.Amount).MinorUnits()
	if err != nil {
		f.alerter.Alert("Error", err.Error())
		return &Outcome{State: StateCreated}, err
	}
	name := p.billingName()

	attemptKey := f.newKey()
	out := &Outcome{State: StateCreated}

	intent, err := f.backend.CreatePaymentIntent(ctx, name, p.Email, p.Amount, attemptKey)
	if err != nil {
		f.logger.Error("failed to create payment intent", "error", err)
		f.alerter.Alert("Error", alertInitFailed)
		return out, err
	}
	out.PaymentIntentID = intent.PaymentIntent.ID
	f.move(out, StateIntentPending)

	err = f.sheet.Init(ctx, SheetConfig{
		MerchantDisplayName:         f.cfg.MerchantDisplayName,
		CustomerID:                  intent.Customer,
		CustomerEphemeralKeySecret:  intent.EphemeralKey.Secret,
		PaymentIntentClientSecret:   intent.PaymentIntent.ClientSecret,
		ReturnURL:                   f.cfg.ReturnURL,
		AllowsDelayedPaymentMethods: false,
		DefaultBillingDetails:       BillingDetails{Name: name, Email: p.Email},
	})
	if err != nil {
		f.logger.Error("failed to initialize payment sheet", "payment_intent_id", out.PaymentIntentID, "error", err)
		f.alerter.Alert("Error", alertInitFailed)
		f.move(out, StateFailed)
		return out, err
	}

	result, err := f.sheet.Present(ctx)
	if err != nil {
		var sheetErr *SheetError
		if errors.As(err, &sheetErr) && sheetErr.Code == SheetErrorCanceled {
			f.move(out, StateCreated)
			return out, nil
		}
		f.alerter.Alert("Payment Error", err.Error())
		f.move(out, StateFailed)
		return out, err
	}

	if result != nil && result.PaymentMethodID != "" {
		confirmed, err := f.backend.ConfirmPayment(ctx, out.PaymentIntentID, result.PaymentMethodID, attemptKey+":confirm")
		if err == nil && confirmed.Result.Status != payments.StatusSucceeded {
			err = fmt.Errorf("payment is %s", confirmed.Result.Status)
		}
		if err != nil {
			f.alerter.Alert("Payment Error", err.Error())
			f.move(out, StateFailed)
			return out, err
		}
	}
	f.move(out, StateCaptured)

	ride, err := f.backend.CreateRide(ctx, RideRequest{
		OriginAddress:        p.Origin.Address,
		DestinationAddress:   p.Destination.Address,
		OriginLatitude:       p.Origin.Latitude,
		OriginLongitude:      p.Origin.Longitude,
		DestinationLatitude:  p.Destination.Latitude,
		DestinationLongitude: p.Destination.Longitude,
		RideTime:             int(math.Round(p.RideMinutes)),
		FarePrice:            fare,
		PaymentStatus:        models.PaymentStatusPaid,
		DriverID:             p.DriverID,
		UserID:               p.UserID,
		PaymentIntentID:      out.PaymentIntentID,
	}, attemptKey+":ride")
	if err != nil {
		f.logger.Error("payment captured but ride was not recorded", "payment_intent_id", out.PaymentIntentID, "error", err)
		f.alerter.Alert("Error", alertRideNotSaved)
		f.move(out, StateCapturedOrphan)
		return out, &OrphanedPaymentError{PaymentIntentID: out.PaymentIntentID, Err: err}
	}

	out.Ride = ride
	f.move(out, StateRideRecorded)
	return out, nil
}

func (f *Flow) move(out *Outcome, next State) {
	state, err := out.State.Transition(next)
	if err != nil {
		panic(err)
	}
	out.State = state
}
