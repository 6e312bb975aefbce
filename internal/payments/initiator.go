package payments

import (
	"context"
	"log/slog"
)

type InitiateRequest struct {
	Name           string
	Email          string
	Amount         int64
	IdempotencyKey string
}

type Initiation struct {
	PaymentIntent   *PaymentIntent
	EphemeralKey    *EphemeralKey
	CustomerID      string
	CustomerCreated bool
}

// Initiator resolves the customer for an email, opens an ephemeral key for it
// and creates an unconfirmed payment intent. Amount is in minor units.
type Initiator struct {
	gateway Gateway
	logger  *slog.Logger
}

func NewInitiator(gateway Gateway, logger *slog.Logger) *Initiator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Initiator{gateway: gateway, logger: logger.With("component", "payments")}
}

func (i *Initiator) Initiate(ctx context.Context, req InitiateRequest) (*Initiation, error) {
	customer, created, err := i.resolveCustomer(ctx, req)
	if err != nil {
		return nil, err
	}

	key, err := i.gateway.CreateEphemeralKey(ctx, customer.ID)
	if err != nil {
		return nil, err
	}

	intent, err := i.gateway.CreatePaymentIntent(ctx, CreateIntentParams{
		CustomerID:     customer.ID,
		Amount:         req.Amount,
		IdempotencyKey: ScopedKey(req.IdempotencyKey, "intent"),
	})
	if err != nil {
		return nil, err
	}

	i.logger.Info("payment intent created",
		"payment_intent_id", intent.ID,
		"customer_id", customer.ID,
		"amount", intent.Amount,
		"customer_created", created,
	)

	return &Initiation{
		PaymentIntent:   intent,
		EphemeralKey:    key,
		CustomerID:      customer.ID,
		CustomerCreated: created,
	}, nil
}

// resolveCustomer uses the first customer with the email, creating one when none exists.
func (i *Initiator) resolveCustomer(ctx context.Context, req InitiateRequest) (*Customer, bool, error) {
	existing, err := i.gateway.FindCustomerByEmail(ctx, req.Email)
	if err != nil {
		return nil, false, err
	}
	if existing != nil {
		return existing, false, nil
	}

	customer, err := i.gateway.CreateCustomer(ctx, req.Name, req.Email, ScopedKey(req.IdempotencyKey, "customer"))
	if err != nil {
		return nil, false, err
	}
	return customer, true, nil
}

// ScopedKey derives a per-call processor idempotency key from the client key.
func ScopedKey(key, scope string) string {
	if key == "" {
		return ""
	}
	return key + ":" + scope
}
