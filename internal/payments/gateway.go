// Package payments talks to the payment processor: customer lookup, ephemeral
// keys and payment intents.
package payments

import "context"

const (
	Currency = "usd"

	StatusRequiresPaymentMethod = "requires_payment_method"
	StatusRequiresConfirmation  = "requires_confirmation"
	StatusRequiresAction        = "requires_action"
	StatusProcessing            = "processing"
	StatusSucceeded             = "succeeded"
	StatusCanceled              = "canceled"
)

type Customer struct {
	ID    string
	Name  string
	Email string
}

type EphemeralKey struct {
	ID         string `json:"id"`
	Secret     string `json:"secret"`
	Customer   string `json:"customer"`
	APIVersion string `json:"api_version"`
	Expires    int64  `json:"expires"`
}

type PaymentIntent struct {
	ID           string
	ClientSecret string
	Status       string
	Amount       int64
	Currency     string
	CustomerID   string
}

type CreateIntentParams struct {
	CustomerID     string
	Amount         int64
	IdempotencyKey string
}

// Gateway is the subset of the processor API the ride payment flow uses.
// FindCustomerByEmail returns (nil, nil) when no customer matches.
type Gateway interface {
	FindCustomerByEmail(ctx context.Context, email string) (*Customer, error)
	CreateCustomer(ctx context.Context, name, email, idempotencyKey string) (*Customer, error)
	CreateEphemeralKey(ctx context.Context, customerID string) (*EphemeralKey, error)
	CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error)
	ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*PaymentIntent, error)
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error)
}
