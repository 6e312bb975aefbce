package payments

import (
	"context"

	"github.com/stripe/stripe-go/v74"
	"github.com/stripe/stripe-go/v74/client"
)

// DefaultEphemeralKeyVersion is the API version the mobile SDK expects ephemeral keys in.
const DefaultEphemeralKeyVersion = "2024-06-20"

type StripeGateway struct {
	api                 *client.API
	ephemeralKeyVersion string
}

func NewStripeGateway(secretKey, ephemeralKeyVersion string) *StripeGateway {
	if ephemeralKeyVersion == "" {
		ephemeralKeyVersion = DefaultEphemeralKeyVersion
	}
	return &StripeGateway{
		api:                 client.New(secretKey, nil),
		ephemeralKeyVersion: ephemeralKeyVersion,
	}
}

func (g *StripeGateway) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	params := &stripe.CustomerListParams{Email: stripe.String(email)}
	params.Context = ctx
	params.Limit = stripe.Int64(1)
	params.Single = true

	iter := g.api.Customers.List(params)
	if iter.Next() {
		return toCustomer(iter.Customer()), nil
	}
	if err := iter.Err(); err != nil {
		return nil, classify("list customers", err)
	}
	return nil, nil
}

func (g *StripeGateway) CreateCustomer(ctx context.Context, name, email, idempotencyKey string) (*Customer, error) {
	params := &stripe.CustomerParams{
		Name:  stripe.String(name),
		Email: stripe.String(email),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	c, err := g.api.Customers.New(params)
	if err != nil {
		return nil, classify("create customer", err)
	}
	return toCustomer(c), nil
}

func (g *StripeGateway) CreateEphemeralKey(ctx context.Context, customerID string) (*EphemeralKey, error) {
	params := &stripe.EphemeralKeyParams{
		Customer:      stripe.String(customerID),
		StripeVersion: stripe.String(g.ephemeralKeyVersion),
	}
	params.Context = ctx

	key, err := g.api.EphemeralKeys.New(params)
	if err != nil {
		return nil, classify("create ephemeral key", err)
	}
	return &EphemeralKey{
		ID:         key.ID,
		Secret:     key.Secret,
		Customer:   customerID,
		APIVersion: g.ephemeralKeyVersion,
		Expires:    key.Expires,
	}, nil
}

func (g *StripeGateway) CreatePaymentIntent(ctx context.Context, in CreateIntentParams) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{
		Amount:             stripe.Int64(in.Amount),
		Currency:           stripe.String(string(stripe.CurrencyUSD)),
		Customer:           stripe.String(in.CustomerID),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		Confirm:            stripe.Bool(false),
		CaptureMethod:      stripe.String(string(stripe.PaymentIntentCaptureMethodAutomatic)),
	}
	params.Context = ctx
	if in.IdempotencyKey != "" {
		params.SetIdempotencyKey(in.IdempotencyKey)
	}

	pi, err := g.api.PaymentIntents.New(params)
	if err != nil {
		return nil, classify("create payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentConfirmParams{
		PaymentMethod: stripe.String(paymentMethodID),
	}
	params.Context = ctx
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}

	pi, err := g.api.PaymentIntents.Confirm(paymentIntentID, params)
	if err != nil {
		return nil, classify("confirm payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func (g *StripeGateway) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	pi, err := g.api.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, classify("get payment intent", err)
	}
	return toPaymentIntent(pi), nil
}

func toCustomer(c *stripe.Customer) *Customer {
	return &Customer{ID: c.ID, Name: c.Name, Email: c.Email}
}

func toPaymentIntent(pi *stripe.PaymentIntent) *PaymentIntent {
	out := &PaymentIntent{
		ID:           pi.ID,
		ClientSecret: pi.ClientSecret,
		Status:       string(pi.Status),
		Amount:       pi.Amount,
		Currency:     string(pi.Currency),
	}
	if pi.Customer != nil {
		out.CustomerID = pi.Customer.ID
	}
	return out
}
