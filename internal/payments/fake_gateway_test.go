package payments

import (
	"context"
	"fmt"
)

type gatewayStub struct {
	customers      []*Customer
	findErr        error
	createErr      error
	keyErr         error
	intentErr      error
	createdNames   []string
	intentParams   []CreateIntentParams
	keysFor        []string
	customerIdemKs []string
}

func (s *gatewayStub) FindCustomerByEmail(ctx context.Context, email string) (*Customer, error) {
	if s.findErr != nil {
		return nil, s.findErr
	}
	for _, c := range s.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (s *gatewayStub) CreateCustomer(ctx context.Context, name, email, idempotencyKey string) (*Customer, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	c := &Customer{ID: fmt.Sprintf("cus_%d", len(s.customers)+1), Name: name, Email: email}
	s.customers = append(s.customers, c)
	s.createdNames = append(s.createdNames, name)
	s.customerIdemKs = append(s.customerIdemKs, idempotencyKey)
	return c, nil
}

func (s *gatewayStub) CreateEphemeralKey(ctx context.Context, customerID string) (*EphemeralKey, error) {
	if s.keyErr != nil {
		return nil, s.keyErr
	}
	s.keysFor = append(s.keysFor, customerID)
	return &EphemeralKey{ID: "ephkey_1", Secret: "ek_test_secret", Customer: customerID, APIVersion: DefaultEphemeralKeyVersion}, nil
}

func (s *gatewayStub) CreatePaymentIntent(ctx context.Context, params CreateIntentParams) (*PaymentIntent, error) {
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	s.intentParams = append(s.intentParams, params)
	id := fmt.Sprintf("pi_%d", len(s.intentParams))
	return &PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_x",
		Status:       StatusRequiresPaymentMethod,
		Amount:       params.Amount,
		Currency:     Currency,
		CustomerID:   params.CustomerID,
	}, nil
}

func (s *gatewayStub) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*PaymentIntent, error) {
	return &PaymentIntent{ID: paymentIntentID, Status: StatusSucceeded}, nil
}

func (s *gatewayStub) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentIntent, error) {
	return &PaymentIntent{ID: paymentIntentID, Status: StatusSucceeded}, nil
}
