package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

const idempotencyKeyHeader = "Idempotency-Key"

// APIError is a non-2xx answer from the ride API.
type APIError struct {
	StatusCode int
	Message    string
	Code       string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("ride API returned status %d", e.StatusCode)
	}
	return e.Message
}

type IntentResponse struct {
	PaymentIntent struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	} `json:"paymentIntent"`
	EphemeralKey payments.EphemeralKey `json:"ephemeralKey"`
	Customer     string                `json:"customer"`
}

type ConfirmResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Result  struct {
		ClientSecret string `json:"client_secret"`
		Status       string `json:"status"`
	} `json:"result"`
}

type RideRequest struct {
	OriginAddress        string  `json:"origin_address"`
	DestinationAddress   string  `json:"destination_address"`
	OriginLatitude       float64 `json:"origin_latitude"`
	OriginLongitude      float64 `json:"origin_longitude"`
	DestinationLatitude  float64 `json:"destination_latitude"`
	DestinationLongitude float64 `json:"destination_longitude"`
	RideTime             int     `json:"ride_time"`
	FarePrice            int64   `json:"fare_price"`
	PaymentStatus        string  `json:"payment_status"`
	DriverID             int64   `json:"driver_id"`
	UserID               string  `json:"user_id"`
	PaymentIntentID      string  `json:"payment_intent_id,omitempty"`
}

// Client calls the ride API the way the mobile app does.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *Client) CreatePaymentIntent(ctx context.Context, name, email, amount, idempotencyKey string) (*IntentResponse, error) {
	var out IntentResponse
	err := c.post(ctx, "/api/stripe/create", idempotencyKey, map[string]string{
		"name":   name,
		"email":  email,
		"amount": amount,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) ConfirmPayment(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*ConfirmResponse, error) {
	var out ConfirmResponse
	err := c.post(ctx, "/api/stripe/pay", idempotencyKey, map[string]string{
		"payment_intent_id": paymentIntentID,
		"payment_method_id": paymentMethodID,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateRide(ctx context.Context, ride RideRequest, idempotencyKey string) (*models.Ride, error) {
	var out struct {
		Data models.Ride `json:"data"`
	}
	if err := c.post(ctx, "/api/ride/create", idempotencyKey, ride, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *Client) post(ctx context.Context, path, idempotencyKey string, payload, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("ride API base URL is not configured")
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewBuffer(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idempotencyKey != "" {
		req.Header.Set(idempotencyKeyHeader, idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request to %s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response from %s: %w", path, err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errBody struct {
			Error string `json:"error"`
			Code  string `json:"code"`
		}
		if json.Unmarshal(raw, &errBody) == nil {
			apiErr.Message, apiErr.Code = errBody.Error, errBody.Code
		}
		return apiErr
	}

	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response from %s: %w", path, err)
	}
	return nil
}
