package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/middleware"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
	"github.com/farellandr/ridehail/internal/store"
)

type userRepoStub struct {
	users       []*models.User
	createErr   error
	updateErr   error
	createCalls int
}

func (s *userRepoStub) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range s.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *userRepoStub) FindByClerkID(ctx context.Context, clerkID string) (*models.User, error) {
	for _, u := range s.users {
		if u.ClerkID == clerkID {
			copied := *u
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *userRepoStub) Create(ctx context.Context, user *models.User) error {
	s.createCalls++
	if s.createErr != nil {
		return s.createErr
	}
	user.ID = uuid.New()
	copied := *user
	s.users = append(s.users, &copied)
	return nil
}

func (s *userRepoStub) Update(ctx context.Context, user *models.User) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	for i, u := range s.users {
		if u.ID == user.ID {
			copied := *user
			s.users[i] = &copied
			return nil
		}
	}
	return apperrors.ErrNotFound
}

type rideRepoStub struct {
	rides     []models.Ride
	createErr error
}

func (s *rideRepoStub) Create(ctx context.Context, ride *models.Ride) error {
	if s.createErr != nil {
		return s.createErr
	}
	if ride.ID == uuid.Nil {
		ride.ID = uuid.New()
	}
	ride.CreatedAt = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	s.rides = append(s.rides, *ride)
	return nil
}

func (s *rideRepoStub) FindByID(ctx context.Context, id uuid.UUID) (*models.Ride, error) {
	for _, r := range s.rides {
		if r.ID == id {
			copied := r
			return &copied, nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (s *rideRepoStub) ListByUser(ctx context.Context, userID string, limit, offset int) ([]models.Ride, int64, error) {
	var matched []models.Ride
	for _, r := range s.rides {
		if r.UserID == userID {
			matched = append(matched, r)
		}
	}
	total := int64(len(matched))
	if offset >= len(matched) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[offset:end], total, nil
}

type attemptRepoStub struct {
	attempts map[string]*models.PaymentAttempt
}

func newAttemptRepoStub() *attemptRepoStub {
	return &attemptRepoStub{attempts: map[string]*models.PaymentAttempt{}}
}

func (s *attemptRepoStub) Create(ctx context.Context, attempt *models.PaymentAttempt) error {
	if _, ok := s.attempts[attempt.PaymentIntentID]; ok {
		return apperrors.ErrConflict
	}
	copied := *attempt
	s.attempts[attempt.PaymentIntentID] = &copied
	return nil
}

func (s *attemptRepoStub) UpdateStatus(ctx context.Context, paymentIntentID, status string) error {
	a, ok := s.attempts[paymentIntentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.Status = status
	return nil
}

func (s *attemptRepoStub) LinkRide(ctx context.Context, paymentIntentID string, rideID uuid.UUID) error {
	a, ok := s.attempts[paymentIntentID]
	if !ok {
		return apperrors.ErrNotFound
	}
	a.RideID = &rideID
	return nil
}

func (s *attemptRepoStub) ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	return nil, nil
}

func (s *attemptRepoStub) MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error {
	return nil
}

func (s *attemptRepoStub) MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error {
	return nil
}

type gatewayStub struct {
	customers     []*payments.Customer
	intents       map[string]*payments.PaymentIntent
	intentErr     error
	confirmErr    error
	calls         int
	createdCount  int
	confirmedWith []string
}

func newGatewayStub() *gatewayStub {
	return &gatewayStub{intents: map[string]*payments.PaymentIntent{}}
}

func (s *gatewayStub) FindCustomerByEmail(ctx context.Context, email string) (*payments.Customer, error) {
	s.calls++
	for _, c := range s.customers {
		if c.Email == email {
			return c, nil
		}
	}
	return nil, nil
}

func (s *gatewayStub) CreateCustomer(ctx context.Context, name, email, idempotencyKey string) (*payments.Customer, error) {
	s.calls++
	s.createdCount++
	c := &payments.Customer{ID: fmt.Sprintf("cus_new%d", s.createdCount), Name: name, Email: email}
	s.customers = append(s.customers, c)
	return c, nil
}

func (s *gatewayStub) CreateEphemeralKey(ctx context.Context, customerID string) (*payments.EphemeralKey, error) {
	s.calls++
	return &payments.EphemeralKey{ID: "ephkey_1", Secret: "ek_test_1", Customer: customerID, APIVersion: payments.DefaultEphemeralKeyVersion, Expires: 1718000000}, nil
}

func (s *gatewayStub) CreatePaymentIntent(ctx context.Context, params payments.CreateIntentParams) (*payments.PaymentIntent, error) {
	s.calls++
	if s.intentErr != nil {
		return nil, s.intentErr
	}
	id := fmt.Sprintf("pi_%d", len(s.intents)+1)
	pi := &payments.PaymentIntent{
		ID:           id,
		ClientSecret: id + "_secret_abc",
		Status:       payments.StatusRequiresPaymentMethod,
		Amount:       params.Amount,
		Currency:     payments.Currency,
		CustomerID:   params.CustomerID,
	}
	s.intents[id] = pi
	return pi, nil
}

func (s *gatewayStub) ConfirmPaymentIntent(ctx context.Context, paymentIntentID, paymentMethodID, idempotencyKey string) (*payments.PaymentIntent, error) {
	s.calls++
	if s.confirmErr != nil {
		return nil, s.confirmErr
	}
	pi, ok := s.intents[paymentIntentID]
	if !ok {
		return nil, apperrors.Upstream("stripe", string(payments.KindInvalidRequest), &payments.Error{Kind: payments.KindInvalidRequest, Message: "No such payment_intent"})
	}
	s.confirmedWith = append(s.confirmedWith, paymentMethodID)
	pi.Status = payments.StatusSucceeded
	return pi, nil
}

func (s *gatewayStub) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payments.PaymentIntent, error) {
	s.calls++
	pi, ok := s.intents[paymentIntentID]
	if !ok {
		return nil, apperrors.Upstream("stripe", string(payments.KindInvalidRequest), &payments.Error{Kind: payments.KindInvalidRequest, Message: "No such payment_intent"})
	}
	return pi, nil
}

type publishedEvent struct {
	routingKey string
	body       interface{}
}

type publisherRecorder struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (p *publisherRecorder) Publish(ctx context.Context, routingKey string, body interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, publishedEvent{routingKey: routingKey, body: body})
	return nil
}

func (p *publisherRecorder) Close() {}

func (p *publisherRecorder) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var keys []string
	for _, e := range p.events {
		keys = append(keys, e.routingKey)
	}
	return keys
}

type testEnv struct {
	users     *userRepoStub
	rides     *rideRepoStub
	attempts  *attemptRepoStub
	gateway   *gatewayStub
	publisher *publisherRecorder
	options   middleware.RideOptions
}

func newTestEnv() *testEnv {
	return &testEnv{
		users:     &userRepoStub{},
		rides:     &rideRepoStub{},
		attempts:  newAttemptRepoStub(),
		gateway:   newGatewayStub(),
		publisher: &publisherRecorder{},
		options:   middleware.RideOptions{ReceiptSigner: helpers.NewReceiptSigner("test-secret")},
	}
}

func (e *testEnv) router() *gin.Engine {
	gin.SetMode(gin.TestMode)
	RegisterValidators()

	r := gin.New()
	r.Use(middleware.DatabaseMiddleware(&store.Repositories{Users: e.users, Rides: e.rides, PaymentAttempts: e.attempts}))
	r.Use(middleware.PaymentsMiddleware(e.gateway))
	r.Use(middleware.EventsMiddleware(e.publisher))
	r.Use(middleware.RideOptionsMiddleware(e.options))

	api := r.Group("/api")
	api.POST("/stripe/create", CreatePaymentIntent)
	api.POST("/stripe/pay", ConfirmPaymentIntent)
	api.POST("/user", CreateUser)
	api.GET("/user/:id", GetUser)
	api.PATCH("/user/:id", UpdateProfile)
	api.GET("/user/:id/rides", ListUserRides)
	api.POST("/ride/create", CreateRide)
	api.GET("/ride/:id", GetRide)
	api.GET("/ride/:id/receipt", GetRideReceipt)
	return r
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.router().ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return body
}
