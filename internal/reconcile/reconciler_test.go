package reconcile

import (
	"context"
	"errors"
	"io"
	"fmt"
	"log/slog"
	"sort"
	"testing"
	"time"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

type attemptsStub struct {
	attempts      []models.PaymentAttempt
	listErr       error
	markErr       error
	listedAfter   time.Time
	listedBefore  time.Time
	statusUpdates map[string]string
	marked        []string
	checked       []string
}

func (s *attemptsStub) ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	s.listedAfter, s.listedBefore = createdAfter, createdBefore
	if s.listErr != nil {
		return nil, s.listErr
	}
	return s.attempts, nil
}

func (s *attemptsStub) UpdateStatus(ctx context.Context, paymentIntentID, status string) error {
	if s.statusUpdates == nil {
		s.statusUpdates = map[string]string{}
	}
	s.statusUpdates[paymentIntentID] = status
	return nil
}

func (s *attemptsStub) MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error {
	if s.markErr != nil {
		return s.markErr
	}
	s.marked = append(s.marked, paymentIntentID)
	return nil
}

func (s *attemptsStub) MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error {
	s.checked = append(s.checked, paymentIntentIDs...)
	return nil
}

// tableStub keeps attempts in memory and lists them the way the gorm store
// does: unreported only, never checked first, then least recently checked.
type tableStub struct {
	rows []models.PaymentAttempt
}

func (s *tableStub) ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error) {
	var open []models.PaymentAttempt
	for _, a := range s.rows {
		if a.RideID == nil && a.OrphanReportedAt == nil && a.Status != payments.StatusCanceled &&
			!a.CreatedAt.Before(createdAfter) && a.CreatedAt.Before(createdBefore) {
			open = append(open, a)
		}
	}
	sort.SliceStable(open, func(i, j int) bool {
		ci, cj := open[i].LastCheckedAt, open[j].LastCheckedAt
		switch {
		case ci == nil && cj != nil:
			return true
		case ci != nil && cj == nil:
			return false
		case ci != nil && cj != nil && !ci.Equal(*cj):
			return ci.Before(*cj)
		}
		return open[i].CreatedAt.Before(open[j].CreatedAt)
	})
	if len(open) > limit {
		open = open[:limit]
	}
	return open, nil
}

func (s *tableStub) find(paymentIntentID string) *models.PaymentAttempt {
	for i := range s.rows {
		if s.rows[i].PaymentIntentID == paymentIntentID {
			return &s.rows[i]
		}
	}
	return nil
}

func (s *tableStub) UpdateStatus(ctx context.Context, paymentIntentID, status string) error {
	if a := s.find(paymentIntentID); a != nil {
		a.Status = status
		return nil
	}
	return apperrors.ErrNotFound
}

func (s *tableStub) MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error {
	a := s.find(paymentIntentID)
	if a == nil || a.OrphanReportedAt != nil {
		return apperrors.ErrNotFound
	}
	a.OrphanReportedAt = &at
	return nil
}

func (s *tableStub) MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error {
	for _, id := range paymentIntentIDs {
		if a := s.find(id); a != nil {
			stamp := at
			a.LastCheckedAt = &stamp
		}
	}
	return nil
}

type intentsStub struct {
	statuses map[string]string
}

func (s *intentsStub) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payments.PaymentIntent, error) {
	status, ok := s.statuses[paymentIntentID]
	if !ok {
		return nil, errors.New("no such payment_intent")
	}
	return &payments.PaymentIntent{ID: paymentIntentID, Status: status}, nil
}

type publisherStub struct {
	published []events.OrphanEvent
}

func (p *publisherStub) Publish(ctx context.Context, routingKey string, body interface{}) error {
	if routingKey == events.PaymentOrphaned {
		p.published = append(p.published, body.(events.OrphanEvent))
	}
	return nil
}

func (p *publisherStub) Close() {}

func newTestReconciler(attempts AttemptRepository, intents IntentReader, publisher events.Publisher) *Reconciler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := NewReconciler(attempts, intents, publisher, Options{Grace: 10 * time.Minute, Lookback: time.Hour}, logger)
	r.now = func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC) }
	return r
}

func TestRun_ReportsCapturedPaymentsWithoutRide(t *testing.T) {
	attempts := &attemptsStub{attempts: []models.PaymentAttempt{
		{PaymentIntentID: "pi_captured", Status: payments.StatusRequiresPaymentMethod, Amount: 2500, Email: "jane@example.com"},
		{PaymentIntentID: "pi_abandoned", Status: payments.StatusRequiresPaymentMethod, Amount: 900},
		{PaymentIntentID: "pi_unknown", Status: payments.StatusRequiresPaymentMethod},
	}}
	intents := &intentsStub{statuses: map[string]string{
		"pi_captured":  payments.StatusSucceeded,
		"pi_abandoned": payments.StatusRequiresPaymentMethod,
	}}
	publisher := &publisherStub{}

	result, err := newTestReconciler(attempts, intents, publisher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if result.Checked != 3 || result.Orphaned != 1 || result.Failed != 1 {
		t.Fatalf("unexpected result: %+v", result)
	}
	if len(attempts.marked) != 1 || attempts.marked[0] != "pi_captured" {
		t.Fatalf("expected only pi_captured to be marked, got %v", attempts.marked)
	}
	if len(publisher.published) != 1 || publisher.published[0].PaymentIntentID != "pi_captured" || publisher.published[0].Amount != 2500 {
		t.Fatalf("unexpected orphan events: %+v", publisher.published)
	}
	if attempts.statusUpdates["pi_captured"] != payments.StatusSucceeded {
		t.Fatal("expected the captured attempt's status to be synced")
	}
	if _, updated := attempts.statusUpdates["pi_abandoned"]; updated {
		t.Fatal("expected unchanged status not to be written")
	}
	if len(attempts.checked) != 3 {
		t.Fatalf("expected every listed attempt to be stamped as checked, got %v", attempts.checked)
	}
}

func TestRun_AbandonedAttemptsDoNotHideNewerOrphan(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	table := &tableStub{}
	statuses := map[string]string{}
	for i := 0; i < DefaultBatchSize+20; i++ {
		id := fmt.Sprintf("pi_abandoned_%03d", i)
		table.rows = append(table.rows, models.PaymentAttempt{
			PaymentIntentID: id,
			Status:          payments.StatusRequiresPaymentMethod,
			CreatedAt:       now.Add(-50*time.Minute + time.Duration(i)*time.Second),
		})
		statuses[id] = payments.StatusRequiresPaymentMethod
	}
	table.rows = append(table.rows, models.PaymentAttempt{
		PaymentIntentID: "pi_captured",
		Status:          payments.StatusRequiresPaymentMethod,
		Amount:          2500,
		CreatedAt:       now.Add(-20 * time.Minute),
	})
	statuses["pi_captured"] = payments.StatusSucceeded

	publisher := &publisherStub{}
	r := newTestReconciler(table, &intentsStub{statuses: statuses}, publisher)

	for run := 0; run < 3 && len(publisher.published) == 0; run++ {
		if _, err := r.Run(context.Background()); err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	}

	if len(publisher.published) != 1 || publisher.published[0].PaymentIntentID != "pi_captured" {
		t.Fatalf("expected the captured payment to be reported, got %+v", publisher.published)
	}
	if table.find("pi_captured").OrphanReportedAt == nil {
		t.Fatal("expected the captured payment to be marked as reported")
	}
}

func TestRun_UsesGraceAndLookbackWindow(t *testing.T) {
	attempts := &attemptsStub{}
	r := newTestReconciler(attempts, &intentsStub{}, &publisherStub{})

	if _, err := r.Run(context.Background()); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	if !attempts.listedBefore.Equal(now.Add(-10*time.Minute)) || !attempts.listedAfter.Equal(now.Add(-time.Hour)) {
		t.Fatalf("unexpected window [%s, %s)", attempts.listedAfter, attempts.listedBefore)
	}
}

func TestRun_SkipsAlreadyReported(t *testing.T) {
	attempts := &attemptsStub{
		attempts: []models.PaymentAttempt{{PaymentIntentID: "pi_1", Status: payments.StatusSucceeded}},
		markErr:  apperrors.ErrNotFound,
	}
	publisher := &publisherStub{}

	result, err := newTestReconciler(attempts, &intentsStub{statuses: map[string]string{"pi_1": payments.StatusSucceeded}}, publisher).Run(context.Background())
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Orphaned != 0 || len(publisher.published) != 0 {
		t.Fatal("expected no second report for an already reported attempt")
	}
}

func TestRun_ListFailure(t *testing.T) {
	attempts := &attemptsStub{listErr: errors.New("db unavailable")}

	if _, err := newTestReconciler(attempts, &intentsStub{}, &publisherStub{}).Run(context.Background()); err == nil {
		t.Fatal("expected list error to be returned")
	}
}

func TestSchedulerRejectsBadSchedule(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s := NewScheduler(newTestReconciler(&attemptsStub{}, &intentsStub{}, &publisherStub{}), nil, "not a schedule", logger)

	if err := s.Start(); err == nil {
		<-s.Stop().Done()
		t.Fatal("expected invalid schedule to be rejected")
	}
}
