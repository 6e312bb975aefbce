// Package reconcile finds captured payments that never got a ride row and
// reports them to an operator. It never refunds.
package reconcile

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/events"
	"github.com/farellandr/ridehail/internal/models"
	"github.com/farellandr/ridehail/internal/payments"
)

const (
	DefaultGrace     = 10 * time.Minute
	DefaultLookback  = 72 * time.Hour
	DefaultBatchSize = 100
)

// AttemptRepository defines the payment attempt operations the reconciler needs.
type AttemptRepository interface {
	ListUnlinked(ctx context.Context, createdAfter, createdBefore time.Time, limit int) ([]models.PaymentAttempt, error)
	UpdateStatus(ctx context.Context, paymentIntentID, status string) error
	MarkOrphanReported(ctx context.Context, paymentIntentID string, at time.Time) error
	MarkChecked(ctx context.Context, paymentIntentIDs []string, at time.Time) error
}

// IntentReader reads the processor's view of a payment intent.
type IntentReader interface {
	GetPaymentIntent(ctx context.Context, paymentIntentID string) (*payments.PaymentIntent, error)
}

type Options struct {
	Grace     time.Duration
	Lookback  time.Duration
	BatchSize int
}

type Result struct {
	Checked  int
	Orphaned int
	Failed   int
}

type Reconciler struct {
	attempts  AttemptRepository
	intents   IntentReader
	publisher events.Publisher
	opts      Options
	logger    *slog.Logger
	now       func() time.Time
}

func NewReconciler(attempts AttemptRepository, intents IntentReader, publisher events.Publisher, opts Options, logger *slog.Logger) *Reconciler {
	if opts.Grace <= 0 {
		opts.Grace = DefaultGrace
	}
	if opts.Lookback <= 0 {
		opts.Lookback = DefaultLookback
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reconciler{
		attempts:  attempts,
		intents:   intents,
		publisher: publisher,
		opts:      opts,
		logger:    logger.With("component", "reconcile"),
		now:       time.Now,
	}
}

// Run checks one batch of unlinked attempts older than the grace period.
// Every checked attempt is stamped so the next run moves on to others.
func (r *Reconciler) Run(ctx context.Context) (Result, error) {
	var result Result
	now := r.now().UTC()

	attempts, err := r.attempts.ListUnlinked(ctx, now.Add(-r.opts.Lookback), now.Add(-r.opts.Grace), r.opts.BatchSize)
	if err != nil {
		return result, err
	}

	checked := make([]string, 0, len(attempts))
	defer func() {
		if err := r.attempts.MarkChecked(context.WithoutCancel(ctx), checked, now); err != nil {
			r.logger.Warn("failed to stamp checked payment attempts", "count", len(checked), "error", err)
		}
	}()

	for _, attempt := range attempts {
		if ctx.Err() != nil {
			return result, ctx.Err()
		}
		result.Checked++
		checked = append(checked, attempt.PaymentIntentID)

		intent, err := r.intents.GetPaymentIntent(ctx, attempt.PaymentIntentID)
		if err != nil {
			result.Failed++
			r.logger.Warn("failed to fetch payment intent", "payment_intent_id", attempt.PaymentIntentID, "error", err)
			continue
		}

		if intent.Status != attempt.Status {
			if err := r.attempts.UpdateStatus(ctx, attempt.PaymentIntentID, intent.Status); err != nil {
				r.logger.Warn("failed to sync payment attempt status", "payment_intent_id", attempt.PaymentIntentID, "error", err)
			}
		}

		if intent.Status != payments.StatusSucceeded {
			continue
		}

		err = r.attempts.MarkOrphanReported(ctx, attempt.PaymentIntentID, now)
		if errors.Is(err, apperrors.ErrNotFound) {
			// Reported by a concurrent run.
			continue
		}
		if err != nil {
			result.Failed++
			r.logger.Error("failed to mark orphaned payment", "payment_intent_id", attempt.PaymentIntentID, "error", err)
			continue
		}

		result.Orphaned++
		r.logger.Warn("captured payment has no ride",
			"payment_intent_id", attempt.PaymentIntentID,
			"customer_id", attempt.CustomerID,
			"amount", attempt.Amount,
		)
		events.PublishOrLog(ctx, r.publisher, events.PaymentOrphaned, events.OrphanEvent{
			PaymentIntentID: attempt.PaymentIntentID,
			Email:           attempt.Email,
			Amount:          attempt.Amount,
			Reason:          "no_ride_recorded",
			OccurredAt:      now,
		})
	}

	return result, nil
}
