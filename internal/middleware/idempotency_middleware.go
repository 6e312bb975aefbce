package middleware

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/farellandr/ridehail/internal/apperrors"
	"github.com/farellandr/ridehail/internal/helpers"
	"github.com/farellandr/ridehail/internal/idempotency"
)

const (
	IdempotencyKeyHeader = "Idempotency-Key"
	ReplayedHeader       = "Idempotent-Replayed"

	idempotencyKeyContextKey = "idempotency_key"
	maxIdempotencyKeyLength  = 255
)

type bodyRecorder struct {
	gin.ResponseWriter
	body *bytes.Buffer
}

func (w *bodyRecorder) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *bodyRecorder) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// IdempotencyMiddleware replays the stored response for a repeated
// Idempotency-Key. Requests without the header pass through untouched.
// A key whose first request ended in a 5xx or a panic is released so the
// client can retry.
func IdempotencyMiddleware(store idempotency.Store, ttl time.Duration) gin.HandlerFunc {
	if ttl <= 0 {
		ttl = idempotency.DefaultTTL
	}

	return func(c *gin.Context) {
		key := strings.TrimSpace(c.GetHeader(IdempotencyKeyHeader))
		if key == "" || store == nil {
			c.Next()
			return
		}
		if len(key) > maxIdempotencyKeyLength {
			helpers.RespondWithError(c, http.StatusBadRequest, "Idempotency-Key is too long")
			return
		}

		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			helpers.RespondWithError(c, http.StatusBadRequest, "Invalid request payload")
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		scopedKey := c.Request.Method + " " + c.FullPath() + ":" + key
		fingerprint := idempotency.Fingerprint(c.Request.Method, c.FullPath(), body)

		existing, reserved, err := store.Reserve(c.Request.Context(), scopedKey, fingerprint, ttl)
		if err != nil {
			slog.Warn("idempotency store unavailable, serving request without replay protection", "error", err)
			c.Next()
			return
		}

		if !reserved {
			switch {
			case existing.Fingerprint != fingerprint:
				helpers.RespondWithError(c, http.StatusConflict, "Idempotency-Key was already used with a different request")
			case existing.State == idempotency.StateInFlight:
				helpers.RespondWithAppError(c, apperrors.ErrRequestInProgress, "A request with this Idempotency-Key is already in progress")
			default:
				c.Header(ReplayedHeader, "true")
				c.Data(existing.StatusCode, existing.ContentType, existing.Body)
				c.Abort()
			}
			return
		}

		c.Set(idempotencyKeyContextKey, key)
		recorder := &bodyRecorder{ResponseWriter: c.Writer, body: &bytes.Buffer{}}
		c.Writer = recorder

		defer func() {
			if r := recover(); r != nil {
				ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
				if err := store.Release(ctx, scopedKey); err != nil {
					slog.Warn("failed to release idempotency key after panic", "error", err)
				}
				cancel()
				panic(r)
			}
		}()

		c.Next()

		ctx, cancel := context.WithTimeout(context.WithoutCancel(c.Request.Context()), 5*time.Second)
		defer cancel()

		status := recorder.Status()
		if status >= http.StatusInternalServerError {
			if err := store.Release(ctx, scopedKey); err != nil {
				slog.Warn("failed to release idempotency key", "error", err)
			}
			return
		}

		err = store.Complete(ctx, scopedKey, idempotency.Record{
			Fingerprint: fingerprint,
			StatusCode:  status,
			ContentType: recorder.Header().Get("Content-Type"),
			Body:        recorder.body.Bytes(),
		}, ttl)
		if err != nil {
			slog.Warn("failed to store idempotent response", "error", err)
		}
	}
}

// GetIdempotencyKey returns the client's Idempotency-Key once it has been reserved.
func GetIdempotencyKey(c *gin.Context) string {
	return c.GetString(idempotencyKeyContextKey)
}
