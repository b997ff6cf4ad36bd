package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/service/teams"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/itmoou/attendbot/pkg/utils/errutil"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

const activityKey contextKey = "bot_activity"

// maxActivityBytes caps the inbound body size.
const maxActivityBytes = 1 << 20

func activityFromContext(ctx context.Context) *model.Activity {
	a, _ := ctx.Value(activityKey).(*model.Activity)
	return a
}

// statusOf maps an error to the HTTP status returned to the caller.
func statusOf(err error) int {
	switch {
	case errors.Is(err, teams.ErrUnauthorized), errors.Is(err, ErrWebhookUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, usecase.ErrInvalidActivity), errors.Is(err, usecase.ErrInvalidVacation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// activityMiddleware decodes and validates the activity, then verifies the
// bearer token against its serviceUrl. A malformed or incomplete body is
// rejected with 400 before authentication.
func activityMiddleware(verifier ActivityVerifier, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBytes))
			if err != nil {
				writeError(ctx, w, rec, "", goerr.Wrap(usecase.ErrInvalidActivity, "failed to read request body", goerr.V("error", err.Error())))
				return
			}
			defer func() {
				if err := r.Body.Close(); err != nil {
					logging.From(ctx).Error("failed to close request body", "error", err)
				}
			}()

			var activity model.Activity
			if err := json.Unmarshal(body, &activity); err != nil {
				writeError(ctx, w, rec, "", goerr.Wrap(usecase.ErrInvalidActivity, "malformed activity JSON", goerr.V("error", err.Error())))
				return
			}
			if err := usecase.ValidateActivity(&activity); err != nil {
				writeError(ctx, w, rec, "", err)
				return
			}

			if verifier != nil {
				if err := verifier.Verify(ctx, r.Header.Get("Authorization"), activity.ServiceURL); err != nil {
					writeError(ctx, w, rec, activity.Type, err)
					return
				}
			}

			ctx = context.WithValue(ctx, activityKey, &activity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func activityHandler(handler ActivityHandler, rec metrics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		activity := activityFromContext(ctx)

		ctx = logging.With(ctx, logging.From(ctx).With("activity_type", activity.Type))
		if err := handler.HandleActivity(ctx, activity); err != nil {
			writeError(ctx, w, rec, activity.Type, err)
			return
		}

		rec.RecordInbound(activity.Type, http.StatusOK)
		w.WriteHeader(http.StatusOK)
	}
}

func writeError(ctx context.Context, w http.ResponseWriter, rec metrics.Recorder, activityType string, err error) {
	status := statusOf(err)
	rec.RecordInbound(activityType, status)
	errutil.HandleHTTP(ctx, w, err, status)
}
