package errutil

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/getsentry/sentry-go"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// Handle logs err with its goerr values and stack, reports it to Sentry when
// a client is bound, and returns err unchanged.
func Handle(ctx context.Context, err error, msg string) error {
	if err == nil {
		return nil
	}

	logAttrs(ctx, msg, err)
	capture(ctx, err)
	return err
}

type errorBody struct {
	Error string `json:"error"`
}

// HandleHTTP logs err and writes a JSON error body with statusCode. Only 5xx
// errors are reported to Sentry.
func HandleHTTP(ctx context.Context, w http.ResponseWriter, err error, statusCode int) {
	if err == nil {
		return
	}

	logAttrs(ctx, "HTTP error", err, "status", statusCode)
	if statusCode >= http.StatusInternalServerError {
		capture(ctx, err)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if encErr := json.NewEncoder(w).Encode(errorBody{Error: err.Error()}); encErr != nil {
		logging.From(ctx).Error("failed to write error body", "error", encErr)
	}
}

func logAttrs(ctx context.Context, msg string, err error, extra ...any) {
	logger := logging.From(ctx)

	args := append([]any{}, extra...)
	args = append(args, "error", err.Error())

	var ge *goerr.Error
	if errors.As(err, &ge) {
		args = append(args, "values", ge.Values(), "stack", ge.Stacks())
	}
	logger.Error(msg, args...)
}

func capture(ctx context.Context, err error) {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub.Client() == nil {
		return
	}

	hub.WithScope(func(scope *sentry.Scope) {
		var ge *goerr.Error
		if errors.As(err, &ge) {
			values := sentry.Context{}
			for k, v := range ge.Values() {
				values[k] = v
			}
			scope.SetContext("goerr", values)
		}
		hub.CaptureException(err)
	})
}
