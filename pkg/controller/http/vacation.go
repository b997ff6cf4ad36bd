package http

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"io"
	"net/http"
	"strings"

	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/service/metrics"
	"github.com/itmoou/attendbot/pkg/usecase"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// ErrWebhookUnauthorized is returned when the webhook token does not match.
var ErrWebhookUnauthorized = goerr.New("webhook token mismatch")

// inboundVacationApproved labels webhook requests in the inbound metric.
const inboundVacationApproved = "vacation_approved"

// webhookTokenHeader is accepted alongside a bearer Authorization header.
const webhookTokenHeader = "X-Webhook-Token"

// VacationHandler processes approved vacation notifications.
type VacationHandler interface {
	ApproveVacation(ctx context.Context, v *model.VacationApproval) (*model.VacationApprovalResult, error)
}

type vacationResponse struct {
	Success bool                          `json:"success"`
	Message string                        `json:"message"`
	Data    *model.VacationApprovalResult `json:"data"`
}

// webhookAuth compares the presented token with the shared secret. An empty
// secret accepts every request.
func webhookAuth(secret string, rec metrics.Recorder) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if secret != "" {
				presented := r.Header.Get(webhookTokenHeader)
				if presented == "" {
					presented = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
				}
				if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
					writeError(r.Context(), w, rec, inboundVacationApproved, goerr.Wrap(ErrWebhookUnauthorized, "rejected vacation webhook"))
					return
				}
			}
			next.ServeHTTP(w, r)
		})
	}
}

func vacationApprovedHandler(handler VacationHandler, rec metrics.Recorder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		body, err := io.ReadAll(io.LimitReader(r.Body, maxActivityBytes))
		if err != nil {
			writeError(ctx, w, rec, inboundVacationApproved, goerr.Wrap(usecase.ErrInvalidVacation, "failed to read request body", goerr.V("error", err.Error())))
			return
		}

		var req model.VacationApproval
		if err := json.Unmarshal(body, &req); err != nil {
			writeError(ctx, w, rec, inboundVacationApproved, goerr.Wrap(usecase.ErrInvalidVacation, "malformed approval JSON", goerr.V("error", err.Error())))
			return
		}

		result, err := handler.ApproveVacation(ctx, &req)
		if err != nil {
			writeError(ctx, w, rec, inboundVacationApproved, err)
			return
		}

		rec.RecordInbound(inboundVacationApproved, http.StatusOK)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if err := json.NewEncoder(w).Encode(vacationResponse{
			Success: true,
			Message: "휴가 승인 처리 완료",
			Data:    result,
		}); err != nil {
			logging.From(ctx).Error("failed to write response", "error", err)
		}
	}
}
