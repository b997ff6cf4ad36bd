package flex_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/flex"
	"github.com/m-mizutani/gt"
)

type staticTokens struct {
	mu          sync.Mutex
	invalidated int
}

func (s *staticTokens) GetAccessToken(ctx context.Context, set types.CredentialSet) (string, error) {
	return "flex-token", nil
}

func (s *staticTokens) Invalidate(set types.CredentialSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invalidated++
}

const schedulesBody = `{"data":[
	{"employeeNumber":"E1","date":"2024-05-10","workBlocks":[]},
	{"employeeNumber":"E2","date":"2024-05-10","workBlocks":[{"formName":"근무","blockFrom":"2024-05-10T09:02:00+09:00"}]},
	{"employeeNumber":"E3","date":"2024-05-10","workBlocks":[{"formName":"근무","blockFrom":"2024-05-10T08:55:00+09:00","blockTo":"2024-05-10T18:10:00+09:00"}]},
	{"employeeNumber":"E4","date":"2024-05-10","workBlocks":[{"formName":"외근"}]}
]}`

const timeOffBody = `[{"employeeNumber":"E4","startDate":"2024-05-09","endDate":"2024-05-10","timeOffType":"연차"}]`

func newFlexServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer flex-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		switch {
		case strings.HasPrefix(r.URL.Path, "/users/work-schedules-with-work-clock/dates/"):
			_, _ = w.Write([]byte(schedulesBody))
		case strings.HasPrefix(r.URL.Path, "/users/time-off-uses/dates/"):
			_, _ = w.Write([]byte(timeOffBody))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestClient_MissingChecks(t *testing.T) {
	srv := newFlexServer(t)
	client := flex.New(&staticTokens{}, flex.WithBaseURL(srv.URL))
	ctx := context.Background()
	ids := []types.SubjectID{"E1", "E2", "E3", "E4"}

	missingIn, err := client.GetMissingCheckIns(ctx, "2024-05-10", ids)
	gt.NoError(t, err).Required()
	gt.Value(t, missingIn).Equal([]types.SubjectID{"E1"})

	missingOut, err := client.GetMissingCheckOuts(ctx, "2024-05-10", ids)
	gt.NoError(t, err).Required()
	gt.Value(t, missingOut).Equal([]types.SubjectID{"E2"})
}

func TestClient_AttendanceStatuses(t *testing.T) {
	srv := newFlexServer(t)
	client := flex.New(&staticTokens{}, flex.WithBaseURL(srv.URL))

	statuses, err := client.GetAttendanceStatuses(context.Background(), "2024-05-10", []types.SubjectID{"E1", "E2", "E3", "E4"})
	gt.NoError(t, err).Required()
	gt.Array(t, statuses).Length(4).Required()

	gt.Bool(t, statuses[2].HasCheckOut).True()
	gt.Value(t, statuses[2].CheckOutAt.UTC().Hour()).Equal(9)
	gt.Bool(t, statuses[3].OnVacation).True()
	gt.Bool(t, statuses[3].HasCheckIn).False()
}

func TestClient_QueryParameters(t *testing.T) {
	var got []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.URL.Query()["employeeNumbers[]"]
		_, _ = w.Write([]byte(`null`))
	}))
	defer srv.Close()

	client := flex.New(&staticTokens{}, flex.WithBaseURL(srv.URL))
	offs, err := client.GetTimeOffs(context.Background(), "2024-05-10", []types.SubjectID{"E1", "E2"})
	gt.NoError(t, err).Required()
	gt.Array(t, offs).Length(0)
	gt.Value(t, got).Equal([]string{"E1", "E2"})
}

func TestClient_UnrecognizedShape(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"message":"ok"}`))
	}))
	defer srv.Close()

	client := flex.New(&staticTokens{}, flex.WithBaseURL(srv.URL))
	_, err := client.GetTimeOffs(context.Background(), "2024-05-10", []types.SubjectID{"E1"})
	gt.Error(t, err)
	gt.Bool(t, errors.Is(err, flex.ErrUnrecognizedShape)).True()
}

func TestClient_UnauthorizedInvalidatesToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	tokens := &staticTokens{}
	client := flex.New(tokens, flex.WithBaseURL(srv.URL))
	_, err := client.GetTimeOffs(context.Background(), "2024-05-10", []types.SubjectID{"E1"})
	gt.Bool(t, errors.Is(err, flex.ErrAPI)).True()
	gt.Value(t, tokens.invalidated).Equal(1)
}

func TestClient_GetVacationsInRange(t *testing.T) {
	var mu sync.Mutex
	requested := map[string]bool{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		date := strings.TrimPrefix(r.URL.Path, "/users/time-off-uses/dates/")
		mu.Lock()
		requested[date] = true
		mu.Unlock()

		switch date {
		case "2024-05-06", "2024-05-07":
			_, _ = w.Write([]byte(`{"data":{"items":[{"employeeNumber":"E1","startDate":"2024-05-06","endDate":"2024-05-07","timeOffType":"연차"}]}}`))
		case "2024-05-08":
			_, _ = w.Write([]byte(`{"results":[{"employeeNumber":"E2","startDate":"2024-05-08","endDate":"2024-05-08","timeOffType":"반차","startAt":"2024-05-08T14:00:00+09:00","endAt":"2024-05-08T18:00:00+09:00"}]}`))
		default:
			_, _ = w.Write([]byte(`[]`))
		}
	}))
	defer srv.Close()

	client := flex.New(&staticTokens{}, flex.WithBaseURL(srv.URL), flex.WithRateLimit(1000, 100), flex.WithConcurrency(3))
	offs, err := client.GetVacationsInRange(context.Background(), "2024-05-06", "2024-05-19", []types.SubjectID{"E1", "E2"})
	gt.NoError(t, err).Required()

	gt.Value(t, len(requested)).Equal(14)
	gt.Array(t, offs).Length(2).Required()
	gt.Value(t, offs[0].SubjectID).Equal(types.SubjectID("E1"))
	gt.Value(t, offs[1].Type).Equal("반차")
	gt.Bool(t, offs[1].StartAt != nil).True()
}
