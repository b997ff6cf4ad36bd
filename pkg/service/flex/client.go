package flex

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/itmoou/attendbot/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"
)

const (
	DefaultBaseURL     = "https://openapi.flex.team/v2"
	defaultConcurrency = 4
	maxErrorBody       = 4096

	workFormName = "근무"
)

var ErrAPI = goerr.New("attendance API returned an error")

// tokenInvalidator is implemented by token caches that can drop a rejected token.
type tokenInvalidator interface {
	Invalidate(set types.CredentialSet)
}

// Client talks to the vendor attendance API.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	tokens      interfaces.TokenProvider
	limiter     *rate.Limiter
	concurrency int
}

var _ interfaces.AttendanceSource = &Client{}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit caps requests per second across all calls of this client.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

func New(tokens interfaces.TokenProvider, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		tokens:      tokens,
		limiter:     rate.NewLimiter(rate.Limit(5), 5),
		concurrency: defaultConcurrency,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type workBlock struct {
	FormName  string `json:"formName"`
	BlockFrom string `json:"blockFrom"`
	BlockTo   string `json:"blockTo"`
}

type workSchedule struct {
	EmployeeNumber string      `json:"employeeNumber"`
	Date           string      `json:"date"`
	WorkBlocks     []workBlock `json:"workBlocks"`
}

type timeOffUse struct {
	EmployeeNumber string `json:"employeeNumber"`
	StartDate      string `json:"startDate"`
	EndDate        string `json:"endDate"`
	TimeOffType    string `json:"timeOffType"`
	StartAt        string `json:"startAt"`
	EndAt          string `json:"endAt"`
}

func (c *Client) getList(ctx context.Context, path string, subjectIDs []types.SubjectID) ([]json.RawMessage, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, goerr.Wrap(err, "rate limiter wait interrupted")
	}

	tok, err := c.tokens.GetAccessToken(ctx, types.CredentialFlex)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to get attendance API token")
	}

	q := url.Values{}
	for _, id := range subjectIDs {
		q.Add("employeeNumbers[]", id.String())
	}
	endpoint := c.baseURL + path
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create request", goerr.V("path", path))
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to call attendance API", goerr.V("path", path))
	}
	defer safe.DrainClose(ctx, resp.Body)

	if resp.StatusCode == http.StatusUnauthorized {
		if inv, ok := c.tokens.(tokenInvalidator); ok {
			inv.Invalidate(types.CredentialFlex)
		}
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, goerr.Wrap(ErrAPI, "attendance API request failed",
			goerr.V("path", path),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(body)))
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read response", goerr.V("path", path))
	}

	items, rule, err := normalizeList(body)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to normalize response", goerr.V("path", path))
	}
	logging.From(ctx).Debug("attendance API list normalized",
		"path", path,
		"rule", rule,
		"count", len(items))

	return items, nil
}

func decodeItems[T any](items []json.RawMessage) ([]T, error) {
	out := make([]T, 0, len(items))
	for i, raw := range items {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, goerr.Wrap(err, "failed to decode list item", goerr.V("index", i))
		}
		out = append(out, v)
	}
	return out, nil
}

func (c *Client) getWorkSchedules(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]workSchedule, error) {
	items, err := c.getList(ctx, "/users/work-schedules-with-work-clock/dates/"+date.String(), subjectIDs)
	if err != nil {
		return nil, err
	}
	return decodeItems[workSchedule](items)
}

// GetTimeOffs returns time-off uses that the vendor reports for date.
func (c *Client) GetTimeOffs(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]*model.TimeOff, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	items, err := c.getList(ctx, "/users/time-off-uses/dates/"+date.String(), subjectIDs)
	if err != nil {
		return nil, err
	}
	uses, err := decodeItems[timeOffUse](items)
	if err != nil {
		return nil, err
	}

	offs := make([]*model.TimeOff, 0, len(uses))
	for _, u := range uses {
		offs = append(offs, &model.TimeOff{
			SubjectID: types.SubjectID(u.EmployeeNumber),
			StartDate: types.Date(u.StartDate),
			EndDate:   types.Date(u.EndDate),
			Type:      u.TimeOffType,
			StartAt:   parseTime(u.StartAt),
			EndAt:     parseTime(u.EndAt),
		})
	}
	return offs, nil
}

// GetAttendanceStatuses combines work clocks and time-offs for date. Only
// subjects with a schedule on date are returned.
func (c *Client) GetAttendanceStatuses(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]*model.AttendanceStatus, error) {
	if len(subjectIDs) == 0 {
		return nil, nil
	}

	var (
		schedules []workSchedule
		offs      []*model.TimeOff
	)
	eg, egCtx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		schedules, err = c.getWorkSchedules(egCtx, date, subjectIDs)
		return err
	})
	eg.Go(func() error {
		var err error
		offs, err = c.GetTimeOffs(egCtx, date, subjectIDs)
		return err
	})
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	onVacation := make(map[types.SubjectID]bool)
	for _, off := range offs {
		if off.Covers(date) {
			onVacation[off.SubjectID] = true
		}
	}

	statuses := make([]*model.AttendanceStatus, 0, len(schedules))
	for _, s := range schedules {
		subjectID := types.SubjectID(s.EmployeeNumber)
		status := &model.AttendanceStatus{
			SubjectID:  subjectID,
			Date:       date,
			OnVacation: onVacation[subjectID],
		}
		if s.Date != "" {
			status.Date = types.Date(s.Date)
		}

		for _, b := range s.WorkBlocks {
			if b.FormName != workFormName {
				continue
			}
			status.HasCheckIn = b.BlockFrom != ""
			status.HasCheckOut = b.BlockTo != ""
			status.CheckInAt = parseTime(b.BlockFrom)
			status.CheckOutAt = parseTime(b.BlockTo)
			break
		}
		statuses = append(statuses, status)
	}

	return statuses, nil
}

func (c *Client) GetMissingCheckIns(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]types.SubjectID, error) {
	statuses, err := c.GetAttendanceStatuses(ctx, date, subjectIDs)
	if err != nil {
		return nil, err
	}

	var missing []types.SubjectID
	for _, s := range statuses {
		if s.MissingCheckIn() {
			missing = append(missing, s.SubjectID)
		}
	}
	logging.From(ctx).Info("missing check-ins resolved",
		"date", date,
		"missing", len(missing),
		"scheduled", len(statuses))
	return missing, nil
}

func (c *Client) GetMissingCheckOuts(ctx context.Context, date types.Date, subjectIDs []types.SubjectID) ([]types.SubjectID, error) {
	statuses, err := c.GetAttendanceStatuses(ctx, date, subjectIDs)
	if err != nil {
		return nil, err
	}

	var missing []types.SubjectID
	for _, s := range statuses {
		if s.MissingCheckOut() {
			missing = append(missing, s.SubjectID)
		}
	}
	logging.From(ctx).Info("missing check-outs resolved",
		"date", date,
		"missing", len(missing),
		"scheduled", len(statuses))
	return missing, nil
}

// GetVacationsInRange queries every day in [start, end] and merges the
// time-offs. A time-off spanning several days is returned once.
func (c *Client) GetVacationsInRange(ctx context.Context, start, end types.Date, subjectIDs []types.SubjectID) ([]*model.TimeOff, error) {
	if len(subjectIDs) == 0 || end < start {
		return nil, nil
	}

	var (
		mu   sync.Mutex
		seen = make(map[string]*model.TimeOff)
	)

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(c.concurrency)
	for d := start; d <= end; d = d.AddDays(1) {
		eg.Go(func() error {
			offs, err := c.GetTimeOffs(egCtx, d, subjectIDs)
			if err != nil {
				return goerr.Wrap(err, "failed to get time-offs", goerr.V("date", d))
			}
			mu.Lock()
			defer mu.Unlock()
			for _, off := range offs {
				if _, ok := seen[off.Key()]; !ok {
					seen[off.Key()] = off
				}
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	result := make([]*model.TimeOff, 0, len(seen))
	for _, off := range seen {
		result = append(result, off)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].StartDate != result[j].StartDate {
			return result[i].StartDate < result[j].StartDate
		}
		return result[i].SubjectID < result[j].SubjectID
	})
	return result, nil
}

func parseTime(s string) *time.Time {
	if s == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05"} {
		if t, err := time.Parse(layout, s); err == nil {
			return &t
		}
	}
	return nil
}
