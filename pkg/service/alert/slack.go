package alert

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"
)

const colorDanger = "danger"

// Slack posts operator alerts to an incoming webhook.
type Slack struct {
	webhookURL string
	source     string
	httpClient *http.Client
	clock      func() time.Time
}

var _ interfaces.Alerter = &Slack{}

type Option func(*Slack)

// WithSource sets the footer that identifies the sending deployment.
func WithSource(source string) Option {
	return func(s *Slack) {
		s.source = source
	}
}

func WithHTTPClient(hc *http.Client) Option {
	return func(s *Slack) {
		s.httpClient = hc
	}
}

func NewSlack(webhookURL string, opts ...Option) *Slack {
	s := &Slack{
		webhookURL: webhookURL,
		source:     "attendbot",
		httpClient: &http.Client{Timeout: 10 * time.Second},
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Slack) Alert(ctx context.Context, title, text string) error {
	msg := &slack.WebhookMessage{
		Text: ":rotating_light: " + title,
		Attachments: []slack.Attachment{
			{
				Color:  colorDanger,
				Title:  title,
				Text:   text,
				Footer: s.source,
				Ts:     json.Number(strconv.FormatInt(s.clock().Unix(), 10)),
			},
		},
	}

	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, msg); err != nil {
		return goerr.Wrap(err, "failed to post alert webhook", goerr.V("title", title))
	}
	return nil
}

// Nop drops alerts. It is used when no webhook is configured.
type Nop struct{}

func (Nop) Alert(ctx context.Context, title, text string) error {
	return nil
}
