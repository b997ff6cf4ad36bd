package teams

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/itmoou/attendbot/pkg/utils/safe"
	"github.com/m-mizutani/goerr/v2"
	"golang.org/x/time/rate"
)

const (
	textFormatXML = "xml"
	maxErrorBody  = 4096
)

var (
	ErrConnector     = goerr.New("bot connector returned an error")
	ErrInvalidHandle = goerr.New("conversation handle is incomplete")
)

// Client sends activities through the Bot Framework connector.
type Client struct {
	tokens     interfaces.TokenProvider
	httpClient *http.Client
	limiter    *rate.Limiter
}

var _ interfaces.Messenger = &Client{}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithRateLimit bounds outbound connector calls per second.
func WithRateLimit(rps float64, burst int) Option {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
	}
}

func New(tokens interfaces.TokenProvider, opts ...Option) *Client {
	c := &Client{
		tokens:     tokens,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		limiter:    rate.NewLimiter(rate.Limit(10), 10),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SendMessage posts an HTML message into the conversation of handle.
func (c *Client) SendMessage(ctx context.Context, handle *model.ConversationHandle, html string) error {
	if handle == nil || handle.ServiceURL == "" || handle.ConversationID == "" {
		return goerr.Wrap(ErrInvalidHandle, "cannot send message")
	}

	activity := &model.Activity{
		Type:       model.ActivityTypeMessage,
		TextFormat: textFormatXML,
		Text:       html,
	}
	if handle.BotID != "" {
		activity.From = &model.ChannelAccount{ID: handle.BotID, Name: handle.BotName}
	}
	if handle.UserID != "" {
		activity.Recipient = &model.ChannelAccount{ID: handle.UserID, Name: handle.UserName}
	}

	endpoint := conversationURL(handle.ServiceURL, handle.ConversationID) + "/activities"
	if err := c.do(ctx, http.MethodPost, endpoint, activity, nil); err != nil {
		return goerr.Wrap(err, "failed to send message", goerr.V("account_id", handle.AccountID))
	}
	return nil
}

// Reply answers an inbound activity in the same conversation.
func (c *Client) Reply(ctx context.Context, inbound *model.Activity, html string) error {
	if inbound == nil || inbound.Conversation == nil || inbound.ServiceURL == "" {
		return goerr.Wrap(ErrInvalidHandle, "cannot reply to activity")
	}

	reply := &model.Activity{
		Type:         model.ActivityTypeMessage,
		TextFormat:   textFormatXML,
		Text:         html,
		From:         inbound.Recipient,
		Recipient:    inbound.From,
		Conversation: inbound.Conversation,
		ReplyToID:    inbound.ID,
	}

	endpoint := conversationURL(inbound.ServiceURL, inbound.Conversation.ID) + "/activities"
	if inbound.ID != "" {
		endpoint += "/" + url.PathEscape(inbound.ID)
	}
	return c.do(ctx, http.MethodPost, endpoint, reply, nil)
}

// GetMember returns the connector's member record, which carries the UPN.
func (c *Client) GetMember(ctx context.Context, serviceURL, conversationID, userID string) (*model.TeamsMember, error) {
	endpoint := conversationURL(serviceURL, conversationID) + "/members/" + url.PathEscape(userID)

	var member model.TeamsMember
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &member); err != nil {
		return nil, goerr.Wrap(err, "failed to get conversation member",
			goerr.V("conversation_id", conversationID),
			goerr.V("user_id", userID))
	}
	return &member, nil
}

func conversationURL(serviceURL, conversationID string) string {
	return strings.TrimRight(serviceURL, "/") + "/v3/conversations/" + url.PathEscape(conversationID)
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return goerr.Wrap(err, "rate limiter wait interrupted")
	}

	tok, err := c.tokens.GetAccessToken(ctx, types.CredentialBot)
	if err != nil {
		return goerr.Wrap(err, "failed to get connector token")
	}

	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return goerr.Wrap(err, "failed to encode activity")
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return goerr.Wrap(err, "failed to create connector request", goerr.V("url", endpoint))
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("x-ms-client-request-id", uuid.NewString())
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to call connector", goerr.V("url", endpoint))
	}
	defer safe.DrainClose(ctx, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return goerr.Wrap(ErrConnector, "connector request failed",
			goerr.V("url", endpoint),
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(raw)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return goerr.Wrap(err, "failed to decode connector response", goerr.V("url", endpoint))
		}
	}

	logging.From(ctx).Debug("connector call done", "method", method, "status", resp.StatusCode)
	return nil
}
