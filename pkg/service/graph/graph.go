package graph

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Azure/azure-sdk-for-go/sdk/azcore"
	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/model"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
	msgraphsdk "github.com/microsoftgraph/msgraph-sdk-go"
	"github.com/microsoftgraph/msgraph-sdk-go/models"
	"github.com/microsoftgraph/msgraph-sdk-go/models/odataerrors"
	"github.com/microsoftgraph/msgraph-sdk-go/users"
)

const graphScope = "https://graph.microsoft.com/.default"

var (
	ErrGraphAPI     = goerr.New("graph API call failed")
	ErrNoRecipients = goerr.New("mail has no recipients")
)

// Client wraps the Graph SDK for mail, calendar and directory access.
type Client struct {
	graph  *msgraphsdk.GraphServiceClient
	sender string
}

var (
	_ interfaces.Mailer    = &Client{}
	_ interfaces.Calendar  = &Client{}
	_ interfaces.Directory = &Client{}
)

// New authenticates with an app registration client secret.
func New(tenantID, clientID, clientSecret, sender string) (*Client, error) {
	cred, err := azidentity.NewClientSecretCredential(tenantID, clientID, clientSecret, nil)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create client secret credential",
			goerr.V("tenant_id", tenantID),
			goerr.V("client_id", clientID))
	}
	return NewWithCredential(cred, sender)
}

func NewWithCredential(cred azcore.TokenCredential, sender string) (*Client, error) {
	graph, err := msgraphsdk.NewGraphServiceClientWithCredentials(cred, []string{graphScope})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to initialize graph client")
	}
	return &Client{graph: graph, sender: sender}, nil
}

// SendMail sends an HTML mail from the configured sender mailbox.
func (c *Client) SendMail(ctx context.Context, to []string, subject, html string) error {
	if len(to) == 0 {
		return goerr.Wrap(ErrNoRecipients, "cannot send mail", goerr.V("subject", subject))
	}

	body := users.NewItemSendMailPostRequestBody()
	body.SetMessage(buildMessage(to, subject, html))
	saveToSent := true
	body.SetSaveToSentItems(&saveToSent)

	if err := c.graph.Users().ByUserId(c.sender).SendMail().Post(ctx, body, nil); err != nil {
		return wrapGraphError(err, "failed to send mail",
			goerr.V("sender", c.sender),
			goerr.V("subject", subject))
	}

	logging.From(ctx).Info("mail sent", "subject", subject, "recipients", len(to))
	return nil
}

// CreateEvent writes event into the calendar of upn.
func (c *Client) CreateEvent(ctx context.Context, upn string, event *model.CalendarEvent) error {
	created, err := c.graph.Users().ByUserId(upn).Events().Post(ctx, buildEvent(event), nil)
	if err != nil {
		return wrapGraphError(err, "failed to create calendar event",
			goerr.V("upn", upn),
			goerr.V("subject", event.Subject))
	}

	id := ""
	if created != nil && created.GetId() != nil {
		id = *created.GetId()
	}
	logging.From(ctx).Debug("calendar event created", "upn", upn, "event_id", id)
	return nil
}

// maxListedEvents caps one calendar view page.
const maxListedEvents = 50

// ListEvents reads the calendar view of upn between start and end. Times come
// back in UTC and are converted to start's location.
func (c *Client) ListEvents(ctx context.Context, upn string, start, end time.Time) ([]*model.CalendarEvent, error) {
	startStr := start.UTC().Format(time.RFC3339)
	endStr := end.UTC().Format(time.RFC3339)
	top := int32(maxListedEvents)
	config := &users.ItemCalendarViewRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.ItemCalendarViewRequestBuilderGetQueryParameters{
			StartDateTime: &startStr,
			EndDateTime:   &endStr,
			Select:        []string{"id", "subject", "start", "end", "location", "isAllDay", "isOnlineMeeting", "showAs"},
			Orderby:       []string{"start/dateTime"},
			Top:           &top,
		},
	}

	resp, err := c.graph.Users().ByUserId(upn).CalendarView().Get(ctx, config)
	if err != nil {
		return nil, wrapGraphError(err, "failed to list calendar events",
			goerr.V("upn", upn),
			goerr.V("start", startStr),
			goerr.V("end", endStr))
	}
	if resp == nil {
		return nil, nil
	}

	events := make([]*model.CalendarEvent, 0, len(resp.GetValue()))
	for _, e := range resp.GetValue() {
		events = append(events, toCalendarEvent(e, start.Location()))
	}
	return events, nil
}

// LookupUser reads the directory entry of upn including the employee ID.
func (c *Client) LookupUser(ctx context.Context, upn string) (*model.DirectoryUser, error) {
	config := &users.UserItemRequestBuilderGetRequestConfiguration{
		QueryParameters: &users.UserItemRequestBuilderGetQueryParameters{
			Select: []string{"id", "userPrincipalName", "displayName", "mail", "employeeId"},
		},
	}

	user, err := c.graph.Users().ByUserId(upn).Get(ctx, config)
	if err != nil {
		return nil, wrapGraphError(err, "failed to look up user", goerr.V("upn", upn))
	}
	return toDirectoryUser(user), nil
}

func buildMessage(to []string, subject, html string) models.Messageable {
	message := models.NewMessage()
	message.SetSubject(&subject)

	body := models.NewItemBody()
	body.SetContent(&html)
	contentType := models.HTML_BODYTYPE
	body.SetContentType(&contentType)
	message.SetBody(body)

	message.SetToRecipients(createRecipients(to))
	return message
}

func createRecipients(emails []string) []models.Recipientable {
	recipients := make([]models.Recipientable, 0, len(emails))
	for _, email := range emails {
		address := strings.TrimSpace(email)
		if address == "" {
			continue
		}
		emailAddress := models.NewEmailAddress()
		emailAddress.SetAddress(&address)

		recipient := models.NewRecipient()
		recipient.SetEmailAddress(emailAddress)
		recipients = append(recipients, recipient)
	}
	return recipients
}

const graphDateTimeLayout = "2006-01-02T15:04:05"

func buildEvent(e *model.CalendarEvent) models.Eventable {
	event := models.NewEvent()
	subject := e.Subject
	event.SetSubject(&subject)

	body := models.NewItemBody()
	content := e.Body
	body.SetContent(&content)
	contentType := models.TEXT_BODYTYPE
	body.SetContentType(&contentType)
	event.SetBody(body)

	tz := e.TimeZone
	if tz == "" {
		tz = "UTC"
	}

	start := models.NewDateTimeTimeZone()
	startStr := e.Start.Format(graphDateTimeLayout)
	start.SetDateTime(&startStr)
	start.SetTimeZone(&tz)
	event.SetStart(start)

	end := models.NewDateTimeTimeZone()
	endStr := e.End.Format(graphDateTimeLayout)
	end.SetDateTime(&endStr)
	end.SetTimeZone(&tz)
	event.SetEnd(end)

	allDay := e.AllDay
	event.SetIsAllDay(&allDay)
	showAs := models.OOF_FREEBUSYSTATUS
	if e.Free {
		showAs = models.FREE_FREEBUSYSTATUS
	}
	event.SetShowAs(&showAs)
	if e.Location != "" {
		location := models.NewLocation()
		name := e.Location
		location.SetDisplayName(&name)
		event.SetLocation(location)
	}
	reminder := false
	event.SetIsReminderOn(&reminder)

	return event
}

func toCalendarEvent(e models.Eventable, loc *time.Location) *model.CalendarEvent {
	event := &model.CalendarEvent{
		Subject:  deref(e.GetSubject()),
		Start:    parseGraphTime(e.GetStart(), loc),
		End:      parseGraphTime(e.GetEnd(), loc),
		TimeZone: loc.String(),
		AllDay:   derefBool(e.GetIsAllDay()),
		Online:   derefBool(e.GetIsOnlineMeeting()),
	}
	if showAs := e.GetShowAs(); showAs != nil && *showAs == models.FREE_FREEBUSYSTATUS {
		event.Free = true
	}
	if l := e.GetLocation(); l != nil {
		event.Location = deref(l.GetDisplayName())
	}
	return event
}

// parseGraphTime reads a dateTimeTimeZone value. Graph sends seven fractional
// digits, which time.Parse accepts without them in the layout.
func parseGraphTime(v models.DateTimeTimeZoneable, loc *time.Location) time.Time {
	if v == nil || v.GetDateTime() == nil {
		return time.Time{}
	}
	zone := time.UTC
	if tz := deref(v.GetTimeZone()); tz != "" && tz != "UTC" {
		if l, err := time.LoadLocation(tz); err == nil {
			zone = l
		}
	}
	t, err := time.ParseInLocation(graphDateTimeLayout, *v.GetDateTime(), zone)
	if err != nil {
		return time.Time{}
	}
	return t.In(loc)
}

func derefBool(b *bool) bool {
	return b != nil && *b
}

func toDirectoryUser(u models.Userable) *model.DirectoryUser {
	if u == nil {
		return nil
	}
	return &model.DirectoryUser{
		UPN:         deref(u.GetUserPrincipalName()),
		EmployeeID:  strings.TrimSpace(deref(u.GetEmployeeId())),
		DisplayName: deref(u.GetDisplayName()),
		Mail:        deref(u.GetMail()),
	}
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// wrapGraphError attaches the OData error code and message when Graph returned one.
func wrapGraphError(err error, msg string, opts ...goerr.Option) error {
	var odataErr *odataerrors.ODataError
	if errors.As(err, &odataErr) {
		opts = append(opts, goerr.V("status", odataErr.ResponseStatusCode))
		if mainErr := odataErr.GetErrorEscaped(); mainErr != nil {
			opts = append(opts,
				goerr.V("code", deref(mainErr.GetCode())),
				goerr.V("message", deref(mainErr.GetMessage())))
		}
		if h := odataErr.GetResponseHeaders(); h != nil {
			if retry := h.Get("Retry-After"); len(retry) > 0 {
				opts = append(opts, goerr.V("retry_after", retry[0]))
			}
		}
	}
	return goerr.Wrap(errors.Join(ErrGraphAPI, err), msg, opts...)
}
