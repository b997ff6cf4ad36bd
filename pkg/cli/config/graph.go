package config

import (
	"log/slog"
	"strings"

	"github.com/itmoou/attendbot/pkg/service/graph"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
)

// Graph configures Microsoft Graph for mail, calendar and directory access.
type Graph struct {
	tenantID     string
	clientID     string
	clientSecret string
	sender       string
	hrEmails     []string
	teamCalendar string
}

func (x *Graph) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "graph-tenant-id",
			Usage:       "Azure AD tenant ID for Microsoft Graph",
			Category:    "Graph",
			Destination: &x.tenantID,
			Sources:     cli.EnvVars("ATTENDBOT_GRAPH_TENANT_ID"),
		},
		&cli.StringFlag{
			Name:        "graph-client-id",
			Usage:       "Application (client) ID for Microsoft Graph",
			Category:    "Graph",
			Destination: &x.clientID,
			Sources:     cli.EnvVars("ATTENDBOT_GRAPH_CLIENT_ID"),
		},
		&cli.StringFlag{
			Name:        "graph-client-secret",
			Usage:       "Client secret for Microsoft Graph",
			Category:    "Graph",
			Destination: &x.clientSecret,
			Sources:     cli.EnvVars("ATTENDBOT_GRAPH_CLIENT_SECRET"),
		},
		&cli.StringFlag{
			Name:        "graph-sender",
			Usage:       "Mailbox (UPN) used to send report mail",
			Category:    "Graph",
			Destination: &x.sender,
			Sources:     cli.EnvVars("ATTENDBOT_GRAPH_SENDER"),
		},
		&cli.StringSliceFlag{
			Name:        "hr-email",
			Usage:       "HR recipient address for reports (repeatable or comma separated)",
			Category:    "Graph",
			Destination: &x.hrEmails,
			Sources:     cli.EnvVars("ATTENDBOT_HR_EMAILS"),
		},
		&cli.StringFlag{
			Name:        "team-calendar",
			Usage:       "Mailbox (UPN) whose calendar shows approved vacations for the team. Defaults to the first HR address",
			Category:    "Graph",
			Destination: &x.teamCalendar,
			Sources:     cli.EnvVars("ATTENDBOT_TEAM_CALENDAR"),
		},
	}
}

func (x Graph) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("tenant_id", x.tenantID),
		slog.String("client_id", x.clientID),
		slog.Int("client_secret.len", len(x.clientSecret)),
		slog.String("sender", x.sender),
		slog.Int("hr_emails", len(x.HREmails())),
		slog.String("team_calendar", x.TeamCalendar()),
	)
}

func (x *Graph) IsConfigured() bool {
	return x.tenantID != "" && x.clientID != "" && x.clientSecret != ""
}

// HREmails returns trimmed, non-empty recipients.
func (x *Graph) HREmails() []string {
	var out []string
	for _, v := range x.hrEmails {
		for _, addr := range strings.Split(v, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				out = append(out, addr)
			}
		}
	}
	return out
}

// TeamCalendar returns the shared calendar owner, falling back to the first HR address.
func (x *Graph) TeamCalendar() string {
	if v := strings.TrimSpace(x.teamCalendar); v != "" {
		return v
	}
	if hr := x.HREmails(); len(hr) > 0 {
		return hr[0]
	}
	return ""
}

// Configure returns nil when Graph is not configured.
func (x *Graph) Configure() (*graph.Client, error) {
	if !x.IsConfigured() {
		return nil, nil
	}
	if x.sender == "" {
		return nil, goerr.Wrap(ErrMissingSetting, "graph-sender is required when Graph is configured")
	}
	client, err := graph.New(x.tenantID, x.clientID, x.clientSecret, x.sender)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create graph client")
	}
	return client, nil
}
