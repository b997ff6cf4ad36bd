package config

// NewBotForTest creates a Bot config for testing purposes
func NewBotForTest(appID, appPassword, tenantID string) *Bot {
	return &Bot{
		appID:           appID,
		appPassword:     appPassword,
		tenantID:        tenantID,
		openIDConfigURL: "https://login.botframework.com/v1/.well-known/openidconfiguration",
		rateLimit:       10,
	}
}

// NewFlexForTest creates a Flex config for testing purposes
func NewFlexForTest(clientID, refreshToken string) *Flex {
	return &Flex{
		baseURL:      "https://openapi.flex.team/v2",
		tokenURL:     defaultFlexTokenURL,
		clientID:     clientID,
		refreshToken: refreshToken,
		rateLimit:    5,
		concurrency:  4,
	}
}

// NewGraphForTest creates a Graph config for testing purposes
func NewGraphForTest(tenantID, clientID, clientSecret, sender string, hrEmails []string) *Graph {
	return &Graph{
		tenantID:     tenantID,
		clientID:     clientID,
		clientSecret: clientSecret,
		sender:       sender,
		hrEmails:     hrEmails,
	}
}

// WithTeamCalendarForTest sets the team calendar owner
func (x *Graph) WithTeamCalendarForTest(upn string) *Graph {
	x.teamCalendar = upn
	return x
}

// NewScheduleForTest creates a Schedule config for testing purposes
func NewScheduleForTest(timezone, scheduleFile string) *Schedule {
	return &Schedule{
		timezone:            timezone,
		scheduleFile:        scheduleFile,
		dispatchConcurrency: 4,
	}
}

// NewLoggerForTest creates a Logger config for testing purposes
func NewLoggerForTest(level, format, output string) *Logger {
	return &Logger{
		level:  level,
		format: format,
		output: output,
	}
}

// NewRepositoryForTest creates a Repository config for testing purposes
func NewRepositoryForTest(backend, projectID string) *Repository {
	return &Repository{
		backend:    backend,
		projectID:  projectID,
		databaseID: "(default)",
	}
}

// NewAlertForTest creates an Alert config for testing purposes
func NewAlertForTest(slackWebhookURL string) *Alert {
	return &Alert{
		slackWebhookURL: slackWebhookURL,
		sentryEnv:       "test",
	}
}

var (
	BotFrameworkScope    = botFrameworkScope
	BotFrameworkTokenURL = botFrameworkTokenURL
	DefaultFlexTokenURL  = defaultFlexTokenURL
)
