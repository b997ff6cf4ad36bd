package config_test

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/itmoou/attendbot/pkg/cli/config"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/service/alert"
	"github.com/itmoou/attendbot/pkg/service/token"
	"github.com/itmoou/attendbot/pkg/service/worker"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/gt"
)

func TestBotCredential(t *testing.T) {
	t.Run("multi tenant uses the botframework.com token endpoint", func(t *testing.T) {
		cred := config.NewBotForTest("app", "pw", "").Credential()
		gt.Value(t, cred.Set).Equal(types.CredentialBot)
		gt.Value(t, cred.Grant).Equal(token.GrantClientCredentials)
		gt.Value(t, cred.TokenURL).Equal(config.BotFrameworkTokenURL)
		gt.Value(t, cred.Scope).Equal(config.BotFrameworkScope)
		gt.Value(t, cred.ClientID).Equal("app")
		gt.Value(t, cred.ClientSecret).Equal("pw")
	})

	t.Run("single tenant uses the tenant token endpoint", func(t *testing.T) {
		cred := config.NewBotForTest("app", "pw", "tenant-1").Credential()
		gt.Value(t, cred.TokenURL).Equal("https://login.microsoftonline.com/tenant-1/oauth2/v2.0/token")
	})
}

func TestBotConfigure(t *testing.T) {
	t.Run("requires credentials", func(t *testing.T) {
		_, err := config.NewBotForTest("", "", "").Configure(nil)
		gt.Bool(t, errors.Is(err, config.ErrMissingSetting)).True()
	})

	t.Run("verifier requires app id", func(t *testing.T) {
		_, err := config.NewBotForTest("", "", "").Verifier()
		gt.Bool(t, errors.Is(err, config.ErrMissingSetting)).True()
	})

	t.Run("configured", func(t *testing.T) {
		bot := config.NewBotForTest("app", "pw", "")
		client, err := bot.Configure(nil)
		gt.NoError(t, err).Required()
		gt.Value(t, client).NotNil()

		verifier, err := bot.Verifier()
		gt.NoError(t, err).Required()
		gt.Value(t, verifier).NotNil()
	})
}

func TestFlexCredential(t *testing.T) {
	cred := config.NewFlexForTest("open-api", "rt-initial").Credential()
	gt.Value(t, cred.Set).Equal(types.CredentialFlex)
	gt.Value(t, cred.Grant).Equal(token.GrantRefreshToken)
	gt.Value(t, cred.TokenURL).Equal(config.DefaultFlexTokenURL)
	gt.Value(t, cred.ClientID).Equal("open-api")
	gt.Value(t, cred.StaticRefreshToken).Equal("rt-initial")
}

func TestFlexLogValueHidesSecrets(t *testing.T) {
	v := config.NewFlexForTest("open-api", "super-secret-refresh-token").LogValue()
	gt.String(t, v.String()).NotContains("super-secret-refresh-token")
}

func TestGraph(t *testing.T) {
	t.Run("splits and trims hr emails", func(t *testing.T) {
		g := config.NewGraphForTest("", "", "", "", []string{"a@example.com, b@example.com", " ", "c@example.com"})
		gt.Value(t, g.HREmails()).Equal([]string{"a@example.com", "b@example.com", "c@example.com"})
	})

	t.Run("team calendar defaults to first hr email", func(t *testing.T) {
		g := config.NewGraphForTest("", "", "", "", []string{"hr@example.com,lead@example.com"})
		gt.Value(t, g.TeamCalendar()).Equal("hr@example.com")

		g.WithTeamCalendarForTest(" team@example.com ")
		gt.Value(t, g.TeamCalendar()).Equal("team@example.com")

		gt.Value(t, config.NewGraphForTest("", "", "", "", nil).TeamCalendar()).Equal("")
	})

	t.Run("unconfigured returns nil client", func(t *testing.T) {
		client, err := config.NewGraphForTest("", "", "", "", nil).Configure()
		gt.NoError(t, err).Required()
		gt.Bool(t, client == nil).True()
	})

	t.Run("sender is required", func(t *testing.T) {
		_, err := config.NewGraphForTest("tenant", "client", "secret", "", nil).Configure()
		gt.Bool(t, errors.Is(err, config.ErrMissingSetting)).True()
	})
}

func TestScheduleLocation(t *testing.T) {
	loc, err := config.NewScheduleForTest("Asia/Seoul", "").Location()
	gt.NoError(t, err).Required()
	gt.Value(t, loc.String()).Equal("Asia/Seoul")

	_, err = config.NewScheduleForTest("Mars/Olympus", "").Location()
	gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
}

func TestScheduleApply(t *testing.T) {
	noop := func(ctx context.Context) error { return nil }
	jobs := []worker.Job{
		{Name: "check_in_first", Spec: worker.Spec{Hour: 11, Minute: 5}, Run: noop},
		{Name: "daily_report", Spec: worker.Spec{Hour: 9}, Run: noop},
	}

	t.Run("no file keeps defaults", func(t *testing.T) {
		got, err := config.NewScheduleForTest("UTC", "").Apply(jobs)
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(2)
	})

	t.Run("file overrides and disables", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "schedule.toml")
		raw := `
[jobs.check_in_first]
time = "10:45"

[jobs.daily_report]
disabled = true
`
		gt.NoError(t, os.WriteFile(path, []byte(raw), 0o600)).Required()

		got, err := config.NewScheduleForTest("UTC", path).Apply(jobs)
		gt.NoError(t, err).Required()
		gt.Array(t, got).Length(1).Required()
		gt.Value(t, got[0].Spec.Hour).Equal(10)
		gt.Value(t, got[0].Spec.Minute).Equal(45)
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := config.NewScheduleForTest("UTC", filepath.Join(t.TempDir(), "nope.toml")).Apply(jobs)
		gt.Error(t, err)
	})
}

func TestLoggerConfigure(t *testing.T) {
	orig := logging.Default()
	t.Cleanup(func() { logging.SetDefault(orig) })

	t.Run("json to file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "app.log")
		closer, err := config.NewLoggerForTest("debug", "json", path).Configure()
		gt.NoError(t, err).Required()

		logging.Default().Info("hello", "credential", token.Credential{
			Set:          types.CredentialBot,
			ClientSecret: "abcdef-secret",
		})
		closer()

		raw, err := os.ReadFile(path)
		gt.NoError(t, err).Required()
		gt.String(t, string(raw)).Contains("hello")
		gt.String(t, string(raw)).NotContains("abcdef-secret")
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := config.NewLoggerForTest("loud", "console", "stdout").Configure()
		gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
	})

	t.Run("invalid format", func(t *testing.T) {
		_, err := config.NewLoggerForTest("info", "xml", "stdout").Configure()
		gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
	})

	t.Run("log value", func(t *testing.T) {
		v := config.NewLoggerForTest("info", "console", "stdout").LogValue()
		gt.Value(t, v.Kind()).Equal(slog.KindGroup)
	})
}

func TestRepositoryConfigure(t *testing.T) {
	ctx := context.Background()

	t.Run("memory", func(t *testing.T) {
		repo, err := config.NewRepositoryForTest("memory", "").Configure(ctx)
		gt.NoError(t, err).Required()
		gt.Value(t, repo).NotNil()
		gt.NoError(t, repo.Close())
	})

	t.Run("firestore requires project id", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("firestore", "").Configure(ctx)
		gt.Bool(t, errors.Is(err, config.ErrMissingSetting)).True()
	})

	t.Run("unknown backend", func(t *testing.T) {
		_, err := config.NewRepositoryForTest("postgres", "").Configure(ctx)
		gt.Bool(t, errors.Is(err, config.ErrInvalidConfig)).True()
	})
}

func TestAlerter(t *testing.T) {
	_, isNop := config.NewAlertForTest("").Alerter("test").(alert.Nop)
	gt.Bool(t, isNop).True()

	_, isSlack := config.NewAlertForTest("https://hooks.slack.com/services/x").Alerter("test").(*alert.Slack)
	gt.Bool(t, isSlack).True()

	flush, err := config.NewAlertForTest("").ConfigureSentry("dev")
	gt.NoError(t, err).Required()
	flush()
}

