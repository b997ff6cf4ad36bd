package config

import (
	"context"
	"log/slog"

	"github.com/itmoou/attendbot/pkg/service/archive"
	"github.com/urfave/cli/v3"
)

// Archive configures where rendered reports are stored.
type Archive struct {
	bucket string
	prefix string
}

func (x *Archive) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "archive-bucket",
			Usage:       "Cloud Storage bucket for report archives. Archiving is disabled when empty",
			Category:    "Archive",
			Destination: &x.bucket,
			Sources:     cli.EnvVars("ATTENDBOT_ARCHIVE_BUCKET"),
		},
		&cli.StringFlag{
			Name:        "archive-prefix",
			Usage:       "Object name prefix for report archives",
			Category:    "Archive",
			Value:       "reports",
			Destination: &x.prefix,
			Sources:     cli.EnvVars("ATTENDBOT_ARCHIVE_PREFIX"),
		},
	}
}

func (x Archive) LogValue() slog.Value {
	return slog.GroupValue(
		slog.String("bucket", x.bucket),
		slog.String("prefix", x.prefix),
	)
}

// Configure returns nil when no bucket is set.
func (x *Archive) Configure(ctx context.Context) (*archive.GCS, error) {
	if x.bucket == "" {
		return nil, nil
	}
	return archive.New(ctx, x.bucket, archive.WithPrefix(x.prefix))
}
