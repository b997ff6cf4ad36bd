package archive

import (
	"context"
	"fmt"
	"path"
	"time"

	"cloud.google.com/go/storage"
	"github.com/itmoou/attendbot/pkg/domain/interfaces"
	"github.com/itmoou/attendbot/pkg/domain/types"
	"github.com/itmoou/attendbot/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// GCS stores report files in a Cloud Storage bucket.
type GCS struct {
	client *storage.Client
	bucket string
	prefix string
}

var _ interfaces.Archiver = &GCS{}

type Option func(*GCS)

// WithPrefix puts every object under prefix.
func WithPrefix(prefix string) Option {
	return func(g *GCS) {
		g.prefix = prefix
	}
}

func New(ctx context.Context, bucket string, opts ...Option) (*GCS, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create storage client", goerr.V("bucket", bucket))
	}

	g := &GCS{client: client, bucket: bucket}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

func (g *GCS) Put(ctx context.Context, name, contentType string, data []byte) error {
	objectName := path.Join(g.prefix, name)
	w := g.client.Bucket(g.bucket).Object(objectName).NewWriter(ctx)
	w.ContentType = contentType

	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return goerr.Wrap(err, "failed to write report object",
			goerr.V("bucket", g.bucket),
			goerr.V("object", objectName))
	}
	if err := w.Close(); err != nil {
		return goerr.Wrap(err, "failed to finalize report object",
			goerr.V("bucket", g.bucket),
			goerr.V("object", objectName))
	}

	logging.From(ctx).Info("report archived", "bucket", g.bucket, "object", objectName, "size", len(data))
	return nil
}

func (g *GCS) Close() error {
	return g.client.Close()
}

// DailyReportName is the object name of the daily HR report for date.
func DailyReportName(date types.Date) string {
	return "reports/daily/" + date.String() + ".html"
}

// WeeklyReportName is the object name of the weekly report of the ISO week containing date.
func WeeklyReportName(date types.Date) string {
	year, week := date.Time(time.UTC).ISOWeek()
	return fmt.Sprintf("reports/weekly/%d-W%02d.html", year, week)
}
