package safe

import (
	"context"
	"io"
	"log/slog"

	"github.com/itmoou/attendbot/pkg/utils/logging"
)

// maxDrain bounds how much of an unread response body is discarded before close.
const maxDrain = 64 << 10

// Close closes closer and logs any error. A nil closer is ignored.
func Close(ctx context.Context, closer io.Closer) {
	if closer == nil {
		return
	}
	if err := closer.Close(); err != nil {
		logging.From(ctx).Error("Failed to close", slog.Any("error", err))
	}
}

// DrainClose discards what is left of an HTTP response body so the
// connection can be reused, then closes it.
func DrainClose(ctx context.Context, rc io.ReadCloser) {
	if rc == nil {
		return
	}
	if _, err := io.CopyN(io.Discard, rc, maxDrain); err != nil && err != io.EOF {
		logging.From(ctx).Debug("Failed to drain body", slog.Any("error", err))
	}
	Close(ctx, rc)
}
