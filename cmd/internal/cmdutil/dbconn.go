package cmdutil

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/tablevet/tablevet/dbconn"
	"github.com/tablevet/tablevet/retry"
)

// ConnectSource dials the source database, retrying transient dial
// failures with exponential backoff before giving up.
func ConnectSource(ctx context.Context, logger zerolog.Logger, connStr string) (dbconn.Conn, error) {
	r, err := retry.NewRetry(retry.Settings{
		InitialBackoff: 500 * time.Millisecond,
		Multiplier:     2,
		MaxBackoff:     5 * time.Second,
		MaxRetries:     4,
	})
	if err != nil {
		return nil, err
	}
	var conn dbconn.Conn
	if err := r.Do(ctx, logger, "connecting to source", func(ctx context.Context) error {
		var err error
		conn, err = dbconn.Connect(ctx, "source", connStr)
		return err
	}); err != nil {
		return nil, err
	}
	return conn, nil
}
