// Package source defines the adapter capability for pulling candidate items
// out of external systems, with one variant per origin kind: RSS feeds
// (subreddits, forums) and Telegram chats.
package source

import (
	"context"
	"time"

	"monitorbot/internal/domain"
)

// Source retrieves candidate items from one external system. Fetch filters by
// the lookback window itself; callers do not re-filter. Individual item parse
// failures and single-feed failures are logged inside Fetch, never propagated.
type Source interface {
	Name() string
	Fetch(ctx context.Context, lookback time.Duration) ([]domain.Item, error)
	Connect(ctx context.Context) error
	Disconnect() error
}
