package services

import (
	"context"
	"log"

	"github.com/redis/go-redis/v9"
)

// Notifier publishes row-change nudges over Redis pub/sub so waiting sessions
// can react immediately instead of waiting out a full poll interval. Polling
// stays in place as the fallback; every nudge path also works with a nil
// Notifier (subscriptions become nil channels that never fire).
type Notifier struct {
	rdb *redis.Client
}

func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

func matchFoundChannel(userID string) string { return "match.found." + userID }

func matchUpdatedChannel(matchID string) string { return "match.updated." + matchID }

// PublishMatchFound tells userID's search session that a match record naming
// them now exists. Best effort: a publish failure is logged, the poll loop
// still picks the match up.
func (n *Notifier) PublishMatchFound(ctx context.Context, userID, matchID string) {
	if n == nil || n.rdb == nil {
		return
	}
	if err := n.rdb.Publish(ctx, matchFoundChannel(userID), matchID).Err(); err != nil {
		log.Printf("[NOTIFIER] publish match.found for %s failed: %v", userID, err)
	}
}

// PublishMatchUpdated tells confirmation sessions on matchID to re-read the row.
func (n *Notifier) PublishMatchUpdated(ctx context.Context, matchID string) {
	if n == nil || n.rdb == nil {
		return
	}
	if err := n.rdb.Publish(ctx, matchUpdatedChannel(matchID), "updated").Err(); err != nil {
		log.Printf("[NOTIFIER] publish match.updated for %s failed: %v", matchID, err)
	}
}

// SubscribeMatchFound returns a channel that fires when a match is created for
// userID, plus a close func. Returns a nil channel when the notifier is absent.
func (n *Notifier) SubscribeMatchFound(ctx context.Context, userID string) (<-chan *redis.Message, func()) {
	if n == nil || n.rdb == nil {
		return nil, func() {}
	}
	sub := n.rdb.Subscribe(ctx, matchFoundChannel(userID))
	return sub.Channel(), func() { _ = sub.Close() }
}

// SubscribeMatchUpdated returns a channel that fires on confirmation-field
// writes to matchID.
func (n *Notifier) SubscribeMatchUpdated(ctx context.Context, matchID string) (<-chan *redis.Message, func()) {
	if n == nil || n.rdb == nil {
		return nil, func() {}
	}
	sub := n.rdb.Subscribe(ctx, matchUpdatedChannel(matchID))
	return sub.Channel(), func() { _ = sub.Close() }
}
