// Package settingsbus drops cached model clients when account settings change.
//
// Publishers send the account id on the channel; "*" invalidates every account.
package settingsbus

import (
	"context"
	"log"
	"strings"

	"github.com/redis/go-redis/v9"
)

const allAccounts = "*"

type Evictor interface {
	Evict(accountID string)
	EvictAll()
}

type Listener struct {
	rdb     *redis.Client
	channel string
	evictor Evictor
}

func NewListener(rdb *redis.Client, channel string, evictor Evictor) *Listener {
	return &Listener{rdb: rdb, channel: channel, evictor: evictor}
}

// Run blocks until ctx is done or the subscription fails.
func (l *Listener) Run(ctx context.Context) error {
	sub := l.rdb.Subscribe(ctx, l.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return err
	}
	log.Printf("[bus] subscribed to %s", l.channel)

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			l.handle(msg.Payload)
		}
	}
}

func (l *Listener) handle(payload string) {
	accountID := strings.TrimSpace(payload)
	switch accountID {
	case "":
		log.Printf("[bus] empty payload on %s ignored", l.channel)
	case allAccounts:
		l.evictor.EvictAll()
	default:
		l.evictor.Evict(accountID)
	}
}
