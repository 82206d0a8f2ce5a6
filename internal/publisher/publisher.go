// Package publisher implements Luminis's four side-effect sinks — Console,
// File, Mastodon, Telegram — behind one Publisher contract, invoked in a
// fixed, deterministic order so cache state evolves predictably across
// partial successes.
package publisher

import (
	"context"

	"luminis/internal/model"
)

// Publisher is a side-effect sink for one rendered post on one channel.
type Publisher interface {
	// Name is the channel name, used for cache bookkeeping and ordering.
	Name() string
	// Publish delivers renderedPost to the channel. A non-nil error is
	// always a *model.PublishError.
	Publish(ctx context.Context, renderedPost string) error
}

func publishErr(channel string, err error) error {
	if err == nil {
		return nil
	}
	return &model.PublishError{Channel: channel, Err: err}
}
