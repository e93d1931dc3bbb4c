// Package notify delivers composite insights to Slack.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/serigela/lifeloop/internal/bus"
)

// Poster is the Slack surface the notifier needs. *slack.Client
// satisfies it.
type Poster interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slack.MsgOption) (string, string, error)
}

// Config holds notifier settings.
type Config struct {
	Token   string `json:"token" envconfig:"TOKEN"`
	Channel string `json:"channel" envconfig:"CHANNEL"`
}

// Notifier subscribes to the insights topic and posts each insight to a
// Slack channel. Delivery is best-effort; a failed post is logged.
type Notifier struct {
	cfg    Config
	bus    *bus.Bus
	poster Poster
	sub    *bus.Subscription
	cancel context.CancelFunc
}

// New creates a Notifier backed by the Slack web API.
func New(cfg Config, b *bus.Bus) *Notifier {
	return &Notifier{cfg: cfg, bus: b, poster: slack.New(cfg.Token)}
}

// NewWithPoster creates a Notifier with an injected Slack client.
func NewWithPoster(cfg Config, b *bus.Bus, p Poster) *Notifier {
	return &Notifier{cfg: cfg, bus: b, poster: p}
}

// Start subscribes the notifier to the insights topic.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	n.sub = n.bus.Subscribe("slack-notify", func(msg bus.Message) error {
		if msg.Insight == nil {
			return nil
		}
		return n.post(ctx, msg.Insight)
	}, bus.TopicInsights)
	slog.Info("Slack notifier started", "channel", n.cfg.Channel)
}

// Stop unsubscribes from the bus.
func (n *Notifier) Stop() {
	if n.cancel != nil {
		n.cancel()
	}
	if n.sub != nil {
		n.bus.Unsubscribe(n.sub)
		n.sub = nil
	}
}

func (n *Notifier) post(ctx context.Context, in *bus.Insight) error {
	_, _, err := n.poster.PostMessageContext(ctx, n.cfg.Channel,
		slack.MsgOptionText(FormatInsight(in), false))
	if err != nil {
		slog.Warn("Slack notifier: post failed", "channel", n.cfg.Channel, "error", err)
	}
	return err
}

// FormatInsight renders an insight as a Slack message.
func FormatInsight(in *bus.Insight) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "*Insight for %s*\n", in.Window.Format("2006-01-02 15:04"))
	sb.WriteString(in.Summary)
	if in.Partial {
		fmt.Fprintf(&sb, "\n_Partial: no data from %s_", strings.Join(in.Missing, ", "))
	}
	for _, rec := range in.Recommendations {
		fmt.Fprintf(&sb, "\n• %s", rec)
	}
	return sb.String()
}
