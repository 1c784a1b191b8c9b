package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"sales-nlu/internal/retry"
)

const (
	connectAttempts = 5
	connectBackoff  = 250 * time.Millisecond
)

// Connect dials url, retrying while the server comes up.
func Connect(ctx context.Context, log *slog.Logger, url string) (*nats.Conn, error) {
	var nc *nats.Conn
	err := retry.Do(ctx, connectAttempts, connectBackoff, func() error {
		var err error
		nc, err = nats.Connect(url,
			nats.Name("sales-nlu"),
			nats.MaxReconnects(-1),
			nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
				if err != nil {
					log.Warn("nats disconnected", "err", err)
				}
			}),
			nats.ReconnectHandler(func(c *nats.Conn) {
				log.Info("nats reconnected", "url", c.ConnectedUrl())
			}),
		)
		return err
	}, func(attempt int, wait time.Duration, err error) {
		log.Warn("nats not ready, retrying", "attempt", attempt, "wait", wait, "err", err)
	})
	if err != nil {
		return nil, fmt.Errorf("connect to NATS: %w", err)
	}
	return nc, nil
}

// NewNATS constructs a responder that load-balances requests across the
// members of group.
func NewNATS(log *slog.Logger, nc *nats.Conn, group string) Responder {
	return &natsResponder{log: log, nc: nc, group: group}
}

type natsResponder struct {
	log   *slog.Logger
	nc    *nats.Conn
	group string
}

func (r *natsResponder) Serve(ctx context.Context, handlers map[string]Handler) error {
	subs := make([]*nats.Subscription, 0, len(handlers))
	defer func() {
		for _, sub := range subs {
			if err := sub.Drain(); err != nil {
				r.log.Warn("failed to drain subscription", "subject", sub.Subject, "err", err)
			}
		}
	}()
	for subject, h := range handlers {
		sub, err := r.nc.QueueSubscribe(subject, r.group, func(msg *nats.Msg) {
			r.handleMessage(ctx, msg, h)
		})
		if err != nil {
			return fmt.Errorf("subscribe %s: %w", subject, err)
		}
		subs = append(subs, sub)
	}
	r.log.Info("nats responder ready", "subjects", len(subs), "group", r.group)
	<-ctx.Done()
	return nil
}

func (r *natsResponder) handleMessage(ctx context.Context, msg *nats.Msg, h Handler) {
	if msg.Reply == "" {
		r.log.Warn("dropping request without reply subject", "subject", msg.Subject)
		return
	}
	if err := msg.Respond(Reply(ctx, h, msg.Data)); err != nil {
		r.log.Error("failed to send reply", "subject", msg.Subject, "err", err)
	}
}

// Request sends payload to subject and decodes the reply into out.
func Request(ctx context.Context, nc *nats.Conn, subject string, payload []byte, out any) error {
	msg, err := nc.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	return Decode(msg.Data, out)
}
