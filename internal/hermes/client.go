package hermes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

type Client struct {
	conn   *nats.Conn
	subs   []*nats.Subscription
	logger *slog.Logger
}

func NewClient(ctx context.Context, url, token string, logger *slog.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name("casenote"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}
	if token != "" {
		opts = append(opts, nats.Token(token))
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Client{conn: nc, logger: logger}, nil
}

func (c *Client) Publish(subject string, data any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}
	return c.conn.Publish(subject, payload)
}

func (c *Client) Subscribe(subject string, handler func(subject string, data []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("subscribed", "subject", subject)
	return nil
}

// Reply subscribes a request handler. The value it returns is marshalled
// and sent back to the requester; on error the reply is {"error": "..."}.
func (c *Client) Reply(subject string, handler func(data []byte) (any, error)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		resp, err := handler(msg.Data)
		if err != nil {
			resp = ErrorReply{Error: err.Error()}
		}
		payload, err := json.Marshal(resp)
		if err != nil {
			c.logger.Error("marshal reply", "subject", subject, "error", err)
			return
		}
		if err := msg.Respond(payload); err != nil {
			c.logger.Warn("respond failed", "subject", subject, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("reply %s: %w", subject, err)
	}
	c.subs = append(c.subs, sub)
	c.logger.Info("serving requests", "subject", subject)
	return nil
}

// Request sends data and decodes the reply into out. The context bounds
// how long to wait.
func (c *Client) Request(ctx context.Context, subject string, data, out any) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	msg, err := c.conn.RequestWithContext(ctx, subject, payload)
	if err != nil {
		return fmt.Errorf("request %s: %w", subject, err)
	}
	var er ErrorReply
	if json.Unmarshal(msg.Data, &er) == nil && er.Error != "" {
		return fmt.Errorf("request %s: remote error: %s", subject, er.Error)
	}
	if err := json.Unmarshal(msg.Data, out); err != nil {
		return fmt.Errorf("decode reply from %s: %w", subject, err)
	}
	return nil
}

func (c *Client) Close() {
	for _, sub := range c.subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
