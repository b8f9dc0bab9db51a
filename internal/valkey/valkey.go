package valkey

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/hostpulse/hostpulse/internal/config"
)

type Client struct {
	client valkey.Client
}

func New(cfg *config.Config) (*Client, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress: []string{cfg.GetValkeyAddress()},
		Password:    cfg.ValkeyPassword,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create valkey client: %w", err)
	}

	// Test connection
	ctx := context.Background()
	pong := client.Do(ctx, client.B().Ping().Build())
	if err := pong.Error(); err != nil {
		return nil, fmt.Errorf("failed to ping valkey: %w", err)
	}

	log.Println("Connected to Valkey successfully")

	return &Client{client: client}, nil
}

func (c *Client) Ping(ctx context.Context) error {
	return c.client.Do(ctx, c.client.B().Ping().Build()).Error()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	cmd := c.client.Do(ctx, c.client.B().Get().Key(key).Build())
	if err := cmd.Error(); err != nil {
		return "", err
	}
	return cmd.ToString()
}

func (c *Client) Set(ctx context.Context, key, value string) error {
	cmd := c.client.Do(ctx, c.client.B().Set().Key(key).Value(value).Build())
	return cmd.Error()
}

func (c *Client) SetEx(ctx context.Context, key, value string, ttl time.Duration) error {
	cmd := c.client.Do(ctx, c.client.B().Set().Key(key).Value(value).Ex(ttl).Build())
	return cmd.Error()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	cmd := c.client.Do(ctx, c.client.B().Del().Key(keys...).Build())
	return cmd.Error()
}

// XAdd appends an entry to a stream and returns the assigned message ID.
func (c *Client) XAdd(ctx context.Context, stream string, fields map[string]string) (string, error) {
	builder := c.client.B().Xadd().Key(stream).Id("*").FieldValue()
	for k, v := range fields {
		builder = builder.FieldValue(k, v)
	}

	result := c.client.Do(ctx, builder.Build())
	if err := result.Error(); err != nil {
		return "", fmt.Errorf("failed to append to stream %s: %w", stream, err)
	}
	return result.ToString()
}

// XRange reads up to count entries from the start of a stream.
func (c *Client) XRange(ctx context.Context, stream string, count int64) ([]StreamMessage, error) {
	cmd := c.client.B().Xrange().Key(stream).Start("-").End("+").Count(count).Build()
	result := c.client.Do(ctx, cmd)

	if err := result.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return []StreamMessage{}, nil
		}
		return nil, fmt.Errorf("failed to read stream %s: %w", stream, err)
	}

	entries, err := result.AsXRange()
	if err != nil {
		return nil, fmt.Errorf("failed to parse stream entries: %w", err)
	}

	messages := make([]StreamMessage, len(entries))
	for i, entry := range entries {
		messages[i] = StreamMessage{
			ID:     entry.ID,
			Fields: entry.FieldValues,
		}
	}
	return messages, nil
}

// StreamMessage is one entry read back from a stream.
type StreamMessage struct {
	ID     string            `json:"id"`
	Fields map[string]string `json:"fields"`
}

func (c *Client) Close() {
	c.client.Close()
}
