// Package notify is the fire-and-forget push channel between background
// workers and connected clients. Events go through redis pub/sub on a
// per-project channel; delivery is at-most-once and clients fall back to
// polling status endpoints.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

type Event struct {
	ProjectID uuid.UUID              `json:"project_id"`
	Event     string                 `json:"event"`
	Payload   map[string]interface{} `json:"payload,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

type Publisher struct {
	client *redis.Client
}

func New(redisURL string) (*Publisher, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Publisher{client: client}, nil
}

// NewWithClient wraps an existing client. Used by tests with miniredis.
func NewWithClient(client *redis.Client) *Publisher {
	return &Publisher{client: client}
}

func projectChannel(projectID uuid.UUID) string {
	return "memoryreel:project:" + projectID.String()
}

// Publish sends an event to the project's channel. Errors are logged, never
// returned; no publisher call site has anything useful to do with them.
func (p *Publisher) Publish(ctx context.Context, projectID uuid.UUID, event string, payload map[string]interface{}) {
	msg := Event{
		ProjectID: projectID,
		Event:     event,
		Payload:   payload,
		CreatedAt: time.Now().UTC(),
	}

	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Notify] Failed to marshal event %s: %v", event, err)
		return
	}

	if err := p.client.Publish(ctx, projectChannel(projectID), data).Err(); err != nil {
		log.Printf("[Notify] Failed to publish event %s for project %s: %v", event, projectID, err)
	}
}

// Subscribe opens a pub/sub subscription to the project's channel. The caller
// owns the returned subscription and must Close it.
func (p *Publisher) Subscribe(ctx context.Context, projectID uuid.UUID) *redis.PubSub {
	return p.client.Subscribe(ctx, projectChannel(projectID))
}

func (p *Publisher) Close() error {
	return p.client.Close()
}
