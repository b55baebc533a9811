package notify

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	redisclient "github.com/argusai/pairing-server-go/internal/redis"
)

const (
	HeartbeatInterval = 30 * time.Second

	EventPairingRequested = "pairing_requested"
	EventPairingComplete  = "pairing_complete"
)

type Event struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// PairingSummary is what an authenticated session sees when a device asks to
// pair. CodeHint carries at most the last four digits; the full code never
// travels through the notification channel.
type PairingSummary struct {
	DeviceName string `json:"deviceName,omitempty"`
	Platform   string `json:"platform"`
	CodeHint   string `json:"codeHint"`
	ExpiresIn  int    `json:"expiresIn"`
}

type Client struct {
	UserID string
	Events chan Event
	Done   chan struct{}
}

// Broker bridges anonymous pairing requests to authenticated sessions. It
// fans events out over Redis pub/sub so confirmation prompts reach sessions
// connected to any service instance.
type Broker struct {
	redis   *redisclient.Client
	clients map[string]map[*Client]bool // userID -> set of clients
	mu      sync.RWMutex
	ctx     context.Context
	cancel  context.CancelFunc
}

func NewBroker(redisClient *redisclient.Client) *Broker {
	ctx, cancel := context.WithCancel(context.Background())
	return &Broker{
		redis:   redisClient,
		clients: make(map[string]map[*Client]bool),
		ctx:     ctx,
		cancel:  cancel,
	}
}

func (b *Broker) Subscribe(userID string) *Client {
	client := &Client{
		UserID: userID,
		Events: make(chan Event, 100),
		Done:   make(chan struct{}),
	}

	b.mu.Lock()
	if b.clients[userID] == nil {
		b.clients[userID] = make(map[*Client]bool)
		go b.subscribeToRedis(userID)
	}
	b.clients[userID][client] = true
	clientCount := len(b.clients[userID])
	b.mu.Unlock()

	log.Info().
		Str("userId", userID).
		Int("clientCount", clientCount).
		Msg("notify client subscribed")

	return client
}

func (b *Broker) Unsubscribe(client *Client) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if clients, ok := b.clients[client.UserID]; ok {
		delete(clients, client)
		close(client.Done)

		if len(clients) == 0 {
			delete(b.clients, client.UserID)
		}

		log.Info().
			Str("userId", client.UserID).
			Int("clientCount", len(clients)).
			Msg("notify client unsubscribed")
	}
}

// PublishPairingRequested delivers a pairing prompt to the user's sessions.
// Callers treat this as fire-and-forget; a lost prompt only means the user
// types the code unprompted.
func (b *Broker) PublishPairingRequested(ctx context.Context, userID string, summary PairingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return b.publish(ctx, userID, Event{Type: EventPairingRequested, Data: data})
}

// PublishPairingComplete tells the user's sessions that an exchange finished.
func (b *Broker) PublishPairingComplete(ctx context.Context, userID string, summary PairingSummary) error {
	data, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return b.publish(ctx, userID, Event{Type: EventPairingComplete, Data: data})
}

func (b *Broker) publish(ctx context.Context, userID string, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return b.redis.Publish(ctx, redisclient.UserChannel(userID), data).Err()
}

func (b *Broker) subscribeToRedis(userID string) {
	channel := redisclient.UserChannel(userID)
	pubsub := b.redis.Subscribe(b.ctx, channel)
	defer pubsub.Close()

	log.Debug().
		Str("userId", userID).
		Str("channel", channel).
		Msg("redis pubsub subscribed")

	ch := pubsub.Channel()

	for {
		select {
		case <-b.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				log.Error().Err(err).Msg("failed to unmarshal notify event")
				continue
			}

			b.broadcast(userID, event)
		}
	}
}

func (b *Broker) broadcast(userID string, event Event) {
	b.mu.RLock()
	clients := b.clients[userID]
	b.mu.RUnlock()

	for client := range clients {
		select {
		case client.Events <- event:
		default:
			log.Warn().
				Str("userId", userID).
				Msg("client event buffer full, dropping event")
		}
	}
}

func (b *Broker) Close() {
	b.cancel()

	b.mu.Lock()
	defer b.mu.Unlock()

	for _, clients := range b.clients {
		for client := range clients {
			close(client.Done)
		}
	}
	b.clients = make(map[string]map[*Client]bool)
}

func (b *Broker) ClientCount(userID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients[userID])
}
