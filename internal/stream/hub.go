// Package stream fans benchmark progress out to websocket clients. With Redis
// configured every API instance sees every run's messages.
package stream

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/redis/go-redis/v9"
)

const (
	channelPrefix  = "bench:"
	channelSuffix  = ":broadcast"
	channelPattern = channelPrefix + "*" + channelSuffix
)

type Hub struct {
	redis   *redis.Client
	pubsub  *redis.PubSub
	logger  log.Logger
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	RunID string
	Send  chan []byte
}

// NewHub subscribes to the run channels when redisClient is set. If the
// subscription cannot be confirmed the hub only delivers to local clients.
func NewHub(redisClient *redis.Client, logger log.Logger) *Hub {
	if logger == nil {
		logger = log.NewNopLogger()
	}
	h := &Hub{
		redis:   redisClient,
		logger:  logger,
		clients: map[string]map[*Client]struct{}{},
	}
	if redisClient == nil {
		return h
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	ps := redisClient.PSubscribe(ctx, channelPattern)
	if _, err := ps.Receive(ctx); err != nil {
		level.Warn(logger).Log("msg", "redis subscribe failed, delivering locally", "err", err)
		_ = ps.Close()
		return h
	}
	h.pubsub = ps
	go h.forward(ps.Channel())
	return h
}

func (h *Hub) Register(runID string) *Client {
	client := &Client{
		RunID: runID,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[runID] == nil {
		h.clients[runID] = map[*Client]struct{}{}
	}
	h.clients[runID][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if runClients, ok := h.clients[client.RunID]; ok {
		delete(runClients, client)
		if len(runClients) == 0 {
			delete(h.clients, client.RunID)
		}
	}
	close(client.Send)
}

// Broadcast sends payload to every client of runID. Through Redis when
// subscribed, so clients on other instances get it too.
func (h *Hub) Broadcast(runID string, payload []byte) {
	if h.pubsub != nil {
		err := h.redis.Publish(context.Background(), redisChannel(runID), payload).Err()
		if err == nil {
			return
		}
		level.Warn(h.logger).Log("msg", "redis publish failed", "run", runID, "err", err)
	}
	h.deliver(runID, payload)
}

// Close stops the Redis subscription.
func (h *Hub) Close() error {
	if h.pubsub == nil {
		return nil
	}
	return h.pubsub.Close()
}

func (h *Hub) deliver(runID string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients[runID] {
		select {
		case client.Send <- payload:
		default:
			// slow client, drop
		}
	}
}

func (h *Hub) forward(msgs <-chan *redis.Message) {
	for msg := range msgs {
		runID := runIDFromChannel(msg.Channel)
		if runID == "" {
			continue
		}
		h.deliver(runID, []byte(msg.Payload))
	}
}

func redisChannel(runID string) string {
	return channelPrefix + runID + channelSuffix
}

func runIDFromChannel(ch string) string {
	// bench:{run}:broadcast
	if len(ch) <= len(channelPrefix)+len(channelSuffix) ||
		!strings.HasPrefix(ch, channelPrefix) || !strings.HasSuffix(ch, channelSuffix) {
		return ""
	}
	return ch[len(channelPrefix) : len(ch)-len(channelSuffix)]
}
