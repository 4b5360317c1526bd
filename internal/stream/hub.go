package stream

import (
	"context"
	"encoding/json"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const channelPrefix = "stream:"

// Event is what websocket subscribers of a topic receive.
type Event struct {
	Type    string    `json:"type"`
	Topic   string    `json:"topic"`
	ActorID string    `json:"actor_id"`
	Count   int       `json:"count"`
	At      time.Time `json:"at"`
}

const (
	EventPostLiked    = "post.liked"
	EventPostUnliked  = "post.unliked"
	EventUserFollowed = "user.followed"
)

// Publisher is the side of the hub the domain services use.
type Publisher interface {
	Publish(topic string, ev Event)
}

func PostTopic(postID string) string { return "posts:" + postID }

func UserTopic(userID string) string { return "users:" + userID }

type Hub struct {
	redis   *redis.Client
	clients map[string]map[*Client]struct{}
	mu      sync.RWMutex
}

type Client struct {
	Topic string
	Send  chan []byte
}

// NewHub fans events out to local clients. With a redis client every
// broadcast goes through redis pub/sub so all API instances see it; if the
// subscription cannot be established the hub stays local.
func NewHub(redisClient *redis.Client) *Hub {
	h := &Hub{
		clients: map[string]map[*Client]struct{}{},
	}

	if redisClient != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		pubsub := redisClient.PSubscribe(ctx, channelPrefix+"*")
		if _, err := pubsub.Receive(ctx); err != nil {
			log.Printf("redis subscribe failed, stream hub is local only: %v", err)
			_ = pubsub.Close()
			return h
		}
		h.redis = redisClient
		go h.forward(pubsub)
	}
	return h
}

func (h *Hub) Register(topic string) *Client {
	client := &Client{
		Topic: topic,
		Send:  make(chan []byte, 64),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[topic] == nil {
		h.clients[topic] = map[*Client]struct{}{}
	}
	h.clients[topic][client] = struct{}{}
	return client
}

func (h *Hub) Unregister(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if topicClients, ok := h.clients[client.Topic]; ok {
		delete(topicClients, client)
		if len(topicClients) == 0 {
			delete(h.clients, client.Topic)
		}
	}
	close(client.Send)
}

// Publish encodes ev and broadcasts it on topic.
func (h *Hub) Publish(topic string, ev Event) {
	ev.Topic = topic
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		log.Printf("stream event encode error: %v", err)
		return
	}
	h.Broadcast(topic, payload)
}

func (h *Hub) Broadcast(topic string, payload []byte) {
	if h.redis != nil {
		err := h.redis.Publish(context.Background(), redisChannel(topic), payload).Err()
		if err == nil {
			return
		}
		log.Printf("redis publish error: %v", err)
	}
	h.deliver(topic, payload)
}

func (h *Hub) deliver(topic string, payload []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	// Slow clients drop messages instead of blocking the publisher.
	for client := range h.clients[topic] {
		select {
		case client.Send <- payload:
		default:
		}
	}
}

func (h *Hub) forward(pubsub *redis.PubSub) {
	defer pubsub.Close()
	for msg := range pubsub.Channel() {
		topic := topicFromChannel(msg.Channel)
		if topic == "" {
			continue
		}
		h.deliver(topic, []byte(msg.Payload))
	}
}

func redisChannel(topic string) string {
	return channelPrefix + topic
}

func topicFromChannel(ch string) string {
	if !strings.HasPrefix(ch, channelPrefix) {
		return ""
	}
	return ch[len(channelPrefix):]
}
