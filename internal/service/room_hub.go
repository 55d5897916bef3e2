package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/observability"
)

const roomSubscriberBuffer = 16

// RoomHub fans room events out to live subscribers on this node and relays them to other nodes.
type RoomHub interface {
	RoomPublisher
	Subscribe(roomID string) *RoomSubscription
	Subscribers(roomID string) int
	Start(ctx context.Context) error
}

// RoomSubscription receives the events of one room until closed.
type RoomSubscription struct {
	RoomID string
	events chan dto.RoomEvent
	hub    *roomHub
	once   sync.Once
}

// Events delivers room events. The channel is closed when the subscription closes.
func (s *RoomSubscription) Events() <-chan dto.RoomEvent {
	return s.events
}

// Close detaches the subscription from the hub.
func (s *RoomSubscription) Close() {
	s.once.Do(func() {
		s.hub.unregister(s)
	})
}

type roomEnvelope struct {
	Source string        `json:"source"`
	Event  dto.RoomEvent `json:"event"`
}

type roomHub struct {
	mu          sync.RWMutex
	rooms       map[string]map[*RoomSubscription]struct{}
	redis       *redis.Client
	redisTopic  string
	nats        *nats.Conn
	natsSubject string
	nodeID      string
	logger      zerolog.Logger
}

// NewRoomHub constructs a hub. Redis and NATS are optional relays.
func NewRoomHub(redisClient *redis.Client, channelBase string, natsConn *nats.Conn, logger zerolog.Logger) RoomHub {
	redisTopic := ""
	natsSubject := ""
	if channelBase != "" {
		redisTopic = channelBase + ":rooms"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".rooms"
	}

	return &roomHub{
		rooms:       make(map[string]map[*RoomSubscription]struct{}),
		redis:       redisClient,
		redisTopic:  redisTopic,
		nats:        natsConn,
		natsSubject: natsSubject,
		nodeID:      uuid.NewString(),
		logger:      logger.With().Str("component", "room_hub").Logger(),
	}
}

// Start attaches the relays. Subscriptions are confirmed before it returns.
func (h *roomHub) Start(ctx context.Context) error {
	if h.redis != nil && h.redisTopic != "" {
		pubsub := h.redis.Subscribe(ctx, h.redisTopic)
		if _, err := pubsub.Receive(ctx); err != nil {
			_ = pubsub.Close()
			return fmt.Errorf("subscribe redis room topic: %w", err)
		}
		go h.consumeRedis(ctx, pubsub)
	}

	if h.nats != nil && h.natsSubject != "" {
		sub, err := h.nats.Subscribe(h.natsSubject, func(msg *nats.Msg) {
			h.handleRelay(msg.Data)
		})
		if err != nil {
			return fmt.Errorf("subscribe nats room subject: %w", err)
		}
		go func() {
			<-ctx.Done()
			if err := sub.Drain(); err != nil {
				h.logger.Warn().Err(err).Msg("failed to drain room nats subscription")
			}
		}()
	}

	return nil
}

func (h *roomHub) Subscribe(roomID string) *RoomSubscription {
	subscription := &RoomSubscription{
		RoomID: roomID,
		events: make(chan dto.RoomEvent, roomSubscriberBuffer),
		hub:    h,
	}

	h.mu.Lock()
	if _, ok := h.rooms[roomID]; !ok {
		h.rooms[roomID] = make(map[*RoomSubscription]struct{})
	}
	h.rooms[roomID][subscription] = struct{}{}
	h.mu.Unlock()

	observability.RoomSubscribers().Inc()
	h.logger.Debug().Str("room_id", roomID).Msg("room subscriber attached")
	return subscription
}

func (h *roomHub) Subscribers(roomID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[roomID])
}

// Publish delivers locally and relays to other nodes. Relay failures are logged only.
func (h *roomHub) Publish(ctx context.Context, event dto.RoomEvent) {
	h.broadcast(event)

	if (h.redis == nil || h.redisTopic == "") && (h.nats == nil || h.natsSubject == "") {
		return
	}

	payload, err := json.Marshal(roomEnvelope{Source: h.nodeID, Event: event})
	if err != nil {
		h.logger.Warn().Err(err).Msg("failed to encode room event")
		return
	}

	if h.redis != nil && h.redisTopic != "" {
		if err := h.redis.Publish(ctx, h.redisTopic, payload).Err(); err != nil {
			h.logger.Warn().Err(err).Str("room_id", event.RoomID).Msg("failed to relay room event over redis")
		}
	}
	if h.nats != nil && h.natsSubject != "" {
		if err := h.nats.Publish(h.natsSubject, payload); err != nil {
			h.logger.Warn().Err(err).Str("room_id", event.RoomID).Msg("failed to relay room event over nats")
		}
	}
}

func (h *roomHub) consumeRedis(ctx context.Context, pubsub *redis.PubSub) {
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, redis.ErrClosed) {
				return
			}
			h.logger.Error().Err(err).Msg("room redis subscription closed")
			return
		}
		h.handleRelay([]byte(msg.Payload))
	}
}

func (h *roomHub) handleRelay(data []byte) {
	var envelope roomEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		h.logger.Warn().Err(err).Msg("invalid room relay payload")
		return
	}
	if envelope.Source == h.nodeID {
		return
	}
	h.broadcast(envelope.Event)
}

func (h *roomHub) broadcast(event dto.RoomEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for subscription := range h.rooms[event.RoomID] {
		select {
		case subscription.events <- event:
		default:
			h.logger.Warn().Str("room_id", event.RoomID).Msg("dropping room event for slow subscriber")
		}
	}
}

func (h *roomHub) unregister(subscription *RoomSubscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[subscription.RoomID]; ok {
		delete(subscribers, subscription)
		if len(subscribers) == 0 {
			delete(h.rooms, subscription.RoomID)
		}
	}
	close(subscription.events)
	observability.RoomSubscribers().Dec()
}
