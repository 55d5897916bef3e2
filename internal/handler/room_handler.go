package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/questkids-api/internal/dto"
	"github.com/noah-isme/questkids-api/internal/middleware"
	"github.com/noah-isme/questkids-api/internal/models"
	"github.com/noah-isme/questkids-api/internal/service"
	"github.com/noah-isme/questkids-api/internal/utils"
)

const (
	roomSocketWriteWait    = 10 * time.Second
	roomSocketPingInterval = 30 * time.Second
	leaveBeaconTimeout     = 10 * time.Second
)

// RoomHandler exposes the challenge room transitions and the live room socket.
type RoomHandler struct {
	rooms     service.RoomService
	hub       service.RoomHub
	validator *validator.Validate
	logger    zerolog.Logger
}

// NewRoomHandler constructs a room handler.
func NewRoomHandler(rooms service.RoomService, hub service.RoomHub, validate *validator.Validate, logger zerolog.Logger) *RoomHandler {
	return &RoomHandler{
		rooms:     rooms,
		hub:       hub,
		validator: validate,
		logger:    logger.With().Str("component", "room_handler").Logger(),
	}
}

// Register wires room routes. messageLimit guards chat sends and may be nil.
func (h *RoomHandler) Register(router fiber.Router, messageLimit fiber.Handler) {
	if messageLimit == nil {
		messageLimit = func(c *fiber.Ctx) error { return c.Next() }
	}

	router.Get("/", h.list)
	router.Post("/", h.create)
	router.Get("/:id", h.detail)
	router.Get("/:id/ws", h.upgrade, websocket.New(h.stream))
	router.Post("/:id/join", h.join)
	router.Post("/:id/leave", h.leave)
	router.Post("/:id/leave-beacon", h.leaveBeacon)
	router.Post("/:id/heartbeat", h.heartbeat)
	router.Post("/:id/messages", messageLimit, h.sendMessage)
	router.Post("/:id/challenge", h.createChallenge)
	router.Post("/:id/challenge/accept", h.acceptChallenge)
	router.Post("/:id/challenge/reject", h.rejectChallenge)
	router.Post("/:id/challenge/complete", h.completeChallenge)
}

func (h *RoomHandler) list(c *fiber.Ctx) error {
	rooms, err := h.rooms.ListActive(requestContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load rooms")
	}
	return utils.OK(c, dto.NewRoomSummaryResponseSlice(rooms), "rooms retrieved", fiber.Map{"total": len(rooms)})
}

func (h *RoomHandler) create(c *fiber.Ctx) error {
	var req dto.CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.rooms.Create(requestContext(c), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create room")
	}
	return utils.Created(c, "room created", dto.NewRoomResponse(room))
}

func (h *RoomHandler) detail(c *fiber.Ctx) error {
	room, err := h.rooms.Get(requestContext(c), c.Params("id"))
	if err != nil {
		return respondError(c, h.logger, err, "failed to load room")
	}
	return utils.SendSuccess(c, "room retrieved", dto.NewRoomResponse(room))
}

func (h *RoomHandler) join(c *fiber.Ctx) error {
	return h.transition(c, "joined room", h.rooms.Join)
}

func (h *RoomHandler) leave(c *fiber.Ctx) error {
	return h.transition(c, "left room", h.rooms.Leave)
}

func (h *RoomHandler) heartbeat(c *fiber.Ctx) error {
	return h.transition(c, "presence refreshed", h.rooms.Heartbeat)
}

func (h *RoomHandler) acceptChallenge(c *fiber.Ctx) error {
	return h.transition(c, "challenge accepted", h.rooms.AcceptChallenge)
}

func (h *RoomHandler) rejectChallenge(c *fiber.Ctx) error {
	return h.transition(c, "challenge rejected", h.rooms.RejectChallenge)
}

func (h *RoomHandler) completeChallenge(c *fiber.Ctx) error {
	return h.transition(c, "challenge completed", h.rooms.CompleteChallenge)
}

// leaveBeacon answers immediately; the leave runs detached from the request.
func (h *RoomHandler) leaveBeacon(c *fiber.Ctx) error {
	roomID := c.Params("id")
	userID := userIDFromContext(c)
	ctx, cancel := context.WithTimeout(context.WithoutCancel(requestContext(c)), leaveBeaconTimeout)
	logger := *requestLogger(h.logger, c)

	go func() {
		defer cancel()
		if _, err := h.rooms.Leave(ctx, roomID, userID); err != nil && !errors.Is(err, service.ErrRoomNotFound) {
			logger.Warn().Err(err).Str("room_id", roomID).Str("user_id", userID).Msg("leave beacon failed")
		}
	}()

	return utils.Accepted(c, "leave scheduled")
}

func (h *RoomHandler) sendMessage(c *fiber.Ctx) error {
	var req dto.SendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}
	if err := h.validator.Struct(req); err != nil {
		return respondError(c, h.logger, err, "failed to send message")
	}

	room, err := h.rooms.SendMessage(requestContext(c), c.Params("id"), userIDFromContext(c), req.Text)
	if err != nil {
		return respondError(c, h.logger, err, "failed to send message")
	}
	return utils.Created(c, "message sent", dto.NewRoomResponse(room))
}

func (h *RoomHandler) createChallenge(c *fiber.Ctx) error {
	var req dto.CreateChallengeRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	room, err := h.rooms.CreateChallenge(requestContext(c), c.Params("id"), userIDFromContext(c), req)
	if err != nil {
		return respondError(c, h.logger, err, "failed to create challenge")
	}
	return utils.Created(c, "challenge sent", dto.NewRoomResponse(room))
}

type roomTransition func(ctx context.Context, roomID, callerID string) (models.Room, error)

func (h *RoomHandler) transition(c *fiber.Ctx, message string, apply roomTransition) error {
	room, err := apply(requestContext(c), c.Params("id"), userIDFromContext(c))
	if err != nil {
		return respondError(c, h.logger, err, "room update failed")
	}
	return utils.SendSuccess(c, message, dto.NewRoomResponse(room))
}

func (h *RoomHandler) upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	c.Locals("request_ctx", requestContext(c))
	return c.Next()
}

type roomSocketCommand struct {
	Type string `json:"type"`
}

// stream sends the current snapshot and then every event of the room until either side closes.
func (h *RoomHandler) stream(conn *websocket.Conn) {
	roomID := conn.Params("id")
	userID, _ := conn.Locals(middleware.LocalUserID).(string)
	ctx, ok := conn.Locals("request_ctx").(context.Context)
	if !ok || ctx == nil {
		ctx = context.Background()
	}
	logger := h.logger.With().Str("room_id", roomID).Str("user_id", userID).Logger()
	defer conn.Close()

	subscription := h.hub.Subscribe(roomID)
	defer subscription.Close()

	room, err := h.rooms.Get(ctx, roomID)
	if err != nil {
		if errors.Is(err, service.ErrRoomNotFound) {
			_ = h.writeEvent(conn, dto.RoomEvent{Type: dto.RoomEventDeleted, RoomID: roomID, SentAt: time.Now().UTC()})
			h.closeSocket(conn, websocket.CloseNormalClosure, "room deleted")
			return
		}
		logger.Error().Err(err).Msg("failed to load room snapshot")
		h.closeSocket(conn, websocket.CloseInternalServerErr, "room unavailable")
		return
	}

	snapshot := dto.NewRoomResponse(room)
	if err := h.writeEvent(conn, dto.RoomEvent{Type: dto.RoomEventUpdated, RoomID: roomID, Room: &snapshot, SentAt: time.Now().UTC()}); err != nil {
		return
	}
	logger.Debug().Msg("room socket connected")

	done := make(chan struct{})
	go h.readCommands(ctx, conn, roomID, userID, logger, done)

	ticker := time.NewTicker(roomSocketPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			logger.Debug().Msg("room socket closed by client")
			return
		case event, ok := <-subscription.Events():
			if !ok {
				return
			}
			if err := h.writeEvent(conn, event); err != nil {
				return
			}
			if event.Type == dto.RoomEventDeleted {
				h.closeSocket(conn, websocket.CloseNormalClosure, "room deleted")
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(roomSocketWriteWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readCommands handles heartbeats sent over the socket and signals done when the client goes away.
func (h *RoomHandler) readCommands(ctx context.Context, conn *websocket.Conn, roomID, userID string, logger zerolog.Logger, done chan<- struct{}) {
	defer close(done)
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			return
		}

		var command roomSocketCommand
		if err := json.Unmarshal(payload, &command); err != nil {
			continue
		}
		if command.Type != "heartbeat" || userID == "" {
			continue
		}
		if _, err := h.rooms.Heartbeat(ctx, roomID, userID); err != nil && !errors.Is(err, service.ErrNotParticipant) {
			logger.Warn().Err(err).Msg("socket heartbeat failed")
		}
	}
}

func (h *RoomHandler) writeEvent(conn *websocket.Conn, event dto.RoomEvent) error {
	_ = conn.SetWriteDeadline(time.Now().Add(roomSocketWriteWait))
	return conn.WriteJSON(event)
}

func (h *RoomHandler) closeSocket(conn *websocket.Conn, code int, reason string) {
	_ = conn.SetWriteDeadline(time.Now().Add(roomSocketWriteWait))
	_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
}
