package realtime

import (
	"context"
	"encoding/json"
	"expvar"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// Redis channel prefixes. One channel per balance key and per creator
// board keeps per-key delivery in commit order.
const (
	balanceChannelPrefix = "xp:balance:"
	boardChannelPrefix   = "xp:board:"
)

var (
	wsConnectionsGauge   = expvar.NewInt("xp_ws_connections")
	wsEventsSentTotal    = expvar.NewInt("xp_ws_events_sent_total")
	wsEventsDroppedTotal = expvar.NewInt("xp_ws_events_dropped_total")
)

// Connection represents a WebSocket connection
type Connection struct {
	UserID uuid.UUID
	Conn   *websocket.Conn
	Send   chan []byte
}

// Hub fans committed ledger and leaderboard changes out to websocket
// observers. With Redis it bridges instances over pub/sub; without it,
// delivery is local to this instance. Publishing never blocks: a full
// observer buffer drops the event and the observer catches up on the next
// one.
type Hub struct {
	// Local connections (this server instance only)
	connections map[uuid.UUID]map[*Connection]bool

	// Local board subscriptions: creatorID -> set of userIDs on this server
	boardSubs map[uuid.UUID]map[uuid.UUID]bool

	redis  *redis.Client
	pubsub *redis.PubSub

	mu sync.RWMutex

	register   chan *Connection
	unregister chan *Connection

	ctx    context.Context
	cancel context.CancelFunc
}

// NewHub creates a fan-out hub. redisClient may be nil.
func NewHub(redisClient *redis.Client) *Hub {
	ctx, cancel := context.WithCancel(context.Background())

	h := &Hub{
		connections: make(map[uuid.UUID]map[*Connection]bool),
		boardSubs:   make(map[uuid.UUID]map[uuid.UUID]bool),
		redis:       redisClient,
		register:    make(chan *Connection),
		unregister:  make(chan *Connection),
		ctx:         ctx,
		cancel:      cancel,
	}

	if redisClient != nil {
		h.pubsub = redisClient.PSubscribe(ctx, balanceChannelPrefix+"*", boardChannelPrefix+"*")
	}

	return h
}

// Run starts the hub (call in goroutine)
func (h *Hub) Run() {
	if h.pubsub != nil {
		go h.runRedisSubscriber()
	}

	for {
		select {
		case <-h.ctx.Done():
			return

		case conn := <-h.register:
			h.mu.Lock()
			if h.connections[conn.UserID] == nil {
				h.connections[conn.UserID] = make(map[*Connection]bool)
			}
			h.connections[conn.UserID][conn] = true
			h.mu.Unlock()
			wsConnectionsGauge.Add(1)
			log.Debug().Str("user_id", conn.UserID.String()).Msg("observer connected")

		case conn := <-h.unregister:
			h.mu.Lock()
			if conns, ok := h.connections[conn.UserID]; ok {
				if _, exists := conns[conn]; exists {
					delete(conns, conn)
					close(conn.Send)
					wsConnectionsGauge.Add(-1)
				}
				if len(conns) == 0 {
					delete(h.connections, conn.UserID)

					// Drop the user's board subscriptions with the last connection
					for creatorID, users := range h.boardSubs {
						delete(users, conn.UserID)
						if len(users) == 0 {
							delete(h.boardSubs, creatorID)
						}
					}
				}
			}
			h.mu.Unlock()
			log.Debug().Str("user_id", conn.UserID.String()).Msg("observer disconnected")
		}
	}
}

// runRedisSubscriber delivers cross-instance events to local observers
func (h *Hub) runRedisSubscriber() {
	ch := h.pubsub.Channel()

	for {
		select {
		case <-h.ctx.Done():
			return

		case msg, ok := <-ch:
			if !ok {
				return
			}

			switch {
			case strings.HasPrefix(msg.Channel, balanceChannelPrefix):
				userID, err := uuid.Parse(msg.Channel[len(balanceChannelPrefix):])
				if err != nil {
					continue
				}
				h.deliverToUser(userID, []byte(msg.Payload))

			case strings.HasPrefix(msg.Channel, boardChannelPrefix):
				creatorID, err := uuid.Parse(msg.Channel[len(boardChannelPrefix):])
				if err != nil {
					continue
				}
				h.deliverToBoard(creatorID, []byte(msg.Payload))
			}
		}
	}
}

// Register adds a connection
func (h *Hub) Register(conn *Connection) {
	h.register <- conn
}

// Unregister removes a connection
func (h *Hub) Unregister(conn *Connection) {
	h.unregister <- conn
}

// SubscribeBoard adds a local observer for a creator's leaderboard
func (h *Hub) SubscribeBoard(creatorID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.boardSubs[creatorID] == nil {
		h.boardSubs[creatorID] = make(map[uuid.UUID]bool)
	}
	h.boardSubs[creatorID][userID] = true
}

// UnsubscribeBoard removes a local observer for a creator's leaderboard
func (h *Hub) UnsubscribeBoard(creatorID, userID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.boardSubs[creatorID] != nil {
		delete(h.boardSubs[creatorID], userID)
		if len(h.boardSubs[creatorID]) == 0 {
			delete(h.boardSubs, creatorID)
		}
	}
}

// PublishBalanceChange fans a committed balance write out to the user's
// observers on every instance.
func (h *Hub) PublishBalanceChange(userID uuid.UUID, payload interface{}) {
	data, err := json.Marshal(ChangeEvent{Entity: EntityBalance, Key: userID.String(), NewValue: payload})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal balance event")
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(h.ctx, balanceChannelPrefix+userID.String(), data).Err(); err != nil {
			log.Error().Err(err).Str("user_id", userID.String()).Msg("redis publish failed")
			h.deliverToUser(userID, data)
		}
		return
	}
	h.deliverToUser(userID, data)
}

// PublishLeaderboardChange fans a committed ranking write out to the
// creator board's observers on every instance.
func (h *Hub) PublishLeaderboardChange(creatorID uuid.UUID, payload interface{}) {
	data, err := json.Marshal(ChangeEvent{Entity: EntityLeaderboard, Key: creatorID.String(), NewValue: payload})
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal leaderboard event")
		return
	}

	if h.redis != nil {
		if err := h.redis.Publish(h.ctx, boardChannelPrefix+creatorID.String(), data).Err(); err != nil {
			log.Error().Err(err).Str("creator_id", creatorID.String()).Msg("redis publish failed")
			h.deliverToBoard(creatorID, data)
		}
		return
	}
	h.deliverToBoard(creatorID, data)
}

func (h *Hub) deliverToUser(userID uuid.UUID, data []byte) {
	// Hold the lock across iteration: unregister deletes from this map and
	// closes Send channels under the write lock. Sends are non-blocking, so
	// the lock is never held on a full buffer.
	h.mu.RLock()
	defer h.mu.RUnlock()

	conns, ok := h.connections[userID]
	if !ok {
		return
	}

	for conn := range conns {
		select {
		case conn.Send <- data:
			wsEventsSentTotal.Add(1)
		default:
			wsEventsDroppedTotal.Add(1)
			log.Warn().Str("user_id", userID.String()).Msg("observer send buffer full")
		}
	}
}

func (h *Hub) deliverToBoard(creatorID uuid.UUID, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	users, ok := h.boardSubs[creatorID]
	if !ok {
		return
	}

	for userID := range users {
		if conns, ok := h.connections[userID]; ok {
			for conn := range conns {
				select {
				case conn.Send <- data:
					wsEventsSentTotal.Add(1)
				default:
					wsEventsDroppedTotal.Add(1)
				}
			}
		}
	}
}

// LocalConnectionCount returns number of local connections
func (h *Hub) LocalConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	total := 0
	for _, conns := range h.connections {
		total += len(conns)
	}
	return total
}

// IsSubscribedToBoard reports whether user observes the creator's board locally
func (h *Hub) IsSubscribedToBoard(creatorID, userID uuid.UUID) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	users := h.boardSubs[creatorID]
	if users == nil {
		return false
	}
	return users[userID]
}

// Shutdown gracefully shuts down the hub
func (h *Hub) Shutdown() {
	h.cancel()
	if h.pubsub != nil {
		h.pubsub.Close()
	}
}
