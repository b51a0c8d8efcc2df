package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/channel-adapter/adapters"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/logger"
	"github.com/Siddesh-bype/AI-For-Bharat-Hackthon/services/orchestrator/models"
)

const (
	streamKey      = "msg:inbound"
	responsePrefix = "response:"
)

type Options struct {
	AllowedOrigins  []string
	DefaultLanguage string
	MaxMessageBytes int64

	// MessagesPerSecond of zero disables rate limiting.
	MessagesPerSecond float64
	MessageBurst      int
}

type WSHandler struct {
	rdb            *redis.Client
	upgrader       websocket.Upgrader
	allowedOrigins map[string]bool
	language       string
	maxBytes       int64
	perSecond      float64
	burst          int
	connections    prometheus.Gauge
	inbound        *prometheus.CounterVec
	log            *logger.Logger
}

func NewWSHandler(rdb *redis.Client, opts Options, reg prometheus.Registerer, log *logger.Logger) *WSHandler {
	origins := make(map[string]bool)
	for _, o := range opts.AllowedOrigins {
		origins[o] = true
	}
	if opts.DefaultLanguage == "" {
		opts.DefaultLanguage = "en"
	}
	f := promauto.With(reg)
	h := &WSHandler{
		rdb:            rdb,
		allowedOrigins: origins,
		language:       opts.DefaultLanguage,
		maxBytes:       opts.MaxMessageBytes,
		perSecond:      opts.MessagesPerSecond,
		burst:          opts.MessageBurst,
		connections: f.NewGauge(prometheus.GaugeOpts{
			Name: "channel_adapter_ws_connections",
			Help: "Open WebSocket connections",
		}),
		inbound: f.NewCounterVec(prometheus.CounterOpts{
			Name: "channel_adapter_inbound_messages_total",
			Help: "Inbound web messages by result",
		}, []string{"result"}),
		log: log.With("component", "ws"),
	}
	h.upgrader = websocket.Upgrader{CheckOrigin: h.checkOrigin}
	return h
}

func (h *WSHandler) checkOrigin(r *http.Request) bool {
	if len(h.allowedOrigins) == 0 {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true // allow non-browser clients
	}
	return h.allowedOrigins[origin]
}

// ServeHTTP upgrades the connection and bridges it to the orchestrator. The
// conversation is keyed on the identity query parameter (a phone number for
// returning users); without one the connection gets a fresh anonymous identity.
func (h *WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()
	if h.maxBytes > 0 {
		conn.SetReadLimit(h.maxBytes)
	}

	q := r.URL.Query()
	sessionID := q.Get("session_id")
	if sessionID == "" {
		sessionID = uuid.New().String()
	}
	identity := adapters.NormalizeIdentity(q.Get("identity"))
	if identity == "" {
		identity = sessionID
	}
	language := q.Get("language")
	if language == "" {
		language = h.language
	}
	log := h.log.With("identity", identity, "session_id", sessionID)

	h.connections.Inc()
	defer h.connections.Dec()

	var limiter *rate.Limiter
	if h.perSecond > 0 {
		burst := h.burst
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(h.perSecond), burst)
	}

	// gorilla connections allow one concurrent writer
	var writeMu sync.Mutex
	write := func(resp models.WSResponse) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(resp)
	}

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	pubsub := h.rdb.Subscribe(ctx, responsePrefix+identity)
	defer pubsub.Close()
	if _, err := pubsub.Receive(ctx); err != nil {
		log.Error("failed to subscribe to responses", "error", err)
		return
	}

	if err := write(models.WSResponse{Type: "connected", SessionID: identity}); err != nil {
		log.Warn("failed to send connected message", "error", err)
		return
	}

	go func() {
		ch := pubsub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				var resp models.WSResponse
				if err := json.Unmarshal([]byte(msg.Payload), &resp); err != nil {
					log.Warn("failed to unmarshal response", "error", err)
					continue
				}
				if err := write(resp); err != nil {
					log.Warn("failed to write to websocket", "error", err)
					cancel()
					return
				}
			}
		}
	}()

	for {
		_, message, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("websocket closed unexpectedly", "error", err)
			}
			return
		}

		var incoming models.WSIncoming
		if err := json.Unmarshal(message, &incoming); err != nil {
			h.inbound.WithLabelValues("invalid").Inc()
			write(models.WSResponse{
				Type: "error",
				Text: "Invalid message format. Send JSON with a 'text' field.",
			})
			continue
		}
		if incoming.Text == "" {
			continue
		}
		if limiter != nil && !limiter.Allow() {
			h.inbound.WithLabelValues("rate_limited").Inc()
			write(models.WSResponse{
				Type: "error",
				Text: "You're sending messages too quickly. Please wait a moment.",
			})
			continue
		}
		if incoming.Language != "" {
			language = incoming.Language
		}

		envelope := adapters.NormalizeWebMessage(identity, sessionID, incoming.Text, language)
		if err := h.publish(ctx, envelope); err != nil {
			h.inbound.WithLabelValues("error").Inc()
			log.Error("failed to publish to stream", "message_id", envelope.MessageID, "error", err)
			write(models.WSResponse{
				Type: "error",
				Text: "Sorry, I'm having trouble processing your message. Please try again.",
			})
			continue
		}
		h.inbound.WithLabelValues("ok").Inc()
	}
}

func (h *WSHandler) publish(ctx context.Context, envelope models.MessageEnvelope) error {
	envelopeJSON, err := json.Marshal(envelope)
	if err != nil {
		return err
	}
	return h.rdb.XAdd(ctx, &redis.XAddArgs{
		Stream: streamKey,
		Values: map[string]interface{}{"envelope": string(envelopeJSON)},
	}).Err()
}
