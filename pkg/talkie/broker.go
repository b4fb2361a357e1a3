package talkie

import (
	"errors"
	"io"
	"log/slog"
	"sync"

	mochimqtt "github.com/mochi-mqtt/server/v2"
	"github.com/mochi-mqtt/server/v2/hooks/auth"
	"github.com/mochi-mqtt/server/v2/listeners"
	"github.com/mochi-mqtt/server/v2/packets"
)

var (
	ErrBrokerClosed  = errors.New("talkie: broker closed")
	ErrBrokerRunning = errors.New("talkie: broker already running")
)

// BrokerConfig selects the listeners of an embedded broker. Empty addresses
// disable the listener; at least one must be set.
type BrokerConfig struct {
	TCPAddress string
	WSAddress  string
}

// Broker is an embedded MQTT broker for LAN use and tests. It accepts every
// client.
type Broker struct {
	config BrokerConfig
	logger *TalkieLogger

	mu     sync.Mutex
	mochi  *mochimqtt.Server
	closed bool
}

func NewBroker(config BrokerConfig, logger *TalkieLogger) *Broker {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Broker{
		config: config,
		logger: logger.WithComponent("Broker"),
	}
}

// Start binds the listeners and begins serving in the background.
func (b *Broker) Start() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return ErrBrokerClosed
	}
	if b.mochi != nil {
		return ErrBrokerRunning
	}
	if b.config.TCPAddress == "" && b.config.WSAddress == "" {
		return NewConfigError("broker needs a tcp or websocket address")
	}

	server := mochimqtt.New(&mochimqtt.Options{
		InlineClient: true,
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
	if err := server.AddHook(new(auth.AllowHook), nil); err != nil {
		return err
	}
	if err := server.AddHook(&brokerLogHook{logger: b.logger}, nil); err != nil {
		return err
	}

	if b.config.TCPAddress != "" {
		tcp := listeners.NewTCP(listeners.Config{ID: "tcp", Address: b.config.TCPAddress})
		if err := server.AddListener(tcp); err != nil {
			server.Close()
			return err
		}
	}
	if b.config.WSAddress != "" {
		ws := listeners.NewWebsocket(listeners.Config{ID: "ws", Address: b.config.WSAddress})
		if err := server.AddListener(ws); err != nil {
			server.Close()
			return err
		}
	}

	if err := server.Serve(); err != nil {
		server.Close()
		return err
	}
	b.mochi = server
	b.logger.WithFields(map[string]interface{}{
		"tcp": b.config.TCPAddress,
		"ws":  b.config.WSAddress,
	}).Info("Broker listening")
	return nil
}

// Publish injects a message as if a client had sent it.
func (b *Broker) Publish(topic string, payload []byte) error {
	b.mu.Lock()
	server := b.mochi
	b.mu.Unlock()

	if server == nil {
		return errors.New("talkie: broker not running")
	}
	return server.Publish(topic, payload, false, 0)
}

// Close stops all listeners. It is safe to call more than once.
func (b *Broker) Close() error {
	b.mu.Lock()
	server := b.mochi
	b.mochi = nil
	b.closed = true
	b.mu.Unlock()

	if server == nil {
		return nil
	}
	return server.Close()
}

type brokerLogHook struct {
	mochimqtt.HookBase
	logger *TalkieLogger
}

func (h *brokerLogHook) ID() string {
	return "talkie-log"
}

func (h *brokerLogHook) Provides(b byte) bool {
	return b == mochimqtt.OnSessionEstablished || b == mochimqtt.OnDisconnect
}

func (h *brokerLogHook) OnSessionEstablished(cl *mochimqtt.Client, pk packets.Packet) {
	h.logger.WithField("client_id", cl.ID).Debug("Client connected")
}

func (h *brokerLogHook) OnDisconnect(cl *mochimqtt.Client, err error, expire bool) {
	l := h.logger.WithField("client_id", cl.ID)
	if err != nil {
		l = l.WithError(err)
	}
	l.Debug("Client disconnected")
}
