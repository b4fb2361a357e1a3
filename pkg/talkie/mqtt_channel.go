package talkie

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/eclipse/paho.golang/autopaho"
	"github.com/eclipse/paho.golang/packets"
	"github.com/eclipse/paho.golang/paho"
)

const (
	defaultKeepAlive         = 20
	defaultConnectRetryDelay = 3 * time.Second
	eventBufferSize          = 256
)

// MQTTChannel is the Channel implementation on top of an autopaho connection
// manager. Every publish and subscription uses QoS 0: voice and presence are
// best-effort and a late chunk is worse than a lost one.
type MQTTChannel struct {
	config    *TalkieConfig
	clientID  string
	serverURL *url.URL
	logger    *TalkieLogger

	mu     sync.Mutex
	cm     *autopaho.ConnectionManager
	cancel context.CancelFunc

	// sendMu guards events against close while emitters are sending.
	sendMu    sync.RWMutex
	events    chan ChannelEvent
	closing   chan struct{}
	closed    bool
	closeOnce sync.Once
}

var _ Channel = (*MQTTChannel)(nil)

// NewMQTTChannel is the default ChannelFactory.
func NewMQTTChannel(config *TalkieConfig, localID string, logger *TalkieLogger) (Channel, error) {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	u, err := url.Parse(config.BrokerURL)
	if err != nil {
		return nil, Wrapf(err, ErrCodeConnectFailure, "invalid broker url %q", config.BrokerURL)
	}
	if !supportedScheme(u.Scheme) {
		return nil, NewConnectError("unsupported broker scheme").AddDetail("scheme", u.Scheme)
	}
	return &MQTTChannel{
		config:    config,
		clientID:  "talkie-" + localID,
		serverURL: u,
		logger:    logger.WithComponent("MQTTChannel").WithField("broker", u.Host),
		events:    make(chan ChannelEvent, eventBufferSize),
		closing:   make(chan struct{}),
	}, nil
}

func (mc *MQTTChannel) Connect(ctx context.Context) error {
	mc.mu.Lock()
	defer mc.mu.Unlock()

	if mc.isClosed() {
		return NewConnectError("channel closed")
	}
	if mc.cm != nil {
		return nil
	}

	cfg := autopaho.ClientConfig{
		ServerUrls:                    []*url.URL{mc.serverURL},
		AttemptConnection:             mc.attemptConnection,
		CleanStartOnInitialConnection: true,
		KeepAlive:                     defaultKeepAlive,
		ConnectRetryDelay:             defaultConnectRetryDelay,
		ConnectTimeout:                mc.config.ConnectTimeout,
		ConnectPacketBuilder: func(pc *paho.Connect, uri *url.URL) (*paho.Connect, error) {
			if uri.User == nil {
				return pc, nil
			}
			pc.UsernameFlag = true
			pc.Username = uri.User.Username()
			if pwd, ok := uri.User.Password(); ok {
				pc.PasswordFlag = true
				pc.Password = []byte(pwd)
			}
			return pc, nil
		},
		OnConnectionUp: func(_ *autopaho.ConnectionManager, _ *paho.Connack) {
			mc.logger.Debug("Connection up")
			mc.emit(ChannelEvent{Kind: ChannelConnected})
		},
		OnConnectError: func(err error) {
			mc.logger.WithError(err).Debug("Connection attempt failed")
		},
		ClientConfig: paho.ClientConfig{
			ClientID: mc.clientID,
			OnPublishReceived: []func(paho.PublishReceived) (bool, error){
				func(pr paho.PublishReceived) (bool, error) {
					if mc.config.DebugTransport {
						mc.logger.Debugf("Received %d bytes on %s", len(pr.Packet.Payload), pr.Packet.Topic)
					}
					mc.emit(ChannelEvent{
						Kind:    ChannelMessage,
						Topic:   pr.Packet.Topic,
						Payload: pr.Packet.Payload,
					})
					return true, nil
				},
			},
			OnClientError: func(err error) {
				mc.emit(ChannelEvent{Kind: ChannelError, Err: Wrapf(err, ErrCodeConnectFailure, "transport error")})
			},
			OnServerDisconnect: func(d *paho.Disconnect) {
				err := NewConnectError("server disconnected").AddDetail("reason_code", d.ReasonCode)
				mc.emit(ChannelEvent{Kind: ChannelError, Err: err})
			},
		},
	}

	runCtx, cancel := context.WithCancel(context.Background())
	cm, err := autopaho.NewConnection(runCtx, cfg)
	if err != nil {
		cancel()
		return Wrapf(err, ErrCodeConnectFailure, "start mqtt connection")
	}
	mc.cm = cm
	mc.cancel = cancel

	go mc.awaitInitialConnection(ctx, cm)
	return nil
}

// awaitInitialConnection turns a connect that never succeeds within the
// timeout into a ChannelError. autopaho itself would keep retrying forever.
func (mc *MQTTChannel) awaitInitialConnection(ctx context.Context, cm *autopaho.ConnectionManager) {
	waitCtx, cancel := context.WithTimeout(ctx, mc.config.ConnectTimeout)
	defer cancel()
	if err := cm.AwaitConnection(waitCtx); err != nil {
		mc.emit(ChannelEvent{Kind: ChannelError, Err: Wrapf(err, ErrCodeConnectFailure, "broker unreachable")})
	}
}

func (mc *MQTTChannel) Subscribe(ctx context.Context, topics ...string) error {
	cm := mc.manager()
	if cm == nil {
		return NewTalkieError("subscribe before connect", ErrCodeNotConnected)
	}
	sub := &paho.Subscribe{
		Subscriptions: make([]paho.SubscribeOptions, 0, len(topics)),
	}
	for _, topic := range topics {
		sub.Subscriptions = append(sub.Subscriptions, paho.SubscribeOptions{Topic: topic, QoS: 0})
	}
	ack, err := cm.Subscribe(ctx, sub)
	if err != nil {
		return Wrapf(err, ErrCodeSubscribeFailure, "subscribe %s", strings.Join(topics, ","))
	}
	if ack != nil {
		for i, code := range ack.Reasons {
			if code >= 0x80 && i < len(topics) {
				return NewSubscribeError("subscription refused").
					AddDetail("topic", topics[i]).
					AddDetail("reason_code", code)
			}
		}
	}
	return nil
}

func (mc *MQTTChannel) Publish(ctx context.Context, topic string, payload []byte) error {
	cm := mc.manager()
	if cm == nil {
		return NewTalkieError("publish before connect", ErrCodeNotConnected)
	}
	if _, err := cm.Publish(ctx, &paho.Publish{
		Topic:   topic,
		Payload: payload,
		QoS:     0,
	}); err != nil {
		return Wrapf(err, ErrCodePublishFailure, "publish %s", topic)
	}
	if mc.config.DebugTransport {
		mc.logger.Debugf("Published %d bytes on %s", len(payload), topic)
	}
	return nil
}

func (mc *MQTTChannel) Events() <-chan ChannelEvent {
	return mc.events
}

// Close disconnects and closes the event stream. It is safe to call more than
// once.
func (mc *MQTTChannel) Close() error {
	mc.closeOnce.Do(func() {
		close(mc.closing)

		mc.sendMu.Lock()
		mc.closed = true
		close(mc.events)
		mc.sendMu.Unlock()

		mc.mu.Lock()
		cm, cancel := mc.cm, mc.cancel
		mc.cm, mc.cancel = nil, nil
		mc.mu.Unlock()

		if cm == nil {
			return
		}
		ctx, done := context.WithTimeout(context.Background(), time.Second)
		defer done()
		if derr := cm.Disconnect(ctx); derr != nil {
			mc.logger.WithError(derr).Debug("Disconnect without live connection")
		}
		cancel()
	})
	return nil
}

func (mc *MQTTChannel) manager() *autopaho.ConnectionManager {
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.cm
}

func (mc *MQTTChannel) isClosed() bool {
	mc.sendMu.RLock()
	defer mc.sendMu.RUnlock()
	return mc.closed
}

// emit never blocks past Close.
func (mc *MQTTChannel) emit(ev ChannelEvent) {
	mc.sendMu.RLock()
	defer mc.sendMu.RUnlock()
	if mc.closed {
		return
	}
	select {
	case mc.events <- ev:
	case <-mc.closing:
	}
}

func (mc *MQTTChannel) attemptConnection(ctx context.Context, cc autopaho.ClientConfig, u *url.URL) (net.Conn, error) {
	switch strings.ToLower(u.Scheme) {
	case "mqtt", "tcp", "":
		var d net.Dialer
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		if tcp, ok := conn.(*net.TCPConn); ok {
			_ = tcp.SetNoDelay(true)
		}
		return packets.NewThreadSafeConn(conn), nil
	case "ssl", "tls", "mqtts", "tcps":
		d := tls.Dialer{
			Config: cc.TlsCfg,
		}
		conn, err := d.DialContext(ctx, "tcp", u.Host)
		if err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	case "ws", "wss":
		conn, err := dialWebsocket(ctx, u, cc.TlsCfg)
		if err != nil {
			return nil, err
		}
		return packets.NewThreadSafeConn(conn), nil
	default:
		return nil, fmt.Errorf("unsupported scheme (%s) in url %s", u.Scheme, u.String())
	}
}
