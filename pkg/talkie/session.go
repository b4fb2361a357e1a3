package talkie

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

const (
	eventBacklog  = 64
	notifyBacklog = 64
	outboxBacklog = 32

	systemSender = "SYS"
)

type eventKind int

const (
	evChannel eventKind = iota
	evSubscribeFailed
	evReceiverIdle
	evMicLost
	evLocation
	evLocationLost
)

type sessionEvent struct {
	kind    eventKind
	gen     uint64
	channel ChannelEvent
	coords  Coordinates
	err     error
}

type outgoing struct {
	channel Channel
	topic   string
	payload []byte
}

// SessionOption customizes a Session at construction.
type SessionOption func(*Session)

func WithChannelFactory(f ChannelFactory) SessionOption {
	return func(s *Session) { s.newChannel = f }
}

func WithCaptureDevice(d CaptureDevice) SessionOption {
	return func(s *Session) { s.capture = d }
}

func WithPlayer(p Player) SessionOption {
	return func(s *Session) { s.player = p }
}

func WithCodec(c Codec) SessionOption {
	return func(s *Session) { s.codec = c }
}

func WithLocationSource(l LocationSource) SessionOption {
	return func(s *Session) { s.location = l }
}

func WithLogger(l *TalkieLogger) SessionOption {
	return func(s *Session) { s.logger = l }
}

// WithLocalID fixes the participant id instead of generating one.
func WithLocalID(id string) SessionOption {
	return func(s *Session) { s.localID = id }
}

// SessionStats is a point-in-time view of the audio paths.
type SessionStats struct {
	Transmit     TransmitStats
	Receive      ReceiverStats
	Participants int
}

// Session is one participant's connection to a channel. A single goroutine
// owns the lifecycle state, the presence map and the timers; every public
// method is a command executed on that goroutine.
type Session struct {
	config     *TalkieConfig
	audio      *AudioConfig
	localID    string
	logger     *TalkieLogger
	newChannel ChannelFactory
	capture    CaptureDevice
	player     Player
	codec      Codec
	location   LocationSource

	activity    *ActivityLog
	transmitter *Transmitter
	receiver    *Receiver

	ctx        context.Context
	cancel     context.CancelFunc
	cmds       chan func()
	events     chan sessionEvent
	notify     chan notice
	outbox     chan outgoing
	loopDone   chan struct{}
	notifyDone chan struct{}
	closeOnce  sync.Once
	delivering atomic.Bool

	handlersMu    sync.Mutex
	handlers      map[int]StateHandler
	entryHandlers map[int]LogEntryHandler
	nextHandler   int

	stateMu sync.RWMutex
	state   SessionState

	// Owned by the loop goroutine.
	base         SessionState
	transmitting bool
	receiving    bool
	channelID    string
	displayName  string
	topics       Topics
	channel      Channel
	gen          uint64
	presence     *PresenceTracker
	vox          *VoxTrigger
	heartbeat    *time.Ticker
	voxTicker    *time.Ticker
	position     *Coordinates
}

// NewSession validates the configuration and starts the session goroutine.
// Capture and playback devices must be supplied through options.
func NewSession(config *TalkieConfig, audioConfig *AudioConfig, opts ...SessionOption) (*Session, error) {
	if config == nil {
		config = NewTalkieConfig()
	}
	if audioConfig == nil {
		audioConfig = NewAudioConfig()
	}
	if issues := config.Validate(); len(issues) > 0 {
		return nil, NewConfigError(strings.Join(issues, "; "))
	}
	if err := ValidateAudioConfig(audioConfig); err != nil {
		return nil, err
	}
	vox, err := NewVoxTrigger(config.VoxUpperThreshold, config.VoxLowerThreshold)
	if err != nil {
		return nil, err
	}

	s := &Session{
		config:     config,
		audio:      audioConfig,
		newChannel: NewMQTTChannel,
		codec:      PCM16Codec{},
		cmds:       make(chan func()),
		events:     make(chan sessionEvent, eventBacklog),
		notify:     make(chan notice, notifyBacklog),
		outbox:     make(chan outgoing, outboxBacklog),
		loopDone:   make(chan struct{}),
		notifyDone: make(chan struct{}),
		state:      Idle,
		base:       Idle,
		vox:        vox,

		handlers:      make(map[int]StateHandler),
		entryHandlers: make(map[int]LogEntryHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.capture == nil || s.player == nil {
		return nil, NewConfigError("session needs a capture device and a player")
	}
	if s.localID == "" {
		s.localID = uuid.NewString()
	}
	if s.logger == nil {
		s.logger = GetGlobalLogger()
	}
	s.logger = s.logger.WithComponent("Session").WithField("local_id", s.localID)
	s.displayName = normalizeDisplayName(config.DisplayName)
	if s.displayName == "" {
		s.displayName = normalizeDisplayName(DefaultTalkieConfig().DisplayName)
	}

	s.activity = NewActivityLog(config.LogCapacity)
	s.presence = NewPresenceTracker(s.localID, config.StaleAfter)
	s.transmitter = NewTransmitter(s.capture, audioConfig, s.codec, config.ChunkDuration, s.logger)
	s.receiver = NewReceiver(s.codec, s.player, audioConfig.SampleRate, config.MaxQueuedChunks, s.logger)
	s.vox.SetEnabled(config.VoxEnabled)

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.activity.Subscribe(s.forwardEntry)
	s.transmitter.SetLostHandler(func(err error) {
		s.post(sessionEvent{kind: evMicLost, err: err})
	})
	s.receiver.SetIdleHandler(func() {
		s.post(sessionEvent{kind: evReceiverIdle})
	})

	go s.loop()
	go s.notifier()
	go s.publisher()
	if s.location != nil {
		go s.watchLocation()
	}
	return s, nil
}

// Connect joins channelID. It is a no-op unless the session is Idle or in
// Error. The outcome is reported through state changes.
func (s *Session) Connect(channelID string) error {
	id, err := NormalizeChannelID(channelID)
	if err != nil {
		return err
	}
	var result error
	if err := s.exec(func() { result = s.connect(id) }); err != nil {
		return err
	}
	return result
}

// Disconnect leaves the channel, stops all timers and drops queued audio.
func (s *Session) Disconnect() error {
	return s.exec(func() {
		if s.base == Idle {
			return
		}
		s.teardownLink()
		s.activity.Info(systemSender, "LINK_CLOSED")
		s.setBase(Idle)
	})
}

// StartTransmit opens the microphone and starts publishing chunks. It is a
// no-op unless connected and not already transmitting, and is refused while
// VOX is enabled.
func (s *Session) StartTransmit() error {
	var result error
	if err := s.exec(func() {
		if s.vox.Enabled() {
			result = NewTalkieError("push-to-talk is disabled while VOX is on", ErrCodeManualDisabled)
			return
		}
		result = s.startTransmit()
	}); err != nil {
		return err
	}
	return result
}

// StopTransmit halts publishing and releases the microphone before returning.
func (s *Session) StopTransmit() error {
	var result error
	if err := s.exec(func() {
		if s.vox.Enabled() {
			result = NewTalkieError("push-to-talk is disabled while VOX is on", ErrCodeManualDisabled)
			return
		}
		s.stopTransmit()
	}); err != nil {
		return err
	}
	return result
}

// SetVOX switches between voice-activated and manual transmission.
func (s *Session) SetVOX(enabled bool) error {
	var result error
	if err := s.exec(func() {
		if enabled == s.vox.Enabled() {
			return
		}
		if enabled {
			s.vox.SetEnabled(true)
			if s.base == Connected {
				result = s.startVox()
			}
			s.logger.Info("VOX enabled")
			return
		}
		if s.vox.SetEnabled(false) == VoxStop {
			s.stopTransmit()
		}
		s.stopVox()
		s.logger.Info("VOX disabled")
	}); err != nil {
		return err
	}
	return result
}

func (s *Session) VOXEnabled() bool {
	var on bool
	_ = s.exec(func() { on = s.vox.Enabled() })
	return on
}

// SetDisplayName renames the local participant. The name is uppercased and
// announced with an immediate heartbeat when connected.
func (s *Session) SetDisplayName(name string) error {
	name = normalizeDisplayName(name)
	if name == "" {
		return NewConfigError("display name is empty")
	}
	return s.exec(func() {
		s.displayName = name
		if s.base == Connected {
			s.publishPresence()
		}
	})
}

// SendText publishes a short message on the channel's text topic.
func (s *Session) SendText(text string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return NewInvalidMessageError("empty text")
	}
	var result error
	if err := s.exec(func() {
		if s.base != Connected {
			result = NewTalkieError("not connected", ErrCodeNotConnected)
			return
		}
		data, err := EncodeMessage(&TextMessage{SenderID: s.localID, SenderName: s.displayName, Text: text})
		if err != nil {
			result = err
			return
		}
		s.enqueue(s.topics.Text, data)
		s.activity.Append(LogEntry{Sender: s.displayName, Type: LogText, Message: text})
	}); err != nil {
		return err
	}
	return result
}

// State returns the displayed state. Transmitting takes precedence over
// Receiving when both directions are active.
func (s *Session) State() SessionState {
	s.stateMu.RLock()
	defer s.stateMu.RUnlock()
	return s.state
}

func (s *Session) LocalID() string {
	return s.localID
}

func (s *Session) ChannelID() string {
	var id string
	_ = s.exec(func() { id = s.channelID })
	return id
}

func (s *Session) DisplayName() string {
	var name string
	_ = s.exec(func() { name = s.displayName })
	return name
}

// Topics returns the topics of the current channel.
func (s *Session) Topics() Topics {
	var t Topics
	_ = s.exec(func() { t = s.topics })
	return t
}

// Participants returns the known remote participants.
func (s *Session) Participants() []PresenceRecord {
	var out []PresenceRecord
	_ = s.exec(func() { out = s.presence.Snapshot() })
	return out
}

// ParticipantCount includes the local participant while connected.
func (s *Session) ParticipantCount() int {
	n := 0
	_ = s.exec(func() {
		n = s.presence.Len()
		if s.base == Connected {
			n++
		}
	})
	return n
}

// Radar positions the known participants on a display of the given radius.
func (s *Session) Radar(radius float64) []RadarBlip {
	var blips []RadarBlip
	_ = s.exec(func() {
		blips = PlaceBlips(s.position, s.presence.Snapshot(), radius, s.config.RadarRangeMeters)
	})
	return blips
}

// Position returns the latest local fix, if any.
func (s *Session) Position() *Coordinates {
	var pos *Coordinates
	_ = s.exec(func() {
		if s.position != nil {
			c := *s.position
			pos = &c
		}
	})
	return pos
}

func (s *Session) Activity() *ActivityLog {
	return s.activity
}

// Level is the current microphone energy, zero while the microphone is closed.
func (s *Session) Level() float64 {
	return s.transmitter.Level()
}

func (s *Session) Stats() SessionStats {
	stats := SessionStats{
		Transmit: s.transmitter.Stats(),
		Receive:  s.receiver.Stats(),
	}
	_ = s.exec(func() { stats.Participants = s.presence.Len() })
	return stats
}

// AddStateHandler registers h for state changes. State and activity handlers
// share one goroutine: each notice reaches them in registration order, and
// notices arrive in the order they happened. The returned function removes h.
func (s *Session) AddStateHandler(h StateHandler) func() {
	s.handlersMu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.handlers[id] = h
	s.handlersMu.Unlock()

	return func() {
		s.handlersMu.Lock()
		delete(s.handlers, id)
		s.handlersMu.Unlock()
	}
}

// AddActivityHandler registers h for new activity log entries, delivered on
// the same goroutine as state changes. The returned function removes it.
func (s *Session) AddActivityHandler(h LogEntryHandler) func() {
	s.handlersMu.Lock()
	id := s.nextHandler
	s.nextHandler++
	s.entryHandlers[id] = h
	s.handlersMu.Unlock()

	return func() {
		s.handlersMu.Lock()
		delete(s.entryHandlers, id)
		s.handlersMu.Unlock()
	}
}

// Close disconnects and stops the session goroutines. Further calls return
// SESSION_CLOSED errors. No handler call starts after Close returns. Close may
// be called from a handler, in which case it does not wait for that handler.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.cancel()
		<-s.loopDone
		if !s.delivering.Load() {
			<-s.notifyDone
		}
	})
}

// exec runs fn on the loop goroutine. cmds is unbuffered so a command is
// either taken by the loop or refused once it has exited.
func (s *Session) exec(fn func()) error {
	done := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(done) }:
	case <-s.loopDone:
		return NewTalkieError("session closed", ErrCodeSessionClosed)
	}
	<-done
	return nil
}

func (s *Session) post(ev sessionEvent) {
	select {
	case s.events <- ev:
	case <-s.ctx.Done():
	}
}

func (s *Session) loop() {
	defer close(s.loopDone)
	for {
		select {
		case <-s.ctx.Done():
			s.teardownLink()
			s.transmitter.Close()
			return
		case fn := <-s.cmds:
			fn()
		case ev := <-s.events:
			s.handleEvent(ev)
		case now := <-tickC(s.heartbeat):
			s.onHeartbeat(now)
		case <-tickC(s.voxTicker):
			s.onVoxSample()
		}
	}
}

func tickC(t *time.Ticker) <-chan time.Time {
	if t == nil {
		return nil
	}
	return t.C
}

func (s *Session) connect(id string) error {
	if s.base != Idle && s.base != ErrorState {
		s.logger.WithField("state", string(s.base)).Debug("Connect ignored")
		return nil
	}

	ch, err := s.newChannel(s.config, s.localID, s.logger)
	if err != nil {
		s.fail(err)
		return err
	}
	s.gen++
	s.channel = ch
	s.channelID = id
	s.topics = TopicsFor(s.config.TopicPrefix, id)
	s.setBase(Connecting)
	s.activity.Info(systemSender, "LINKING_SECTOR: "+id)
	go s.pump(s.gen, ch)

	if err := ch.Connect(s.ctx); err != nil {
		s.fail(err)
		return err
	}
	return nil
}

func (s *Session) pump(gen uint64, ch Channel) {
	for ev := range ch.Events() {
		select {
		case s.events <- sessionEvent{kind: evChannel, gen: gen, channel: ev}:
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Session) handleEvent(ev sessionEvent) {
	switch ev.kind {
	case evChannel:
		if ev.gen != s.gen || s.channel == nil {
			return
		}
		switch ev.channel.Kind {
		case ChannelConnected:
			s.onLinked()
		case ChannelMessage:
			s.handleMessage(ev.channel.Topic, ev.channel.Payload)
		case ChannelError:
			if ev.channel.Err != nil && !IsSessionFatal(ev.channel.Err) {
				s.logger.WithError(ev.channel.Err).Warnf("Channel error on %s, staying linked", s.channelID)
				return
			}
			s.fail(ev.channel.Err)
		}
	case evSubscribeFailed:
		if ev.gen == s.gen && s.channel != nil {
			s.fail(ev.err)
		}
	case evReceiverIdle:
		s.receiving = s.receiver.Active()
		s.refresh()
	case evMicLost:
		s.onMicLost(ev.err)
	case evLocation:
		c := ev.coords
		s.position = &c
	case evLocationLost:
		if s.position == nil {
			s.activity.Error(systemSender, "GPS_SCAN_ERROR")
		}
	}
}

// onLinked runs on every ChannelConnected, including transport reconnects,
// so subscriptions are always renewed.
func (s *Session) onLinked() {
	gen, ch, topics := s.gen, s.channel, s.topics.All()
	go func() {
		ctx, cancel := context.WithTimeout(s.ctx, s.config.ConnectTimeout)
		defer cancel()
		if err := ch.Subscribe(ctx, topics...); err != nil {
			s.post(sessionEvent{kind: evSubscribeFailed, gen: gen, err: WrapError(err, ErrCodeSubscribeFailure)})
		}
	}()

	if s.base == Connected {
		s.logger.Info("Channel reconnected")
		return
	}
	s.setBase(Connected)
	s.activity.Info(systemSender, "SECURE_UPLINK_READY")
	s.logger.LogSessionEvent("linked", s.State(), map[string]interface{}{"channel": s.channelID})

	s.publishPresence()
	s.heartbeat = time.NewTicker(s.config.HeartbeatInterval)
	if s.vox.Enabled() {
		if err := s.startVox(); err != nil {
			s.logger.WithError(err).Warn("VOX unavailable")
		}
	}
}

func (s *Session) handleMessage(topic string, payload []byte) {
	kind := s.topics.Kind(topic)
	if kind == KindUnknown {
		s.logger.WithField("topic", topic).Debug("Ignoring message on foreign topic")
		return
	}
	msg, err := DecodeMessage(kind, payload)
	if err != nil {
		s.logger.WithError(err).Debug("Skipping malformed message")
		return
	}
	if msg.Sender() == s.localID {
		return
	}

	switch m := msg.(type) {
	case *PresenceMessage:
		if _, known := s.presence.Get(m.ParticipantID); !known {
			s.logger.WithFields(map[string]interface{}{
				"participant_id": m.ParticipantID,
				"display_name":   m.DisplayName,
			}).Info("Participant joined")
		}
		s.presence.Ingest(m, time.Now())
	case *VoiceMessage:
		if s.receiver.Enqueue(m.Payload) {
			s.receiving = true
			s.refresh()
		}
	case *TextMessage:
		sender := m.SenderName
		if sender == "" {
			sender = m.SenderID
		}
		s.activity.Append(LogEntry{Sender: sender, Type: LogText, Message: m.Text})
	}
}

func (s *Session) onHeartbeat(now time.Time) {
	if s.base != Connected {
		return
	}
	s.publishPresence()
	for _, id := range s.presence.Sweep(now) {
		s.logger.WithField("participant_id", id).Info("Participant timed out")
	}
}

func (s *Session) onVoxSample() {
	if s.base != Connected {
		return
	}
	switch s.vox.Observe(s.transmitter.Level()) {
	case VoxStart:
		if err := s.startTransmit(); err != nil {
			s.vox.Reset()
		}
	case VoxStop:
		s.stopTransmit()
	}
}

func (s *Session) onMicLost(err error) {
	s.logger.WithError(err).Warn("Microphone lost")
	s.activity.Error(systemSender, "MIC_ERROR")
	if s.vox.Enabled() {
		s.vox.SetEnabled(false)
		s.stopVox()
	}
	if s.transmitting {
		s.transmitting = false
		s.refresh()
		if s.base == Connected {
			s.publishPresence()
		}
	}
}

func (s *Session) startTransmit() error {
	if s.base != Connected || s.transmitting {
		return nil
	}
	started, err := s.transmitter.Start(s.voicePublisher(s.channel, s.topics.Voice))
	if err != nil {
		s.logger.WithError(err).Warn("Microphone unavailable")
		s.activity.Error(systemSender, "MIC_ERROR")
		return err
	}
	if started {
		s.transmitting = true
		s.refresh()
		s.publishPresence()
	}
	return nil
}

func (s *Session) stopTransmit() {
	if !s.transmitting {
		return
	}
	s.transmitter.Stop()
	s.transmitting = false
	s.refresh()
	if s.base == Connected {
		s.publishPresence()
	}
}

func (s *Session) startVox() error {
	if err := s.transmitter.SetMonitor(true); err != nil {
		s.vox.SetEnabled(false)
		s.activity.Error(systemSender, "MIC_ERROR")
		return err
	}
	// A manual transmission in progress ends; the stream stays open for VOX.
	s.stopTransmit()
	if s.voxTicker == nil {
		s.voxTicker = time.NewTicker(s.config.VoxSampleInterval)
	}
	return nil
}

func (s *Session) stopVox() {
	if s.voxTicker != nil {
		s.voxTicker.Stop()
		s.voxTicker = nil
	}
	if err := s.transmitter.SetMonitor(false); err != nil {
		s.logger.WithError(err).Debug("Failed to stop monitoring")
	}
}

// voicePublisher binds the channel and topic at transmit start so chunks
// flushed after a disconnect never reach another channel.
func (s *Session) voicePublisher(ch Channel, topic string) func(string) {
	localID := s.localID
	timeout := s.config.PublishTimeout
	logger := s.logger
	return func(payload string) {
		data, err := EncodeMessage(&VoiceMessage{SenderID: localID, Payload: payload})
		if err != nil {
			logger.WithError(err).Debug("Dropping unencodable chunk")
			return
		}
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := ch.Publish(ctx, topic, data); err != nil {
			logger.WithError(err).Debug("Voice chunk lost")
		}
	}
}

func (s *Session) publishPresence() {
	msg := &PresenceMessage{
		ParticipantID:  s.localID,
		DisplayName:    s.displayName,
		IsTransmitting: s.transmitting,
		LastSeenAt:     time.Now().UTC(),
		Coordinates:    s.position,
	}
	data, err := EncodeMessage(msg)
	if err != nil {
		s.logger.WithError(err).Warn("Failed to encode presence")
		return
	}
	s.enqueue(s.topics.Presence, data)
}

// enqueue hands a control message to the publisher goroutine. A full outbox
// drops the message.
func (s *Session) enqueue(topic string, payload []byte) {
	if s.channel == nil {
		return
	}
	select {
	case s.outbox <- outgoing{channel: s.channel, topic: topic, payload: payload}:
	default:
		s.logger.WithField("topic", topic).Debug("Outbox full, message dropped")
	}
}

func (s *Session) publisher() {
	for {
		select {
		case <-s.ctx.Done():
			return
		case o := <-s.outbox:
			ctx, cancel := context.WithTimeout(s.ctx, s.config.PublishTimeout)
			if err := o.channel.Publish(ctx, o.topic, o.payload); err != nil {
				s.logger.WithError(err).WithField("topic", o.topic).Debug("Publish failed")
			}
			cancel()
		}
	}
}

func (s *Session) fail(err error) {
	if err == nil {
		err = NewConnectError("channel failure")
	}
	var te *TalkieError
	if errors.As(err, &te) {
		s.logger.LogError(te)
	} else {
		s.logger.WithError(err).Error("Channel failure")
	}
	s.activity.Error(systemSender, "CONNECTION_REFUSED")
	s.teardownLink()
	s.setBase(ErrorState)
}

// teardownLink stops timers and audio, forgets participants and closes the
// channel. VOX stays enabled for the next connect.
func (s *Session) teardownLink() {
	if s.heartbeat != nil {
		s.heartbeat.Stop()
		s.heartbeat = nil
	}
	if s.voxTicker != nil {
		s.voxTicker.Stop()
		s.voxTicker = nil
	}
	s.transmitter.Stop()
	if err := s.transmitter.SetMonitor(false); err != nil {
		s.logger.WithError(err).Debug("Failed to stop monitoring")
	}
	s.transmitting = false
	s.vox.Reset()

	s.receiver.Clear()
	s.receiving = false
	s.presence.Clear()

	if s.channel != nil {
		s.gen++
		if err := s.channel.Close(); err != nil {
			s.logger.WithError(err).Debug("Channel close failed")
		}
		s.channel = nil
	}
}

func (s *Session) setBase(state SessionState) {
	s.base = state
	s.refresh()
}

func (s *Session) displayState() SessionState {
	if s.base != Connected {
		return s.base
	}
	if s.transmitting {
		return Transmitting
	}
	if s.receiving {
		return Receiving
	}
	return Connected
}

func (s *Session) refresh() {
	next := s.displayState()

	s.stateMu.Lock()
	prev := s.state
	s.state = next
	s.stateMu.Unlock()

	if prev == next {
		return
	}
	s.logger.LogSessionEvent("state_changed", next, map[string]interface{}{"from": string(prev)})
	select {
	case s.notify <- notice{state: next}:
	case <-s.ctx.Done():
	}
}

// notice is one item for the notifier: a state change, or an activity entry
// when entry is set.
type notice struct {
	state SessionState
	entry *LogEntry
}

func (s *Session) forwardEntry(entry LogEntry) {
	select {
	case s.notify <- notice{entry: &entry}:
	case <-s.ctx.Done():
	}
}

func (s *Session) notifier() {
	defer close(s.notifyDone)
	for {
		select {
		case <-s.ctx.Done():
			return
		case n := <-s.notify:
			s.handlersMu.Lock()
			states := inOrder(s.handlers)
			entries := inOrder(s.entryHandlers)
			s.handlersMu.Unlock()

			s.delivering.Store(true)
			if n.entry != nil {
				for _, h := range entries {
					if s.ctx.Err() != nil {
						break
					}
					h(*n.entry)
				}
			} else {
				for _, h := range states {
					if s.ctx.Err() != nil {
						break
					}
					h(n.state)
				}
			}
			s.delivering.Store(false)
		}
	}
}

// inOrder returns the handlers of m sorted by registration id.
func inOrder[H any](m map[int]H) []H {
	ids := make([]int, 0, len(m))
	for id := range m {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	out := make([]H, 0, len(ids))
	for _, id := range ids {
		out = append(out, m[id])
	}
	return out
}

func (s *Session) watchLocation() {
	for c := range s.location.Watch(s.ctx) {
		s.post(sessionEvent{kind: evLocation, coords: c})
	}
	if s.ctx.Err() == nil {
		s.post(sessionEvent{kind: evLocationLost})
	}
}

func normalizeDisplayName(name string) string {
	return strings.ToUpper(strings.TrimSpace(name))
}
