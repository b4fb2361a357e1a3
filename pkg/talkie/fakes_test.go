package talkie

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

type published struct {
	topic   string
	payload []byte
}

// fakeChannel is an in-memory Channel. Unless manual is set, Connect reports
// ChannelConnected straight away.
type fakeChannel struct {
	manual bool

	mu         sync.Mutex
	connected  bool
	closed     bool
	subscribed []string
	published  []published
	subErr     error
	events     chan ChannelEvent
}

func newFakeChannel() *fakeChannel {
	return &fakeChannel{events: make(chan ChannelEvent, 64)}
}

func (f *fakeChannel) Connect(ctx context.Context) error {
	f.mu.Lock()
	f.connected = true
	manual := f.manual
	f.mu.Unlock()
	if !manual {
		f.emit(ChannelEvent{Kind: ChannelConnected})
	}
	return nil
}

func (f *fakeChannel) Subscribe(ctx context.Context, topics ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.subErr != nil {
		return f.subErr
	}
	f.subscribed = append(f.subscribed, topics...)
	return nil
}

func (f *fakeChannel) Publish(ctx context.Context, topic string, payload []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return NewTalkieError("closed", ErrCodeNotConnected)
	}
	f.published = append(f.published, published{topic: topic, payload: append([]byte(nil), payload...)})
	return nil
}

func (f *fakeChannel) Events() <-chan ChannelEvent {
	return f.events
}

func (f *fakeChannel) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.closed = true
		close(f.events)
	}
	return nil
}

func (f *fakeChannel) emit(ev ChannelEvent) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.closed {
		f.events <- ev
	}
}

func (f *fakeChannel) deliver(topic string, payload []byte) {
	f.emit(ChannelEvent{Kind: ChannelMessage, Topic: topic, Payload: payload})
}

func (f *fakeChannel) isClosed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *fakeChannel) subscriptions() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.subscribed...)
}

func (f *fakeChannel) publishedOn(topic string) []published {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []published
	for _, p := range f.published {
		if p.topic == topic {
			out = append(out, p)
		}
	}
	return out
}

// fakeCapture produces constant frames at a settable level.
type fakeCapture struct {
	mu     sync.Mutex
	level  float32
	fail   error
	opens  int
	open   *fakeStream
	frames int
}

func (c *fakeCapture) OpenCapture(config *AudioConfig) (CaptureStream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail != nil {
		return nil, c.fail
	}
	c.opens++
	s := &fakeStream{capture: c, size: config.FramesPerBuffer, closed: make(chan struct{})}
	c.open = s
	return s, nil
}

func (c *fakeCapture) setLevel(level float32) {
	c.mu.Lock()
	c.level = level
	c.mu.Unlock()
}

func (c *fakeCapture) isOpen() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open != nil
}

// capturedSamples counts every sample handed out by Read.
func (c *fakeCapture) capturedSamples(frameSize int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.frames * frameSize
}

func (c *fakeCapture) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.opens
}

type fakeStream struct {
	capture   *fakeCapture
	size      int
	closed    chan struct{}
	closeOnce sync.Once
}

func (s *fakeStream) Read() ([]float32, error) {
	select {
	case <-s.closed:
		return nil, io.EOF
	case <-time.After(2 * time.Millisecond):
	}
	s.capture.mu.Lock()
	level := s.capture.level
	s.capture.frames++
	s.capture.mu.Unlock()

	frame := make([]float32, s.size)
	for i := range frame {
		frame[i] = level
	}
	return frame, nil
}

func (s *fakeStream) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.capture.mu.Lock()
		if s.capture.open == s {
			s.capture.open = nil
		}
		s.capture.mu.Unlock()
	})
	return nil
}

// bufferedCapture hands out frames queued by the test. Like a real device it
// still delivers queued frames after Close before reporting io.EOF.
type bufferedCapture struct {
	frames chan []float32
	closed chan struct{}
	once   sync.Once
}

func newBufferedCapture() *bufferedCapture {
	return &bufferedCapture{frames: make(chan []float32, 16), closed: make(chan struct{})}
}

func (c *bufferedCapture) OpenCapture(*AudioConfig) (CaptureStream, error) {
	return c, nil
}

func (c *bufferedCapture) queue(n, size int) {
	for i := 0; i < n; i++ {
		c.frames <- make([]float32, size)
	}
}

func (c *bufferedCapture) Read() ([]float32, error) {
	select {
	case f := <-c.frames:
		return f, nil
	default:
	}
	select {
	case f := <-c.frames:
		return f, nil
	case <-c.closed:
		select {
		case f := <-c.frames:
			return f, nil
		default:
			return nil, io.EOF
		}
	}
}

func (c *bufferedCapture) Close() error {
	c.once.Do(func() { close(c.closed) })
	return nil
}

// fakePlayer records the first sample of everything it plays. When gate is
// set, each Play waits for a value on it.
type fakePlayer struct {
	gate  chan struct{}
	delay time.Duration

	mu    sync.Mutex
	plays []float32
}

func (p *fakePlayer) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if p.gate != nil {
		select {
		case <-p.gate:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	p.mu.Lock()
	first := float32(0)
	if len(samples) > 0 {
		first = samples[0]
	}
	p.plays = append(p.plays, first)
	p.mu.Unlock()
	return nil
}

func (p *fakePlayer) played() []float32 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]float32(nil), p.plays...)
}

// numberCodec decodes "N" to a single sample N and refuses anything starting
// with "bad".
type numberCodec struct{}

func (numberCodec) Encode(samples []float32) (string, error) {
	return strconv.Itoa(len(samples)), nil
}

func (numberCodec) Decode(payload string) ([]float32, error) {
	if strings.HasPrefix(payload, "bad") {
		return nil, NewDecodeError("bad payload")
	}
	n, err := strconv.Atoi(payload)
	if err != nil {
		return nil, errors.New("not a number")
	}
	return []float32{float32(n)}, nil
}
