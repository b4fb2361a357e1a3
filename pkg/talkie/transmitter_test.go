package talkie

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// chunkSink collects published payloads.
type chunkSink struct {
	mu       sync.Mutex
	payloads []string
}

func (s *chunkSink) publish(payload string) {
	s.mu.Lock()
	s.payloads = append(s.payloads, payload)
	s.mu.Unlock()
}

func (s *chunkSink) samples(t *testing.T) int {
	t.Helper()
	total := 0
	for i, p := range s.all() {
		samples, err := PCM16Codec{}.Decode(p)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		total += len(samples)
	}
	return total
}

func (s *chunkSink) all() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.payloads...)
}

// testAudio gives 200 samples per 200ms chunk and 50 samples per frame.
func testAudio() *AudioConfig {
	return &AudioConfig{SampleRate: 1000, Channels: 1, FramesPerBuffer: 50}
}

func TestTransmitterChunksAndFlushesOnStop(t *testing.T) {
	capture := &fakeCapture{level: 0.25}
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	sink := &chunkSink{}

	started, err := tx.Start(sink.publish)
	if err != nil || !started {
		t.Fatalf("Start = %v, %v", started, err)
	}
	waitFor(t, 2*time.Second, "two full chunks", func() bool { return len(sink.all()) >= 2 })

	tx.Stop()
	if capture.isOpen() {
		t.Fatal("capture stream still open after Stop returned")
	}
	tx.Close()

	payloads := sink.all()
	codec := PCM16Codec{}
	for i, p := range payloads {
		samples, err := codec.Decode(p)
		if err != nil {
			t.Fatalf("chunk %d: %v", i, err)
		}
		last := i == len(payloads)-1
		if !last && len(samples) != 200 {
			t.Errorf("chunk %d has %d samples, want 200", i, len(samples))
		}
		if last && (len(samples) == 0 || len(samples) > 200) {
			t.Errorf("final chunk has %d samples", len(samples))
		}
	}
	if got := tx.Stats().ChunksSent; got != int64(len(payloads)) {
		t.Errorf("ChunksSent = %d, published %d", got, len(payloads))
	}
	if got, want := sink.samples(t), capture.capturedSamples(50); got != want {
		t.Errorf("published %d samples, captured %d", got, want)
	}
}

func TestTransmitterPublishesFramesHeldAtStop(t *testing.T) {
	capture := newBufferedCapture()
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	sink := &chunkSink{}

	if _, err := tx.Start(sink.publish); err != nil {
		t.Fatal(err)
	}
	// Three frames captured during the transmission, most still queued in
	// the device when Stop closes it.
	capture.queue(3, 50)
	tx.Stop()
	tx.Close()

	payloads := sink.all()
	if len(payloads) != 1 {
		t.Fatalf("published %d chunks right after Close, want 1", len(payloads))
	}
	if got := sink.samples(t); got != 150 {
		t.Errorf("published %d samples, want 150", got)
	}
}

func TestTransmitterCloseWaitsForEarlierRuns(t *testing.T) {
	capture := newBufferedCapture()
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())

	release := make(chan struct{})
	var mu sync.Mutex
	published := 0
	slow := func(string) {
		<-release
		mu.Lock()
		published++
		mu.Unlock()
	}

	tx.Start(slow)
	capture.queue(1, 50)
	tx.Stop()

	closed := make(chan struct{})
	go func() {
		tx.Close()
		close(closed)
	}()
	select {
	case <-closed:
		t.Fatal("Close returned while a chunk was still being published")
	case <-time.After(50 * time.Millisecond):
	}
	close(release)
	select {
	case <-closed:
	case <-time.After(time.Second):
		t.Fatal("Close did not return")
	}
	mu.Lock()
	defer mu.Unlock()
	if published != 1 {
		t.Errorf("published %d chunks", published)
	}
}

func TestTransmitterStartIsIdempotent(t *testing.T) {
	capture := &fakeCapture{}
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	defer tx.Close()
	sink := &chunkSink{}

	if started, err := tx.Start(sink.publish); !started || err != nil {
		t.Fatalf("first Start = %v, %v", started, err)
	}
	if started, err := tx.Start(sink.publish); started || err != nil {
		t.Fatalf("second Start = %v, %v, want no-op", started, err)
	}
	if n := capture.openCount(); n != 1 {
		t.Errorf("capture opened %d times", n)
	}
	if !tx.Stop() {
		t.Error("Stop reported nothing to stop")
	}
	if tx.Stop() {
		t.Error("second Stop reported a running transmission")
	}
}

func TestTransmitterMicrophoneUnavailable(t *testing.T) {
	capture := &fakeCapture{fail: errors.New("no input device")}
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	defer tx.Close()

	started, err := tx.Start(func(string) {})
	if started {
		t.Fatal("Start reported success without a device")
	}
	if !IsErrorCode(err, ErrCodeMicrophoneUnavailable) {
		t.Fatalf("err = %v, want %s", err, ErrCodeMicrophoneUnavailable)
	}
	if tx.Transmitting() || tx.Capturing() {
		t.Error("transmitter left in a running state")
	}
}

func TestTransmitterMonitorKeepsStreamOpen(t *testing.T) {
	capture := &fakeCapture{level: 0.1}
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	defer tx.Close()
	sink := &chunkSink{}

	if err := tx.SetMonitor(true); err != nil {
		t.Fatal(err)
	}
	waitFor(t, time.Second, "analyser level", func() bool { return tx.Level() > 0.05 })
	if len(sink.all()) != 0 {
		t.Fatal("monitoring published audio")
	}

	tx.Start(sink.publish)
	waitFor(t, 2*time.Second, "a chunk", func() bool { return len(sink.all()) >= 1 })
	tx.Stop()
	if !capture.isOpen() {
		t.Fatal("Stop closed the stream while monitoring")
	}
	if n := capture.openCount(); n != 1 {
		t.Errorf("capture opened %d times", n)
	}

	if err := tx.SetMonitor(false); err != nil {
		t.Fatal(err)
	}
	if capture.isOpen() {
		t.Error("stream open after monitoring ended")
	}
	if tx.Level() != 0 {
		t.Errorf("level = %f after release", tx.Level())
	}
}

func TestTransmitterPreservesCaptureOrder(t *testing.T) {
	capture := &fakeCapture{}
	tx := NewTransmitter(capture, testAudio(), PCM16Codec{}, 200*time.Millisecond, NopLogger())
	sink := &chunkSink{}

	tx.Start(sink.publish)
	for i := 1; i <= 5; i++ {
		want := i
		capture.setLevel(float32(i) / 10)
		waitFor(t, 2*time.Second, "next chunk", func() bool { return len(sink.all()) >= want+1 })
	}
	tx.Stop()
	tx.Close()

	codec := PCM16Codec{}
	prev := float32(-1)
	for i, p := range sink.all() {
		samples, err := codec.Decode(p)
		if err != nil {
			t.Fatal(err)
		}
		if samples[0] < prev {
			t.Fatalf("chunk %d starts at %f after %f", i, samples[0], prev)
		}
		prev = samples[len(samples)-1]
	}
}
