package talkie

import (
	"sync"
	"sync/atomic"
	"time"
)

const chunkBacklog = 16

// Transmitter owns the microphone. It segments the capture stream into
// fixed-duration chunks, encodes them and hands each payload to the publish
// function bound at Start, in capture order.
//
// In monitor mode the stream stays open while not transmitting so the
// analyser keeps feeding the VOX trigger; nothing is published.
type Transmitter struct {
	device       CaptureDevice
	audio        *AudioConfig
	codec        Codec
	analyser     *Analyser
	chunkSamples int
	logger       *TalkieLogger

	mu       sync.Mutex
	run      *captureRun
	draining []chan struct{}
	sending  bool
	monitor  bool
	seq      uint64
	publish  func(payload string)
	onLost   func(error)

	chunksSent   atomic.Int64
	chunksFailed atomic.Int64
}

type captureRun struct {
	stream CaptureStream
	stop   chan struct{}
	chunks chan outgoingChunk
	done   chan struct{}
	// final receives frames read after stop; nil when the run ended idle.
	final  func(string)
}

type outgoingChunk struct {
	payload string
	publish func(string)
}

func (r *captureRun) stopped() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// TransmitStats counts chunks since the Transmitter was created.
type TransmitStats struct {
	ChunksSent   int64
	ChunksFailed int64
}

func NewTransmitter(device CaptureDevice, audio *AudioConfig, codec Codec, chunkDuration time.Duration, logger *TalkieLogger) *Transmitter {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	chunkSamples := audio.SamplesIn(chunkDuration)
	if chunkSamples < 1 {
		chunkSamples = 1
	}
	return &Transmitter{
		device:       device,
		audio:        audio,
		codec:        codec,
		analyser:     NewAnalyser(),
		chunkSamples: chunkSamples,
		logger:       logger.WithComponent("Transmitter"),
	}
}

// SetLostHandler registers fn to be called from the capture goroutine when the
// stream fails on its own. The Transmitter has already reset itself by then.
func (t *Transmitter) SetLostHandler(fn func(error)) {
	t.mu.Lock()
	t.onLost = fn
	t.mu.Unlock()
}

// Start begins publishing chunks through publish. It returns started=false
// without error if a transmission is already running.
func (t *Transmitter) Start(publish func(payload string)) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.sending {
		return false, nil
	}
	if err := t.ensureRunLocked(); err != nil {
		return false, err
	}
	t.seq++
	t.sending = true
	t.publish = publish
	t.logger.LogAudioEvent("transmit_started", map[string]interface{}{"chunk_samples": t.chunkSamples})
	return true, nil
}

// Stop halts chunk emission. Everything captured so far, including frames the
// device still holds, is published. Unless monitoring, the stream is closed
// before Stop returns.
func (t *Transmitter) Stop() bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.sending {
		return false
	}
	pub := t.publish
	t.sending = false
	t.publish = nil
	if !t.monitor {
		t.stopRunLocked(pub)
	}
	t.logger.LogAudioEvent("transmit_stopped", nil)
	return true
}

// SetMonitor keeps the stream open for analysis while not transmitting.
func (t *Transmitter) SetMonitor(on bool) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if on == t.monitor {
		return nil
	}
	if on {
		if err := t.ensureRunLocked(); err != nil {
			return err
		}
		t.monitor = true
		return nil
	}
	t.monitor = false
	if !t.sending {
		t.stopRunLocked(nil)
	}
	return nil
}

func (t *Transmitter) Transmitting() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sending
}

// Capturing reports whether the microphone is open.
func (t *Transmitter) Capturing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.run != nil
}

// Level is the energy of the latest captured frame, zero while the stream is
// closed.
func (t *Transmitter) Level() float64 {
	if !t.Capturing() {
		return 0
	}
	return t.analyser.Level()
}

func (t *Transmitter) Stats() TransmitStats {
	return TransmitStats{
		ChunksSent:   t.chunksSent.Load(),
		ChunksFailed: t.chunksFailed.Load(),
	}
}

// Close stops transmitting and monitoring and waits until every captured chunk
// has been handed to its publish function.
func (t *Transmitter) Close() {
	t.mu.Lock()
	var pub func(string)
	if t.sending {
		pub = t.publish
	}
	t.sending = false
	t.monitor = false
	t.publish = nil
	t.stopRunLocked(pub)
	draining := t.draining
	t.draining = nil
	t.mu.Unlock()

	for _, done := range draining {
		<-done
	}
}

func (t *Transmitter) ensureRunLocked() error {
	if t.run != nil {
		return nil
	}
	stream, err := t.device.OpenCapture(t.audio)
	if err != nil {
		return Wrapf(err, ErrCodeMicrophoneUnavailable, "open capture stream")
	}
	run := &captureRun{
		stream: stream,
		stop:   make(chan struct{}),
		chunks: make(chan outgoingChunk, chunkBacklog),
		done:   make(chan struct{}),
	}
	t.run = run
	go t.captureLoop(run)
	go t.sendLoop(run)
	return nil
}

// stopRunLocked closes the stream. Frames the device still holds go to final.
func (t *Transmitter) stopRunLocked(final func(string)) {
	run := t.run
	if run == nil {
		return
	}
	t.run = nil
	run.final = final
	t.trackDrainLocked(run)
	close(run.stop)
	if err := run.stream.Close(); err != nil {
		t.logger.WithError(err).Warn("Failed to close capture stream")
	}
	t.analyser.Reset()
}

// trackDrainLocked remembers run until its sender has finished, forgetting
// runs that already have.
func (t *Transmitter) trackDrainLocked(run *captureRun) {
	live := t.draining[:0]
	for _, done := range t.draining {
		select {
		case <-done:
		default:
			live = append(live, done)
		}
	}
	t.draining = append(live, run.done)
}

func (t *Transmitter) captureLoop(run *captureRun) {
	defer close(run.chunks)

	var (
		buf     = make([]float32, 0, t.chunkSamples*2)
		lastSeq uint64
		lastPub func(string)
	)
	emit := func(samples []float32) {
		if lastPub == nil || len(samples) == 0 {
			return
		}
		payload, err := t.codec.Encode(samples)
		if err != nil {
			t.chunksFailed.Add(1)
			t.logger.WithError(err).Debug("Dropping chunk that failed to encode")
			return
		}
		run.chunks <- outgoingChunk{payload: payload, publish: lastPub}
	}
	flush := func() {
		emit(buf)
		buf = buf[:0]
	}
	push := func(frame []float32) {
		buf = append(buf, frame...)
		for len(buf) >= t.chunkSamples {
			emit(buf[:t.chunkSamples])
			buf = append(buf[:0], buf[t.chunkSamples:]...)
		}
	}

	for {
		frame, err := run.stream.Read()
		if err != nil {
			if !run.stopped() {
				t.lost(run, err)
			}
			break
		}

		// Stop clears sending and closes stop under mu, so reading both
		// together never loses the frames at the end of a transmission.
		t.mu.Lock()
		stopped := run.stopped()
		final := run.final
		sending, seq, pub := t.sending, t.seq, t.publish
		t.mu.Unlock()

		if stopped {
			if final != nil {
				lastPub = final
				push(frame)
			}
			continue
		}
		t.analyser.Update(frame)

		if seq != lastSeq {
			flush()
			lastSeq = seq
		}
		if !sending {
			flush()
			lastPub = nil
			continue
		}
		lastPub = pub
		push(frame)
	}
	flush()
}

func (t *Transmitter) sendLoop(run *captureRun) {
	defer close(run.done)
	for c := range run.chunks {
		c.publish(c.payload)
		t.chunksSent.Add(1)
	}
}

func (t *Transmitter) lost(run *captureRun, cause error) {
	t.mu.Lock()
	if t.run != run {
		t.mu.Unlock()
		return
	}
	t.run = nil
	t.trackDrainLocked(run)
	t.sending = false
	t.monitor = false
	t.publish = nil
	onLost := t.onLost
	t.mu.Unlock()

	close(run.stop)
	_ = run.stream.Close()
	t.analyser.Reset()

	err := Wrapf(cause, ErrCodeMicrophoneUnavailable, "capture stream failed")
	t.logger.WithError(cause).Warn("Capture stream lost")
	if onLost != nil {
		onLost(err)
	}
}
