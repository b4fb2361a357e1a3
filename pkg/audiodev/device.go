// Package audiodev binds talkie's capture and playback interfaces to the
// system default PortAudio devices.
package audiodev

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/gordonklaus/portaudio"
	"github.com/mcwolfapps/TALKIE-CM/pkg/talkie"
)

// captureBacklog is how many callback buffers may wait for Read before the
// oldest are discarded.
const captureBacklog = 32

// Device opens PortAudio streams on the default input and output devices. It
// implements talkie.CaptureDevice and talkie.Player.
type Device struct {
	logger *talkie.TalkieLogger

	mu     sync.Mutex
	closed bool
}

var (
	_ talkie.CaptureDevice = (*Device)(nil)
	_ talkie.Player        = (*Device)(nil)
)

// New initializes PortAudio. Close must be called to terminate it.
func New(logger *talkie.TalkieLogger) (*Device, error) {
	if logger == nil {
		logger = talkie.GetGlobalLogger()
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, talkie.Wrapf(err, talkie.ErrCodeMicrophoneUnavailable, "initialize portaudio")
	}
	return &Device{logger: logger.WithComponent("AudioDevice")}, nil
}

func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return portaudio.Terminate()
}

// OpenCapture starts a mono input stream. Buffers arrive from the PortAudio
// callback; if the reader falls behind the oldest ones are dropped.
func (d *Device) OpenCapture(config *talkie.AudioConfig) (talkie.CaptureStream, error) {
	d.mu.Lock()
	closed := d.closed
	d.mu.Unlock()
	if closed {
		return nil, talkie.NewMicrophoneError("audio device closed")
	}

	cs := &captureStream{
		frames: make(chan []float32, captureBacklog),
		done:   make(chan struct{}),
		logger: d.logger,
	}
	stream, err := portaudio.OpenDefaultStream(config.Channels, 0, float64(config.SampleRate), config.FramesPerBuffer, cs.callback)
	if err != nil {
		return nil, talkie.Wrapf(err, talkie.ErrCodeMicrophoneUnavailable, "open input stream")
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return nil, talkie.Wrapf(err, talkie.ErrCodeMicrophoneUnavailable, "start input stream")
	}
	cs.stream = stream
	d.logger.LogAudioEvent("capture_opened", map[string]interface{}{
		"sample_rate": config.SampleRate,
		"frames":      config.FramesPerBuffer,
	})
	return cs, nil
}

type captureStream struct {
	stream *portaudio.Stream
	frames chan []float32
	done   chan struct{}
	once   sync.Once
	logger *talkie.TalkieLogger
}

func (cs *captureStream) callback(in []float32) {
	// PortAudio reuses in after the callback returns.
	frame := make([]float32, len(in))
	copy(frame, in)
	for {
		select {
		case <-cs.done:
			return
		case cs.frames <- frame:
			return
		default:
		}
		select {
		case <-cs.frames:
		default:
		}
	}
}

// Read hands out buffers that arrived before Close ahead of io.EOF.
func (cs *captureStream) Read() ([]float32, error) {
	select {
	case frame := <-cs.frames:
		return frame, nil
	default:
	}
	select {
	case frame := <-cs.frames:
		return frame, nil
	case <-cs.done:
		select {
		case frame := <-cs.frames:
			return frame, nil
		default:
			return nil, io.EOF
		}
	}
}

func (cs *captureStream) Close() error {
	var err error
	cs.once.Do(func() {
		close(cs.done)
		if stopErr := cs.stream.Stop(); stopErr != nil {
			cs.logger.WithError(stopErr).Debug("Failed to stop input stream")
		}
		err = cs.stream.Close()
		cs.logger.LogAudioEvent("capture_closed", nil)
	})
	return err
}

// Play writes samples to a fresh output stream and blocks until they have
// been rendered or ctx is done.
func (d *Device) Play(ctx context.Context, samples []float32, sampleRate int) error {
	if len(samples) == 0 {
		return nil
	}

	var (
		mu       sync.Mutex
		position int
		finished = make(chan struct{})
		once     sync.Once
	)
	stream, err := portaudio.OpenDefaultStream(0, 1, float64(sampleRate), 0, func(out []float32) {
		mu.Lock()
		defer mu.Unlock()
		n := copy(out, samples[position:])
		position += n
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
		if position >= len(samples) {
			once.Do(func() { close(finished) })
		}
	})
	if err != nil {
		return talkie.Wrapf(err, talkie.ErrCodePlaybackFailure, "open output stream")
	}
	defer stream.Close()

	if err := stream.Start(); err != nil {
		return talkie.Wrapf(err, talkie.ErrCodePlaybackFailure, "start output stream")
	}

	duration := time.Duration(float64(len(samples)) / float64(sampleRate) * float64(time.Second))
	timeout := time.NewTimer(duration*3/2 + 250*time.Millisecond)
	defer timeout.Stop()

	var result error
	select {
	case <-finished:
		// Let the device drain the final buffer.
		if latency := stream.Info().OutputLatency; latency > 0 {
			time.Sleep(latency)
		}
	case <-ctx.Done():
		result = ctx.Err()
	case <-timeout.C:
		result = talkie.NewPlaybackError("playback timed out").AddDetail("samples", len(samples))
	}

	if err := stream.Stop(); err != nil {
		d.logger.WithError(err).Debug("Failed to stop output stream")
	}
	return result
}
