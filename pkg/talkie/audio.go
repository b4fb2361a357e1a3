package talkie

import "context"

// CaptureDevice hands out exclusive input streams.
type CaptureDevice interface {
	OpenCapture(config *AudioConfig) (CaptureStream, error)
}

// CaptureStream is an open microphone. Read blocks until one buffer of
// FramesPerBuffer samples is available. Close releases the device and makes a
// pending Read return; buffers captured before Close may still be read, after
// which Read returns an error.
type CaptureStream interface {
	Read() ([]float32, error)
	Close() error
}

// Player plays decoded samples to completion or until ctx is done.
type Player interface {
	Play(ctx context.Context, samples []float32, sampleRate int) error
}
