package talkie

import "context"

// LocationSource supplies best-effort position fixes. The channel may never
// deliver and is closed when ctx is done or the source gives up.
type LocationSource interface {
	Watch(ctx context.Context) <-chan Coordinates
}

// StaticLocation reports a single fixed position.
type StaticLocation struct {
	Coordinates Coordinates
}

func (s StaticLocation) Watch(ctx context.Context) <-chan Coordinates {
	ch := make(chan Coordinates, 1)
	ch <- s.Coordinates
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}

// NoLocation never resolves.
type NoLocation struct{}

func (NoLocation) Watch(ctx context.Context) <-chan Coordinates {
	ch := make(chan Coordinates)
	go func() {
		<-ctx.Done()
		close(ch)
	}()
	return ch
}
