package talkie

import (
	"context"
	"sync"
)

// PlaybackQueue is a bounded FIFO of encoded voice payloads in arrival order.
// When full, the oldest entry is dropped to make room. It is not safe for
// concurrent use; Receiver guards it.
type PlaybackQueue struct {
	items []string
	max   int
}

func NewPlaybackQueue(max int) *PlaybackQueue {
	if max < 1 {
		max = 1
	}
	return &PlaybackQueue{max: max}
}

// Push appends payload and returns how many old entries were dropped.
func (q *PlaybackQueue) Push(payload string) int {
	dropped := 0
	for len(q.items) >= q.max {
		q.items[0] = ""
		q.items = q.items[1:]
		dropped++
	}
	q.items = append(q.items, payload)
	return dropped
}

func (q *PlaybackQueue) Pop() (string, bool) {
	if len(q.items) == 0 {
		return "", false
	}
	head := q.items[0]
	q.items[0] = ""
	q.items = q.items[1:]
	return head, true
}

func (q *PlaybackQueue) Len() int {
	return len(q.items)
}

func (q *PlaybackQueue) Clear() {
	q.items = nil
}

// ReceiverStats counts inbound chunks since the Receiver was created.
type ReceiverStats struct {
	Enqueued         int
	Played           int
	Dropped          int
	DecodeFailures   int
	PlaybackFailures int
	Queued           int
}

// Receiver drains a PlaybackQueue one chunk at a time: decode, play to
// completion, then the next. Chunks that fail to decode are skipped.
type Receiver struct {
	codec      Codec
	player     Player
	sampleRate int
	logger     *TalkieLogger

	mu        sync.Mutex
	queue     *PlaybackQueue
	playing   bool
	gen       uint64
	cancel    context.CancelFunc
	drainDone chan struct{}
	onIdle    func()
	stats     ReceiverStats
}

func NewReceiver(codec Codec, player Player, sampleRate, maxQueued int, logger *TalkieLogger) *Receiver {
	if logger == nil {
		logger = GetGlobalLogger()
	}
	return &Receiver{
		codec:      codec,
		player:     player,
		sampleRate: sampleRate,
		logger:     logger.WithComponent("Receiver"),
		queue:      NewPlaybackQueue(maxQueued),
	}
}

// SetIdleHandler registers fn to run after the queue drains to empty. It is
// not called for Clear.
func (r *Receiver) SetIdleHandler(fn func()) {
	r.mu.Lock()
	r.onIdle = fn
	r.mu.Unlock()
}

// Enqueue appends payload and starts draining if nothing is playing. started
// reports whether this call began a new drain.
func (r *Receiver) Enqueue(payload string) (started bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if dropped := r.queue.Push(payload); dropped > 0 {
		r.stats.Dropped += dropped
		r.logger.Debugf("Playback backlog full, dropped %d oldest chunk(s)", dropped)
	}
	r.stats.Enqueued++
	if r.playing {
		return false
	}

	r.playing = true
	ctx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	prev := r.drainDone
	done := make(chan struct{})
	r.drainDone = done
	go r.drain(ctx, r.gen, prev, done)
	return true
}

// Active reports whether a drain is in progress.
func (r *Receiver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.playing
}

// Clear discards pending chunks and cuts the current one short. It does not
// wait for the player to return.
func (r *Receiver) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.queue.Clear()
	if !r.playing {
		return
	}
	r.gen++
	r.playing = false
	if r.cancel != nil {
		r.cancel()
		r.cancel = nil
	}
}

func (r *Receiver) Stats() ReceiverStats {
	r.mu.Lock()
	defer r.mu.Unlock()
	s := r.stats
	s.Queued = r.queue.Len()
	return s
}

func (r *Receiver) drain(ctx context.Context, gen uint64, prev, done chan struct{}) {
	defer close(done)
	// A drain cut short by Clear may still be inside Play.
	if prev != nil {
		<-prev
	}

	for {
		r.mu.Lock()
		if gen != r.gen {
			r.mu.Unlock()
			return
		}
		payload, ok := r.queue.Pop()
		if !ok {
			r.playing = false
			if r.cancel != nil {
				r.cancel()
				r.cancel = nil
			}
			onIdle := r.onIdle
			r.mu.Unlock()
			if onIdle != nil {
				onIdle()
			}
			return
		}
		r.mu.Unlock()

		samples, err := r.codec.Decode(payload)
		if err != nil {
			r.count(func(s *ReceiverStats) { s.DecodeFailures++ })
			r.logger.WithError(err).Debug("Skipping undecodable chunk")
			continue
		}
		if err := r.player.Play(ctx, samples, r.sampleRate); err != nil {
			if ctx.Err() != nil {
				return
			}
			r.count(func(s *ReceiverStats) { s.PlaybackFailures++ })
			r.logger.WithError(err).Warn("Playback failed")
			continue
		}
		r.count(func(s *ReceiverStats) { s.Played++ })
	}
}

func (r *Receiver) count(fn func(*ReceiverStats)) {
	r.mu.Lock()
	fn(&r.stats)
	r.mu.Unlock()
}
