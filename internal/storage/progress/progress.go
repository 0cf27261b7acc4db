package progress

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/jgivc/lmsexport/internal/common"
	"github.com/jgivc/lmsexport/internal/entity"
)

/*
Channel carries the events of one job from a single publisher to a single subscriber.
The publisher takes the channel with Claim, ends the stream with Finish; the subscriber
leaves with Detach. Only the claiming goroutine may Publish or Finish.
*/
type Channel struct {
	id       string
	events   chan *entity.Event
	gone     chan struct{}
	finished chan struct{}
	claimed  atomic.Bool

	finishOnce sync.Once
	detachOnce sync.Once
	onRelease  func()
}

func (c *Channel) ID() string {
	return c.id
}

// Events is read by the subscriber. It is closed once the publisher called Finish
// and every queued event has been read.
func (c *Channel) Events() <-chan *entity.Event {
	return c.events
}

// Gone is closed when the subscriber detached.
func (c *Channel) Gone() <-chan struct{} {
	return c.gone
}

// Claim makes the caller the publisher. A channel is claimed once.
func (c *Channel) Claim() error {
	if !c.claimed.CompareAndSwap(false, true) {
		return common.ErrJobExists
	}

	return nil
}

// Publish queues ev, blocking while the buffer is full.
func (c *Channel) Publish(ctx context.Context, ev *entity.Event) error {
	select {
	case <-c.finished:
		return common.ErrChannelClosed
	case <-c.gone:
		return common.ErrChannelClosed
	default:
	}

	select {
	case c.events <- ev:
		return nil
	case <-c.gone:
		return common.ErrChannelClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Finish ends the event stream and unregisters the channel. Only the publisher calls it.
func (c *Channel) Finish() {
	c.finishOnce.Do(func() {
		close(c.finished)
		close(c.events)
		c.onRelease()
	})
}

// Detach is called by the subscriber when it stops reading.
func (c *Channel) Detach() {
	c.detachOnce.Do(func() {
		close(c.gone)
		c.onRelease()
	})
}

// Registry maps job ids to open channels.
type Registry struct {
	mu       sync.Mutex
	channels map[string]*Channel
	buffer   int
	log      *slog.Logger
}

func NewRegistry(buffer int, log *slog.Logger) *Registry {
	return &Registry{
		channels: make(map[string]*Channel),
		buffer:   buffer,
		log:      log.With(slog.String("item", "ProgressRegistry")),
	}
}

// Open registers a channel for jobID.
func (r *Registry) Open(jobID string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.channels[jobID]; exists {
		return nil, common.ErrJobExists
	}

	ch := &Channel{
		id:       jobID,
		events:   make(chan *entity.Event, r.buffer),
		gone:     make(chan struct{}),
		finished: make(chan struct{}),
	}
	ch.onRelease = func() { r.remove(ch) }

	r.channels[jobID] = ch
	r.log.Debug("Channel opened", slog.String("job_id", jobID))

	return ch, nil
}

func (r *Registry) Get(jobID string) (*Channel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[jobID]
	if !exists {
		return nil, common.ErrJobNotFound
	}

	return ch, nil
}

func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.channels)
}

func (r *Registry) remove(ch *Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, exists := r.channels[ch.id]; exists && cur == ch {
		delete(r.channels, ch.id)
		r.log.Debug("Channel released", slog.String("job_id", ch.id))
	}
}
