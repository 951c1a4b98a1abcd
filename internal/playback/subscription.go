package playback

const eventBufferSize = 16

// Subscription delivers service events to one subscriber. Events are dropped
// when the subscriber's buffer is full.
type Subscription struct {
	TrackChanged    <-chan TrackChange
	PositionChanged <-chan PositionChange
	QueueChanged    <-chan QueueChange
	ModeChanged     <-chan ModeChange
	Error           <-chan ErrorEvent
	Done            <-chan struct{}

	track    chan TrackChange
	position chan PositionChange
	queue    chan QueueChange
	mode     chan ModeChange
	errs     chan ErrorEvent
	done     chan struct{}
}

func newSubscription() *Subscription {
	s := &Subscription{
		track:    make(chan TrackChange, eventBufferSize),
		position: make(chan PositionChange, eventBufferSize),
		queue:    make(chan QueueChange, eventBufferSize),
		mode:     make(chan ModeChange, eventBufferSize),
		errs:     make(chan ErrorEvent, eventBufferSize),
		done:     make(chan struct{}),
	}
	s.TrackChanged, s.PositionChanged, s.QueueChanged = s.track, s.position, s.queue
	s.ModeChanged, s.Error, s.Done = s.mode, s.errs, s.done
	return s
}

func (s *Subscription) close() {
	close(s.done)
}

// publish routes e to its channel. It never blocks.
func (s *Subscription) publish(e any) bool {
	switch e := e.(type) {
	case TrackChange:
		return offer(s.track, e)
	case PositionChange:
		return offer(s.position, e)
	case QueueChange:
		return offer(s.queue, e)
	case ModeChange:
		return offer(s.mode, e)
	case ErrorEvent:
		return offer(s.errs, e)
	default:
		return false
	}
}

// offer sends v unless ch is full.
func offer[T any](ch chan<- T, v T) bool {
	select {
	case ch <- v:
		return true
	default:
		return false
	}
}
