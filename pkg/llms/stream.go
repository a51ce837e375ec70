package llms

// EventStream is the ordered, finite, single-use event sequence of one turn.
// It follows the iterator shape of the provider SDK streams:
//
//	for stream.Next() {
//	    ev := stream.Current()
//	}
//	err := stream.Err()
type EventStream interface {
	// Next advances to the next event, returns false at the end or on error.
	Next() bool
	// Current returns the event Next advanced to.
	Current() Event
	// Err returns the error that stopped the iteration, if any.
	Err() error
	// Close releases the underlying connection, safe to call more than once.
	Close() error
}

// SliceStream is an EventStream over a fixed list of events.
type SliceStream struct {
	events []Event
	pos    int
	err    error
	closed bool
}

// NewSliceStream returns a stream that yields events and then ends with err.
func NewSliceStream(err error, events ...Event) *SliceStream {
	return &SliceStream{events: events, pos: -1, err: err}
}

// Next implements EventStream.
func (s *SliceStream) Next() bool {
	if s.closed || s.pos+1 >= len(s.events) {
		return false
	}
	s.pos++
	return true
}

// Current implements EventStream.
func (s *SliceStream) Current() Event {
	if s.pos < 0 || s.pos >= len(s.events) {
		return nil
	}
	return s.events[s.pos]
}

// Err implements EventStream.
func (s *SliceStream) Err() error {
	if s.pos+1 < len(s.events) {
		return nil
	}
	return s.err
}

// Close implements EventStream.
func (s *SliceStream) Close() error {
	s.closed = true
	return nil
}

// IsClosed reports whether Close was called.
func (s *SliceStream) IsClosed() bool {
	return s.closed
}
