package param

// Change is the notification emitted by a successful assignment. It carries
// the parameter name and the normalized new value.
type Change struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

// Subscribe registers a change channel with the given buffer size and returns
// it. Delivery is non-blocking: if a subscriber's buffer is full the
// notification is dropped for that subscriber. Consumers that rebuild from
// Snapshot (the reactive binding) lose nothing from a dropped trigger, since
// any later notification observes the full current state.
func (s *Set) Subscribe(buffer int) <-chan Change {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Change, buffer)

	s.mu.Lock()
	s.subs = append(s.subs, ch)
	s.mu.Unlock()

	return ch
}

func publish(subs []chan Change, c Change) {
	for _, ch := range subs {
		select {
		case ch <- c:
		default:
		}
	}
}
