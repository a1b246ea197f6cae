package core

import "sync"

// Event is one progress update emitted while a workflow run executes.
type Event struct {
	Agent         string    `json:"agent"`
	Status        string    `json:"status"`
	Iteration     int       `json:"iteration,omitempty"`
	MaxIterations int       `json:"max_iterations,omitempty"`
	Tool          string    `json:"tool,omitempty"`
	Error         string    `json:"error,omitempty"`
	Result        *Envelope `json:"result,omitempty"`
}

// Terminal reports whether this event closes the stream.
func (e Event) Terminal() bool {
	return e.Agent == AgentComplete || (e.Status == "error" && e.Result != nil)
}

// Reporter buffers progress events for a consumer that polls at its own pace.
// Publishing never blocks the workflow: when the buffer is full the oldest
// event is dropped, since a stale intermediate update is worth less than
// keeping the pipeline moving. A nil Reporter swallows everything, so stages
// never branch on whether anyone is listening.
type Reporter struct {
	mu     sync.Mutex
	events chan Event
	closed bool
}

// NewReporter creates a Reporter with the given buffer capacity.
func NewReporter(buffer int) *Reporter {
	if buffer <= 0 {
		buffer = 64
	}
	return &Reporter{events: make(chan Event, buffer)}
}

// Publish enqueues an event, dropping the oldest buffered event when full.
func (r *Reporter) Publish(ev Event) {
	if r == nil {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	for {
		select {
		case r.events <- ev:
			return
		default:
			select {
			case <-r.events:
			default:
			}
		}
	}
}

// Poll drains and returns all currently buffered events without blocking.
func (r *Reporter) Poll() []Event {
	if r == nil {
		return nil
	}
	var out []Event
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// Finish publishes the single terminal event carrying the final envelope and
// closes the stream. Safe to call once.
func (r *Reporter) Finish(env *Envelope) {
	if r == nil {
		return
	}
	status := "done"
	if env != nil && env.Status == StatusFailed {
		status = "error"
	}
	r.Publish(Event{Agent: AgentComplete, Status: status, Result: env})
	r.mu.Lock()
	if !r.closed {
		r.closed = true
		close(r.events)
	}
	r.mu.Unlock()
}

// Done reports whether the stream has been closed.
func (r *Reporter) Done() bool {
	if r == nil {
		return true
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closed
}
