package events

import (
	"io"
	"log"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

// LogSink writes one INFO line per event.
type LogSink struct{}

// Emit logs the event.
func (LogSink) Emit(event Event) {
	log.Printf("INFO: %s %s highest=%s bidder=%s", event.Type, event.Asset, event.Auction.HighestBid, event.Auction.HighestBidder)
}

// MultiSink fans an event out to several sinks in order.
type MultiSink []Sink

// Emit forwards the event to every sink.
func (m MultiSink) Emit(event Event) {
	for _, sink := range m {
		sink.Emit(event)
	}
}

// Journal appends CBOR-encoded events to a writer. The journal is the
// durable indexer feed: replaying it reconstructs every closed auction.
type Journal struct {
	mu  sync.Mutex
	enc *cbor.Encoder
}

// NewJournal creates a journal writing to w.
func NewJournal(w io.Writer) *Journal {
	return &Journal{enc: cbor.NewEncoder(w)}
}

// Emit appends the event. A write failure is logged, never propagated: the
// journal must not block a settlement that already happened.
func (j *Journal) Emit(event Event) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if err := j.enc.Encode(event); err != nil {
		log.Printf("ERROR: Failed to journal %s event %s: %v", event.Type, event.ID, err)
	}
}

// ReadJournal decodes every event from a journal stream.
func ReadJournal(r io.Reader) ([]Event, error) {
	dec := cbor.NewDecoder(r)
	var out []Event
	for {
		var event Event
		if err := dec.Decode(&event); err != nil {
			if err == io.EOF {
				return out, nil
			}
			return out, err
		}
		out = append(out, event)
	}
}

// Recorder retains emitted events in memory, for tests and inspection.
type Recorder struct {
	mu     sync.Mutex
	events []Event
}

// Emit records the event.
func (r *Recorder) Emit(event Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

// Events returns a copy of everything recorded so far.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Event, len(r.events))
	copy(out, r.events)
	return out
}

// Last returns the most recent event, or a zero Event if none.
func (r *Recorder) Last() Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return Event{}
	}
	return r.events[len(r.events)-1]
}
