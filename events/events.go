package events

// Event is the canonical payload emitted by the settlement engines. The
// attribute map carries stringified amounts and identifiers so downstream
// consumers can index events without decoding engine types.
type Event struct {
	Type       string
	Attributes map[string]string
}

// Emitter receives events produced by the engines. Implementations must not
// retain the event map beyond the call.
type Emitter interface {
	Emit(Event)
}

// NoopEmitter discards every event. Engines default to it so callers that do
// not care about events need no wiring.
type NoopEmitter struct{}

func (NoopEmitter) Emit(Event) {}

// EmitterFunc adapts a function to the Emitter interface.
type EmitterFunc func(Event)

func (f EmitterFunc) Emit(evt Event) { f(evt) }

// Tee fans every event out to all given emitters in order.
func Tee(emitters ...Emitter) Emitter {
	return EmitterFunc(func(evt Event) {
		for _, e := range emitters {
			if e != nil {
				e.Emit(evt)
			}
		}
	})
}
