package events

// MultiEmitter fans every event out to all configured sinks in order.
type MultiEmitter []Emitter

func (m MultiEmitter) Emit(evt Event) {
	for _, sink := range m {
		if sink != nil {
			sink.Emit(evt)
		}
	}
}
