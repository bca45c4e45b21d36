package progress

import "context"

// Sink consumes batches of progress events. Implementations must tolerate
// repeated calls, honor ctx deadlines, and may be invoked from the hub's
// background goroutine.
type Sink interface {
	Consume(ctx context.Context, batch []Event) error
	Close(ctx context.Context) error
}

// Emitter publishes individual events; Hub satisfies it so the fetch loop
// stays agnostic about buffering and persistence. A nil *Hub is a valid no-op
// Emitter.
type Emitter interface {
	Emit(evt Event)
}
