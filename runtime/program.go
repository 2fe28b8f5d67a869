package runtime

import (
	"github.com/sfncore/frankentui/event"
	"github.com/sfncore/frankentui/render"
)

// Model is the application contract: an Elm-style state machine whose view
// draws into a frame. Update and View are called from the loop's thread and
// must not block.
type Model interface {
	// Init returns the command to run before the first event.
	Init() Cmd
	// Update folds a message into the model and returns the next effect.
	Update(msg Msg) Cmd
	// View draws the model. Only the frame's draw methods may be used.
	View(f *render.Frame)
}

// EventMsg wraps a terminal input event as a message.
type EventMsg struct {
	Event event.Event
}

// ResizeAppliedMsg tells the model its drawing surface changed. Delivered
// after the coalescer releases a size and the buffers are reallocated.
type ResizeAppliedMsg struct {
	Width  int
	Height int
}

// Subscription is a declarative event source. Start begins delivery through
// post and returns a stop function; the loop diffs subscription sets by ID
// each frame and starts/stops the difference.
type Subscription struct {
	ID    string
	Start func(post func(Msg)) (stop func())
}

// Subscriber is implemented by models with declarative event sources.
type Subscriber interface {
	Subscriptions() []Subscription
}
