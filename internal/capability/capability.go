// Package capability defines the debugging engine a remote session
// carries bytes for.  The session only needs three things from it:
// run an interactive loop at a frame, and be told to resume or to stop
// tracing.  Everything else (commands, evaluation) is the engine's own
// business.
package capability

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"runtime/debug"
)

// Frame is the execution point a break was requested at.
type Frame struct {
	Function string
	File     string
	Line     int
	Stack    []byte         // stack of the paused goroutine
	Locals   map[string]any // watched values captured at the break
}

// String renders the frame the way the console prints its location.
func (f Frame) String() string {
	fn := f.Function
	if fn == "" {
		fn = "?"
	}
	return fmt.Sprintf("%s() %s:%d", fn, filepath.Base(f.File), f.Line)
}

// Caller resolves the frame skip levels above the caller of Caller.
func Caller(skip int) Frame {
	pc, file, line, ok := runtime.Caller(skip + 1)
	f := Frame{File: file, Line: line, Stack: debug.Stack()}
	if ok {
		if fn := runtime.FuncForPC(pc); fn != nil {
			f.Function = fn.Name()
		}
	}
	return f
}

// Outcome is how an interactive loop ended.
type Outcome int

const (
	// OutcomeNone means the loop returned without ending the session.
	OutcomeNone Outcome = iota
	// OutcomeContinue means the operator resumed the program.
	OutcomeContinue
	// OutcomeQuit means the operator ended the session and disabled
	// tracing.
	OutcomeQuit
	// OutcomeDisconnect means the peer went away or the stream failed.
	OutcomeDisconnect
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "none"
	case OutcomeContinue:
		return "continue"
	case OutcomeQuit:
		return "quit"
	case OutcomeDisconnect:
		return "disconnect"
	default:
		return "unknown"
	}
}

// Hooks are the only way an engine may end a session from inside its
// command loop.  Both close the session before signalling the engine.
type Hooks interface {
	OnContinue() error
	OnQuit() error
}

// Engine is the command-interpretation side of a session.
type Engine interface {
	// Interact runs the prompt/command cycle over rw for frame.  It
	// returns nil after a hook ended the session, or the stream error
	// that stopped it.
	Interact(ctx context.Context, rw io.ReadWriter, frame Frame, hooks Hooks) error

	// SetContinue tells the engine the program resumes normally.
	SetContinue()

	// SetQuit tells the engine to stop tracing for the rest of the
	// process.
	SetQuit()
}
