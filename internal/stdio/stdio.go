// Package stdio holds the interactive channel: the input/output pair an
// interactive command loop talks to.  Normally that is the local
// terminal; while a remote session is live it is the peer's stream.
//
// The channel is an explicit object rather than a package global so
// that each registry (and each test) owns its own.  Code that wants the
// real process streams swapped as well opts in with [Channels.RedirectOS].
package stdio

import (
	"io"
	"os"
	"sync"
)

// Handles is one input/output pair.  Two Handles compare equal when
// they refer to the same underlying reader and writer.
type Handles struct {
	In  io.Reader
	Out io.Writer
}

// Channels is the mutable slot holding the current Handles.
type Channels struct {
	mu  sync.RWMutex
	cur Handles
}

// New returns Channels initialised to in/out.
func New(in io.Reader, out io.Writer) *Channels {
	return &Channels{cur: Handles{In: in, Out: out}}
}

// Std returns Channels initialised to os.Stdin and os.Stdout as they
// are at call time.
func Std() *Channels {
	return New(os.Stdin, os.Stdout)
}

// Current returns the handles in effect.
func (c *Channels) Current() Handles {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cur
}

// In returns the current input handle.
func (c *Channels) In() io.Reader { return c.Current().In }

// Out returns the current output handle.
func (c *Channels) Out() io.Writer { return c.Current().Out }

// Redirect installs h and returns the handles it replaced.
func (c *Channels) Redirect(h Handles) Handles {
	c.mu.Lock()
	defer c.mu.Unlock()
	prev := c.cur
	c.cur = h
	return prev
}

// Restore puts back handles previously returned by Redirect.
func (c *Channels) Restore(prev Handles) {
	c.mu.Lock()
	c.cur = prev
	c.mu.Unlock()
}

// Files is a snapshot of os.Stdin and os.Stdout.
type Files struct {
	Stdin  *os.File
	Stdout *os.File
}

// RedirectOS points os.Stdin and os.Stdout at f (typically a duplicate
// of the peer socket) and returns the files it replaced.  Only one
// goroutine may hold the process streams redirected at a time.
func RedirectOS(f *os.File) Files {
	prev := Files{Stdin: os.Stdin, Stdout: os.Stdout}
	os.Stdin = f
	os.Stdout = f
	return prev
}

// RestoreOS reinstates files returned by RedirectOS.
func RestoreOS(prev Files) {
	os.Stdin = prev.Stdin
	os.Stdout = prev.Stdout
}
