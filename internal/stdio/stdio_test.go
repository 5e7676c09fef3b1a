package stdio

import (
	"bytes"
	"os"
	"strings"
	"testing"
)

func TestChannels_RedirectRestore(t *testing.T) {
	in := strings.NewReader("local")
	out := &bytes.Buffer{}
	c := New(in, out)

	remote := &bytes.Buffer{}
	prev := c.Redirect(Handles{In: remote, Out: remote})

	if prev.In != in || prev.Out != out {
		t.Fatal("Redirect should return the original handles")
	}
	if c.In() != remote || c.Out() != remote {
		t.Fatal("current handles should be the redirected ones")
	}

	c.Restore(prev)
	if c.Current() != (Handles{In: in, Out: out}) {
		t.Error("Restore should reinstate the identical original handles")
	}
}

func TestStd(t *testing.T) {
	c := Std()
	if c.In() != os.Stdin || c.Out() != os.Stdout {
		t.Error("Std should capture os.Stdin/os.Stdout")
	}
}

func TestRedirectOS(t *testing.T) {
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()
	defer w.Close()

	origIn, origOut := os.Stdin, os.Stdout
	prev := RedirectOS(w)
	if os.Stdin != w || os.Stdout != w {
		RestoreOS(prev)
		t.Fatal("process streams not redirected")
	}
	RestoreOS(prev)

	if os.Stdin != origIn || os.Stdout != origOut {
		t.Error("process streams not restored")
	}
}
