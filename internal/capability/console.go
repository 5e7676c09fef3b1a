package capability

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"rdb/internal/metrics"
	"rdb/util"
)

// DefaultPrompt is printed before every command read.
const DefaultPrompt = "(rdb) "

// commandKind tags the handler a command name resolves to.
type commandKind int

const (
	cmdContinue commandKind = iota
	cmdQuit
	cmdHelp
	cmdWhere
	cmdGoroutines
	cmdLocals
	cmdPrint
	cmdMem
	cmdStats
)

type command struct {
	kind  commandKind
	names []string
	usage string
}

// commandTable is the fixed command set; the first name is canonical.
var commandTable = []command{
	{cmdContinue, []string{"continue", "c", "cont"}, "resume the program and end the session"},
	{cmdQuit, []string{"quit", "q", "exit"}, "end the session and stop breaking for the rest of the run"},
	{cmdHelp, []string{"help", "h", "?"}, "list commands"},
	{cmdWhere, []string{"where", "w", "bt"}, "show the break location and the paused goroutine's stack"},
	{cmdGoroutines, []string{"goroutines", "gr"}, "dump the stacks of all goroutines"},
	{cmdLocals, []string{"locals", "l", "vars"}, "show watched values captured at the break"},
	{cmdPrint, []string{"print", "p", "eval"}, "evaluate a Lua expression over the watched values"},
	{cmdMem, []string{"mem"}, "show runtime memory statistics"},
	{cmdStats, []string{"stats"}, "show session metrics as JSON"},
}

// ConsoleConfig configures a [Console].
type ConsoleConfig struct {
	Prompt      string
	EvalTimeout time.Duration
	Metrics     *metrics.Collector
	Logger      *util.Logger
	// StopTracing runs when the engine is told to quit.
	StopTracing func()
}

// Console is the built-in line-oriented engine.
type Console struct {
	prompt      string
	evalTimeout time.Duration
	metrics     *metrics.Collector
	logger      *util.Logger
	stopTracing func()
	commands    map[string]*command

	mu      sync.Mutex
	outcome Outcome
	last    string
}

// NewConsole builds a console and resolves its command table.
func NewConsole(cfg ConsoleConfig) *Console {
	c := &Console{
		prompt:      cfg.Prompt,
		evalTimeout: cfg.EvalTimeout,
		metrics:     cfg.Metrics,
		logger:      cfg.Logger.Named("console"),
		stopTracing: cfg.StopTracing,
		commands:    make(map[string]*command),
	}
	if c.prompt == "" {
		c.prompt = DefaultPrompt
	}
	if c.evalTimeout <= 0 {
		c.evalTimeout = DefaultEvalTimeout
	}
	for i := range commandTable {
		cmd := &commandTable[i]
		for _, name := range cmd.names {
			c.commands[name] = cmd
		}
	}
	return c
}

// Outcome reports how the last interactive loop ended.
func (c *Console) Outcome() Outcome {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome
}

// SetContinue implements [Engine].
func (c *Console) SetContinue() {
	c.setOutcome(OutcomeContinue)
}

// SetQuit implements [Engine].
func (c *Console) SetQuit() {
	c.setOutcome(OutcomeQuit)
	if c.stopTracing != nil {
		c.stopTracing()
	}
}

func (c *Console) setOutcome(o Outcome) {
	c.mu.Lock()
	c.outcome = o
	c.mu.Unlock()
}

// lineReader is satisfied by the session stream; other readers are
// wrapped in a bufio.Reader.
type lineReader interface {
	ReadLine() (string, error)
}

type bufLineReader struct{ r *bufio.Reader }

func (b bufLineReader) ReadLine() (string, error) {
	line, err := b.r.ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Interact implements [Engine].
func (c *Console) Interact(ctx context.Context, rw io.ReadWriter, frame Frame, hooks Hooks) error {
	c.setOutcome(OutcomeNone)

	lr, ok := rw.(lineReader)
	if !ok {
		lr = bufLineReader{bufio.NewReader(rw)}
	}

	fmt.Fprintf(rw, "> %s\n", frame)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		fmt.Fprint(rw, c.prompt)

		line, err := lr.ReadLine()
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			line = c.last
			if line == "" {
				continue
			}
		}
		c.last = line

		name, arg, _ := strings.Cut(line, " ")
		cmd, ok := c.commands[name]
		if !ok {
			fmt.Fprintf(rw, "*** Unknown command: %s\n", name)
			continue
		}
		c.logger.Debug("%s %q", cmd.names[0], arg)

		stop, err := c.run(ctx, cmd, strings.TrimSpace(arg), rw, frame, hooks)
		if err != nil || stop {
			return err
		}
	}
}

func (c *Console) run(ctx context.Context, cmd *command, arg string, w io.Writer, frame Frame, hooks Hooks) (bool, error) {
	switch cmd.kind {
	case cmdContinue:
		return true, hooks.OnContinue()
	case cmdQuit:
		return true, hooks.OnQuit()
	case cmdHelp:
		c.help(w)
	case cmdWhere:
		fmt.Fprintf(w, "> %s\n", frame)
		if len(frame.Stack) > 0 {
			fmt.Fprintf(w, "%s\n", strings.TrimRight(string(frame.Stack), "\n"))
		}
	case cmdGoroutines:
		fmt.Fprintf(w, "%s\n", strings.TrimRight(string(allStacks()), "\n"))
	case cmdLocals:
		printLocals(w, frame.Locals)
	case cmdPrint:
		if arg == "" {
			fmt.Fprintln(w, "*** usage: print <expression>")
			break
		}
		evalCtx, cancel := context.WithTimeout(ctx, c.evalTimeout)
		res, err := Eval(evalCtx, arg, frame.Locals, w)
		cancel()
		if err != nil {
			fmt.Fprintf(w, "*** %v\n", err)
			break
		}
		if res != "" {
			fmt.Fprintln(w, res)
		}
	case cmdMem:
		printMem(w)
	case cmdStats:
		fmt.Fprintln(w, c.metrics.JSON())
	}
	return false, nil
}

func (c *Console) help(w io.Writer) {
	fmt.Fprintln(w, "Commands:")
	for _, cmd := range commandTable {
		fmt.Fprintf(w, "  %-22s %s\n", strings.Join(cmd.names, ", "), cmd.usage)
	}
	fmt.Fprintln(w, "An empty line repeats the previous command.")
}

func printLocals(w io.Writer, locals map[string]any) {
	if len(locals) == 0 {
		fmt.Fprintln(w, "(no watched values)")
		return
	}
	names := make([]string, 0, len(locals))
	for name := range locals {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(w, "%s = %#v\n", name, locals[name])
	}
}

func printMem(w io.Writer) {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	fmt.Fprintf(w, "goroutines: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(w, "heap alloc: %d\n", ms.HeapAlloc)
	fmt.Fprintf(w, "total alloc: %d\n", ms.TotalAlloc)
	fmt.Fprintf(w, "sys: %d\n", ms.Sys)
	fmt.Fprintf(w, "gc cycles: %d\n", ms.NumGC)
}

func allStacks() []byte {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return buf[:n]
		}
		buf = make([]byte, 2*len(buf))
	}
}
