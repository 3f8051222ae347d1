// Package console is the line-oriented shell behind `socialhub shell`.
// Every command runs to completion and reports through a printed notice;
// failures never escape a command.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/KaramelBytes/socialhub-cli/internal/chat"
	"github.com/KaramelBytes/socialhub-cli/internal/dataset"
	"github.com/KaramelBytes/socialhub-cli/internal/editor"
	"github.com/KaramelBytes/socialhub-cli/internal/ml"
	"github.com/KaramelBytes/socialhub-cli/internal/notify"
	"github.com/KaramelBytes/socialhub-cli/internal/session"
	"github.com/KaramelBytes/socialhub-cli/internal/task"
)

// Prompt is printed before each line is read.
const Prompt = "socialhub> "

// Options wires a Console. Chat and Session may be nil; the commands that
// need them then report a warning.
type Options struct {
	Store     *dataset.Store
	Trainer   *ml.Trainer
	Chat      *chat.Service
	Session   *session.Manager
	Runner    *task.Runner
	Normalize task.Plan
	Out       io.Writer
	Logger    *zap.Logger
}

// Console dispatches shell commands against one store.
type Console struct {
	store     *dataset.Store
	editor    *editor.Editor
	trainer   *ml.Trainer
	chat      *chat.Service
	session   *session.Manager
	runner    *task.Runner
	normalize task.Plan
	out       io.Writer
	log       *zap.Logger
	commands  map[string]command
}

type command struct {
	usage string
	help  string
	// raw commands receive the unsplit remainder of the line as args[0].
	raw bool
	run func(ctx context.Context, args []string) notify.Notice
}

// New returns a console. A nil Store or Trainer is created on demand.
func New(opts Options) *Console {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Store == nil {
		opts.Store = dataset.NewStore()
	}
	if opts.Trainer == nil {
		opts.Trainer = ml.NewTrainer(opts.Store, log)
	}
	if opts.Runner == nil {
		opts.Runner = &task.Runner{}
	}
	if opts.Normalize.Duration == 0 {
		opts.Normalize = task.Normalize
	}
	if opts.Out == nil {
		opts.Out = io.Discard
	}
	c := &Console{
		store:     opts.Store,
		editor:    editor.New(opts.Store),
		trainer:   opts.Trainer,
		chat:      opts.Chat,
		session:   opts.Session,
		runner:    opts.Runner,
		normalize: opts.Normalize,
		out:       opts.Out,
		log:       log.Named("console"),
	}
	c.commands = c.table()
	return c
}

// Store returns the store the console mutates.
func (c *Console) Store() *dataset.Store { return c.store }

// Run reads commands from in until EOF, quit or ctx is done. Cancelling
// ctx also cancels the command in flight.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		sc := bufio.NewScanner(in)
		sc.Buffer(make([]byte, 64*1024), 1024*1024)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-done:
				return
			}
		}
		errc <- sc.Err()
	}()
	c.greet()
	for {
		fmt.Fprint(c.out, Prompt)
		select {
		case <-ctx.Done():
			fmt.Fprintln(c.out)
			return ctx.Err()
		case err := <-errc:
			fmt.Fprintln(c.out)
			return err
		case line := <-lines:
			if c.Exec(ctx, line) {
				return nil
			}
		}
	}
}

func (c *Console) greet() {
	fmt.Fprintln(c.out, "SocialHub analytics shell. Type 'help' for commands.")
	if c.session == nil {
		return
	}
	if u, err := c.session.Current(); err == nil && u != nil {
		fmt.Fprintf(c.out, "Signed in as %s (%s)\n", u.Name, u.Role)
	}
}

// Exec runs one command line and reports whether the shell should exit.
func (c *Console) Exec(ctx context.Context, line string) (quit bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return false
	}
	name, rest, _ := strings.Cut(line, " ")
	name = strings.ToLower(name)
	if name == "quit" || name == "exit" {
		return true
	}
	cmd, ok := c.commands[name]
	if !ok {
		c.notice(notify.Error("unknown command %q (try 'help')", name))
		return false
	}
	var args []string
	if cmd.raw {
		args = []string{strings.TrimSpace(rest)}
	} else {
		var err error
		if args, err = splitArgs(rest); err != nil {
			c.notice(notify.FromError(err))
			return false
		}
	}
	c.log.Debug("command", zap.String("name", name), zap.Int("args", len(args)))
	c.notice(c.safeRun(ctx, cmd, args))
	return false
}

func (c *Console) safeRun(ctx context.Context, cmd command, args []string) (n notify.Notice) {
	defer func() {
		if r := recover(); r != nil {
			c.log.Error("command panicked", zap.Any("panic", r))
			n = notify.Error("internal error: %v", r)
		}
	}()
	return cmd.run(ctx, args)
}

func (c *Console) notice(n notify.Notice) {
	if !n.IsZero() {
		fmt.Fprintln(c.out, n.String())
	}
}

func (c *Console) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}

func (c *Console) help(_ context.Context, _ []string) notify.Notice {
	names := make([]string, 0, len(c.commands))
	for n := range c.commands {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		cmd := c.commands[n]
		c.printf("  %-22s %s\n", cmd.usage, cmd.help)
	}
	c.printf("  %-22s %s\n", "quit", "leave the shell")
	return notify.Notice{}
}

// splitArgs splits on whitespace and honours double quotes.
func splitArgs(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote bool
		have  bool
	)
	for _, r := range s {
		switch {
		case r == '"':
			quote = !quote
			have = true
		case !quote && (r == ' ' || r == '\t'):
			if have {
				out = append(out, cur.String())
				cur.Reset()
				have = false
			}
		default:
			cur.WriteRune(r)
			have = true
		}
	}
	if quote {
		return nil, errors.New("unterminated quote")
	}
	if have {
		out = append(out, cur.String())
	}
	return out, nil
}
