// Package sensorcli implements the sensor-cli admin tool: direct store
// maintenance (add, list, import, stats) and an HTTP load test.
package sensorcli

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"golang.org/x/term"

	service "github.com/okian/sensorboard/internal/app"
	"github.com/okian/sensorboard/pkg/logger"
)

// ErrUsage reports a malformed command line. Run prints usage alongside it.
var ErrUsage = errors.New("usage error")

// ErrNoTerminal is returned by TerminalPrompt when stdin is not a terminal.
var ErrNoTerminal = errors.New("password required: stdin is not a terminal")

// Opener opens the reading service for store commands.
type Opener func(ctx context.Context) (*service.Service, error)

// Prompter reads a secret from the user.
type Prompter func(label string) (string, error)

// CLI carries the tool's collaborators so tests can replace them.
type CLI struct {
	Out    io.Writer
	Err    io.Writer
	Open   Opener
	Prompt Prompter
	Logger logger.Logger
	Now    func() time.Time
}

type command struct {
	name    string
	summary string
	run     func(c *CLI, ctx context.Context, args []string) error
}

var commands = []command{
	{"add", "add a single reading", (*CLI).add},
	{"list", "list stored readings", (*CLI).list},
	{"import", "import readings from a CSV file", (*CLI).importCSV},
	{"stats", "show aggregates for a window", (*CLI).stats},
	{"loadtest", "submit readings concurrently through the HTTP API", (*CLI).loadtest},
	{"hash-password", "print a bcrypt hash for a password setting", (*CLI).hashPassword},
}

// Run executes the command named by args[0].
func (c *CLI) Run(ctx context.Context, args []string) error {
	c.defaults()
	if len(args) == 0 {
		c.ShowHelp()
		return ErrUsage
	}
	name := args[0]
	if name == "help" || name == "-h" || name == "-help" || name == "--help" {
		c.ShowHelp()
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == name {
			err := cmd.run(c, ctx, args[1:])
			if errors.Is(err, flag.ErrHelp) {
				return nil
			}
			return err
		}
	}
	c.ShowHelp()
	return fmt.Errorf("%w: unknown command %q", ErrUsage, name)
}

func (c *CLI) defaults() {
	if c.Out == nil {
		c.Out = os.Stdout
	}
	if c.Err == nil {
		c.Err = os.Stderr
	}
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	if c.Prompt == nil {
		c.Prompt = TerminalPrompt(os.Stdin, c.Err)
	}
}

// ShowHelp prints usage information.
func (c *CLI) ShowHelp() {
	fmt.Fprint(c.Out, `Sensor Readings CLI
===================

Usage:
  sensor-cli <command> [options]

Commands:
`)
	for _, cmd := range commands {
		fmt.Fprintf(c.Out, "  %-14s %s\n", cmd.name, cmd.summary)
	}
	fmt.Fprint(c.Out, `
Store commands read the same configuration as the server
(SENSOR_CONFIG file and SENSOR_* environment variables).

Examples:
  sensor-cli add 23.5 -m 1
  sensor-cli add 20 -t 2026-10-16T06:00:00Z
  sensor-cli list -days 7 -m 0 -limit 50 -format json
  sensor-cli import readings.csv
  sensor-cli stats -window week
  sensor-cli loadtest -url http://localhost:5000 -user admin -readings 5000
`)
}

func (c *CLI) flagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(c.Err)
	return fs
}

// parseInterleaved parses flags that may follow positional arguments, so
// "add 23.5 -m 1" works like "add -m 1 23.5".
func parseInterleaved(fs *flag.FlagSet, args []string) ([]string, error) {
	var positional []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		args = fs.Args()
		if len(args) == 0 {
			return positional, nil
		}
		positional = append(positional, args[0])
		args = args[1:]
	}
}

func (c *CLI) open(ctx context.Context) (*service.Service, error) {
	if c.Open == nil {
		return nil, errors.New("no store configured")
	}
	return c.Open(ctx)
}

// TerminalPrompt reads a password from in without echo. It fails with
// ErrNoTerminal when in is not an interactive terminal.
func TerminalPrompt(in *os.File, out io.Writer) Prompter {
	return func(label string) (string, error) {
		fd := int(in.Fd()) //nolint:gosec // file descriptors fit in int
		if !term.IsTerminal(fd) {
			return "", ErrNoTerminal
		}
		fmt.Fprint(out, label)
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(b), nil
	}
}
