package shell

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/dspconsole/internal/domain/pipeline"
	"github.com/GriffinCanCode/dspconsole/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/dspconsole/internal/shared/types"
)

const (
	Prompt = "dsp: "
	Intro  = "Welcome to the DSP console. Type help to list commands."
)

// ErrQuit is returned by Execute for quit and exit
var ErrQuit = errors.New("quit")

// Handler runs one command with its trailing argument string
type Handler func(ctx context.Context, arg string) (string, error)

// Command is one entry of the command table
type Command struct {
	Name    string
	Usage   string
	Help    string
	Handler Handler
}

// LevelController reads and changes the process log level
type LevelController interface {
	Level() string
	SetLevel(level string) error
}

// Shell dispatches command lines against a Console
type Shell struct {
	console  *pipeline.Console
	driver   *pipeline.Driver
	commands map[string]Command
	metrics  *monitoring.Metrics
	logger   *zap.Logger
}

// New builds a shell with the full command table
func New(console *pipeline.Console, driver *pipeline.Driver, logger *zap.Logger) *Shell {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Shell{
		console:  console,
		driver:   driver,
		commands: make(map[string]Command),
		metrics:  console.Metrics,
		logger:   logger.Named("shell"),
	}
	for _, cmd := range s.builtins() {
		s.Register(cmd)
	}
	return s
}

// WithLogLevel adds the log_level command backed by levels
func (s *Shell) WithLogLevel(levels LevelController) *Shell {
	s.Register(Command{
		Name:  "log_level",
		Usage: "log_level [debug|info|warn|error]",
		Help:  "show or change the log level",
		Handler: func(_ context.Context, arg string) (string, error) {
			if arg == "" {
				return "log level " + levels.Level(), nil
			}
			if err := levels.SetLevel(arg); err != nil {
				return "", fmt.Errorf("%w: %v", types.ErrInvalidConfig, err)
			}
			return "log level " + levels.Level(), nil
		},
	})
	return s
}

// Register adds or replaces a command
func (s *Shell) Register(cmd Command) {
	s.commands[cmd.Name] = cmd
}

// Commands returns the command table sorted by name
func (s *Shell) Commands() []Command {
	cmds := make([]Command, 0, len(s.commands))
	for _, cmd := range s.commands {
		cmds = append(cmds, cmd)
	}
	sort.Slice(cmds, func(i, j int) bool { return cmds[i].Name < cmds[j].Name })
	return cmds
}

// Execute runs a single line. Empty lines are a no-op. Handler panics are
// returned as errors and never escape.
func (s *Shell) Execute(ctx context.Context, line string) (out string, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return "", nil
	}
	name, arg, _ := strings.Cut(line, " ")
	arg = strings.TrimSpace(arg)

	cmd, ok := s.commands[name]
	if !ok {
		return "", fmt.Errorf("%w: %q (type help)", types.ErrUnknownCommand, name)
	}

	timer := monitoring.NewTimer(s.metrics, name)
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("Command panicked",
				zap.String("command", name),
				zap.Any("panic", r),
				zap.Stack("stack"),
			)
			out, err = "", fmt.Errorf("%s failed: %v", name, r)
		}
		switch {
		case err == nil, errors.Is(err, ErrQuit):
			timer.Stop("ok")
		default:
			timer.Stop("error")
		}
	}()

	return cmd.Handler(ctx, arg)
}

// Run reads commands from in until quit, EOF or ctx cancellation, writing
// acknowledgments and errors to out.
func (s *Shell) Run(ctx context.Context, in io.Reader, out io.Writer) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	lines := make(chan string)
	readErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		readErr <- scanner.Err()
	}()

	fmt.Fprintln(out, Intro)
	for {
		fmt.Fprint(out, Prompt)

		var line string
		select {
		case <-ctx.Done():
			fmt.Fprintln(out)
			return ctx.Err()
		case err := <-readErr:
			fmt.Fprintln(out)
			return err
		case line = <-lines:
		}

		result, err := s.Execute(ctx, line)
		switch {
		case errors.Is(err, ErrQuit):
			return nil
		case err != nil:
			fmt.Fprintf(out, "error: %v\n", err)
		case result != "":
			fmt.Fprintln(out, result)
		}
	}
}
