package pipeline

import (
	"bufio"
	"context"
	"io"
	"strings"

	"github.com/pkg/errors"

	"github.com/evsproject/headcount/logging"
)

// Command is a control action applied between ticks.
type Command int

// The commands a Runner understands.
const (
	CommandPlay Command = iota + 1
	CommandPause
	CommandReset
	CommandSnapshot
	CommandExit
)

var commandNames = map[Command]string{
	CommandPlay:     "play",
	CommandPause:    "pause",
	CommandReset:    "reset",
	CommandSnapshot: "snapshot",
	CommandExit:     "exit",
}

func (c Command) String() string {
	if name, ok := commandNames[c]; ok {
		return name
	}
	return "unknown"
}

// ParseCommand parses a command name, ignoring case and surrounding space. "quit" is accepted for exit.
func ParseCommand(s string) (Command, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	if name == "quit" {
		return CommandExit, nil
	}
	for cmd, n := range commandNames {
		if n == name {
			return cmd, nil
		}
	}
	return 0, errors.Errorf("unknown command %q", s)
}

// CommandForKey maps a key code from a display window to a command. Negative codes mean no key.
func CommandForKey(key int) (Command, bool) {
	if key < 0 {
		return 0, false
	}
	switch key & 0xff {
	case 'p', 'P':
		return CommandPlay, true
	case ' ':
		return CommandPause, true
	case 'r', 'R':
		return CommandReset, true
	case 's', 'S':
		return CommandSnapshot, true
	case 'q', 'Q', 27:
		return CommandExit, true
	default:
		return 0, false
	}
}

// ReadCommands parses one command per line from r and sends it on out until r is exhausted or ctx
// is done. Blank lines are skipped and unknown commands are logged.
func ReadCommands(ctx context.Context, r io.Reader, out chan<- Command, logger logging.Logger) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		cmd, err := ParseCommand(line)
		if err != nil {
			logger.Warnw("ignoring input", "error", err)
			continue
		}
		select {
		case out <- cmd:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return scanner.Err()
}
