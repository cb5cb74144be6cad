package mpd

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// Command is one request to the server: a command name plus arguments.
// Arguments are quoted on the wire, so they may contain spaces.
type Command struct {
	Name string
	Args []string
}

// Cmd builds a Command.
func Cmd(name string, args ...string) Command {
	return Command{Name: name, Args: args}
}

// encode renders the command as a single protocol line (without the
// trailing newline). Every argument is quoted; MPD accepts quotes
// unconditionally and requires them for values containing spaces.
func (c Command) encode() string {
	if len(c.Args) == 0 {
		return c.Name
	}

	var b strings.Builder
	b.WriteString(c.Name)
	for _, arg := range c.Args {
		b.WriteString(` "`)
		for _, r := range arg {
			if r == '"' || r == '\\' {
				b.WriteByte('\\')
			}
			b.WriteRune(r)
		}
		b.WriteByte('"')
	}
	return b.String()
}

func (c Command) String() string {
	return c.encode()
}

// Field is one key/value line of a response.
type Field struct {
	Key   string
	Value string
}

// Response is the ordered list of fields a command returned. Order and
// duplicate keys are preserved because list commands repeat keys.
type Response []Field

// Get returns the first value for key.
func (r Response) Get(key string) (string, bool) {
	for _, f := range r {
		if f.Key == key {
			return f.Value, true
		}
	}
	return "", false
}

// GetInt returns the first value for key as an int, or fallback if the
// key is absent or not numeric.
func (r Response) GetInt(key string, fallback int) int {
	v, ok := r.Get(key)
	if !ok {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// GetBool returns whether the first value for key is "1".
func (r Response) GetBool(key string) bool {
	v, _ := r.Get(key)
	return v == "1"
}

// GetSeconds parses the first value for key as a float number of seconds.
func (r Response) GetSeconds(key string) time.Duration {
	v, ok := r.Get(key)
	if !ok {
		return 0
	}
	return parseSeconds(v)
}

// parseField splits a "key: value" response line.
func parseField(line string) (Field, bool) {
	idx := strings.Index(line, ": ")
	if idx < 0 {
		return Field{}, false
	}
	return Field{Key: line[:idx], Value: line[idx+2:]}, true
}

// ackPattern matches MPD error lines: ACK [<code>@<index>] {<command>} <message>
var ackPattern = regexp.MustCompile(`^ACK \[(\d+)@(\d+)\] \{([^}]*)\} (.*)$`)

// CommandError is a rejection returned by the server for one command.
type CommandError struct {
	Code         int
	CommandIndex int
	Command      string
	Message      string
}

func (e *CommandError) Error() string {
	if e.Command == "" {
		return fmt.Sprintf("mpd: error %d: %s", e.Code, e.Message)
	}
	return fmt.Sprintf("mpd: %s: error %d: %s", e.Command, e.Code, e.Message)
}

// parseAck parses an ACK line into a CommandError, or nil if the line
// is not an ACK.
func parseAck(line string) *CommandError {
	m := ackPattern.FindStringSubmatch(line)
	if m == nil {
		return nil
	}
	code, _ := strconv.Atoi(m[1])
	idx, _ := strconv.Atoi(m[2])
	return &CommandError{
		Code:         code,
		CommandIndex: idx,
		Command:      m[3],
		Message:      m[4],
	}
}
