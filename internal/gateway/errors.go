package gateway

import (
	"fmt"
	"strings"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

// ApplyError wraps an error with the switch it was raised for.
type ApplyError struct {
	Switch model.SwitchID
	Err    error
}

func (e *ApplyError) Error() string {
	return fmt.Sprintf("%s (%s): %v", e.Switch, e.Switch.Name(), e.Err)
}

func (e *ApplyError) Unwrap() error {
	return e.Err
}

// CommandError reports a failed external command with its combined output.
type CommandError struct {
	Command string
	Args    []string
	Output  string
	Err     error
}

func (e *CommandError) Error() string {
	out := strings.TrimSpace(e.Output)
	if out == "" {
		return fmt.Sprintf("%s %s: %v", e.Command, strings.Join(e.Args, " "), e.Err)
	}
	return fmt.Sprintf("%s %s: %v: %s", e.Command, strings.Join(e.Args, " "), e.Err, out)
}

func (e *CommandError) Unwrap() error {
	return e.Err
}
