package compiler

import (
	"errors"
	"fmt"
	"net/netip"

	"github.com/Huangmachi/exp-IPMAN/internal/model"
)

var (
	ErrUnreachableDestination = errors.New("unreachable destination")
	ErrDuplicateRule          = errors.New("duplicate rule")
	ErrUnassignedAddress      = errors.New("unassigned address")
	ErrVerification           = errors.New("forwarding verification failed")
)

// UnreachableDestinationError reports a destination some switch cannot reach
// over the fabric, or one without an owning switch.
type UnreachableDestinationError struct {
	Destination string
	Switch      string // empty when the destination has no owner
	Reason      string
}

func (e *UnreachableDestinationError) Error() string {
	if e.Switch == "" {
		return fmt.Sprintf("destination %s: %s", e.Destination, e.Reason)
	}
	return fmt.Sprintf("destination %s unreachable from %s: %s", e.Destination, e.Switch, e.Reason)
}

func (e *UnreachableDestinationError) Unwrap() error {
	return ErrUnreachableDestination
}

// DuplicateRuleError reports two rules on one switch with overlapping matches.
type DuplicateRuleError struct {
	Switch   model.SwitchID
	Match    netip.Prefix
	Existing netip.Prefix
}

func (e *DuplicateRuleError) Error() string {
	return fmt.Sprintf("%s: rule for %s overlaps existing rule for %s", e.Switch, e.Match, e.Existing)
}

func (e *DuplicateRuleError) Unwrap() error {
	return ErrDuplicateRule
}

// TraceError reports a packet the compiled tables drop, loop or misdeliver.
type TraceError struct {
	Protocol Protocol
	From     string
	To       string
	Path     []string
	Reason   string
}

func (e *TraceError) Error() string {
	return fmt.Sprintf("%s %s -> %s: %s (path %v)", e.Protocol, e.From, e.To, e.Reason, e.Path)
}

func (e *TraceError) Unwrap() error {
	return ErrVerification
}
