package element

import (
	"errors"
	"fmt"
)

// ErrElementNotFound is returned by fail-fast actions when nothing matches
var ErrElementNotFound = errors.New("element not found")

// NotFoundError names the action and selector that could not be resolved
type NotFoundError struct {
	Action   Action
	Selector string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s: element not found: %s", e.Action, e.Selector)
}

func (e *NotFoundError) Unwrap() error { return ErrElementNotFound }

// Action identifies an element interaction
type Action string

const (
	ActionClick    Action = "click"
	ActionHover    Action = "hover"
	ActionType     Action = "type"
	ActionClear    Action = "clear"
	ActionPress    Action = "press"
	ActionText     Action = "text"
	ActionProperty Action = "property"
	ActionCheck    Action = "check"
	ActionUncheck  Action = "uncheck"
	ActionSelect   Action = "select"

	ActionIsPresent Action = "is-present"
	ActionIsVisible Action = "is-visible"
	ActionIsEnabled Action = "is-enabled"
	ActionIsChecked Action = "is-checked"
)

// Policy decides what an action does when its element is absent
type Policy int

const (
	// FailFast returns a NotFoundError
	FailFast Policy = iota
	// FailSoft logs the miss and returns nil
	FailSoft
)

func (p Policy) String() string {
	if p == FailSoft {
		return "fail-soft"
	}
	return "fail-fast"
}

// policies is the per-action absence policy. Toggle-style convenience
// wrappers swallow misses; everything a test asserts on fails fast.
var policies = map[Action]Policy{
	ActionClick:    FailFast,
	ActionHover:    FailFast,
	ActionType:     FailFast,
	ActionClear:    FailFast,
	ActionPress:    FailFast,
	ActionText:     FailFast,
	ActionProperty: FailFast,
	ActionCheck:    FailSoft,
	ActionUncheck:  FailSoft,
	ActionSelect:   FailSoft,

	ActionIsPresent: FailFast,
	ActionIsVisible: FailFast,
	ActionIsEnabled: FailFast,
	ActionIsChecked: FailFast,
}

// PolicyFor returns the policy for a, FailFast when a is unknown
func PolicyFor(a Action) Policy {
	if p, ok := policies[a]; ok {
		return p
	}
	return FailFast
}
