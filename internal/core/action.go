package core

import "strings"

// ActionType names an action at the string boundary (forms, messages).
type ActionType string

const (
	ActionInitialise ActionType = "initialise"
	ActionAdded      ActionType = "added"
	ActionUpdated    ActionType = "updated"
	ActionRemoved    ActionType = "removed"
	ActionUnknown    ActionType = "unknown"
)

// IsValid reports whether t is one of the recognised action types.
func (t ActionType) IsValid() bool {
	switch t {
	case ActionInitialise, ActionAdded, ActionUpdated, ActionRemoved:
		return true
	default:
		return false
	}
}

// ParseActionType normalises a name received from outside the process.
// Initialise is never accepted there, so it maps to ActionUnknown along with
// anything unrecognised.
func ParseActionType(s string) ActionType {
	t := ActionType(strings.ToLower(strings.TrimSpace(s)))
	if !t.IsValid() || t == ActionInitialise {
		return ActionUnknown
	}
	return t
}

// Action is one of Initialise, Added, Updated, Removed or Unknown.
type Action interface {
	Type() ActionType
	action()
}

type (
	Initialise struct {
		Posts []Record
	}

	Added struct {
		Post Draft
	}

	Updated struct {
		ID   int
		Post Draft
	}

	Removed struct {
		ID int
	}

	// Unknown is produced for unrecognised action names and reduces to identity.
	Unknown struct {
		Name string
	}
)

func (Initialise) Type() ActionType { return ActionInitialise }
func (Added) Type() ActionType      { return ActionAdded }
func (Updated) Type() ActionType    { return ActionUpdated }
func (Removed) Type() ActionType    { return ActionRemoved }
func (Unknown) Type() ActionType    { return ActionUnknown }

func (Initialise) action() {}
func (Added) action()      {}
func (Updated) action()    {}
func (Removed) action()    {}
func (Unknown) action()    {}

// TargetID returns the id an action refers to, if any.
func TargetID(a Action) (int, bool) {
	switch a := a.(type) {
	case Updated:
		return a.ID, true
	case Removed:
		return a.ID, true
	default:
		return 0, false
	}
}
