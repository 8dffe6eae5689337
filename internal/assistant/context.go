package assistant

import (
	"encoding/json"
	"fmt"
)

// Context is the per-user conversation state round-tripped with the NLU
// service every turn. The service owns most of its shape, so the bag keeps
// every field it was given and only exposes typed access to the handful of
// keys this system reads or writes. Fields that are never touched are
// replayed back verbatim; the remote dialog state machine desynchronizes
// otherwise.
type Context struct {
	fields map[string]json.RawMessage
}

const (
	keyAction       = "action"
	keyUser         = "user"
	keyReservations = "reservations"
	keyRemoveIndex  = "removeIndex"
	keyTimezone     = "timezone"
)

func (c Context) MarshalJSON() ([]byte, error) {
	if c.fields == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(c.fields)
}

func (c *Context) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("assistant: decode context: %w", err)
	}
	c.fields = raw
	return nil
}

// ParseContext decodes a stored context blob. Empty input yields an empty
// context, the state of a first-contact user.
func ParseContext(data []byte) (Context, error) {
	var c Context
	if len(data) == 0 {
		return c, nil
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return Context{}, err
	}
	return c, nil
}

// Get decodes the named field into out. It returns false when the field
// is absent or null.
func (c Context) Get(key string, out interface{}) bool {
	raw, ok := c.fields[key]
	if !ok || string(raw) == "null" {
		return false
	}
	return json.Unmarshal(raw, out) == nil
}

// Set encodes v into the named field.
func (c *Context) Set(key string, v interface{}) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("assistant: encode context field %s: %w", key, err)
	}
	if c.fields == nil {
		c.fields = make(map[string]json.RawMessage)
	}
	c.fields[key] = raw
	return nil
}

// Action returns the pending action directive. ok is false when no
// directive is present or it has already been consumed.
func (c Context) Action() (Action, bool) {
	var a Action
	if !c.Get(keyAction, &a) {
		return Action{}, false
	}
	return a, a.Command != ""
}

// ClearAction resets the action directive to an empty object so an echoed
// context cannot re-trigger the dispatch on the next turn.
func (c *Context) ClearAction() {
	if c.fields == nil {
		c.fields = make(map[string]json.RawMessage)
	}
	c.fields[keyAction] = json.RawMessage("{}")
}

// User returns the conversation owner set by the NLU dialog.
func (c Context) User() (User, bool) {
	var u User
	if !c.Get(keyUser, &u) {
		return User{}, false
	}
	return u, u.ID != ""
}

// RemoveIndex returns the zero-based reservation index picked for
// cancellation.
func (c Context) RemoveIndex() (int, bool) {
	var idx int
	if !c.Get(keyRemoveIndex, &idx) {
		return 0, false
	}
	return idx, true
}

// SetTimezone tags the context with the bot's fixed timezone before it is
// persisted.
func (c *Context) SetTimezone(tz string) {
	_ = c.Set(keyTimezone, tz)
}
