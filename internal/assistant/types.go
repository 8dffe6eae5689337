package assistant

import (
	"encoding/json"
	"fmt"
)

// Input is the user utterance sent to the NLU service.
type Input struct {
	Text string `json:"text"`
}

// User identifies the conversation owner inside the context bag.
type User struct {
	ID string `json:"id"`
}

// Action is the directive the NLU service embeds in the context when a
// booking operation should run. It is consumed exactly once per turn.
type Action struct {
	Command string      `json:"command,omitempty"`
	Dates   string      `json:"dates,omitempty"`
	Times   []TimeValue `json:"times,omitempty"`
}

// TimeValue is a recognized time-of-day entity.
type TimeValue struct {
	Value string `json:"value"`
}

// Text is the string-or-list value used for output.text. The NLU service
// usually returns a list; handlers may collapse it to a single string.
type Text struct {
	Values []string
	List   bool
}

// StringText wraps a single string.
func StringText(s string) Text {
	return Text{Values: []string{s}}
}

// ListText wraps a list of lines.
func ListText(lines []string) Text {
	return Text{Values: lines, List: true}
}

// Joined renders the text for a single-line transport: lists are joined
// with newlines, absent text becomes the empty string.
func (t Text) Joined() string {
	out := ""
	for i, v := range t.Values {
		if i > 0 {
			out += "\n"
		}
		out += v
	}
	return out
}

// First collapses a list to its first line. Plain strings are unchanged.
func (t Text) First() Text {
	if !t.List || len(t.Values) == 0 {
		return t
	}
	return StringText(t.Values[0])
}

// Prepend adds a leading line, keeping the list shape. Plain strings are
// unchanged, matching the original cancellation-prompt behavior.
func (t Text) Prepend(line string) Text {
	if !t.List {
		return t
	}
	return ListText(append([]string{line}, t.Values...))
}

func (t Text) MarshalJSON() ([]byte, error) {
	if t.List {
		return json.Marshal(t.Values)
	}
	if len(t.Values) == 0 {
		return json.Marshal("")
	}
	return json.Marshal(t.Values[0])
}

func (t *Text) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*t = StringText(s)
		return nil
	}
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*t = ListText(list)
		return nil
	}
	var null interface{}
	if err := json.Unmarshal(data, &null); err == nil && null == nil {
		*t = Text{}
		return nil
	}
	return fmt.Errorf("assistant: output text must be a string or a list of strings")
}

// Output is the NLU response output block. Fields other than text are
// passed through untouched.
type Output struct {
	Text  Text
	extra map[string]json.RawMessage
}

func (o Output) MarshalJSON() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(o.extra)+1)
	for k, v := range o.extra {
		merged[k] = v
	}
	text, err := json.Marshal(o.Text)
	if err != nil {
		return nil, err
	}
	merged["text"] = text
	return json.Marshal(merged)
}

func (o *Output) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("assistant: decode output: %w", err)
	}
	o.extra = raw
	o.Text = Text{}
	if text, ok := raw["text"]; ok {
		if err := json.Unmarshal(text, &o.Text); err != nil {
			return err
		}
		delete(raw, "text")
	}
	return nil
}

// MessageResponse is one NLU turn response. Output and context are typed;
// every other top-level field (input, intents, entities, ...) rides along
// unmodified so the service sees its own state echoed back.
type MessageResponse struct {
	Output  Output
	Context Context
	extra   map[string]json.RawMessage
}

func (m MessageResponse) MarshalJSON() ([]byte, error) {
	merged := make(map[string]json.RawMessage, len(m.extra)+2)
	for k, v := range m.extra {
		merged[k] = v
	}
	output, err := json.Marshal(m.Output)
	if err != nil {
		return nil, err
	}
	merged["output"] = output
	ctx, err := json.Marshal(m.Context)
	if err != nil {
		return nil, err
	}
	merged["context"] = ctx
	return json.Marshal(merged)
}

func (m *MessageResponse) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("assistant: decode response: %w", err)
	}
	m.extra = raw
	m.Output = Output{}
	m.Context = Context{}
	if output, ok := raw["output"]; ok {
		if err := json.Unmarshal(output, &m.Output); err != nil {
			return err
		}
		delete(raw, "output")
	}
	if ctx, ok := raw["context"]; ok {
		if err := json.Unmarshal(ctx, &m.Context); err != nil {
			return err
		}
		delete(raw, "context")
	}
	return nil
}

// StatusError is a failed NLU service call carrying the HTTP status so
// the API handler can propagate it.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("assistant: status %d", e.StatusCode)
	}
	return e.Message
}
