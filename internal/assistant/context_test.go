package assistant

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestContextRoundTripsUnknownFields(t *testing.T) {
	blob := []byte(`{
		"conversation_id": "abc-123",
		"system": {"dialog_stack": [{"dialog_node": "root"}], "dialog_turn_counter": 3},
		"user": {"id": "U1"},
		"action": {"command": "check-availability", "dates": "2024-06-01", "times": [{"value": "14:00"}]}
	}`)

	ctx, err := ParseContext(blob)
	require.NoError(t, err)

	out, err := json.Marshal(ctx)
	require.NoError(t, err)

	var original, round map[string]any
	require.NoError(t, json.Unmarshal(blob, &original))
	require.NoError(t, json.Unmarshal(out, &round))
	assert.Equal(t, original, round, "untouched context must replay verbatim")
}

func TestContextActionAccessor(t *testing.T) {
	ctx, err := ParseContext([]byte(`{"action":{"command":"confirm-reservation","dates":"2024-06-01","times":[{"value":"14:00"},{"value":"16:00"}]}}`))
	require.NoError(t, err)

	action, ok := ctx.Action()
	require.True(t, ok)
	assert.Equal(t, "confirm-reservation", action.Command)
	assert.Equal(t, "2024-06-01", action.Dates)
	require.Len(t, action.Times, 2)
	assert.Equal(t, "16:00", action.Times[1].Value)
}

func TestContextActionAbsentOrConsumed(t *testing.T) {
	var empty Context
	_, ok := empty.Action()
	assert.False(t, ok)

	consumed, err := ParseContext([]byte(`{"action":{}}`))
	require.NoError(t, err)
	_, ok = consumed.Action()
	assert.False(t, ok, "empty action object must not trigger dispatch")
}

func TestClearActionEmitsEmptyObject(t *testing.T) {
	ctx, err := ParseContext([]byte(`{"action":{"command":"confirm-reservation"},"user":{"id":"U1"}}`))
	require.NoError(t, err)

	ctx.ClearAction()

	out, err := json.Marshal(ctx)
	require.NoError(t, err)

	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `{}`, string(round["action"]))
	assert.JSONEq(t, `{"id":"U1"}`, string(round["user"]), "other fields survive the reset")

	_, ok := ctx.Action()
	assert.False(t, ok)
}

func TestSetTimezoneAugmentsBag(t *testing.T) {
	ctx, err := ParseContext([]byte(`{"conversation_id":"abc"}`))
	require.NoError(t, err)

	ctx.SetTimezone("Asia/Seoul")

	out, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"conversation_id":"abc","timezone":"Asia/Seoul"}`, string(out))
}

func TestRemoveIndex(t *testing.T) {
	ctx, err := ParseContext([]byte(`{"removeIndex":1}`))
	require.NoError(t, err)

	idx, ok := ctx.RemoveIndex()
	require.True(t, ok)
	assert.Equal(t, 1, idx)

	var empty Context
	_, ok = empty.RemoveIndex()
	assert.False(t, ok)
}

func TestEmptyContextMarshalsAsObject(t *testing.T) {
	var ctx Context
	out, err := json.Marshal(ctx)
	require.NoError(t, err)
	assert.Equal(t, "{}", string(out))
}

func TestGenericGetSet(t *testing.T) {
	var ctx Context
	require.NoError(t, ctx.Set("reservations", []map[string]string{{"id": "ev1"}}))

	var resvs []map[string]string
	require.True(t, ctx.Get("reservations", &resvs))
	require.Len(t, resvs, 1)
	assert.Equal(t, "ev1", resvs[0]["id"])
}
