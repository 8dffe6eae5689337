package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/camomilehq/roombot/internal/assistant"
	"github.com/camomilehq/roombot/internal/booking"
	"github.com/camomilehq/roombot/pkg/logging"
)

type mockBooking struct {
	freeBusy    []booking.FreeBusyEntry
	freeBusyErr error
	fbStart     time.Time
	fbEnd       time.Time

	createErr error
	createReq *booking.CreateBookingRequest

	searchResvs []booking.Reservation
	searchErr   error
	searchStart time.Time
	searchEnd   time.Time

	cancelErr     error
	cancelEventID string
	cancelUserID  string
	cancelRoomID  string
}

func (m *mockBooking) RoomFreeBusy(_ context.Context, roomID string, start, end time.Time) ([]booking.FreeBusyEntry, error) {
	m.fbStart, m.fbEnd = start, end
	return m.freeBusy, m.freeBusyErr
}

func (m *mockBooking) CreateBooking(_ context.Context, req booking.CreateBookingRequest) error {
	m.createReq = &req
	return m.createErr
}

func (m *mockBooking) SearchByUser(_ context.Context, siteID, userID string, start, end time.Time) ([]booking.Reservation, error) {
	m.searchStart, m.searchEnd = start, end
	return m.searchResvs, m.searchErr
}

func (m *mockBooking) CancelBooking(_ context.Context, eventID, userID, roomID string) error {
	m.cancelEventID, m.cancelUserID, m.cancelRoomID = eventID, userID, roomID
	return m.cancelErr
}

func newDispatcher(t *testing.T, mock *mockBooking) *Dispatcher {
	t.Helper()
	return New(mock, Config{
		Now: func() time.Time { return time.Date(2024, 6, 1, 10, 0, 0, 0, Seoul) },
	}, logging.Default())
}

func respFromJSON(t *testing.T, blob string) *assistant.MessageResponse {
	t.Helper()
	var resp assistant.MessageResponse
	require.NoError(t, json.Unmarshal([]byte(blob), &resp))
	return &resp
}

func actionCleared(t *testing.T, resp *assistant.MessageResponse) {
	t.Helper()
	_, ok := resp.Context.Action()
	assert.False(t, ok, "action must be consumed")

	out, err := json.Marshal(resp.Context)
	require.NoError(t, err)
	var round map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(out, &round))
	assert.JSONEq(t, `{}`, string(round["action"]), "cleared action must echo as an empty object")
}

func TestApplyWithoutActionPassesThrough(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["hello"]},"context":{"conversation_id":"abc"}}`)
	before, err := json.Marshal(resp)
	require.NoError(t, err)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)
	assert.Same(t, resp, got)

	after, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(before), string(after))
}

func TestApplyUnrecognizedCommandLeavesActionAsIs(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["hm"]},"context":{"action":{"command":"order-pizza"}}}`)
	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)
	assert.Same(t, resp, got)

	action, ok := got.Context.Action()
	require.True(t, ok, "unrecognized directive stays in the context")
	assert.Equal(t, "order-pizza", action.Command)
	assert.Nil(t, mock.createReq)
}

func TestCheckAvailabilityRoomFree(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["checking"]},"context":{
		"action":{"command":"check-availability","dates":"2024-06-01","times":[{"value":"14:00"}]}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	assert.Equal(t, "room1/camomile is available. Would you confirm this reservation?", got.Output.Text.Joined())
	assert.Equal(t, int64(1717218000000), mock.fbStart.UnixMilli())
	assert.Equal(t, time.Hour, mock.fbEnd.Sub(mock.fbStart))
	actionCleared(t, got)
}

func TestCheckAvailabilityRoomBusy(t *testing.T) {
	mock := &mockBooking{freeBusy: []booking.FreeBusyEntry{{Start: 1, End: 2}}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["checking"]},"context":{
		"action":{"command":"check-availability","dates":"2024-06-01","times":[{"value":"14:00"}]}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, msgNotAvailable, got.Output.Text.Joined())
}

func TestConfirmReservationSuccessKeepsDialogText(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"confirming..."},"context":{
		"user":{"id":"U1"},
		"action":{"command":"confirm-reservation","dates":"2024-06-01","times":[{"value":"14:00"}]}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	require.NotNil(t, mock.createReq)
	assert.Equal(t, "room1/camomile", mock.createReq.RoomID)
	assert.Equal(t, int64(1717218000000), mock.createReq.Start)
	assert.Equal(t, int64(1717221600000), mock.createReq.End)
	assert.Equal(t, "quick review", mock.createReq.Purpose)
	assert.Equal(t, 5, mock.createReq.Attendees)
	assert.Equal(t, "U1", mock.createReq.User.UserID)

	assert.Equal(t, "confirming...", got.Output.Text.Joined(), "dialog text stands on success")
	actionCleared(t, got)
}

func TestConfirmReservationRejectedBecomesMessage(t *testing.T) {
	mock := &mockBooking{createErr: &booking.StatusError{StatusCode: 409}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"confirming..."},"context":{
		"user":{"id":"U1"},
		"action":{"command":"confirm-reservation","dates":"2024-06-01","times":[{"value":"14:00"}]}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err, "domain failure must not fail the turn")
	assert.Equal(t, msgBookFailed, got.Output.Text.Joined())
	actionCleared(t, got)
}

func TestConfirmReservationTransportErrorPropagatesButClearsAction(t *testing.T) {
	mock := &mockBooking{createErr: errors.New("connection refused")}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"confirming..."},"context":{
		"user":{"id":"U1"},
		"action":{"command":"confirm-reservation","dates":"2024-06-01","times":[{"value":"14:00"}]}}}`)

	_, err := d.Apply(context.Background(), resp)
	require.Error(t, err)
	actionCleared(t, resp)
}

func TestCheckReservationFormatsListAndCachesRaw(t *testing.T) {
	mock := &mockBooking{searchResvs: []booking.Reservation{
		{ID: "ev1", RoomID: "room1/camomile", Start: 1717218000000, End: 1717221600000, Purpose: "quick review", User: booking.ReservationUser{UserID: "U1"}},
		{ID: "ev2", RoomID: "room2/camomile", Start: 1717304400000, End: 1717308000000, Purpose: "retro", User: booking.ReservationUser{UserID: "U1"}},
	}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["listing"]},"context":{
		"user":{"id":"U1"},
		"action":{"command":"check-reservation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	require.True(t, got.Output.Text.List)
	assert.Equal(t, []string{
		"1: 2024-06-01 14:00 ~ 2024-06-01 15:00, room1/camomile, quick review",
		"2: 2024-06-02 14:00 ~ 2024-06-02 15:00, room2/camomile, retro",
	}, got.Output.Text.Values)

	var cached []booking.Reservation
	require.True(t, got.Context.Get("reservations", &cached))
	require.Len(t, cached, 2)
	assert.Equal(t, "ev2", cached[1].ID)

	// Window defaulted to now through one calendar month from now.
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, Seoul)
	assert.True(t, mock.searchStart.Equal(now))
	assert.True(t, mock.searchEnd.Equal(now.AddDate(0, 1, 0)))
	actionCleared(t, got)
}

func TestCheckReservationEmptyList(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["listing"]},"context":{
		"user":{"id":"U1"},
		"action":{"command":"check-reservation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	require.True(t, got.Output.Text.List)
	assert.Equal(t, []string{msgNotFound}, got.Output.Text.Values)

	var cached []booking.Reservation
	assert.False(t, got.Context.Get("reservations", &cached), "nothing cached for an empty result")
}

func TestCheckNextReservationCollapsesToFirst(t *testing.T) {
	mock := &mockBooking{searchResvs: []booking.Reservation{
		{ID: "ev1", RoomID: "room1/camomile", Start: 1717218000000, End: 1717221600000, Purpose: "quick review"},
		{ID: "ev2", RoomID: "room2/camomile", Start: 1717304400000, End: 1717308000000, Purpose: "retro"},
	}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["listing"]},"context":{
		"user":{"id":"U1"},
		"action":{"command":"check-next-reservation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	assert.False(t, got.Output.Text.List)
	assert.Equal(t, "1: 2024-06-01 14:00 ~ 2024-06-01 15:00, room1/camomile, quick review", got.Output.Text.Joined())
}

func TestCheckNextReservationEmptyStaysSingleString(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["listing"]},"context":{
		"user":{"id":"U1"},
		"action":{"command":"check-next-reservation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	assert.False(t, got.Output.Text.List)
	assert.Equal(t, msgNotFound, got.Output.Text.Joined())
}

func TestCheckReservationForCancellationPrependsPrompt(t *testing.T) {
	mock := &mockBooking{searchResvs: []booking.Reservation{
		{ID: "ev1", RoomID: "room1/camomile", Start: 1717218000000, End: 1717221600000, Purpose: "quick review"},
	}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":["listing"]},"context":{
		"user":{"id":"U1"},
		"action":{"command":"check-reservation-for-cancellation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	require.True(t, got.Output.Text.List)
	assert.Equal(t, msgCancelPrompt, got.Output.Text.Values[0])
	assert.Equal(t, "1: 2024-06-01 14:00 ~ 2024-06-01 15:00, room1/camomile, quick review", got.Output.Text.Values[1])
}

func TestConfirmCancellationUsesRemoveIndex(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"cancelling"},"context":{
		"user":{"id":"U1"},
		"removeIndex":1,
		"reservations":[
			{"id":"ev1","roomid":"room1/camomile","start":1,"end":2,"purpose":"a","user":{"userid":"U1"}},
			{"id":"ev2","roomid":"room2/camomile","start":3,"end":4,"purpose":"b","user":{"userid":"U1"}}
		],
		"action":{"command":"confirm-cancellation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)

	assert.Equal(t, "ev2", mock.cancelEventID)
	assert.Equal(t, "U1", mock.cancelUserID)
	assert.Equal(t, "room2/camomile", mock.cancelRoomID)
	assert.Equal(t, "cancelling", got.Output.Text.Joined(), "dialog text stands on success")
	actionCleared(t, got)
}

func TestConfirmCancellationRejectedBecomesMessage(t *testing.T) {
	mock := &mockBooking{cancelErr: &booking.StatusError{StatusCode: 404}}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"cancelling"},"context":{
		"user":{"id":"U1"},
		"removeIndex":0,
		"reservations":[{"id":"ev1","roomid":"room1/camomile","start":1,"end":2,"purpose":"a","user":{"userid":"U1"}}],
		"action":{"command":"confirm-cancellation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, msgCancelFailed, got.Output.Text.Joined())
	actionCleared(t, got)
}

func TestConfirmCancellationMissingIndexBecomesMessage(t *testing.T) {
	mock := &mockBooking{}
	d := newDispatcher(t, mock)

	resp := respFromJSON(t, `{"output":{"text":"cancelling"},"context":{
		"user":{"id":"U1"},
		"action":{"command":"confirm-cancellation"}}}`)

	got, err := d.Apply(context.Background(), resp)
	require.NoError(t, err)
	assert.Equal(t, msgCancelFailed, got.Output.Text.Joined())
	assert.Empty(t, mock.cancelEventID, "no cancellation issued without a valid index")
	actionCleared(t, got)
}
