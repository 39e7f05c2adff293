package invitations

import (
	"context"
	"testing"
	"time"

	models "github.com/jondahl/pokerbot/models/postgres"
	"github.com/jondahl/pokerbot/services/calendar"
	"github.com/jondahl/pokerbot/services/classifier"
	"github.com/jondahl/pokerbot/services/sms"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	pgdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newMockDB opens GORM over sqlmock with regexp query matching, so the
// engine's SQL can be asserted query by query, in order.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(pgdriver.New(pgdriver.Config{
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	return db, mock
}

type sentSMS struct {
	To   string
	Body string
}

type stubSender struct {
	sent []sentSMS
	err  error
}

func (s *stubSender) Send(ctx context.Context, to, body string) (*sms.SendResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.sent = append(s.sent, sentSMS{To: to, Body: body})
	return &sms.SendResult{SID: "SMtest"}, nil
}

type stubCalendar struct {
	created []calendar.EventDetails
	err     error
}

func (s *stubCalendar) CreateEvent(ctx context.Context, details calendar.EventDetails) (*calendar.CreateResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.created = append(s.created, details)
	return &calendar.CreateResult{EventID: "evt-1", EventLink: "https://calendar.test/evt-1"}, nil
}

func (s *stubCalendar) CancelEvent(ctx context.Context, eventID string) error { return nil }

func (s *stubCalendar) AttendeeStatus(ctx context.Context, eventID, email string) (string, error) {
	return "needsAction", nil
}

// testNow is far from any game used below, so the blackout window never
// trips unless a test wants it to.
var testNow = time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)

func newTestFlow(t *testing.T) (*Flow, sqlmock.Sqlmock, *stubSender, *stubCalendar) {
	db, mock := newMockDB(t)
	sender := &stubSender{}
	cal := &stubCalendar{}
	flow := NewFlow(db, sender, cal, zerolog.Nop())
	flow.Now = func() time.Time { return testNow }
	return flow, mock, sender, cal
}

func invitationRows(id, gameID, playerID string, position int, status models.InvitationStatus) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "game_id", "player_id", "position", "status"}).
		AddRow(id, gameID, playerID, position, status)
}

func playerRows(id, firstName, phone string, optedOut bool) *sqlmock.Rows {
	return sqlmock.NewRows([]string{"id", "first_name", "last_name", "phone", "email", "opted_out"}).
		AddRow(id, firstName, "Tester", phone, firstName+"@example.com", optedOut)
}

func gameRows(id string, capacity int) *sqlmock.Rows {
	return gameRowsWithStatus(id, capacity, models.GameActive)
}

func gameRowsWithStatus(id string, capacity int, status models.GameStatus) *sqlmock.Rows {
	gameDate := time.Date(2026, 1, 17, 0, 0, 0, 0, time.UTC)
	gameTime := time.Date(2000, 1, 1, 19, 0, 0, 0, time.UTC)
	deadline := time.Date(2026, 1, 15, 19, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"id", "date", "time", "time_block", "location", "capacity", "rsvp_deadline", "status"}).
		AddRow(id, gameDate, gameTime, "7pm-11pm", "123 Main St", capacity, deadline, status)
}

// Candidate selection must exclude opted-out players and walk the queue in
// position order; the pattern pins both clauses.
const nextPendingSQL = `SELECT (.+) FROM "invitations" JOIN players ON players\.id = invitations\.player_id ` +
	`WHERE (.*)invitations\.game_id = (.+) AND invitations\.status = (.+) AND players\.opted_out = (.+) ` +
	`ORDER BY invitations\.position ASC`

func expectGetInvitation(mock sqlmock.Sqlmock, inv *sqlmock.Rows, player *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT (.+) FROM "invitations" WHERE id =`).WillReturnRows(inv)
	mock.ExpectQuery(`SELECT (.+) FROM "players" WHERE "players"\."id" =`).WillReturnRows(player)
}

func expectGetGame(mock sqlmock.Sqlmock, rows *sqlmock.Rows) {
	mock.ExpectQuery(`SELECT (.+) FROM "games" WHERE id =`).WillReturnRows(rows)
}

func TestSendInvitation(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationPending),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := flow.SendInvitation(context.Background(), "inv-1")
	require.NoError(t, err)
	assert.Equal(t, "SMtest", result.SID)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+14155550100", sender.sent[0].To)
	assert.Contains(t, sender.sent[0].Body, "Poker game Saturday, January 17")
	assert.Contains(t, sender.sent[0].Body, "7:00 PM")
	assert.Contains(t, sender.sent[0].Body, "123 Main St")
	assert.Contains(t, sender.sent[0].Body, "Reply STOP to opt out")

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvitationOptedOutPlayer(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationPending),
		playerRows("player-1", "Alice", "+14155550100", true))

	_, err := flow.SendInvitation(context.Background(), "inv-1")
	assert.ErrorIs(t, err, ErrPlayerOptedOut)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvitationSMSFailureLeavesPending(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)
	sender.err = assert.AnError

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationPending),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	// No UPDATE expected: the status must stay pending for a retry.

	_, err := flow.SendInvitation(context.Background(), "inv-1")
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerBlackoutWindow(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)
	// Two hours before the game starts.
	flow.Now = func() time.Time {
		return time.Date(2026, 1, 17, 17, 0, 0, 0, time.UTC)
	}

	expectGetGame(mock, gameRows("game-1", 6))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.False(t, invited)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerGameFull(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(6))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.False(t, invited)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerQueueExhausted(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))
	mock.ExpectQuery(nextPendingSQL).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.False(t, invited)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerSendsToLowestPosition(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	// Candidate selection.
	mock.ExpectQuery(nextPendingSQL).
		WillReturnRows(invitationRows("inv-3", "game-1", "player-3", 3, models.InvitationPending))
	mock.ExpectQuery(`SELECT (.+) FROM "players" WHERE "players"\."id" =`).
		WillReturnRows(playerRows("player-3", "Carol", "+14155550103", false))
	// SendInvitation re-reads the row before texting.
	expectGetInvitation(mock,
		invitationRows("inv-3", "game-1", "player-3", 3, models.InvitationPending),
		playerRows("player-3", "Carol", "+14155550103", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.True(t, invited)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+14155550103", sender.sent[0].To)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerCancelledGame(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	// Only active games cascade; a cancelled one stops before any
	// candidate is even looked up.
	expectGetGame(mock, gameRowsWithStatus("game-1", 6, models.GameCancelled))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.False(t, invited)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInviteNextPlayerSkipsOptedOutAtHead(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	// Position 1 belongs to an opted-out player; the selection query never
	// returns it, so position 2 is the head of the queue.
	mock.ExpectQuery(nextPendingSQL).
		WillReturnRows(invitationRows("inv-2", "game-1", "player-2", 2, models.InvitationPending))
	mock.ExpectQuery(`SELECT (.+) FROM "players" WHERE "players"\."id" =`).
		WillReturnRows(playerRows("player-2", "Bob", "+14155550102", false))
	expectGetInvitation(mock,
		invitationRows("inv-2", "game-1", "player-2", 2, models.InvitationPending),
		playerRows("player-2", "Bob", "+14155550102", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	invited, err := flow.InviteNextPlayer(context.Background(), "game-1")
	require.NoError(t, err)
	assert.True(t, invited)
	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+14155550102", sender.sent[0].To)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseEscalateMutatesNothing(t *testing.T) {
	flow, mock, sender, cal := newTestFlow(t)

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action: classifier.ActionEscalate,
		Reason: "player asked about stakes",
	})
	require.NoError(t, err)
	assert.True(t, result.Escalated)
	assert.Empty(t, result.Reply)
	assert.Empty(t, sender.sent)
	assert.Empty(t, cal.created)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseConfirmThenCalendar(t *testing.T) {
	flow, mock, _, cal := newTestFlow(t)

	// confirm_player
	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationInvited),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE invitations SET status =`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "players" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// send_calendar_invite, strictly after the confirm committed
	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationConfirmed),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "You're in!",
		SideEffects: []classifier.SideEffect{classifier.SideEffectConfirmPlayer, classifier.SideEffectSendCalendarInvite},
	})
	require.NoError(t, err)
	assert.Equal(t, "You're in!", result.Reply)
	assert.False(t, result.Escalated)

	require.Len(t, cal.created, 1)
	assert.Equal(t, "Alice@example.com", cal.created[0].AttendeeEmail)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseConfirmSkippedWhenFull(t *testing.T) {
	flow, mock, _, _ := newTestFlow(t)

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationInvited),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	// Capacity subquery rejects the transition.
	mock.ExpectExec(`UPDATE invitations SET status =`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// No response_count bump when the confirm did not land.

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "You're in!",
		SideEffects: []classifier.SideEffect{classifier.SideEffectConfirmPlayer},
	})
	require.NoError(t, err)
	assert.Equal(t, "You're in!", result.Reply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseDeclineCascades(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	// decline_player
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "players" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	// invite_next: resolve the game, then advance the queue
	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationDeclined),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectQuery(nextPendingSQL).
		WillReturnRows(invitationRows("inv-2", "game-1", "player-2", 2, models.InvitationPending))
	mock.ExpectQuery(`SELECT (.+) FROM "players" WHERE "players"\."id" =`).
		WillReturnRows(playerRows("player-2", "Bob", "+14155550102", false))
	expectGetInvitation(mock,
		invitationRows("inv-2", "game-1", "player-2", 2, models.InvitationPending),
		playerRows("player-2", "Bob", "+14155550102", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "Maybe next time!",
		SideEffects: []classifier.SideEffect{classifier.SideEffectDeclinePlayer, classifier.SideEffectInviteNext},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maybe next time!", result.Reply)

	require.Len(t, sender.sent, 1)
	assert.Equal(t, "+14155550102", sender.sent[0].To)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseDuplicateDeclineIsNoOp(t *testing.T) {
	flow, mock, _, _ := newTestFlow(t)

	// The invitation already left invited; the conditional UPDATE misses.
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	// No response_count bump and no error.

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "Maybe next time!",
		SideEffects: []classifier.SideEffect{classifier.SideEffectDeclinePlayer},
	})
	require.NoError(t, err)
	assert.Equal(t, "Maybe next time!", result.Reply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseOptOutSticksOnTerminalInvitation(t *testing.T) {
	flow, mock, _, _ := newTestFlow(t)

	// Invitation already declined: the transition misses but the player
	// flag is still set.
	mock.ExpectExec(`UPDATE "invitations" SET`).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(`UPDATE "players" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	_, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "Got it - you won't receive any more messages.",
		SideEffects: []classifier.SideEffect{classifier.SideEffectOptOutPlayer},
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProcessResponseCalendarFailureDoesNotUnwindConfirm(t *testing.T) {
	flow, mock, _, cal := newTestFlow(t)
	cal.err = assert.AnError

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationInvited),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	mock.ExpectExec(`UPDATE invitations SET status =`).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE "players" SET`).
		WillReturnResult(sqlmock.NewResult(0, 1))

	expectGetInvitation(mock,
		invitationRows("inv-1", "game-1", "player-1", 1, models.InvitationConfirmed),
		playerRows("player-1", "Alice", "+14155550100", false))
	expectGetGame(mock, gameRows("game-1", 6))
	// No calendar event id stored, and no rollback of the confirm.

	result, err := flow.ProcessResponse(context.Background(), "inv-1", "player-1", classifier.Decision{
		Action:      classifier.ActionAutoRespond,
		Response:    "You're in!",
		SideEffects: []classifier.SideEffect{classifier.SideEffectConfirmPlayer, classifier.SideEffectSendCalendarInvite},
	})
	require.NoError(t, err)
	assert.Equal(t, "You're in!", result.Reply)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvitationsForGameRespectsBatchAndCapacity(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRows("game-1", 6))
	// 4 confirmed, capacity 6: only 2 slots left even with batch size 5.
	mock.ExpectQuery(`SELECT count\(\*\) FROM "invitations"`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(4))

	for i, id := range []string{"inv-5", "inv-6"} {
		playerID := []string{"player-5", "player-6"}[i]
		phone := []string{"+14155550105", "+14155550106"}[i]
		mock.ExpectQuery(nextPendingSQL).
			WillReturnRows(invitationRows(id, "game-1", playerID, 5+i, models.InvitationPending))
		mock.ExpectQuery(`SELECT (.+) FROM "players" WHERE "players"\."id" =`).
			WillReturnRows(playerRows(playerID, "Player", phone, false))
		expectGetInvitation(mock,
			invitationRows(id, "game-1", playerID, 5+i, models.InvitationPending),
			playerRows(playerID, "Player", phone, false))
		expectGetGame(mock, gameRows("game-1", 6))
		mock.ExpectExec(`UPDATE "invitations" SET`).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}

	sent, err := flow.SendInvitationsForGame(context.Background(), "game-1", 5)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)
	assert.Len(t, sender.sent, 2)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSendInvitationsForGameRefusesDraftGame(t *testing.T) {
	flow, mock, sender, _ := newTestFlow(t)

	expectGetGame(mock, gameRowsWithStatus("game-1", 6, models.GameDraft))

	sent, err := flow.SendInvitationsForGame(context.Background(), "game-1", 5)
	assert.ErrorIs(t, err, ErrGameNotActive)
	assert.Equal(t, 0, sent)
	assert.Empty(t, sender.sent)
	assert.NoError(t, mock.ExpectationsWereMet())
}
