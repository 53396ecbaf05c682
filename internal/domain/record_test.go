package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func baseRecord(kind MessageKind) MessageRecord {
	return MessageRecord{
		ID:             "msg-1",
		ConversationID: "conv-1",
		SenderID:       strPtr("pro-1"),
		CreatedAt:      time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
		ReadBy:         []string{"pro-1", "pro-1"},
		Kind:           string(kind),
	}
}

func missionRecord() MessageRecord {
	rec := baseRecord(KindMission)
	rec.Action = string(ActionProposal)
	rec.MissionID = "mis-1"
	rec.Status = string(MissionPending)
	rec.Details = &MissionDetails{
		Date: "2026-02-10", StartTime: "08:00", EndTime: "16:00",
		EstablishmentID: "est-1", EstablishmentName: "Clinic A",
	}
	return rec
}

func TestParse_UserText(t *testing.T) {
	rec := baseRecord(KindUserText)
	rec.Content = "Bonjour"
	rec.Attachments = []Attachment{{Kind: AttachmentPDF, URL: "https://files/x.pdf", Name: "x.pdf"}}

	msg, err := Parse(rec)
	require.NoError(t, err)
	body, ok := msg.Body.(UserText)
	require.True(t, ok)
	assert.Equal(t, "Bonjour", body.Content)
	assert.Len(t, body.Attachments, 1)
	assert.Equal(t, []string{"pro-1"}, msg.ReadBy)
	assert.True(t, IsOwnedBy(msg, "pro-1"))
	assert.False(t, IsOwnedBy(msg, "est-1"))
}

func TestParse_Mission(t *testing.T) {
	msg, err := Parse(missionRecord())
	require.NoError(t, err)
	m, ok := msg.Body.(Mission)
	require.True(t, ok)
	assert.Equal(t, ActionProposal, m.Action)
	assert.Equal(t, "Clinic A", m.Details.EstablishmentName)
}

func TestParse_NotificationWithoutSender(t *testing.T) {
	rec := baseRecord(KindNotification)
	rec.SenderID = nil
	rec.NotificationType = string(NotificationSuccess)
	rec.Title = "Mission confirmed"
	rec.Content = "See you on the 10th"
	rec.ActionData = &NotificationAction{Kind: NotificationActionLink, Label: "Open", Data: "/missions/1"}

	msg, err := Parse(rec)
	require.NoError(t, err)
	assert.Equal(t, "", msg.SenderID)
	assert.False(t, IsOwnedBy(msg, ""))
	assert.Equal(t, KindNotification, msg.Body.Kind())
}

func TestParse_SchemaErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*MessageRecord)
		field  string
	}{
		{"missing kind", func(r *MessageRecord) { r.Kind = "" }, "type"},
		{"unknown kind", func(r *MessageRecord) { r.Kind = "sticker" }, "type"},
		{"blank content", func(r *MessageRecord) { r.Kind = string(KindUserText); r.Content = "   \n" }, "content"},
		{"text without sender", func(r *MessageRecord) { r.Kind = string(KindUserText); r.Content = "hi"; r.SenderID = nil }, "senderId"},
		{"bad attachment", func(r *MessageRecord) {
			r.Kind = string(KindEstablishmentText)
			r.Content = "hi"
			r.Attachments = []Attachment{{Kind: "video", URL: "u", Name: "n"}}
		}, "attachments.type"},
		{"mission missing action", func(r *MessageRecord) { *r = missionRecord(); r.Action = "" }, "action"},
		{"mission missing id", func(r *MessageRecord) { *r = missionRecord(); r.MissionID = "" }, "missionId"},
		{"mission bad status", func(r *MessageRecord) { *r = missionRecord(); r.Status = "maybe" }, "status"},
		{"mission missing details", func(r *MessageRecord) { *r = missionRecord(); r.Details = nil }, "details"},
		{"mission missing date", func(r *MessageRecord) { *r = missionRecord(); r.Details.Date = "" }, "details.date"},
		{"notification missing title", func(r *MessageRecord) {
			r.Kind = string(KindNotification)
			r.NotificationType = string(NotificationInfo)
			r.Content = "c"
		}, "title"},
		{"missing id", func(r *MessageRecord) { r.ID = "" }, "id"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := baseRecord(KindUserText)
			rec.Content = "ok"
			tt.mutate(&rec)

			_, err := Parse(rec)
			require.Error(t, err)
			assert.ErrorIs(t, err, common.ErrSchema)

			var se *common.SchemaError
			require.True(t, errors.As(err, &se))
			assert.Equal(t, tt.field, se.Field)
		})
	}
}

func TestParse_DeletedTextHasNoContent(t *testing.T) {
	deletedAt := time.Date(2026, 2, 1, 11, 0, 0, 0, time.UTC)
	rec := baseRecord(KindUserText)
	rec.DeletedAt = &deletedAt

	msg, err := Parse(rec)
	require.NoError(t, err)
	assert.True(t, msg.IsDeleted())
	assert.Equal(t, "", msg.Body.(UserText).Content)
}

func TestToRecord_RoundTripsMission(t *testing.T) {
	msg, err := Parse(missionRecord())
	require.NoError(t, err)

	rec := ToRecord(msg)
	again, err := Parse(rec)
	require.NoError(t, err)
	assert.Equal(t, msg, again)
}

func TestToRecord_DeletedDropsContent(t *testing.T) {
	rec := baseRecord(KindUserText)
	rec.Content = "secret"
	msg, err := Parse(rec)
	require.NoError(t, err)

	deletedAt := msg.CreatedAt.Add(time.Minute)
	msg.DeletedAt = &deletedAt
	out := ToRecord(msg)
	assert.Equal(t, "", out.Content)
	assert.NotNil(t, out.DeletedAt)
}

func TestSortMessages_CreatedAtThenID(t *testing.T) {
	t0 := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	in := []Message{
		{ID: "b", CreatedAt: t0},
		{ID: "c", CreatedAt: t0.Add(-time.Second)},
		{ID: "a", CreatedAt: t0},
	}
	out := SortMessages(in)
	assert.Equal(t, "c", out[0].ID)
	assert.Equal(t, "a", out[1].ID)
	assert.Equal(t, "b", out[2].ID)
	assert.Equal(t, "b", in[0].ID)
}

func TestPreview(t *testing.T) {
	long := make([]rune, 150)
	for i := range long {
		long[i] = 'é'
	}
	assert.Len(t, []rune(Preview(UserText{Text{Content: string(long)}})), 100)
	assert.Equal(t, "New mission update", Preview(Mission{}))
	assert.Equal(t, "New notification", Preview(Notification{Title: "Heads up"}))
}

func TestParseRecords_DiscardsMalformed(t *testing.T) {
	sender := "pro-1"
	now := time.Now().UTC()
	recs := []MessageRecord{
		{ID: "b", ConversationID: "c1", SenderID: &sender, CreatedAt: now.Add(time.Second), Kind: "user", Content: "second"},
		{ID: "x", ConversationID: "c1", SenderID: &sender, CreatedAt: now, Kind: "video", Content: "?"},
		{ID: "a", ConversationID: "c1", SenderID: &sender, CreatedAt: now, Kind: "user", Content: "first"},
	}

	msgs, rejected := ParseRecords(recs)

	require.Len(t, msgs, 2)
	assert.Equal(t, "a", msgs[0].ID)
	assert.Equal(t, "b", msgs[1].ID)
	require.Len(t, rejected, 1)
	assert.Equal(t, "x", rejected[0].ID)
	assert.ErrorIs(t, rejected[0].Err, common.ErrSchema)
}

func TestSendMessageRequest_Record(t *testing.T) {
	rec := SendMessageRequest{ConversationID: "c1", Type: KindUserText, Content: "hello"}.Record("pro-1")

	assert.Equal(t, "pro-1", *rec.SenderID)
	assert.Equal(t, []string{"pro-1"}, rec.ReadBy)
	_, err := ParseBody(rec)
	assert.NoError(t, err)
}
