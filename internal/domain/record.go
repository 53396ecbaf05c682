package domain

import (
	"strings"
	"time"

	"github.com/rempla/rempla-backend/internal/common"
)

// MessageRecord is the stored document of a message
// (conversations/{conversationId}/messages/{id}). It is also the wire format
// of snapshots and of POST /send_message responses.
type MessageRecord struct {
	ID             string     `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	ConversationID string     `gorm:"column:conversation_id;type:varchar(36);not null;index:idx_messages_conv_created,priority:1" json:"conversationId"`
	SenderID       *string    `gorm:"column:sender_id;type:varchar(128)" json:"senderId"`
	CreatedAt      time.Time  `gorm:"column:created_at;not null;index:idx_messages_conv_created,priority:2" json:"createdAt"`
	ReadBy         []string   `gorm:"column:read_by;type:text;serializer:json" json:"readBy"`
	Kind           string     `gorm:"column:kind;type:varchar(20);not null" json:"type"`
	DeletedAt      *time.Time `gorm:"column:deleted_at" json:"deletedAt,omitempty"`

	// text & notification
	Content     string       `gorm:"column:content;type:text" json:"content,omitempty"`
	Attachments []Attachment `gorm:"column:attachments;type:text;serializer:json" json:"attachments,omitempty"`

	// mission
	Action    string          `gorm:"column:action;type:varchar(20)" json:"action,omitempty"`
	MissionID string          `gorm:"column:mission_id;type:varchar(64)" json:"missionId,omitempty"`
	Status    string          `gorm:"column:status;type:varchar(20)" json:"status,omitempty"`
	Details   *MissionDetails `gorm:"column:details;type:text;serializer:json" json:"details,omitempty"`

	// notification
	NotificationType string              `gorm:"column:notification_type;type:varchar(20)" json:"notificationType,omitempty"`
	Title            string              `gorm:"column:title;type:varchar(255)" json:"title,omitempty"`
	ActionData       *NotificationAction `gorm:"column:action_data;type:text;serializer:json" json:"actionData,omitempty"`
}

func (MessageRecord) TableName() string { return "messages" }

// Parse validates a raw record and turns it into a Message.
// It fails with a *common.SchemaError when the kind is missing or unknown,
// when a required variant field is absent, or when text content is blank.
func Parse(rec MessageRecord) (Message, error) {
	if rec.ID == "" {
		return Message{}, common.NewSchemaError("id", "missing")
	}
	if rec.ConversationID == "" {
		return Message{}, common.NewSchemaError("conversationId", "missing")
	}
	if rec.CreatedAt.IsZero() {
		return Message{}, common.NewSchemaError("createdAt", "missing")
	}

	msg := Message{
		ID:             rec.ID,
		ConversationID: rec.ConversationID,
		CreatedAt:      rec.CreatedAt,
		ReadBy:         dedupe(rec.ReadBy),
		DeletedAt:      rec.DeletedAt,
	}
	if rec.SenderID != nil {
		msg.SenderID = *rec.SenderID
	}

	body, err := ParseBody(rec)
	if err != nil {
		return Message{}, err
	}
	if body.Kind() != KindNotification && msg.SenderID == "" {
		return Message{}, common.NewSchemaError("senderId", "required for "+string(body.Kind()))
	}
	msg.Body = body
	return msg, nil
}

// ParseBody validates only the variant payload of a record. Deleted records
// keep their kind but carry no content.
func ParseBody(rec MessageRecord) (Body, error) {
	deleted := rec.DeletedAt != nil
	switch MessageKind(rec.Kind) {
	case KindUserText, KindEstablishmentText:
		text := Text{}
		if !deleted {
			var err error
			if text, err = parseText(rec); err != nil {
				return nil, err
			}
		}
		if MessageKind(rec.Kind) == KindUserText {
			return UserText{text}, nil
		}
		return EstablishmentText{text}, nil
	case KindMission:
		return parseMission(rec)
	case KindNotification:
		return parseNotification(rec)
	case "":
		return nil, common.NewSchemaError("type", "missing")
	default:
		return nil, common.NewSchemaError("type", "unrecognized kind "+rec.Kind)
	}
}

func parseText(rec MessageRecord) (Text, error) {
	if strings.TrimSpace(rec.Content) == "" {
		return Text{}, common.NewSchemaError("content", "empty")
	}
	for _, a := range rec.Attachments {
		switch a.Kind {
		case AttachmentImage, AttachmentDocument, AttachmentPDF:
		default:
			return Text{}, common.NewSchemaError("attachments.type", "unrecognized attachment kind "+string(a.Kind))
		}
		if a.URL == "" {
			return Text{}, common.NewSchemaError("attachments.url", "missing")
		}
		if a.Name == "" {
			return Text{}, common.NewSchemaError("attachments.name", "missing")
		}
		if a.Size != nil && *a.Size < 0 {
			return Text{}, common.NewSchemaError("attachments.size", "negative")
		}
	}
	return Text{Content: rec.Content, Attachments: rec.Attachments}, nil
}

func parseMission(rec MessageRecord) (Mission, error) {
	m := Mission{
		Action:    MissionAction(rec.Action),
		MissionID: rec.MissionID,
		Status:    MissionStatus(rec.Status),
	}
	switch m.Action {
	case ActionProposal, ActionModification, ActionCancellation, ActionConfirmation:
	case "":
		return Mission{}, common.NewSchemaError("action", "missing")
	default:
		return Mission{}, common.NewSchemaError("action", "unrecognized action "+rec.Action)
	}
	switch m.Status {
	case MissionPending, MissionAccepted, MissionRefused:
	case "":
		return Mission{}, common.NewSchemaError("status", "missing")
	default:
		return Mission{}, common.NewSchemaError("status", "unrecognized status "+rec.Status)
	}
	if m.MissionID == "" {
		return Mission{}, common.NewSchemaError("missionId", "missing")
	}
	if rec.Details == nil {
		return Mission{}, common.NewSchemaError("details", "missing")
	}
	d := *rec.Details
	required := []struct{ name, value string }{
		{"details.date", d.Date},
		{"details.startTime", d.StartTime},
		{"details.endTime", d.EndTime},
		{"details.establishmentId", d.EstablishmentID},
		{"details.establishmentName", d.EstablishmentName},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return Mission{}, common.NewSchemaError(f.name, "missing")
		}
	}
	if d.HourlyRate != nil && *d.HourlyRate < 0 {
		return Mission{}, common.NewSchemaError("details.hourlyRate", "negative")
	}
	m.Details = d
	return m, nil
}

func parseNotification(rec MessageRecord) (Notification, error) {
	n := Notification{
		Type:    NotificationType(rec.NotificationType),
		Title:   rec.Title,
		Content: rec.Content,
		Action:  rec.ActionData,
	}
	switch n.Type {
	case NotificationInfo, NotificationWarning, NotificationSuccess, NotificationError:
	case "":
		return Notification{}, common.NewSchemaError("notificationType", "missing")
	default:
		return Notification{}, common.NewSchemaError("notificationType", "unrecognized type "+rec.NotificationType)
	}
	if strings.TrimSpace(n.Title) == "" {
		return Notification{}, common.NewSchemaError("title", "missing")
	}
	if strings.TrimSpace(n.Content) == "" {
		return Notification{}, common.NewSchemaError("content", "empty")
	}
	if n.Action != nil {
		switch n.Action.Kind {
		case NotificationActionLink, NotificationActionButton:
		default:
			return Notification{}, common.NewSchemaError("actionData.type", "unrecognized action kind "+string(n.Action.Kind))
		}
		if n.Action.Label == "" {
			return Notification{}, common.NewSchemaError("actionData.label", "missing")
		}
	}
	return n, nil
}

// ToRecord flattens a message back into its stored document.
// Content of deleted messages is never emitted.
func ToRecord(m Message) MessageRecord {
	rec := MessageRecord{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		CreatedAt:      m.CreatedAt,
		ReadBy:         m.ReadBy,
		Kind:           string(m.Body.Kind()),
	}
	if rec.ReadBy == nil {
		rec.ReadBy = []string{}
	}
	if m.SenderID != "" {
		sender := m.SenderID
		rec.SenderID = &sender
	}
	if m.IsDeleted() {
		rec.DeletedAt = m.DeletedAt
		return rec
	}

	switch b := m.Body.(type) {
	case UserText:
		rec.Content, rec.Attachments = b.Content, b.Attachments
	case EstablishmentText:
		rec.Content, rec.Attachments = b.Content, b.Attachments
	case Mission:
		details := b.Details
		rec.Action = string(b.Action)
		rec.MissionID = b.MissionID
		rec.Status = string(b.Status)
		rec.Details = &details
	case Notification:
		rec.NotificationType = string(b.Type)
		rec.Title = b.Title
		rec.Content = b.Content
		rec.ActionData = b.Action
	}
	return rec
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok || id == "" {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
