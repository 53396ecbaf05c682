package domain

// SendMessageRequest is the body of POST /send_message
type SendMessageRequest struct {
	ConversationID string       `json:"conversationId" binding:"required"`
	Type           MessageKind  `json:"type" binding:"required"`
	Content        string       `json:"content"`
	Attachments    []Attachment `json:"attachments,omitempty"`

	// mission
	Action    MissionAction   `json:"action,omitempty"`
	MissionID string          `json:"missionId,omitempty"`
	Status    MissionStatus   `json:"status,omitempty"`
	Details   *MissionDetails `json:"details,omitempty"`
}

// Record shapes the request as an unsaved record; id and createdAt are
// assigned by the store
func (r SendMessageRequest) Record(senderID string) MessageRecord {
	sender := senderID
	rec := MessageRecord{
		ConversationID: r.ConversationID,
		SenderID:       &sender,
		ReadBy:         []string{senderID},
		Kind:           string(r.Type),
	}
	switch r.Type {
	case KindMission:
		rec.Action = string(r.Action)
		rec.MissionID = r.MissionID
		rec.Status = string(r.Status)
		rec.Details = r.Details
	default:
		rec.Content = r.Content
		rec.Attachments = r.Attachments
	}
	return rec
}

// NotificationRequest is the body of POST /internal/conversations/:id/notifications
type NotificationRequest struct {
	NotificationType   NotificationType    `json:"notificationType" binding:"required"`
	Title              string              `json:"title" binding:"required"`
	Content            string              `json:"content" binding:"required"`
	NotificationAction *NotificationAction `json:"notificationAction,omitempty"`
}

// Record shapes the notification as an unsaved, senderless record
func (r NotificationRequest) Record(conversationID string) MessageRecord {
	return MessageRecord{
		ConversationID:   conversationID,
		ReadBy:           []string{},
		Kind:             string(KindNotification),
		NotificationType: string(r.NotificationType),
		Title:            r.Title,
		Content:          r.Content,
		ActionData:       r.NotificationAction,
	}
}

// ParseRecords parses every record, returning the valid messages in
// conversation order and the rejected records with their errors
func ParseRecords(recs []MessageRecord) ([]Message, []RejectedRecord) {
	msgs := make([]Message, 0, len(recs))
	var rejected []RejectedRecord
	for _, rec := range recs {
		m, err := Parse(rec)
		if err != nil {
			rejected = append(rejected, RejectedRecord{ID: rec.ID, Err: err})
			continue
		}
		msgs = append(msgs, m)
	}
	return SortMessages(msgs), rejected
}

// RejectedRecord is a stored record that failed validation
type RejectedRecord struct {
	ID  string
	Err error
}
