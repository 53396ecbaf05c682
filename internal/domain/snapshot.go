package domain

// MessageSnapshot is the complete ordered message set of a conversation
type MessageSnapshot struct {
	ConversationID string    `json:"conversationId"`
	Messages       []Message `json:"-"`
}

// Records is the wire form of the snapshot
func (s MessageSnapshot) Records() []MessageRecord {
	out := make([]MessageRecord, len(s.Messages))
	for i, m := range s.Messages {
		out[i] = ToRecord(m)
	}
	return out
}

// MessageSnapshotPayload is what the feed and GET /conversations/:id/messages send
type MessageSnapshotPayload struct {
	ConversationID string          `json:"conversationId"`
	Messages       []MessageRecord `json:"messages"`
}

// Payload converts the snapshot to its wire form
func (s MessageSnapshot) Payload() MessageSnapshotPayload {
	return MessageSnapshotPayload{ConversationID: s.ConversationID, Messages: s.Records()}
}

// ConversationSnapshot is the complete conversation list of one user,
// sorted by updatedAt descending
type ConversationSnapshot struct {
	UserID        string                `json:"userId"`
	Conversations []ConversationSummary `json:"conversations"`
}
