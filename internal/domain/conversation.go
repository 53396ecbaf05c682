package domain

import (
	"slices"
	"time"
)

// ConversationStatus is derived from the mission message history
type ConversationStatus string

const (
	ConversationActive    ConversationStatus = "active"
	ConversationClosed    ConversationStatus = "closed"
	ConversationCancelled ConversationStatus = "cancelled"
)

// ParticipantRole tells which side of the marketplace a participant is on
type ParticipantRole string

const (
	RoleProfessional  ParticipantRole = "professional"
	RoleEstablishment ParticipantRole = "establishment"
)

// TextKind is the text variant a participant of this role writes
func (r ParticipantRole) TextKind() MessageKind {
	if r == RoleEstablishment {
		return KindEstablishmentText
	}
	return KindUserText
}

// Participant is a member of a two-party conversation
type Participant struct {
	ConversationID string          `gorm:"column:conversation_id;primaryKey;type:varchar(36)" json:"-"`
	ParticipantID  string          `gorm:"column:participant_id;primaryKey;type:varchar(128);index" json:"id"`
	Role           ParticipantRole `gorm:"column:role;type:varchar(20);not null" json:"role"`
}

func (Participant) TableName() string { return "conversation_participants" }

// LastMessage is the denormalized summary of the latest message
type LastMessage struct {
	Content   string    `json:"content"`
	SenderID  string    `json:"senderId,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Conversation pairs a professional and a facility around one replacement
type Conversation struct {
	ID            string             `gorm:"column:id;primaryKey;type:varchar(36)" json:"id"`
	ReplacementID string             `gorm:"column:replacement_id;type:varchar(64);index;not null" json:"replacementId"`
	Status        ConversationStatus `gorm:"column:status;type:varchar(20);not null;default:active" json:"status"`
	LastMessage   *LastMessage       `gorm:"column:last_message;type:text;serializer:json" json:"lastMessage"`
	CreatedAt     time.Time          `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt     time.Time          `gorm:"column:updated_at;index" json:"updatedAt"`

	Participants []Participant `gorm:"foreignKey:ConversationID;references:ID" json:"-"`
}

func (Conversation) TableName() string { return "conversations" }

// ParticipantIDs returns the ids of both participants
func (c *Conversation) ParticipantIDs() []string {
	ids := make([]string, len(c.Participants))
	for i, p := range c.Participants {
		ids[i] = p.ParticipantID
	}
	slices.Sort(ids)
	return ids
}

// Participant returns the membership of userID, if any
func (c *Conversation) Participant(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ParticipantID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// HasParticipant reports whether userID belongs to the conversation
func (c *Conversation) HasParticipant(userID string) bool {
	_, ok := c.Participant(userID)
	return ok
}

// Counterpart returns the other participant seen from userID
func (c *Conversation) Counterpart(userID string) (Participant, bool) {
	for _, p := range c.Participants {
		if p.ParticipantID != userID {
			return p, true
		}
	}
	return Participant{}, false
}

// ConversationSummary is a conversation enriched for one viewer
type ConversationSummary struct {
	ID              string             `json:"id"`
	ReplacementID   string             `json:"replacementId"`
	Participants    []string           `json:"participants"`
	Status          ConversationStatus `json:"status"`
	LastMessage     *LastMessage       `json:"lastMessage"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
	CounterpartID   string             `json:"counterpartId"`
	CounterpartRole ParticipantRole    `json:"counterpartRole,omitempty"`
	CounterpartName string             `json:"counterpartName"`
}

// Summarize builds the viewer's summary; the counterpart name defaults to its id
func (c *Conversation) Summarize(viewerID string) ConversationSummary {
	s := ConversationSummary{
		ID:            c.ID,
		ReplacementID: c.ReplacementID,
		Participants:  c.ParticipantIDs(),
		Status:        c.Status,
		LastMessage:   c.LastMessage,
		CreatedAt:     c.CreatedAt,
		UpdatedAt:     c.UpdatedAt,
	}
	if cp, ok := c.Counterpart(viewerID); ok {
		s.CounterpartID = cp.ParticipantID
		s.CounterpartRole = cp.Role
		s.CounterpartName = cp.ParticipantID
	}
	return s
}

// CreateConversationRequest opens a negotiation on a replacement
type CreateConversationRequest struct {
	ReplacementID   string `json:"replacementId" binding:"required"`
	ProfessionalID  string `json:"professionalId" binding:"required"`
	EstablishmentID string `json:"establishmentId" binding:"required"`
}
