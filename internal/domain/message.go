package domain

import (
	"cmp"
	"slices"
	"time"
)

// MessageKind discriminates the message variants
type MessageKind string

const (
	KindUserText          MessageKind = "user"
	KindEstablishmentText MessageKind = "establishment"
	KindMission           MessageKind = "mission"
	KindNotification      MessageKind = "notification"
)

// AttachmentKind is the media class of an attachment
type AttachmentKind string

const (
	AttachmentImage    AttachmentKind = "image"
	AttachmentDocument AttachmentKind = "document"
	AttachmentPDF      AttachmentKind = "pdf"
)

// Attachment is a file attached to a text message
type Attachment struct {
	Kind     AttachmentKind `json:"type"`
	URL      string         `json:"url"`
	Name     string         `json:"name"`
	Size     *int64         `json:"size,omitempty"`
	MimeType string         `json:"mimeType,omitempty"`
}

// MissionAction is the negotiation step carried by a mission message
type MissionAction string

const (
	ActionProposal     MissionAction = "proposal"
	ActionModification MissionAction = "modification"
	ActionCancellation MissionAction = "cancellation"
	ActionConfirmation MissionAction = "confirmation"
)

// MissionStatus is the resolution carried by a mission message
type MissionStatus string

const (
	MissionPending  MissionStatus = "pending"
	MissionAccepted MissionStatus = "accepted"
	MissionRefused  MissionStatus = "refused"
)

// MissionDetails describes the assignment under negotiation
type MissionDetails struct {
	Date              string   `json:"date"`
	StartTime         string   `json:"startTime"`
	EndTime           string   `json:"endTime"`
	EstablishmentID   string   `json:"establishmentId"`
	EstablishmentName string   `json:"establishmentName"`
	SpecialtyID       string   `json:"specialtyId,omitempty"`
	SpecialtyName     string   `json:"specialtyName,omitempty"`
	HourlyRate        *float64 `json:"hourlyRate,omitempty"`
	Notes             string   `json:"notes,omitempty"`
}

// NotificationType is the severity of a system notification
type NotificationType string

const (
	NotificationInfo    NotificationType = "info"
	NotificationWarning NotificationType = "warning"
	NotificationSuccess NotificationType = "success"
	NotificationError   NotificationType = "error"
)

// NotificationActionKind is how a notification action is rendered
type NotificationActionKind string

const (
	NotificationActionLink   NotificationActionKind = "link"
	NotificationActionButton NotificationActionKind = "button"
)

// NotificationAction is an optional call to action on a notification
type NotificationAction struct {
	Kind  NotificationActionKind `json:"type"`
	Label string                 `json:"label"`
	Data  interface{}            `json:"data"`
}

// Body is the variant payload of a message. The set of implementations is
// closed: UserText, EstablishmentText, Mission, Notification.
//
//sumtype:decl
type Body interface {
	Kind() MessageKind
	sealed()
}

// Text is the payload shared by both text variants
type Text struct {
	Content     string
	Attachments []Attachment
}

// UserText is a text message written by a professional
type UserText struct{ Text }

// EstablishmentText is a text message written by a facility
type EstablishmentText struct{ Text }

// Mission encodes a negotiation action on an assignment
type Mission struct {
	Action    MissionAction
	MissionID string
	Status    MissionStatus
	Details   MissionDetails
}

// Notification is a system-authored message
type Notification struct {
	Type    NotificationType
	Title   string
	Content string
	Action  *NotificationAction
}

func (UserText) Kind() MessageKind          { return KindUserText }
func (EstablishmentText) Kind() MessageKind { return KindEstablishmentText }
func (Mission) Kind() MessageKind           { return KindMission }
func (Notification) Kind() MessageKind      { return KindNotification }

func (UserText) sealed()          {}
func (EstablishmentText) sealed() {}
func (Mission) sealed()           {}
func (Notification) sealed()      {}

// Message is a validated message of a conversation
type Message struct {
	ID             string
	ConversationID string
	CreatedAt      time.Time
	SenderID       string // empty for system-authored messages
	ReadBy         []string
	DeletedAt      *time.Time
	Body           Body
}

// IsDeleted reports whether the message carries a soft-delete mark
func (m Message) IsDeleted() bool {
	return m.DeletedAt != nil
}

// IsOwnedBy reports whether participantID authored the message
func IsOwnedBy(m Message, participantID string) bool {
	return m.SenderID != "" && m.SenderID == participantID
}

// IsReadBy reports whether participantID acknowledged the message
func (m Message) IsReadBy(participantID string) bool {
	return slices.Contains(m.ReadBy, participantID)
}

// CompareMessages orders messages by createdAt, then by id
func CompareMessages(a, b Message) int {
	if c := a.CreatedAt.Compare(b.CreatedAt); c != 0 {
		return c
	}
	return cmp.Compare(a.ID, b.ID)
}

// SortMessages sorts messages in conversation order without touching the input
func SortMessages(msgs []Message) []Message {
	out := slices.Clone(msgs)
	slices.SortStableFunc(out, CompareMessages)
	return out
}

const previewLength = 100

// Preview is the denormalized text shown in conversation lists
func Preview(b Body) string {
	switch v := b.(type) {
	case UserText:
		return truncate(v.Content, previewLength)
	case EstablishmentText:
		return truncate(v.Content, previewLength)
	case Mission:
		return "New mission update"
	case Notification:
		return "New notification"
	}
	return ""
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
