// Package negotiation derives mission status from the ordered mission
// messages of a conversation.
package negotiation

import (
	"fmt"
	"time"

	"github.com/rempla/rempla-backend/internal/common"
	"github.com/rempla/rempla-backend/internal/domain"
)

// State is the negotiation state of the current mission
type State string

const (
	StateNone      State = "none"
	StatePending   State = "pending"
	StateAccepted  State = "accepted"
	StateRefused   State = "refused"
	StateCancelled State = "cancelled"
	StateConfirmed State = "confirmed"
)

// Negotiation is the derived state of a conversation's mission
type Negotiation struct {
	State         State                  `json:"state"`
	MissionID     string                 `json:"missionId,omitempty"`
	Details       *domain.MissionDetails `json:"details,omitempty"`
	LastMessageID string                 `json:"lastMessageId,omitempty"`
	UpdatedAt     time.Time              `json:"updatedAt,omitempty"`
}

// Initial is the state of a conversation with no mission message
func Initial() Negotiation {
	return Negotiation{State: StateNone}
}

// ConversationStatus maps the negotiation onto the conversation status
func (n Negotiation) ConversationStatus() domain.ConversationStatus {
	switch n.State {
	case StateConfirmed:
		return domain.ConversationClosed
	case StateCancelled:
		return domain.ConversationCancelled
	default:
		return domain.ConversationActive
	}
}

// Apply runs one mission message through the state machine.
// It fails with common.ErrInvalidTransition when the action is not allowed
// from the current state.
func Apply(n Negotiation, msg domain.Message) (Negotiation, error) {
	m, ok := msg.Body.(domain.Mission)
	if !ok {
		return n, fmt.Errorf("%w: %s is not a mission message", common.ErrInvalidTransition, msg.Body.Kind())
	}

	next := n
	next.LastMessageID = msg.ID
	next.UpdatedAt = msg.CreatedAt

	switch m.Action {
	case domain.ActionProposal:
		switch n.State {
		case StateNone, StateRefused, StateCancelled:
		default:
			return n, invalid(m, n)
		}
		if m.Status != domain.MissionPending {
			return n, fmt.Errorf("%w: a proposal must be pending, got %s", common.ErrInvalidTransition, m.Status)
		}
		details := m.Details
		next.State = StatePending
		next.MissionID = m.MissionID
		next.Details = &details

	case domain.ActionModification:
		if !n.open() || m.MissionID != n.MissionID {
			return n, invalid(m, n)
		}
		details := m.Details
		next.Details = &details

	case domain.ActionCancellation:
		if !n.open() || m.MissionID != n.MissionID {
			return n, invalid(m, n)
		}
		next.State = StateCancelled

	case domain.ActionConfirmation:
		if m.MissionID != n.MissionID {
			return n, invalid(m, n)
		}
		switch {
		case n.State == StatePending && m.Status == domain.MissionAccepted:
			next.State = StateAccepted
		case n.State == StatePending && m.Status == domain.MissionRefused:
			next.State = StateRefused
		case n.State == StateAccepted && m.Status == domain.MissionAccepted:
			next.State = StateConfirmed
		default:
			return n, invalid(m, n)
		}

	default:
		return n, fmt.Errorf("%w: unknown action %q", common.ErrInvalidTransition, m.Action)
	}
	return next, nil
}

// Derive replays the mission subsequence of msgs in (createdAt, id) order.
// Steps that were never legal are skipped, so every client holding the same
// snapshot derives the same result.
func Derive(msgs []domain.Message) Negotiation {
	n := Initial()
	for _, msg := range domain.SortMessages(msgs) {
		if _, ok := msg.Body.(domain.Mission); !ok || msg.IsDeleted() {
			continue
		}
		if next, err := Apply(n, msg); err == nil {
			n = next
		}
	}
	return n
}

// Latest returns the latest mission message of msgs
func Latest(msgs []domain.Message) (domain.Message, bool) {
	var (
		latest domain.Message
		found  bool
	)
	for _, msg := range msgs {
		if _, ok := msg.Body.(domain.Mission); !ok || msg.IsDeleted() {
			continue
		}
		if !found || domain.CompareMessages(msg, latest) > 0 {
			latest, found = msg, true
		}
	}
	return latest, found
}

func (n Negotiation) open() bool {
	return n.State == StatePending || n.State == StateAccepted
}

func invalid(m domain.Mission, n Negotiation) error {
	return fmt.Errorf("%w: %s (%s) not allowed while %s", common.ErrInvalidTransition, m.Action, m.Status, n.State)
}
