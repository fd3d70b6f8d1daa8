package models

// RSVPStatus represents the attendance confirmation status of an invitation.
// The Events API owns the actual state; the responder only requests transitions.
type RSVPStatus string

const (
	RSVPPending   RSVPStatus = "pending"
	RSVPConfirmed RSVPStatus = "confirmed"
	RSVPDeclined  RSVPStatus = "declined"
)

// GuestLookup is the invitation record resolved from a sender's phone number.
// Fetched fresh per inbound message, never cached.
type GuestLookup struct {
	Code      string `json:"code"`
	EventID   string `json:"event_id"`
	GuestName string `json:"guest_name"`
}

// EventDetails is the read-only event snapshot rendered for the DETAILS command.
type EventDetails struct {
	Name                string `json:"name"`
	StartDate           string `json:"start_date"`
	StartTime           string `json:"start_time,omitempty"`
	Location            string `json:"location,omitempty"`
	DressCode           string `json:"dress_code,omitempty"`
	SpecialInstructions string `json:"special_instructions,omitempty"`
}

// InboundMessage is the normalized form of one provider-delivered text message,
// extracted from the webhook envelope before dispatch.
type InboundMessage struct {
	ID          string
	From        string
	Text        string
	ProfileName string
}
