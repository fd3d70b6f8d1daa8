package handler

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"nuru-rsvp/internal/events"
	"nuru-rsvp/internal/models"
)

// Command is an inbound message body normalized to one of the known keywords.
type Command int

const (
	CmdUnknown Command = iota
	CmdConfirm
	CmdDecline
	CmdDetails
	CmdHelp
)

// ParseCommand normalizes a free-text body (trim, uppercase) into a command.
func ParseCommand(text string) Command {
	switch strings.ToUpper(strings.TrimSpace(text)) {
	case "YES", "CONFIRM":
		return CmdConfirm
	case "NO", "DECLINE":
		return CmdDecline
	case "DETAILS", "INFO":
		return CmdDetails
	case "HELP":
		return CmdHelp
	default:
		return CmdUnknown
	}
}

// MessageSender delivers a text reply to a phone number.
type MessageSender interface {
	SendText(ctx context.Context, to, body string) error
}

// EventsAPI is the slice of the Events API the responder needs.
type EventsAPI interface {
	LookupGuest(ctx context.Context, phone string) *models.GuestLookup
	Respond(ctx context.Context, code string, status models.RSVPStatus) (*events.RespondResult, error)
	Details(ctx context.Context, code string) (*events.DetailsResult, error)
}

// Responder interprets inbound RSVP messages and sends exactly one reply each.
type Responder struct {
	sender MessageSender
	events EventsAPI
	log    zerolog.Logger
}

// NewResponder creates a new RSVP responder.
func NewResponder(sender MessageSender, eventsAPI EventsAPI, logger zerolog.Logger) *Responder {
	return &Responder{
		sender: sender,
		events: eventsAPI,
		log:    logger.With().Str("component", "responder").Logger(),
	}
}

// HandleMessage processes one inbound message: resolve the sender to an
// invitation, dispatch on the command keyword, and send exactly one reply.
// Downstream API failures degrade to apologetic reply text; only the final
// send can return an error, and the caller has no channel to surface it.
func (r *Responder) HandleMessage(ctx context.Context, msg models.InboundMessage) error {
	cmd := ParseCommand(msg.Text)
	guest := r.events.LookupGuest(ctx, msg.From)

	// Stored guest name wins over the provider profile name.
	fullName := msg.ProfileName
	if guest != nil && guest.GuestName != "" {
		fullName = guest.GuestName
	}
	name := ExtractFirstName(fullName)

	var reply string
	switch cmd {
	case CmdConfirm:
		reply = r.handleRSVP(ctx, guest, models.RSVPConfirmed, name)
	case CmdDecline:
		reply = r.handleRSVP(ctx, guest, models.RSVPDeclined, name)
	case CmdDetails:
		reply = r.handleDetails(ctx, guest, name)
	case CmdHelp:
		reply = helpMessage(name)
	default:
		reply = fmt.Sprintf("Sorry %s, I didn't understand that. Reply *HELP* to see what I can do.", name)
	}

	if err := r.sender.SendText(ctx, msg.From, reply); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// handleRSVP requests a confirmed/declined transition for the guest's
// invitation. A nil guest is terminal: no API call is made.
func (r *Responder) handleRSVP(ctx context.Context, guest *models.GuestLookup, status models.RSVPStatus, name string) string {
	if guest == nil {
		return noInvitationMessage(name)
	}

	res, err := r.events.Respond(ctx, guest.Code, status)
	if err != nil {
		r.log.Error().Err(err).Str("code", guest.Code).Msg("RSVP update failed")
		return fmt.Sprintf("Sorry %s, something went wrong on our side. Please try again in a few minutes.", name)
	}
	if !res.Success {
		if res.Message != "" {
			return res.Message
		}
		return fmt.Sprintf("Sorry %s, something went wrong. Please try again.", name)
	}

	if status == models.RSVPConfirmed {
		return fmt.Sprintf(
			"🎉 Wonderful, %s! Your attendance is confirmed. We can't wait to celebrate with you!\n\n"+
				"Reply *DETAILS* any time for the event information.",
			name,
		)
	}
	return fmt.Sprintf(
		"Thank you for letting us know, %s. We're sorry you won't be able to join us. You'll be missed! 💛",
		name,
	)
}

// handleDetails fetches the event snapshot and renders it line by line,
// omitting optional fields that are absent.
func (r *Responder) handleDetails(ctx context.Context, guest *models.GuestLookup, name string) string {
	if guest == nil {
		return noInvitationMessage(name)
	}

	res, err := r.events.Details(ctx, guest.Code)
	if err != nil {
		r.log.Error().Err(err).Str("code", guest.Code).Msg("Details fetch failed")
		return fmt.Sprintf("Sorry %s, something went wrong on our side. Please try again in a few minutes.", name)
	}
	if res == nil {
		return "Couldn't retrieve event details. Please try again."
	}
	return renderDetails(&res.Event, res.Invitation.RSVPStatus)
}

func renderDetails(ev *models.EventDetails, status models.RSVPStatus) string {
	lines := []string{fmt.Sprintf("*%s*", ev.Name), ""}

	date := "📅 " + ev.StartDate
	if ev.StartTime != "" {
		date += " at " + ev.StartTime
	}
	lines = append(lines, date)

	if ev.Location != "" {
		lines = append(lines, "📍 "+ev.Location)
	}
	if ev.DressCode != "" {
		lines = append(lines, "👗 Dress code: "+ev.DressCode)
	}
	if ev.SpecialInstructions != "" {
		lines = append(lines, "ℹ️ Note: "+ev.SpecialInstructions)
	}

	lines = append(lines, "", fmt.Sprintf("Your RSVP status: %s", status))
	return strings.Join(lines, "\n")
}

func noInvitationMessage(name string) string {
	return fmt.Sprintf(
		"Sorry %s, we couldn't find an invitation linked to your number. Please contact your host.",
		name,
	)
}

func helpMessage(name string) string {
	return fmt.Sprintf(
		"Hi %s! Here's what you can send me:\n\n"+
			"✅ *YES* to confirm your attendance\n"+
			"❌ *NO* to decline\n"+
			"📋 *DETAILS* for event information\n"+
			"❓ *HELP* to see this menu again",
		name,
	)
}
