package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"community-voice/internal/community"
)

const (
	FallbackReply        = "I'm not sure how to help with that. Say 'help' to know what I can do."
	TicketSystemDownText = "I'm having trouble accessing the ticket system. Please try again later."
	EventsDownText       = "I'm having trouble fetching the events right now. Please try again later."
	NoEventsText         = "There are no upcoming events scheduled at the moment."
	CreatingTicketText   = "Creating your ticket now..."
)

// Spoken dates follow the en-US short form, e.g. 3/14/2025.
const spokenDateLayout = "1/2/2006"

// Reply is everything the assistant says in answer to one transcript, plus
// the data it looked at.
type Reply struct {
	Intent     Intent            `json:"-"`
	Utterances []string          `json:"utterances"`
	Ticket     *community.Ticket `json:"ticket,omitempty"`
	Events     []community.Event `json:"events,omitempty"`
	Draft      *Draft            `json:"draft,omitempty"`
}

// Text joins the utterances into a single reply.
func (r Reply) Text() string {
	return strings.Join(r.Utterances, " ")
}

func (r *Reply) say(text string) {
	r.Utterances = append(r.Utterances, text)
}

func (r *Reply) sayf(format string, args ...any) {
	r.say(fmt.Sprintf(format, args...))
}

// Interpreter turns finalized transcripts into spoken replies, calling the
// ticketing service when the command needs it. It keeps no state between
// calls.
type Interpreter struct {
	client community.Client
	help   string
	logger zerolog.Logger
	now    func() time.Time
	loc    *time.Location
}

type Option func(*Interpreter)

func WithHelp(h HelpScript) Option {
	return func(in *Interpreter) { in.help = h.Text() }
}

func WithClock(now func() time.Time) Option {
	return func(in *Interpreter) { in.now = now }
}

// WithLocation sets the zone used to read naive timestamps and speak dates.
func WithLocation(loc *time.Location) Option {
	return func(in *Interpreter) { in.loc = loc }
}

func New(client community.Client, logger zerolog.Logger, opts ...Option) *Interpreter {
	in := &Interpreter{
		client: client,
		logger: logger,
		now:    time.Now,
		loc:    time.Local,
	}
	for _, opt := range opts {
		opt(in)
	}
	if in.help == "" {
		in.help = DefaultHelp().Text()
	}
	return in
}

// Interpret answers one transcript. Failures talking to the service are
// turned into spoken apologies; the only error returned is a failed ticket
// submission, and the reply then already carries the apology.
func (in *Interpreter) Interpret(ctx context.Context, transcript string) (Reply, error) {
	intent := DetectIntent(transcript)
	in.logger.Info().Str("intent", string(intent.Kind)).Str("command", intent.Command).Msg("processing voice command")

	var (
		reply Reply
		err   error
	)
	switch intent.Kind {
	case IntentTicketStatus:
		reply = in.ticketStatus(ctx, intent.TicketID)
	case IntentCreateTicket:
		reply, err = in.createTicket(ctx, intent.Command)
	case IntentEvents:
		reply = in.upcomingEvents(ctx)
	case IntentHelp:
		reply.say(in.help)
		in.logger.Debug().Msg(in.help)
	default:
		reply.say(FallbackReply)
	}
	reply.Intent = intent
	return reply, err
}

func (in *Interpreter) ticketStatus(ctx context.Context, ticketID string) Reply {
	var reply Reply
	reply.sayf("Checking status of ticket %s...", ticketID)

	tickets, err := in.client.ListTickets(ctx)
	if err != nil {
		in.logger.Error().Err(err).Str("ticket", ticketID).Msg("fetching ticket status")
		reply.say(TicketSystemDownText)
		return reply
	}
	t, err := community.FindTicket(tickets, ticketID)
	if errors.Is(err, community.ErrNotFound) {
		reply.sayf("I couldn't find ticket %s. Please check the number and try again.", ticketID)
		return reply
	}
	reply.Ticket = &t

	status := strings.ToLower(t.Status)
	var b strings.Builder
	fmt.Fprintf(&b, "Ticket %s is currently %s. ", ticketID, status)
	fmt.Fprintf(&b, "It's a priority %s issue. ", t.Priority)
	if t.AssignedTo != "" {
		fmt.Fprintf(&b, "It has been assigned to %s. ", t.AssignedTo)
	}
	switch {
	case status == strings.ToLower(community.StatusResolved) && t.ResolvedAt != "":
		fmt.Fprintf(&b, "This issue was resolved on %s.", in.spokenDate(t.ResolvedAt))
	case status == strings.ToLower(community.StatusInProgress):
		b.WriteString("The team is working on it right now.")
	default:
		b.WriteString("The team will address it as soon as possible.")
	}
	reply.say(b.String())
	return reply
}

// createTicket reads the draft back and submits it straight away. The
// confirmation question is spoken but not waited on.
func (in *Interpreter) createTicket(ctx context.Context, command string) (Reply, error) {
	var reply Reply
	draft, followUp := BuildDraft(command)
	if followUp != "" {
		reply.say(followUp)
		return reply, nil
	}
	reply.Draft = &draft
	reply.say(draft.Confirmation())
	reply.say(CreatingTicketText)

	nt := draft.NewTicket()
	nt.CreatedAt = in.now().UTC().Format("2006-01-02T15:04:05.000Z07:00")
	created, err := in.client.CreateTicket(ctx, nt)
	if err != nil {
		in.logger.Error().Err(err).Str("title", draft.Title).Msg("creating ticket")
		reply.say(creationApology(err))
		return reply, fmt.Errorf("create ticket: %w", err)
	}
	reply.Ticket = &created

	var b strings.Builder
	b.WriteString("Your ticket has been created successfully! ")
	fmt.Fprintf(&b, "Ticket number is %s. ", shortID(created.ID))
	fmt.Fprintf(&b, "It's been marked as priority %s. ", created.Priority)
	switch created.Priority {
	case community.PriorityP1:
		b.WriteString("This is an emergency ticket and the team has been notified immediately. " +
			"Please ensure the area is secure and wait for further instructions.")
	case community.PriorityP2:
		b.WriteString("A team member will be with you as soon as possible, " +
			"typically within the next 2-4 hours.")
	default:
		b.WriteString("A team member will address this during normal business hours. " +
			"You'll receive updates on the status.")
	}
	reply.say(b.String())
	in.logger.Info().Str("ticket", created.ID).Str("priority", string(created.Priority)).Msg("ticket created")
	return reply, nil
}

func creationApology(err error) string {
	msg := "I'm sorry, I encountered an issue while creating your ticket. "
	switch {
	case errors.Is(err, community.ErrNetwork):
		return msg + "It seems there's a network issue. Please check your connection and try again."
	case community.IsServerError(err):
		return msg + "There's an issue with our server. Please try again in a few minutes."
	default:
		return msg + "Please try again later or contact support if the problem persists."
	}
}

func (in *Interpreter) upcomingEvents(ctx context.Context) Reply {
	var reply Reply
	events, err := in.client.ListEvents(ctx)
	if err != nil {
		in.logger.Error().Err(err).Msg("fetching events")
		reply.say(EventsDownText)
		return reply
	}
	upcoming := community.UpcomingEvents(events, in.now().In(in.loc))
	reply.Events = upcoming
	if len(upcoming) == 0 {
		reply.say(NoEventsText)
		return reply
	}

	next := upcoming[0]
	var b strings.Builder
	fmt.Fprintf(&b, "There are %d upcoming events. ", len(upcoming))
	if len(upcoming) == 1 {
		fmt.Fprintf(&b, "The event is %s on %s.", next.Title, in.spokenDate(next.Datetime))
	} else {
		fmt.Fprintf(&b, "The next event is %s on %s. ", next.Title, in.spokenDate(next.Datetime))
		fmt.Fprintf(&b, "There are %d more events coming up.", len(upcoming)-1)
	}
	reply.say(b.String())
	return reply
}

func (in *Interpreter) spokenDate(raw string) string {
	t, ok := community.ParseTime(raw, in.loc)
	if !ok {
		return raw
	}
	return t.In(in.loc).Format(spokenDateLayout)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
