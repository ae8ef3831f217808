package assistant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"community-voice/internal/community"
)

type fakeClient struct {
	tickets   []community.Ticket
	events    []community.Event
	created   community.Ticket
	listErr   error
	createErr error
	eventsErr error
	submitted []community.NewTicket
}

func (f *fakeClient) ListTickets(context.Context) ([]community.Ticket, error) {
	return f.tickets, f.listErr
}

func (f *fakeClient) CreateTicket(_ context.Context, t community.NewTicket) (community.Ticket, error) {
	f.submitted = append(f.submitted, t)
	if f.createErr != nil {
		return community.Ticket{}, f.createErr
	}
	return f.created, nil
}

func (f *fakeClient) ListEvents(context.Context) ([]community.Event, error) {
	return f.events, f.eventsErr
}

var testNow = time.Date(2025, 3, 14, 12, 0, 0, 0, time.UTC)

func newTestInterpreter(client community.Client) *Interpreter {
	return New(client, zerolog.Nop(),
		WithClock(func() time.Time { return testNow }),
		WithLocation(time.UTC),
	)
}

func interpret(t *testing.T, in *Interpreter, transcript string) Reply {
	t.Helper()
	reply, err := in.Interpret(context.Background(), transcript)
	if err != nil {
		t.Fatalf("interpret %q: %v", transcript, err)
	}
	return reply
}

func TestInterpretFallback(t *testing.T) {
	reply := interpret(t, newTestInterpreter(&fakeClient{}), "what are the pool hours")
	if reply.Text() != "I'm not sure how to help with that. Say 'help' to know what I can do." {
		t.Fatalf("unexpected fallback %q", reply.Text())
	}
	if reply.Intent.Kind != IntentUnknown {
		t.Fatalf("expected unknown intent, got %s", reply.Intent.Kind)
	}
}

func TestInterpretHelp(t *testing.T) {
	want := "I'm your Virtual Community Assistant. Here's what I can help you with: " +
		"\n\nTICKETS: " +
		"\n• 'Check status of ticket 123' - Get updates on your ticket" +
		"\n• 'Report a problem with my AC' - Create a new maintenance request" +
		"\n• 'I have a leak in my bathroom' - Report an urgent issue" +
		"\n• 'The elevator is not working' - Report a common area issue" +
		"\n\nEVENTS: " +
		"\n• 'What events are coming up?' - See upcoming community events" +
		"\n• 'Any events this weekend?' - Check weekend activities" +
		"\n\nGENERAL: " +
		"\n• 'Help' - Hear this message again" +
		"\n• 'Cancel' - Stop the current action" +
		"\n\nYou can also ask me things like: 'How do I pay rent?' or 'What are the pool hours?'"

	reply := interpret(t, newTestInterpreter(&fakeClient{}), "Help")
	if len(reply.Utterances) != 1 || reply.Utterances[0] != want {
		t.Fatalf("unexpected help text:\n%s", reply.Text())
	}
}

func TestInterpretTicketStatus(t *testing.T) {
	client := &fakeClient{tickets: []community.Ticket{
		{ID: "t-1234-x", Status: "In Progress", Priority: community.PriorityP2, AssignedTo: "Sam"},
	}}
	reply := interpret(t, newTestInterpreter(client), "What's the status of ticket 1234")

	want := []string{
		"Checking status of ticket 1234...",
		"Ticket 1234 is currently in progress. It's a priority P2 issue. It has been assigned to Sam. The team is working on it right now.",
	}
	if strings.Join(reply.Utterances, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected utterances %q", reply.Utterances)
	}
	if reply.Ticket == nil || reply.Ticket.ID != "t-1234-x" {
		t.Fatalf("expected matched ticket in reply, got %+v", reply.Ticket)
	}
}

func TestInterpretTicketStatusResolved(t *testing.T) {
	client := &fakeClient{tickets: []community.Ticket{
		{ID: "7", Status: "Resolved", Priority: community.PriorityP3, ResolvedAt: "2025-03-10T09:00:00"},
	}}
	reply := interpret(t, newTestInterpreter(client), "check ticket 7")
	want := "Ticket 7 is currently resolved. It's a priority P3 issue. This issue was resolved on 3/10/2025."
	if got := reply.Utterances[len(reply.Utterances)-1]; got != want {
		t.Fatalf("unexpected status sentence %q", got)
	}
}

func TestInterpretResolvedDateOnlyWestOfUTC(t *testing.T) {
	client := &fakeClient{tickets: []community.Ticket{
		{ID: "8", Status: "Resolved", Priority: community.PriorityP2, ResolvedAt: "2025-03-10"},
	}}
	in := New(client, zerolog.Nop(), WithClock(func() time.Time { return testNow }), WithLocation(time.FixedZone("EST", -5*3600)))
	reply := interpret(t, in, "check ticket 8")
	want := "Ticket 8 is currently resolved. It's a priority P2 issue. This issue was resolved on 3/9/2025."
	if got := reply.Utterances[len(reply.Utterances)-1]; got != want {
		t.Fatalf("unexpected status sentence %q", got)
	}
}

func TestInterpretTicketStatusSubstringMatch(t *testing.T) {
	client := &fakeClient{tickets: []community.Ticket{
		{ID: "a-123", Status: "Open", Priority: community.PriorityP4},
		{ID: "b-12", Status: "Resolved", Priority: community.PriorityP1},
	}}
	reply := interpret(t, newTestInterpreter(client), "check ticket 12")
	if reply.Ticket == nil || reply.Ticket.ID != "a-123" {
		t.Fatalf("expected first id containing 12, got %+v", reply.Ticket)
	}
	want := "Ticket 12 is currently open. It's a priority P4 issue. The team will address it as soon as possible."
	if got := reply.Utterances[1]; got != want {
		t.Fatalf("unexpected status sentence %q", got)
	}
}

func TestInterpretTicketStatusNotFound(t *testing.T) {
	client := &fakeClient{tickets: []community.Ticket{{ID: "abc"}}}
	reply := interpret(t, newTestInterpreter(client), "check ticket 99")
	if got := reply.Utterances[1]; got != "I couldn't find ticket 99. Please check the number and try again." {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestInterpretTicketStatusServiceDown(t *testing.T) {
	client := &fakeClient{listErr: fmt.Errorf("%w: GET /tickets/: refused", community.ErrNetwork)}
	reply := interpret(t, newTestInterpreter(client), "check ticket 99")
	if got := reply.Utterances[1]; got != TicketSystemDownText {
		t.Fatalf("unexpected reply %q", got)
	}
}

func TestInterpretCreateTicket(t *testing.T) {
	client := &fakeClient{created: community.Ticket{ID: "abcdef1234567890", Priority: community.PriorityP1, Status: "Open"}}
	reply := interpret(t, newTestInterpreter(client), "Report an issue with a leak in the bathroom")

	if len(client.submitted) != 1 {
		t.Fatalf("expected one submission, got %d", len(client.submitted))
	}
	sent := client.submitted[0]
	if sent.Title != "Leak" || sent.Location != "bathroom" || sent.Priority != community.PriorityP1 {
		t.Fatalf("unexpected submission %+v", sent)
	}
	if sent.Status != "Open" || sent.CreatedAt != "2025-03-14T12:00:00.000Z" {
		t.Fatalf("unexpected status/created_at %q %q", sent.Status, sent.CreatedAt)
	}

	if len(reply.Utterances) != 3 {
		t.Fatalf("expected confirmation, progress and result, got %q", reply.Utterances)
	}
	if !strings.HasSuffix(reply.Utterances[0], "Would you like me to submit this request?") {
		t.Fatalf("unexpected confirmation %q", reply.Utterances[0])
	}
	if reply.Utterances[1] != CreatingTicketText {
		t.Fatalf("unexpected progress %q", reply.Utterances[1])
	}
	want := "Your ticket has been created successfully! Ticket number is abcdef12. It's been marked as priority P1. " +
		"This is an emergency ticket and the team has been notified immediately. " +
		"Please ensure the area is secure and wait for further instructions."
	if reply.Utterances[2] != want {
		t.Fatalf("unexpected result %q", reply.Utterances[2])
	}
	if reply.Draft == nil || reply.Ticket == nil {
		t.Fatalf("expected draft and ticket in reply")
	}
}

func TestInterpretCreateTicketFollowUpDoesNotSubmit(t *testing.T) {
	client := &fakeClient{}
	reply := interpret(t, newTestInterpreter(client), "report an issue")
	if len(client.submitted) != 0 {
		t.Fatalf("expected no submission, got %d", len(client.submitted))
	}
	if len(reply.Utterances) != 1 || !strings.HasPrefix(reply.Utterances[0], "I'll create a ticket for General Maintenance.") {
		t.Fatalf("unexpected follow-up %q", reply.Utterances)
	}
}

func TestInterpretCreateTicketFailures(t *testing.T) {
	cases := []struct {
		name string
		err  error
		tail string
	}{
		{"network", fmt.Errorf("%w: POST /tickets/: refused", community.ErrNetwork),
			"It seems there's a network issue. Please check your connection and try again."},
		{"server", &community.APIError{Method: "POST", Path: "/tickets/", StatusCode: 500},
			"There's an issue with our server. Please try again in a few minutes."},
		{"other", &community.APIError{Method: "POST", Path: "/tickets/", StatusCode: 422},
			"Please try again later or contact support if the problem persists."},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			client := &fakeClient{createErr: c.err}
			reply, err := newTestInterpreter(client).Interpret(context.Background(), "create a new ticket about broken sink in kitchen")
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, c.err) {
				t.Fatalf("expected wrapped %v, got %v", c.err, err)
			}
			last := reply.Utterances[len(reply.Utterances)-1]
			want := "I'm sorry, I encountered an issue while creating your ticket. " + c.tail
			if last != want {
				t.Fatalf("unexpected apology %q", last)
			}
			if reply.Ticket != nil {
				t.Fatalf("expected no ticket on failure")
			}
		})
	}
}

func TestInterpretEvents(t *testing.T) {
	events := []community.Event{
		{Title: "Spring cleanup", Datetime: "2025-03-01T10:00:00"},
		{Title: "Game night", Datetime: "2025-04-02T18:00:00"},
		{Title: "Yoga", Datetime: "2025-03-20T18:00:00"},
		{Title: "Someday", Datetime: "soon"},
	}
	reply := interpret(t, newTestInterpreter(&fakeClient{events: events}), "what events are coming up")
	want := "There are 2 upcoming events. The next event is Yoga on 3/20/2025. There are 1 more events coming up."
	if reply.Text() != want {
		t.Fatalf("unexpected reply %q", reply.Text())
	}
	if len(reply.Events) != 2 || reply.Events[0].Title != "Yoga" {
		t.Fatalf("unexpected events %+v", reply.Events)
	}
}

func TestInterpretSingleEvent(t *testing.T) {
	events := []community.Event{{Title: "Yoga", Datetime: "2025-03-20T18:00:00Z"}}
	reply := interpret(t, newTestInterpreter(&fakeClient{events: events}), "any upcoming events")
	if reply.Text() != "There are 1 upcoming events. The event is Yoga on 3/20/2025." {
		t.Fatalf("unexpected reply %q", reply.Text())
	}
}

func TestInterpretNoEvents(t *testing.T) {
	events := []community.Event{{Title: "Past", Datetime: "2025-03-14T11:59:59"}}
	reply := interpret(t, newTestInterpreter(&fakeClient{events: events}), "upcoming events")
	if reply.Text() != NoEventsText {
		t.Fatalf("unexpected reply %q", reply.Text())
	}
}

func TestInterpretEventsServiceDown(t *testing.T) {
	client := &fakeClient{eventsErr: errors.New("boom")}
	reply := interpret(t, newTestInterpreter(client), "upcoming events")
	if reply.Text() != EventsDownText {
		t.Fatalf("unexpected reply %q", reply.Text())
	}
}

func TestWithHelpOverride(t *testing.T) {
	h, err := parseHelp([]byte("intro: Say something.\noutro: Bye."))
	if err != nil {
		t.Fatalf("parse help: %v", err)
	}
	in := New(&fakeClient{}, zerolog.Nop(), WithHelp(h))
	reply := interpret(t, in, "what can you do")
	if reply.Text() != "Say something.\n\nBye." {
		t.Fatalf("unexpected help %q", reply.Text())
	}
}

func TestParseHelpRejectsEmpty(t *testing.T) {
	if _, err := parseHelp([]byte("outro: only")); err == nil {
		t.Fatalf("expected error for a script without intro or sections")
	}
}
