package community

import (
	"sort"
	"strings"
	"time"
)

type Priority string

const (
	PriorityP1 Priority = "P1"
	PriorityP2 Priority = "P2"
	PriorityP3 Priority = "P3"
	PriorityP4 Priority = "P4"
)

const (
	StatusOpen       = "Open"
	StatusInProgress = "In Progress"
	StatusResolved   = "Resolved"
)

// Ticket is a maintenance request as returned by the ticketing service.
type Ticket struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location"`
	Priority    Priority `json:"priority"`
	Status      string   `json:"status"`
	AssignedTo  string   `json:"assigned_to,omitempty"`
	CreatedAt   string   `json:"created_at,omitempty"`
	ResolvedAt  string   `json:"resolved_at,omitempty"`
}

// NewTicket is the body of POST /tickets/.
type NewTicket struct {
	Title       string   `json:"title" validate:"required"`
	Description string   `json:"description" validate:"required"`
	Location    string   `json:"location" validate:"required"`
	Priority    Priority `json:"priority" validate:"required,oneof=P1 P2 P3 P4"`
	Status      string   `json:"status" validate:"required"`
	CreatedAt   string   `json:"created_at" validate:"required"`
}

type Event struct {
	ID           string   `json:"id,omitempty"`
	Title        string   `json:"title"`
	Description  string   `json:"description,omitempty"`
	Location     string   `json:"location,omitempty"`
	Datetime     string   `json:"datetime"`
	Status       string   `json:"status,omitempty"`
	CreatedAt    string   `json:"created_at,omitempty"`
	Participants []string `json:"participants,omitempty"`
}

// Timestamps from the service are ISO-8601, with or without an offset.
var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

const dateOnlyLayout = "2006-01-02"

// ParseTime parses a service timestamp. Date-times without an offset are read
// in loc; a bare date is midnight UTC.
func ParseTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	if t, err := time.Parse(dateOnlyLayout, s); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// FindTicket returns the first ticket whose id contains fragment.
func FindTicket(tickets []Ticket, fragment string) (Ticket, error) {
	for _, t := range tickets {
		if strings.Contains(t.ID, fragment) {
			return t, nil
		}
	}
	return Ticket{}, ErrNotFound
}

// Time returns the event start. Unparseable datetimes report false.
func (e Event) Time(loc *time.Location) (time.Time, bool) {
	return ParseTime(e.Datetime, loc)
}

// UpcomingEvents keeps events that start strictly after now, soonest first.
// Events with an unparseable datetime are dropped.
func UpcomingEvents(events []Event, now time.Time) []Event {
	loc := now.Location()
	type dated struct {
		ev Event
		at time.Time
	}
	upcoming := make([]dated, 0, len(events))
	for _, ev := range events {
		at, ok := ev.Time(loc)
		if !ok || !at.After(now) {
			continue
		}
		upcoming = append(upcoming, dated{ev: ev, at: at})
	}
	sort.SliceStable(upcoming, func(i, j int) bool {
		return upcoming[i].at.Before(upcoming[j].at)
	})
	out := make([]Event, 0, len(upcoming))
	for _, d := range upcoming {
		out = append(out, d.ev)
	}
	return out
}
