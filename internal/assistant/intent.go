package assistant

import (
	"regexp"
	"strings"
)

type IntentKind string

const (
	IntentUnknown      IntentKind = "unknown"
	IntentTicketStatus IntentKind = "ticket_status"
	IntentCreateTicket IntentKind = "create_ticket"
	IntentEvents       IntentKind = "query_events"
	IntentHelp         IntentKind = "help"
)

type Intent struct {
	Kind IntentKind
	// TicketID holds the digits captured by a status query.
	TicketID string
	// Command is the lowercased, trimmed transcript.
	Command string
}

var ticketStatusPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:what's|what is|check|status).*?(?:ticket|issue|request)[^\d]*(\d+)`),
	regexp.MustCompile(`(?i)(?:ticket|issue|request)[^\d]*(\d+).*?(?:status|update)`),
}

// DetectIntent classifies a transcript. Checks run in a fixed order and the
// first match wins.
func DetectIntent(transcript string) Intent {
	m := strings.ToLower(strings.TrimSpace(transcript))
	if m == "" {
		return Intent{Kind: IntentUnknown}
	}
	for _, re := range ticketStatusPatterns {
		if sm := re.FindStringSubmatch(m); sm != nil {
			return Intent{Kind: IntentTicketStatus, TicketID: sm[1], Command: m}
		}
	}
	if containsAny(m, []string{"create a new ticket", "report an issue"}) {
		return Intent{Kind: IntentCreateTicket, Command: m}
	}
	if containsAny(m, []string{"upcoming events", "what events are coming up"}) {
		return Intent{Kind: IntentEvents, Command: m}
	}
	if containsAny(m, []string{"help", "what can you do"}) {
		return Intent{Kind: IntentHelp, Command: m}
	}
	return Intent{Kind: IntentUnknown, Command: m}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
