package assistant

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"community-voice/internal/community"
)

const (
	defaultTitle       = "General Maintenance"
	defaultDescription = "No additional details provided"
	defaultLocation    = "Not specified"
)

// Draft is a ticket assembled from a spoken request.
type Draft struct {
	Title          string             `json:"title"`
	Description    string             `json:"description"`
	Location       string             `json:"location"`
	Priority       community.Priority `json:"priority"`
	PriorityReason string             `json:"priorityReason"`
}

var (
	mentionsIssue   = regexp.MustCompile(`(?i)(issue|problem|ticket|request|maintenance)`)
	mentionsDetails = regexp.MustCompile(`(?i)(description|details|about|regarding|with|for)`)

	titlePatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:about|regarding|with|for) (.*?)(?: (?:in|at|with|description|details)|$)`),
		regexp.MustCompile(`(?i)(?:issue|problem|ticket|request|maintenance) (?:with|in|at)? ?(.*?)(?: (?:in|at|with|description|details)|$)`),
	}
	descriptionPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:description|details|about|regarding|issue is|problem is) (.*?)(?: (?:in|at|location)|$)`),
	}
	locationPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?i)(?:location|in|at|room|apartment|unit) (.*?)(?: (?:description|details)|$)`),
		regexp.MustCompile(`(?i)(?:in|at) (?:the )?(lobby|gym|pool|parking|elevator|lounge|terrace|hallway|staircase|basement|roof)`),
	}

	leadingArticle    = regexp.MustCompile(`(?i)^(a|an|the) `)
	leadingDeterminer = regexp.MustCompile(`(?i)^(the|my|our) `)
)

type priorityRule struct {
	priority community.Priority
	pattern  *regexp.Regexp
	reason   string
}

// Rules are checked top down; the first hit decides.
var priorityRules = []priorityRule{
	{
		priority: community.PriorityP1,
		pattern:  regexp.MustCompile(`(?i)(urgent|emergency|immediately|right now|flood|flooding|leak|leaking|flooded|fire|smoke|spark|sparking|electrical shock)`),
		reason:   "This has been marked as an emergency. The maintenance team will respond immediately.",
	},
	{
		priority: community.PriorityP2,
		pattern:  regexp.MustCompile(`(?i)(important|as soon as possible|asap|not working|broken|not functioning|stopped working|no (water|power|electricity|heat|ac|air conditioning))`),
		reason:   "This has been marked as high priority. The team will address it as soon as possible.",
	},
	{
		priority: community.PriorityP3,
		pattern:  regexp.MustCompile(`(?i)(moderate|medium|normal|minor|small|slight|not urgent)`),
		reason:   "This has been marked as medium priority. The team will address it during normal business hours.",
	},
}

const lowPriorityReason = "This has been marked as low priority. The team will address it as soon as they are available."

// ClassifyPriority maps keywords in text to a priority tier and the sentence
// explaining it.
func ClassifyPriority(text string) (community.Priority, string) {
	for _, r := range priorityRules {
		if r.pattern.MatchString(text) {
			return r.priority, r.reason
		}
	}
	return community.PriorityP4, lowPriorityReason
}

// BuildDraft extracts a ticket from a creation command. When the command is
// missing information, followUp holds the question to ask instead and the
// draft must not be submitted.
func BuildDraft(command string) (draft Draft, followUp string) {
	if !mentionsIssue.MatchString(command) {
		return Draft{}, "I can help you create a maintenance request. Please describe the issue you're experiencing."
	}

	title := firstCapture(command, titlePatterns, defaultTitle)
	title = capitalize(leadingArticle.ReplaceAllString(title, ""))

	if !mentionsDetails.MatchString(command) {
		return Draft{Title: title}, fmt.Sprintf("I'll create a ticket for %s. Could you please provide more details about the issue?", title)
	}

	description := firstCapture(command, descriptionPatterns, defaultDescription)
	location := firstCapture(command, locationPatterns, defaultLocation)
	location = strings.TrimSpace(leadingDeterminer.ReplaceAllString(location, ""))

	priority, reason := ClassifyPriority(command)
	return Draft{
		Title:          title,
		Description:    description,
		Location:       location,
		Priority:       priority,
		PriorityReason: reason,
	}, ""
}

// Confirmation is read back before the ticket is submitted.
func (d Draft) Confirmation() string {
	return fmt.Sprintf("I'll create a %s priority ticket for: %s. Location: %s. Description: %s. %s Would you like me to submit this request?",
		d.Priority, d.Title, d.Location, d.Description, d.PriorityReason)
}

func (d Draft) NewTicket() community.NewTicket {
	return community.NewTicket{
		Title:       d.Title,
		Description: d.Description,
		Location:    d.Location,
		Priority:    d.Priority,
		Status:      community.StatusOpen,
	}
}

// firstCapture returns the first non-empty group 1 among patterns.
func firstCapture(text string, patterns []*regexp.Regexp, def string) string {
	for _, re := range patterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if v := strings.TrimSpace(m[1]); v != "" {
				return v
			}
		}
	}
	return def
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + s[size:]
}
