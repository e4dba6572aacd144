// ABOUTME: Inbound webhook payload shapes sent by Teams outgoing webhooks
// ABOUTME: Extracts plain text from HTML-formatted message bodies

package teams

import (
	"html"
	"regexp"
	"strings"
)

// InboundPayload is the body Teams posts to an outgoing-webhook target.
// Only the fields the relay needs are mapped; everything else is ignored.
type InboundPayload struct {
	Type         string       `json:"type"`
	Text         string       `json:"text"`
	Attachments  []Attachment `json:"attachments"`
	Conversation Conversation `json:"conversation"`
	From         Account      `json:"from"`
}

// Attachment carries the HTML rendering of a message when the top-level
// text field is empty.
type Attachment struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

// Conversation identifies the Teams thread a message belongs to.
type Conversation struct {
	ID string `json:"id"`
}

// Account identifies the author of a message.
type Account struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Content returns the raw message body, preferring the text field and
// falling back to the first attachment that has content.
func (p *InboundPayload) Content() string {
	if strings.TrimSpace(p.Text) != "" {
		return p.Text
	}
	for _, a := range p.Attachments {
		if strings.TrimSpace(a.Content) != "" {
			return a.Content
		}
	}
	return ""
}

// PlainText returns the message body with HTML markup removed, entities
// decoded, and surrounding whitespace trimmed.
func (p *InboundPayload) PlainText() string {
	return StripHTML(p.Content())
}

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// StripHTML removes markup tags from s, decodes HTML entities, and
// collapses runs of whitespace into single spaces. Teams wraps outgoing
// webhook bodies in <p> and at-mention tags; this recovers the text a
// user actually typed.
func StripHTML(s string) string {
	s = tagPattern.ReplaceAllString(s, " ")
	s = html.UnescapeString(s)
	s = whitespacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}
