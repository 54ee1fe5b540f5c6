package model

import "strings"

const (
	namePlaceholder = "{{name}}"
	defaultName     = "Tenant"
)

// Recipient is one destination of a broadcast.
type Recipient struct {
	Phone string `json:"phone"`
	Name  string `json:"name,omitempty"`
}

// BroadcastRequest expands a template into one OutboundMessage per
// recipient at request time.
type BroadcastRequest struct {
	MessageTemplate string
	Recipients      []Recipient
}

// PersonalizedBody substitutes the recipient's name into the template.
// Only the first {{name}} occurrence is replaced; a recipient without a
// name gets "Tenant".
func (r Recipient) PersonalizedBody(template string) string {
	name := r.Name
	if name == "" {
		name = defaultName
	}
	return strings.Replace(template, namePlaceholder, name, 1)
}
