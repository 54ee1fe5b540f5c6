package model

import (
	"errors"
	"time"
)

// DeliveryStatus is the provider-reported lifecycle state of a message.
type DeliveryStatus string

const (
	DeliveryStatusQueued      DeliveryStatus = "queued"
	DeliveryStatusSent        DeliveryStatus = "sent"
	DeliveryStatusDelivered   DeliveryStatus = "delivered"
	DeliveryStatusUndelivered DeliveryStatus = "undelivered"
	DeliveryStatusFailed      DeliveryStatus = "failed"
)

// Terminal reports whether the provider will never change this status again.
func (s DeliveryStatus) Terminal() bool {
	switch s {
	case DeliveryStatusDelivered, DeliveryStatusUndelivered, DeliveryStatusFailed:
		return true
	}
	return false
}

// OutboundMessage is one SMS about to be handed to the provider.
type OutboundMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
	From string `json:"from,omitempty"`
}

func (m OutboundMessage) Validate() error {
	if m.To == "" {
		return errors.New("to is required")
	}
	if m.Body == "" {
		return errors.New("body is required")
	}
	return nil
}

// DeliveryResult is the immutable outcome of one send attempt. Status may
// be refreshed later by a status lookup, which produces an updated copy
// rather than mutating the original.
type DeliveryResult struct {
	ID                int64          `json:"id,omitempty"`
	ProviderMessageID string         `json:"provider_message_id"`
	Status            DeliveryStatus `json:"status"`
	To                string         `json:"to"`
	From              string         `json:"from"`
	Body              string         `json:"body"`
	CreatedAt         time.Time      `json:"created_at"`
	SentAt            *time.Time     `json:"sent_at,omitempty"`
	ErrorCode         string         `json:"error_code,omitempty"`
	ErrorMessage      string         `json:"error_message,omitempty"`
}

// DeliveryFilter controls history queries.
type DeliveryFilter struct {
	To       *string
	Statuses []DeliveryStatus
	From     *time.Time
	Until    *time.Time
	Limit    int
	Offset   int
	Desc     bool
}

// AccountInfo is read-only provider account metadata.
type AccountInfo struct {
	SID          string `json:"sid"`
	FriendlyName string `json:"friendly_name"`
	Status       string `json:"status"`
	Type         string `json:"type"`
}
