// Package domain implements the notification consumer: it decodes workflow
// events, sends the matching email, and appends an audit record for every
// delivery attempt.
package domain

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/louisbranch/releaseline/internal/platform/id"
	"github.com/louisbranch/releaseline/internal/services/release/event"
)

// AdminRecipient receives system error alerts.
const AdminRecipient = "admin@company.com"

// DeliveryStatus records the outcome of one email attempt.
type DeliveryStatus string

const (
	// DeliverySent means the email handoff succeeded.
	DeliverySent DeliveryStatus = "SENT"
	// DeliveryFailed means the email handoff failed; the event itself is
	// still considered consumed.
	DeliveryFailed DeliveryStatus = "FAILED"
)

// EventType labels audit records by the workflow event that produced them.
type EventType string

const (
	// EventTaskAssigned labels task assignment notifications.
	EventTaskAssigned EventType = "TASK_ASSIGNED"
	// EventHotfixAdded labels hotfix notifications.
	EventHotfixAdded EventType = "HOTFIX_ADDED"
	// EventStaleTask labels stale task reminders.
	EventStaleTask EventType = "STALE_TASK"
	// EventSystemError labels system error alerts.
	EventSystemError EventType = "SYSTEM_ERROR"
)

// NotificationRecord is one audit log entry.
type NotificationRecord struct {
	ID             string
	Recipient      string
	Subject        string
	Body           string
	EventType      EventType
	Timestamp      time.Time
	DeliveryStatus DeliveryStatus
	RelatedEventID string
	ErrorMessage   string
}

// Store is the audit log persistence boundary.
type Store interface {
	AppendRecord(ctx context.Context, record NotificationRecord) error
	ListRecords(ctx context.Context, limit int) ([]NotificationRecord, error)
}

// EmailSender hands one email to the mail transport.
type EmailSender interface {
	Send(ctx context.Context, recipient, subject, body string) error
}

// Service consumes workflow events and turns them into emails plus audit
// records.
type Service struct {
	store  Store
	sender EmailSender
	clock  func() time.Time
	newID  func() (string, error)
	logf   func(format string, args ...any)
}

// NewService constructs the notification service. clock and newID default to
// time.Now and id.NewID.
func NewService(store Store, sender EmailSender, clock func() time.Time, newID func() (string, error), logf func(format string, args ...any)) *Service {
	if clock == nil {
		clock = time.Now
	}
	if newID == nil {
		newID = id.NewID
	}
	if logf == nil {
		logf = log.Printf
	}
	return &Service{store: store, sender: sender, clock: clock, newID: newID, logf: logf}
}

// HandleTaskEvent consumes one task workflow event. Decode failures are
// returned so the channel redelivers the message; email failures are recorded
// as FAILED and swallowed. Completion events carry no notification and are
// acknowledged without a record.
func (s *Service) HandleTaskEvent(ctx context.Context, routingKey string, payload []byte, relatedEventID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("notification service is not configured")
	}

	switch event.Kind(routingKey) {
	case event.KindAssigned:
		var evt event.TaskAssigned
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode assigned event: %w", err)
		}
		recipient := evt.DeveloperEmail
		if recipient == "" {
			recipient = evt.DeveloperID
		}
		return s.notify(ctx, EventTaskAssigned, recipient,
			"New Task Assigned",
			"You have been assigned task "+evt.TaskID,
			relatedEventID,
		)
	case event.KindHotfix:
		var evt event.HotfixTaskAdded
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode hotfix event: %w", err)
		}
		recipient := evt.DeveloperEmail
		if recipient == "" {
			recipient = evt.DeveloperID
		}
		return s.notify(ctx, EventHotfixAdded, recipient,
			"URGENT: Hotfix Task Added",
			"A hotfix task '"+evt.TaskTitle+"' has been added to your release!",
			relatedEventID,
		)
	case event.KindStale:
		var evt event.StaleTaskDetected
		if err := json.Unmarshal(payload, &evt); err != nil {
			return fmt.Errorf("decode stale event: %w", err)
		}
		recipient := evt.DeveloperEmail
		if recipient == "" {
			recipient = evt.DeveloperID
		}
		return s.notify(ctx, EventStaleTask, recipient,
			"Stale Task Reminder",
			"Task "+evt.TaskID+" has been active for "+evt.Duration,
			relatedEventID,
		)
	case event.KindCompleted:
		// Completions are consumed without a notification.
		return nil
	default:
		s.logf("ignoring task event with unknown routing key %q", routingKey)
		return nil
	}
}

// HandleSystemEvent consumes one system error event and alerts the admin.
func (s *Service) HandleSystemEvent(ctx context.Context, routingKey string, payload []byte, relatedEventID string) error {
	if s == nil || s.store == nil {
		return fmt.Errorf("notification service is not configured")
	}

	if event.Kind(routingKey) != event.KindError {
		s.logf("ignoring system event with unknown routing key %q", routingKey)
		return nil
	}
	var evt event.SystemError
	if err := json.Unmarshal(payload, &evt); err != nil {
		return fmt.Errorf("decode system error event: %w", err)
	}
	return s.notify(ctx, EventSystemError, AdminRecipient,
		"System Error Alert",
		"Error: "+evt.Message,
		relatedEventID,
	)
}

// ListRecords returns the most recent audit records.
func (s *Service) ListRecords(ctx context.Context, limit int) ([]NotificationRecord, error) {
	if s == nil || s.store == nil {
		return nil, fmt.Errorf("notification service is not configured")
	}
	return s.store.ListRecords(ctx, limit)
}

// notify sends one email and appends the audit record. A send failure is
// captured in the record, not returned, so the event is never redelivered
// over a mail transport problem.
func (s *Service) notify(ctx context.Context, eventType EventType, recipient, subject, body, relatedEventID string) error {
	recordID, err := s.newID()
	if err != nil {
		return fmt.Errorf("generate record id: %w", err)
	}

	record := NotificationRecord{
		ID:             recordID,
		Recipient:      recipient,
		Subject:        subject,
		Body:           body,
		EventType:      eventType,
		Timestamp:      s.clock().UTC(),
		DeliveryStatus: DeliverySent,
		RelatedEventID: relatedEventID,
	}
	if s.sender == nil {
		record.DeliveryStatus = DeliveryFailed
		record.ErrorMessage = "mail sender is not configured"
	} else if sendErr := s.sender.Send(ctx, recipient, subject, body); sendErr != nil {
		record.DeliveryStatus = DeliveryFailed
		record.ErrorMessage = sendErr.Error()
		s.logf("send %s notification to %s: %v", eventType, recipient, sendErr)
	}

	if err := s.store.AppendRecord(ctx, record); err != nil {
		return fmt.Errorf("append notification record: %w", err)
	}
	return nil
}
