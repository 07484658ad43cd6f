package infrastructure

import (
	"fmt"

	"betledger/events"
)

const subjectPrefix = "betledger"

// EventSubject returns the subject an event type is forwarded to
func EventSubject(eventType events.EventType) string {
	return fmt.Sprintf("%s.%s", subjectPrefix, eventType)
}

// StreamSubjects returns every subject the ledger stream must capture
func StreamSubjects(withdrawalSubject string) []string {
	subjects := make([]string, 0, len(events.AllEventTypes)+1)
	for _, t := range events.AllEventTypes {
		subjects = append(subjects, EventSubject(t))
	}
	if withdrawalSubject != "" {
		subjects = append(subjects, withdrawalSubject)
	}
	return subjects
}
