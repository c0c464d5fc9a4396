package service

import (
	"invoice-backend/internal/logger"

	"github.com/rs/zerolog"
)

// EventBroadcaster pushes domain events to connected realtime clients.
// The websocket hub implements it; a nil broadcaster disables events.
type EventBroadcaster interface {
	BroadcastEvent(eventType string, payload interface{})
}

func importLogger() zerolog.Logger {
	return logger.WithComponent("import")
}

func creditNoteLogger() zerolog.Logger {
	return logger.WithComponent("credit_note")
}
