package scheduling

import (
	"context"
	"encoding/json"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// recordEvent appends an audit event. Failures are logged and swallowed;
// the audit trail never blocks a scheduling operation.
func recordEvent(ctx context.Context, repo Repository, clock Clock, log zerolog.Logger, eventType string, entityID uuid.UUID, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	id := entityID
	ev := Event{
		Type:      eventType,
		EntityID:  &id,
		Payload:   data,
		CreatedAt: clock.Now(),
	}
	if err := repo.InsertEvent(ctx, ev); err != nil {
		log.Error().Err(err).Str("event", eventType).Stringer("entity_id", entityID).Msg("insert event")
	}
}
