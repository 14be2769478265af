package tracker

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"guildbot/internal/ledger"
	"guildbot/internal/storage"
)

// Store keys of the two books.
const (
	AllTimeKey = "activity_data.json"
	PeriodKey  = "weekly_data.json"
)

// LoadDocuments reads both books. A missing or corrupt document yields an
// empty one; only storage failures are returned.
func LoadDocuments(ctx context.Context, store storage.Store, logger zerolog.Logger) (allTime, period ledger.Document, err error) {
	allTime, err = loadDocument(ctx, store, AllTimeKey, logger)
	if err != nil {
		return allTime, period, err
	}
	period, err = loadDocument(ctx, store, PeriodKey, logger)
	return allTime, period, err
}

func loadDocument(ctx context.Context, store storage.Store, key string, logger zerolog.Logger) (ledger.Document, error) {
	doc := ledger.NewDocument()
	err := storage.LoadJSON(ctx, store, key, &doc)
	switch {
	case err == nil:
	case errors.Is(err, storage.ErrNotFound):
		logger.Info().Str("key", key).Msg("No stored document, starting empty")
		return ledger.NewDocument(), nil
	case errors.Is(err, storage.ErrCorrupt):
		logger.Error().Err(err).Str("key", key).Msg("Stored document is corrupt, starting empty")
		return ledger.NewDocument(), nil
	default:
		return doc, fmt.Errorf("load %s: %w", key, err)
	}
	if doc.ActivityTimes == nil {
		doc.ActivityTimes = make(map[string]map[string]ledger.ActivityAccount)
	}
	if doc.VoiceTimes == nil {
		doc.VoiceTimes = make(map[string]ledger.VoiceAccount)
	}
	return doc, nil
}

func saveDocuments(ctx context.Context, store storage.Store, allTime, period ledger.Document) error {
	if err := storage.SaveJSON(ctx, store, AllTimeKey, allTime); err != nil {
		return err
	}
	return storage.SaveJSON(ctx, store, PeriodKey, period)
}
