package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/julianstephens/habitkit/internal/constants"
	apperrors "github.com/julianstephens/habitkit/internal/errors"
	"github.com/julianstephens/habitkit/internal/logger"
	"github.com/julianstephens/habitkit/internal/models"
	"github.com/julianstephens/habitkit/internal/utils"
)

type entryKind int

const (
	entryStructured entryKind = iota
	// entryLegacyID is a bare habit id written by older versions. It carries
	// no completion time.
	entryLegacyID
)

// storedEntry decodes either persisted shape of a single day entry.
type storedEntry struct {
	kind        entryKind
	habitID     string
	completedAt time.Time
}

func (e *storedEntry) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var id string
		if err := json.Unmarshal(data, &id); err != nil {
			return err
		}
		e.kind = entryLegacyID
		e.habitID = id
		return nil
	}

	var c models.Completion
	if err := json.Unmarshal(data, &c); err != nil {
		return err
	}
	e.kind = entryStructured
	e.habitID = c.HabitID
	e.completedAt = c.CompletedAt
	return nil
}

// completion upgrades the entry. Legacy ids get midnight of their day.
func (e storedEntry) completion(day time.Time) models.Completion {
	at := e.completedAt
	if e.kind == entryLegacyID || at.IsZero() {
		at = day
	}
	return models.Completion{HabitID: e.habitID, CompletedAt: at.UTC()}
}

// decodeDays parses the completions blob. Unparseable day keys and empty
// habit ids are skipped; duplicate entries for one habit on one day collapse
// to the first.
func decodeDays(data []byte) (map[string][]models.Completion, int, error) {
	var raw map[string][]storedEntry
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, 0, &apperrors.StorageCorruptionError{Key: constants.CompletionsKey, Err: err}
	}

	days := make(map[string][]models.Completion, len(raw))
	upgraded := 0
	for key, entries := range raw {
		day, err := utils.ParseDayKey(key)
		if err != nil {
			logger.Warn("skipping completions under invalid day key", "key", key)
			continue
		}

		seen := make(map[string]bool, len(entries))
		for _, e := range entries {
			if e.habitID == "" || seen[e.habitID] {
				continue
			}
			seen[e.habitID] = true
			if e.kind == entryLegacyID {
				upgraded++
			}
			days[key] = append(days[key], e.completion(day))
		}
	}
	return days, upgraded, nil
}

func encodeDays(days map[string][]models.Completion) ([]byte, error) {
	data, err := json.Marshal(days)
	if err != nil {
		return nil, fmt.Errorf("failed to encode completions: %w", err)
	}
	return data, nil
}
