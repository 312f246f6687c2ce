package history

import (
	"encoding/json"
	"fmt"
	"time"

	"moments-agent/internal/domain"
)

// record is the persisted shape of one entry.
type record struct {
	Type      domain.EntryKind `json:"type"`
	Text      string           `json:"text"`
	CreatedAt string           `json:"createdAt"`
}

// Encode serializes a log for storage.
func Encode(entries []domain.Entry) ([]byte, error) {
	recs := make([]record, 0, len(entries))
	for _, e := range entries {
		recs = append(recs, record{
			Type:      e.Kind,
			Text:      e.Text,
			CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
		})
	}
	buf, err := json.Marshal(recs)
	if err != nil {
		return nil, fmt.Errorf("history: encode: %w", err)
	}
	return buf, nil
}

// Decode parses a stored log. Entries without a type are read as replies.
func Decode(raw []byte) ([]domain.Entry, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var recs []record
	if err := json.Unmarshal(raw, &recs); err != nil {
		return nil, fmt.Errorf("history: decode: %w", err)
	}
	entries := make([]domain.Entry, 0, len(recs))
	for i, r := range recs {
		kind := r.Type
		switch kind {
		case "":
			kind = domain.EntryReply
		case domain.EntryReply, domain.EntrySummary:
		default:
			return nil, fmt.Errorf("history: decode: entry %d has unknown type %q", i, r.Type)
		}
		var ts time.Time
		if r.CreatedAt != "" {
			parsed, err := time.Parse(time.RFC3339Nano, r.CreatedAt)
			if err != nil {
				return nil, fmt.Errorf("history: decode: entry %d timestamp: %w", i, err)
			}
			ts = parsed
		}
		entries = append(entries, domain.Entry{Kind: kind, Text: r.Text, CreatedAt: ts})
	}
	return entries, nil
}
