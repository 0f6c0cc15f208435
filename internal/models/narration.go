package models

import (
	"encoding/json"
	"fmt"
	"regexp"
)

// Narrations may carry a structured payload between double-hash markers:
//
//	"Disburse loan ##{\"due_date\": \"2022-05-10\"}## extra text"
//
// The payload between the first pair of markers is parsed as a JSON object.
// The wire format is fixed; readers elsewhere depend on it bit-for-bit.
var narrationMetaPattern = regexp.MustCompile(`##(.*?)##`)

// ExtractNarrationMeta returns the metadata object embedded in a narration,
// or nil when the marker is absent or the payload is not valid JSON.
func ExtractNarrationMeta(narration string) map[string]any {
	m := narrationMetaPattern.FindStringSubmatch(narration)
	if m == nil {
		return nil
	}
	var meta map[string]any
	if err := json.Unmarshal([]byte(m[1]), &meta); err != nil {
		return nil
	}
	return meta
}

// AppendNarrationMeta appends a metadata payload to a narration in the wire
// format above. A nil or empty meta leaves the narration untouched.
func AppendNarrationMeta(narration string, meta map[string]any) (string, error) {
	if len(meta) == 0 {
		return narration, nil
	}
	payload, err := json.Marshal(meta)
	if err != nil {
		return "", fmt.Errorf("could not encode narration meta: %w", err)
	}
	return fmt.Sprintf("%s ##%s##", narration, payload), nil
}
