package reconcile

import (
	"fmt"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/qboard/qboard/internal/question"
)

// batchSchema constrains the raw payload envelope before normalization.
// Per-item field aliases are handled by normalizeResult; the schema only
// rejects payloads that are structurally wrong for the whole batch.
const batchSchema = `{
	"type": "array",
	"items": {
		"type": "object",
		"anyOf": [
			{"required": ["question_id"]},
			{"required": ["id"]}
		],
		"properties": {
			"question_id": {"type": "string"},
			"id": {"type": "string"},
			"cluster_label": {"type": "string"},
			"cluster": {"type": "string"},
			"topic": {"type": "string"},
			"topic_label": {"type": "string"},
			"difficulty_score": {"type": "number"},
			"difficulty": {"type": "number"},
			"difficulty_level": {"type": "string", "enum": ["easy", "medium", "hard"]},
			"level": {"type": "string", "enum": ["easy", "medium", "hard"]},
			"keywords": {"type": "array", "items": {"type": "string"}},
			"summary": {"type": "string"},
			"ai_summary": {"type": "string"}
		}
	}
}`

var batchSchemaLoader = gojsonschema.NewStringLoader(batchSchema)

// validatePayload checks a raw batch against the schema. A structural
// mismatch rejects the whole batch before any mutation.
func validatePayload(payload []byte) error {
	result, err := gojsonschema.Validate(batchSchemaLoader, gojsonschema.NewBytesLoader(payload))
	if err != nil {
		return question.ValidationError{Field: "payload", Msg: fmt.Sprintf("not valid JSON: %v", err)}
	}
	if !result.Valid() {
		msgs := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			msgs = append(msgs, e.String())
		}
		return question.ValidationError{Field: "payload", Msg: strings.Join(msgs, "; ")}
	}
	return nil
}
