package handlers

import (
	"encoding/json"

	"pushnami/api/apperr"
	"pushnami/api/models"
)

// eventField binds one key of an event body to its destination in EventInput.
type eventField struct {
	name string
	kind string
	dest func(in *models.EventInput) any
}

var eventFields = []eventField{
	{"visitor_id", "a string", func(in *models.EventInput) any { return &in.VisitorID }},
	{"experiment_id", "a UUID", func(in *models.EventInput) any { return &in.ExperimentID }},
	{"variant", "a string", func(in *models.EventInput) any { return &in.Variant }},
	{"event_type", "a string", func(in *models.EventInput) any { return &in.EventType }},
	{"event_name", "a string", func(in *models.EventInput) any { return &in.EventName }},
	{"metadata", "an object", func(in *models.EventInput) any { return &in.Metadata }},
	{"page_url", "a string", func(in *models.EventInput) any { return &in.PageURL }},
	{"user_agent", "a string", func(in *models.EventInput) any { return &in.UserAgent }},
}

// decodeEventInput decodes one event field by field so a mistyped value is
// reported against its JSON key. Unknown keys are ignored.
func decodeEventInput(raw json.RawMessage) (models.EventInput, *apperr.ValidationError) {
	var in models.EventInput
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return in, apperr.Invalid("", "event must be a JSON object")
	}
	for _, f := range eventFields {
		value, ok := fields[f.name]
		if !ok {
			continue
		}
		if err := json.Unmarshal(value, f.dest(&in)); err != nil {
			return in, apperr.Invalid(f.name, f.name+" must be "+f.kind)
		}
	}
	return in, nil
}

// decodeEventBatch decodes each element of a batch, pinning a failure to
// its position.
func decodeEventBatch(raws []json.RawMessage) ([]models.EventInput, error) {
	inputs := make([]models.EventInput, len(raws))
	for i, raw := range raws {
		in, ve := decodeEventInput(raw)
		if ve != nil {
			return nil, ve.AtIndex(i)
		}
		inputs[i] = in
	}
	return inputs, nil
}
