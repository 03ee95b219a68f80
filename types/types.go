package types

// Blob is a binary submission value, typically an uploaded file part.
type Blob struct {
	Filename    string `json:"filename"`
	ContentType string `json:"content_type,omitempty"`
	Data        []byte `json:"data,omitempty"`
}

// Intent is a typed instruction carried by a submission beyond a plain submit.
type Intent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// Submission is the parsed form of a single payload.
//
// Value holds scalars (string, float64, bool, nil, Blob), []any and map[string]any.
// Fields lists every raw field name found in the payload in first-seen order.
type Submission struct {
	Value  map[string]any `json:"value"`
	Fields []string       `json:"fields"`
	Intent *Intent        `json:"intent,omitempty"`
}

// HasField reports whether name was physically present in the payload.
func (s *Submission) HasField(name string) bool {
	if s == nil {
		return false
	}
	for _, f := range s.Fields {
		if f == name {
			return true
		}
	}
	return false
}

// FormError is the validator output. E is opaque to the engine.
type FormError[E any] struct {
	FormError  *E           `json:"form_error,omitempty"`
	FieldError map[string]E `json:"field_error,omitempty"`
}

type FormState[E any] struct {
	DefaultValue   map[string]any      `json:"default_value"`
	ServerError    *FormError[E]       `json:"server_error,omitempty"`
	ClientError    *FormError[E]       `json:"client_error,omitempty"`
	InitialValue   map[string]any      `json:"initial_value"`
	SubmittedValue map[string]any      `json:"submitted_value,omitempty"`
	TouchedFields  []string            `json:"touched_fields"`
	Keys           map[string][]string `json:"keys"`
}

// Error returns the error to display: the server verdict wins over the client one.
func (s FormState[E]) Error() *FormError[E] {
	if s.ServerError != nil {
		return s.ServerError
	}
	return s.ClientError
}

// CurrentValue is the latest value seen: the last submitted one, or the
// initial value before any submission.
func (s FormState[E]) CurrentValue() map[string]any {
	if s.SubmittedValue != nil {
		return s.SubmittedValue
	}
	return s.InitialValue
}

// IsTouched reports whether name itself was marked touched.
func (s FormState[E]) IsTouched(name string) bool {
	for _, f := range s.TouchedFields {
		if f == name {
			return true
		}
	}
	return false
}
