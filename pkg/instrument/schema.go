package instrument

// Reserved answer keys owned by the data-entry meta block rather than by any
// schema field.
const (
	KeyDateTaken        = "Date_taken"
	KeyCandidateAge     = "Candidate_Age"
	KeyWindowDifference = "Window_Difference"
	KeyExaminer         = "Examiner"
)

// IsMetaKey reports whether name is one of the reserved meta keys.
func IsMetaKey(name string) bool {
	switch name {
	case KeyDateTaken, KeyCandidateAge, KeyWindowDifference, KeyExaminer:
		return true
	default:
		return false
	}
}

// IsDerivedMetaKey reports whether name is written only by the age/window
// calculation.
func IsDerivedMetaKey(name string) bool {
	return name == KeyCandidateAge || name == KeyWindowDifference
}

// Meta carries the instrument title and descriptive text.
type Meta struct {
	ShortName   string `json:"ShortName,omitempty" yaml:"ShortName,omitempty"`
	LongName    string `json:"LongName,omitempty" yaml:"LongName,omitempty"`
	Description string `json:"Description,omitempty" yaml:"Description,omitempty"`
}

// Schema is the ordered, immutable field list of an instrument. Build one
// with Load or NewSchema; accessors hand out copies.
type Schema struct {
	version string
	meta    Meta
	fields  []FieldSchema
	index   map[string]int
}

// NewSchema builds a Schema from already validated fields. Use Load for
// definitions coming from outside the process.
func NewSchema(meta Meta, fields []FieldSchema) *Schema {
	s := &Schema{
		meta:   meta,
		fields: make([]FieldSchema, len(fields)),
		index:  make(map[string]int, len(fields)),
	}
	for i, field := range fields {
		s.fields[i] = field.Clone()
		if field.Name != "" {
			s.index[field.Name] = i
		}
	}
	return s
}

// Version returns the definition format version, if declared.
func (s *Schema) Version() string {
	if s == nil {
		return ""
	}
	return s.version
}

// Meta returns the instrument title block.
func (s *Schema) Meta() Meta {
	if s == nil {
		return Meta{}
	}
	return s.meta
}

// Len returns the number of fields.
func (s *Schema) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Fields returns a deep copy of the ordered field list.
func (s *Schema) Fields() []FieldSchema {
	if s == nil {
		return nil
	}
	out := make([]FieldSchema, len(s.fields))
	for i, field := range s.fields {
		out[i] = field.Clone()
	}
	return out
}

// Field looks a field up by name.
func (s *Schema) Field(name string) (FieldSchema, bool) {
	if s == nil {
		return FieldSchema{}, false
	}
	idx, ok := s.index[name]
	if !ok {
		return FieldSchema{}, false
	}
	return s.fields[idx].Clone(), true
}

// CalcFields returns the calc fields in schema order.
func (s *Schema) CalcFields() []FieldSchema {
	if s == nil {
		return nil
	}
	var out []FieldSchema
	for _, field := range s.fields {
		if field.Type == FieldTypeCalc {
			out = append(out, field.Clone())
		}
	}
	return out
}

// AgeWindow is an admissible candidate age range in days, bounds inclusive.
type AgeWindow struct {
	AgeMinDays float64 `json:"AgeMinDays" yaml:"AgeMinDays" validate:"gte=0"`
	AgeMaxDays float64 `json:"AgeMaxDays" yaml:"AgeMaxDays" validate:"gtefield=AgeMinDays"`
}

// Contains reports whether ageDays falls inside the window.
func (w AgeWindow) Contains(ageDays float64) bool {
	return ageDays >= w.AgeMinDays && ageDays <= w.AgeMaxDays
}

// AnswerSet maps field names (and reserved meta keys) to the current values.
// Values are strings, numbers, booleans or nil for reset/null answers.
type AnswerSet map[string]any

// Clone returns a shallow copy.
func (a AnswerSet) Clone() AnswerSet {
	out := make(AnswerSet, len(a))
	for k, v := range a {
		out[k] = v
	}
	return out
}

// IsEmptyValue reports whether v counts as "not answered" for requirement
// checks: nil or the empty string. Zero and false are answers.
func IsEmptyValue(v any) bool {
	switch typed := v.(type) {
	case nil:
		return true
	case string:
		return typed == ""
	default:
		return false
	}
}

// AnnotatedField is a per-render projection of a FieldSchema: the current
// value and the resolved requirement flag. It is a copy; changing it never
// affects the schema.
type AnnotatedField struct {
	FieldSchema
	// Index is the field position in the schema.
	Index           int
	Value           any
	RequireResponse bool
}

// Missing reports whether the field is required but holds no answer.
func (f AnnotatedField) Missing() bool {
	return f.RequireResponse && IsEmptyValue(f.Value)
}
