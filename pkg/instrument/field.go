package instrument

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// FieldType is the type tag carried by a field definition.
type FieldType string

const (
	FieldTypeLabel       FieldType = "label"
	FieldTypeRadioLabels FieldType = "radio-labels"
	FieldTypeRadio       FieldType = "radio"
	FieldTypeSelect      FieldType = "select"
	FieldTypeCheckbox    FieldType = "checkbox"
	FieldTypeText        FieldType = "text"
	FieldTypeCalc        FieldType = "calc"
	FieldTypeDate        FieldType = "date"
)

// Valid reports whether t is one of the supported field types.
func (t FieldType) Valid() bool {
	switch t {
	case FieldTypeLabel, FieldTypeRadioLabels, FieldTypeRadio, FieldTypeSelect,
		FieldTypeCheckbox, FieldTypeText, FieldTypeCalc, FieldTypeDate:
		return true
	default:
		return false
	}
}

// Kind is the closed set of field variants after the text subtype has been
// resolved. Switches over Kind are expected to be exhaustive.
type Kind int

const (
	KindLabel Kind = iota
	KindRadioLabels
	KindRadio
	KindSelect
	KindCheckbox
	KindTextPlain
	KindTextLarge
	KindCalc
	KindDate
)

func (k Kind) String() string {
	switch k {
	case KindLabel:
		return "label"
	case KindRadioLabels:
		return "radio-labels"
	case KindRadio:
		return "radio"
	case KindSelect:
		return "select"
	case KindCheckbox:
		return "checkbox"
	case KindTextPlain:
		return "text-plain"
	case KindTextLarge:
		return "text-large"
	case KindCalc:
		return "calc"
	case KindDate:
		return "date"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// IsInput reports whether the variant takes part in requirement checks.
// Labels and radio-label headers are presentational only.
func (k Kind) IsInput() bool {
	switch k {
	case KindLabel, KindRadioLabels:
		return false
	case KindRadio, KindSelect, KindCheckbox, KindTextPlain, KindTextLarge, KindCalc, KindDate:
		return true
	default:
		return false
	}
}

// IsEditable reports whether an operator may write the field directly.
// Calc fields are derived and never editable.
func (k Kind) IsEditable() bool {
	switch k {
	case KindRadio, KindSelect, KindCheckbox, KindTextPlain, KindTextLarge, KindDate:
		return true
	case KindLabel, KindRadioLabels, KindCalc:
		return false
	default:
		return false
	}
}

// TextLarge is the Options.Type value selecting a multi-line text field.
const TextLarge = "large"

// Choice is one selectable value of a radio, select or checkbox field.
type Choice struct {
	Value string
	Label string
}

// Codes is an ordered list of option values. Numeric entries decode to their
// literal text so `[0, 1]` and `["0", "1"]` are the same list.
type Codes []string

// UnmarshalJSON accepts strings and numbers.
func (c *Codes) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("instrument: decode codes: %w", err)
	}
	if raw == nil {
		*c = nil
		return nil
	}
	out := make(Codes, 0, len(raw))
	for _, item := range raw {
		var text string
		if err := json.Unmarshal(item, &text); err == nil {
			out = append(out, text)
			continue
		}
		var num json.Number
		if err := json.Unmarshal(item, &num); err != nil {
			return fmt.Errorf("instrument: decode code %s: %w", item, err)
		}
		out = append(out, num.String())
	}
	*c = out
	return nil
}

// Options is the type-dependent option bag of a field.
type Options struct {
	RequireResponse Condition         `json:"RequireResponse,omitempty" yaml:"RequireResponse,omitempty"`
	Values          map[string]string `json:"Values,omitempty" yaml:"Values,omitempty"`
	Order           Codes             `json:"Order,omitempty" yaml:"Order,omitempty"`
	Orientation     string            `json:"Orientation,omitempty" yaml:"Orientation,omitempty"`
	AllowMultiple   bool              `json:"AllowMultiple,omitempty" yaml:"AllowMultiple,omitempty"`
	Type            string            `json:"Type,omitempty" yaml:"Type,omitempty"`
}

// Choices returns the selectable values in display order: Order first, then
// any remaining values sorted by key.
func (o Options) Choices() []Choice {
	if len(o.Values) == 0 {
		return nil
	}
	out := make([]Choice, 0, len(o.Values))
	seen := make(map[string]struct{}, len(o.Values))
	for _, value := range o.Order {
		label, ok := o.Values[value]
		if !ok {
			continue
		}
		if _, dup := seen[value]; dup {
			continue
		}
		seen[value] = struct{}{}
		out = append(out, Choice{Value: value, Label: label})
	}

	rest := make([]string, 0, len(o.Values))
	for value := range o.Values {
		if _, ok := seen[value]; !ok {
			rest = append(rest, value)
		}
	}
	sort.Strings(rest)
	for _, value := range rest {
		out = append(out, Choice{Value: value, Label: o.Values[value]})
	}
	return out
}

func (o Options) clone() Options {
	out := o
	if o.Values != nil {
		out.Values = make(map[string]string, len(o.Values))
		for k, v := range o.Values {
			out.Values[k] = v
		}
	}
	if o.Order != nil {
		out.Order = append([]string(nil), o.Order...)
	}
	return out
}

// FieldSchema describes one element of an instrument.
type FieldSchema struct {
	Name         string    `json:"Name" yaml:"Name"`
	Type         FieldType `json:"Type" yaml:"Type"`
	Description  string    `json:"Description,omitempty" yaml:"Description,omitempty"`
	Labels       []string  `json:"Labels,omitempty" yaml:"Labels,omitempty"`
	Hidden       bool      `json:"Hidden,omitempty" yaml:"Hidden,omitempty"`
	HiddenSurvey bool      `json:"HiddenSurvey,omitempty" yaml:"HiddenSurvey,omitempty"`
	DisplayIf    Condition `json:"DisplayIf,omitempty" yaml:"DisplayIf,omitempty"`
	Formula      string    `json:"Formula,omitempty" yaml:"Formula,omitempty"`
	Options      Options   `json:"Options,omitempty" yaml:"Options,omitempty"`
}

// Kind resolves the closed variant for the field. Unknown types report
// ok=false; Load rejects them so a loaded schema never contains one.
func (f FieldSchema) Kind() (Kind, bool) {
	switch f.Type {
	case FieldTypeLabel:
		return KindLabel, true
	case FieldTypeRadioLabels:
		return KindRadioLabels, true
	case FieldTypeRadio:
		return KindRadio, true
	case FieldTypeSelect:
		return KindSelect, true
	case FieldTypeCheckbox:
		return KindCheckbox, true
	case FieldTypeText:
		if strings.EqualFold(strings.TrimSpace(f.Options.Type), TextLarge) {
			return KindTextLarge, true
		}
		return KindTextPlain, true
	case FieldTypeCalc:
		return KindCalc, true
	case FieldTypeDate:
		return KindDate, true
	default:
		return 0, false
	}
}

// Clone returns a deep copy so callers can never reach back into a schema.
func (f FieldSchema) Clone() FieldSchema {
	out := f
	out.Options = f.Options.clone()
	if f.Labels != nil {
		out.Labels = append([]string(nil), f.Labels...)
	}
	return out
}
