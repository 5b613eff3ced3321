package instrument

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"
)

// ErrInvalidDefinition wraps every structural problem reported by Load.
var ErrInvalidDefinition = errors.New("instrument: invalid definition")

// ReservedContextName is the answer key under which external context is
// exposed to expressions; no field may use it.
const ReservedContextName = "context"

// LoadOption customises Load.
type LoadOption func(*loadConfig)

type loadConfig struct {
	syntaxCheck func(string) error
	sanitize    func(string) string
	skipCheck   bool
}

// WithSyntaxCheck parses every DisplayIf, RequireResponse and Formula
// expression at load time so malformed rules fail early instead of on first
// evaluation.
func WithSyntaxCheck(check func(expression string) error) LoadOption {
	return func(cfg *loadConfig) {
		cfg.syntaxCheck = check
	}
}

// WithSanitizer overrides how Description and Labels text is cleaned. Pass nil
// to keep the text as authored.
func WithSanitizer(fn func(string) string) LoadOption {
	return func(cfg *loadConfig) {
		if fn == nil {
			cfg.sanitize = func(s string) string { return s }
			return
		}
		cfg.sanitize = fn
	}
}

// WithoutContractCheck skips validation against DefinitionContract.
func WithoutContractCheck() LoadOption {
	return func(cfg *loadConfig) {
		cfg.skipCheck = true
	}
}

type definitionFile struct {
	Version  string        `json:"Version"`
	Meta     Meta          `json:"Meta"`
	Elements []FieldSchema `json:"Elements"`
}

// Load reads, validates and normalises an instrument definition. JSON and
// YAML documents are accepted; all structural errors are reported together.
func Load(src Source, opts ...LoadOption) (*Schema, error) {
	if src == nil {
		return nil, errors.New("instrument: source is nil")
	}
	data, err := src.Read()
	if err != nil {
		return nil, err
	}
	return Parse(src.Location(), data, opts...)
}

// Parse is Load for an already read document; location is used in errors
// and to prefer YAML decoding for .yaml/.yml names.
func Parse(location string, data []byte, opts ...LoadOption) (*Schema, error) {
	cfg := loadConfig{sanitize: SanitizeText}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	normalized, generic, err := normalizeDocument(location, data)
	if err != nil {
		return nil, err
	}

	var result *multierror.Error
	if !cfg.skipCheck {
		for _, violation := range checkContract(generic) {
			result = multierror.Append(result, violation)
		}
		if result != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, location, result.ErrorOrNil())
		}
	}

	var def definitionFile
	if err := json.Unmarshal(normalized, &def); err != nil {
		return nil, fmt.Errorf("%w: %s: decode: %w", ErrInvalidDefinition, location, err)
	}

	seen := make(map[string]int, len(def.Elements))
	for i := range def.Elements {
		field := &def.Elements[i]
		field.Name = strings.TrimSpace(field.Name)
		field.Type = FieldType(strings.TrimSpace(string(field.Type)))
		for _, problem := range checkField(i, *field, seen, cfg.syntaxCheck) {
			result = multierror.Append(result, problem)
		}
		field.Description = cfg.sanitize(field.Description)
		for j, label := range field.Labels {
			field.Labels[j] = cfg.sanitize(label)
		}
		for value, label := range field.Options.Values {
			field.Options.Values[value] = cfg.sanitize(label)
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrInvalidDefinition, location, err)
	}

	def.Meta.Description = cfg.sanitize(def.Meta.Description)
	schema := NewSchema(def.Meta, def.Elements)
	schema.version = strings.TrimSpace(def.Version)
	return schema, nil
}

// normalizeDocument decodes JSON or YAML and returns the canonical JSON
// encoding together with its generic form.
func normalizeDocument(location string, data []byte) ([]byte, any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil, fmt.Errorf("%w: %s is empty", ErrInvalidDefinition, location)
	}

	var generic any
	preferYAML := isYAMLName(location)
	if preferYAML || json.Unmarshal(data, &generic) != nil {
		generic = nil
		var raw any
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, nil, fmt.Errorf("%w: parse %s: invalid JSON or YAML: %w", ErrInvalidDefinition, location, err)
		}
		encoded, err := json.Marshal(stringKeys(raw))
		if err != nil {
			return nil, nil, fmt.Errorf("%w: normalise %s: %w", ErrInvalidDefinition, location, err)
		}
		if err := json.Unmarshal(encoded, &generic); err != nil {
			return nil, nil, fmt.Errorf("%w: normalise %s: %w", ErrInvalidDefinition, location, err)
		}
		return encoded, generic, nil
	}
	return data, generic, nil
}

// stringKeys rewrites YAML mappings with non-string keys, such as numeric
// response codes, into string-keyed maps so they encode as JSON objects.
func stringKeys(value any) any {
	switch typed := value.(type) {
	case map[string]any:
		for key, item := range typed {
			typed[key] = stringKeys(item)
		}
		return typed
	case map[any]any:
		out := make(map[string]any, len(typed))
		for key, item := range typed {
			out[fmt.Sprint(key)] = stringKeys(item)
		}
		return out
	case []any:
		for i, item := range typed {
			typed[i] = stringKeys(item)
		}
		return typed
	default:
		return value
	}
}

func isYAMLName(location string) bool {
	switch strings.ToLower(filepath.Ext(location)) {
	case ".yaml", ".yml":
		return true
	default:
		return false
	}
}

func checkField(idx int, field FieldSchema, seen map[string]int, syntax func(string) error) []error {
	var problems []error
	at := fmt.Sprintf("element %d", idx)
	if field.Name != "" {
		at = fmt.Sprintf("element %d (%s)", idx, field.Name)
	}

	kind, ok := field.Kind()
	if !ok {
		return append(problems, fmt.Errorf("%s: unknown type %q", at, field.Type))
	}

	if kind.IsInput() && field.Name == "" {
		problems = append(problems, fmt.Errorf("%s: %s field requires a Name", at, field.Type))
	}
	if field.Name != "" {
		if field.Name == ReservedContextName {
			problems = append(problems, fmt.Errorf("%s: name %q is reserved", at, field.Name))
		}
		if prev, dup := seen[field.Name]; dup {
			problems = append(problems, fmt.Errorf("%s: duplicate name, first declared by element %d", at, prev))
		} else {
			seen[field.Name] = idx
		}
	}
	if kind == KindCalc && strings.TrimSpace(field.Formula) == "" {
		problems = append(problems, fmt.Errorf("%s: calc field requires a Formula", at))
	}

	if syntax != nil {
		rules := []struct{ label, text string }{
			{"DisplayIf", field.DisplayIf.Expression()},
			{"RequireResponse", field.Options.RequireResponse.Expression()},
			{"Formula", field.Formula},
		}
		for _, rule := range rules {
			if strings.TrimSpace(rule.text) == "" {
				continue
			}
			if err := syntax(rule.text); err != nil {
				problems = append(problems, fmt.Errorf("%s: %s: %w", at, rule.label, err))
			}
		}
	}
	return problems
}
