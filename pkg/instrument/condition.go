package instrument

import (
	"encoding/json"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Condition is a rule that is either a literal boolean or an expression
// string (DisplayIf, Options.RequireResponse). The zero value is the empty
// expression.
type Condition struct {
	literal *bool
	expr    string
}

// Literal returns a Condition fixed to v.
func Literal(v bool) Condition {
	return Condition{literal: &v}
}

// Expr returns a Condition evaluated from expression text.
func Expr(text string) Condition {
	return Condition{expr: strings.TrimSpace(text)}
}

// Literal reports the literal boolean value, if the condition is one.
func (c Condition) Literal() (value bool, ok bool) {
	if c.literal == nil {
		return false, false
	}
	return *c.literal, true
}

// Expression returns the expression text; empty for literal conditions.
func (c Condition) Expression() string {
	return c.expr
}

// IsEmpty reports whether the condition is neither a literal nor carries any
// expression text.
func (c Condition) IsEmpty() bool {
	return c.literal == nil && c.expr == ""
}

func (c Condition) String() string {
	if v, ok := c.Literal(); ok {
		return fmt.Sprintf("%t", v)
	}
	return c.expr
}

// MarshalJSON encodes literals as JSON booleans and expressions as strings.
func (c Condition) MarshalJSON() ([]byte, error) {
	if v, ok := c.Literal(); ok {
		return json.Marshal(v)
	}
	return json.Marshal(c.expr)
}

// UnmarshalJSON accepts true, false, null or a string.
func (c *Condition) UnmarshalJSON(data []byte) error {
	raw := strings.TrimSpace(string(data))
	switch raw {
	case "null", "":
		*c = Condition{}
		return nil
	case "true":
		*c = Literal(true)
		return nil
	case "false":
		*c = Literal(false)
		return nil
	}
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("instrument: condition must be a boolean or string: %w", err)
	}
	*c = Expr(text)
	return nil
}

// MarshalYAML mirrors MarshalJSON.
func (c Condition) MarshalYAML() (any, error) {
	if v, ok := c.Literal(); ok {
		return v, nil
	}
	return c.expr, nil
}

// UnmarshalYAML accepts boolean or string scalars. Quoted "true"/"false" stay
// expressions, matching the JSON behaviour.
func (c *Condition) UnmarshalYAML(node *yaml.Node) error {
	if node == nil || node.Kind != yaml.ScalarNode {
		return fmt.Errorf("instrument: condition must be a scalar")
	}
	if node.Tag == "!!null" {
		*c = Condition{}
		return nil
	}
	if node.Tag == "!!bool" {
		var v bool
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("instrument: decode condition: %w", err)
		}
		*c = Literal(v)
		return nil
	}
	*c = Expr(node.Value)
	return nil
}
