package models

import (
	"encoding/json"
	"fmt"
)

// Cardinality constrains how many values a property may take for
// instances of a class.
type Cardinality int

const (
	CardinalityZeroOrOne Cardinality = iota
	CardinalityExactlyOne
	CardinalityZeroOrMore
	CardinalityAtLeastOne
)

var cardinalityNames = map[Cardinality]string{
	CardinalityZeroOrOne:  "0-1",
	CardinalityExactlyOne: "1",
	CardinalityZeroOrMore: "0-n",
	CardinalityAtLeastOne: "1-n",
}

var cardinalityValues = map[string]Cardinality{
	"0-1": CardinalityZeroOrOne,
	"1":   CardinalityExactlyOne,
	"0-n": CardinalityZeroOrMore,
	"1-n": CardinalityAtLeastOne,
}

func (c Cardinality) String() string {
	if s, ok := cardinalityNames[c]; ok {
		return s
	}
	return fmt.Sprintf("Cardinality(%d)", int(c))
}

// MinRequired reports whether the cardinality requires at least one
// value (ExactlyOne or AtLeastOne).
func (c Cardinality) MinRequired() bool {
	return c == CardinalityExactlyOne || c == CardinalityAtLeastOne
}

// ParseCardinality parses the compact notation used in the store and in
// seed files ("0-1", "1", "0-n", "1-n").
func ParseCardinality(s string) (Cardinality, error) {
	if c, ok := cardinalityValues[s]; ok {
		return c, nil
	}
	return 0, fmt.Errorf("unknown cardinality %q", s)
}

// MarshalJSON serializes the compact notation so jsonb round trips are
// stable across enum reordering.
func (c Cardinality) MarshalJSON() ([]byte, error) {
	s, ok := cardinalityNames[c]
	if !ok {
		return nil, fmt.Errorf("unknown cardinality %d", int(c))
	}
	return json.Marshal(s)
}

func (c *Cardinality) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	parsed, err := ParseCardinality(s)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// PropertyCardinality is a cardinality together with an optional GUI
// display order. Two cardinalities are compatible only if the
// constraint itself is identical; GuiOrder never participates.
type PropertyCardinality struct {
	Cardinality Cardinality `json:"cardinality"`
	GuiOrder    *int        `json:"gui_order,omitempty"`
}

// SameAs reports constraint equality, ignoring GuiOrder.
func (pc PropertyCardinality) SameAs(other PropertyCardinality) bool {
	return pc.Cardinality == other.Cardinality
}
