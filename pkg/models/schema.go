package models

import (
	"maps"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Predicates is the closed set of annotation predicates carried by
// classes and properties. Labels and comments are keyed by language
// tag.
type Predicates struct {
	Labels        map[string]string `json:"labels,omitempty"`
	Comments      map[string]string `json:"comments,omitempty"`
	GuiElement    IRI               `json:"gui_element,omitempty"`
	GuiAttributes []string          `json:"gui_attributes,omitempty"`
}

// Clone returns a deep copy.
func (p Predicates) Clone() Predicates {
	return Predicates{
		Labels:        maps.Clone(p.Labels),
		Comments:      maps.Clone(p.Comments),
		GuiElement:    p.GuiElement,
		GuiAttributes: slices.Clone(p.GuiAttributes),
	}
}

// Equal reports deep equality of the predicate sets.
func (p Predicates) Equal(other Predicates) bool {
	return maps.Equal(p.Labels, other.Labels) &&
		maps.Equal(p.Comments, other.Comments) &&
		p.GuiElement == other.GuiElement &&
		slices.Equal(p.GuiAttributes, other.GuiAttributes)
}

// PropertyDefinition describes a schema property. The boolean facets
// are derived from the super-property closure when a snapshot is built;
// they are never persisted.
type PropertyDefinition struct {
	IRI             IRI        `json:"iri"`
	SuperProperties []IRI      `json:"super_properties"`
	SubjectType     IRI        `json:"subject_type,omitempty"`
	ObjectType      IRI        `json:"object_type,omitempty"`
	Predicates      Predicates `json:"predicates"`

	IsLinkProperty      bool `json:"-"`
	IsLinkValueProperty bool `json:"-"`
	IsFileValueProperty bool `json:"-"`
	IsResourceProperty  bool `json:"-"`
}

// Clone returns a deep copy.
func (p *PropertyDefinition) Clone() *PropertyDefinition {
	cp := *p
	cp.SuperProperties = slices.Clone(p.SuperProperties)
	cp.Predicates = p.Predicates.Clone()
	return &cp
}

// Equal reports deep equality of the persisted fields (facets are
// derived, so they do not participate).
func (p *PropertyDefinition) Equal(other *PropertyDefinition) bool {
	if p == nil || other == nil {
		return p == other
	}
	return p.IRI == other.IRI &&
		iriSetEqual(p.SuperProperties, other.SuperProperties) &&
		p.SubjectType == other.SubjectType &&
		p.ObjectType == other.ObjectType &&
		p.Predicates.Equal(other.Predicates)
}

// ClassDefinition describes a schema class. DirectCardinalities holds
// only the cardinalities declared on the class itself; inherited ones
// are computed per snapshot and never stored.
type ClassDefinition struct {
	IRI                 IRI                         `json:"iri"`
	SuperClasses        []IRI                       `json:"super_classes"`
	DirectCardinalities map[IRI]PropertyCardinality `json:"direct_cardinalities"`
	Predicates          Predicates                  `json:"predicates"`
}

// Clone returns a deep copy.
func (c *ClassDefinition) Clone() *ClassDefinition {
	cp := *c
	cp.SuperClasses = slices.Clone(c.SuperClasses)
	cp.DirectCardinalities = maps.Clone(c.DirectCardinalities)
	cp.Predicates = c.Predicates.Clone()
	return &cp
}

// Equal reports deep equality. GuiOrder participates here because it is
// persisted state, unlike in PropertyCardinality.SameAs.
func (c *ClassDefinition) Equal(other *ClassDefinition) bool {
	if c == nil || other == nil {
		return c == other
	}
	if c.IRI != other.IRI ||
		!iriSetEqual(c.SuperClasses, other.SuperClasses) ||
		!c.Predicates.Equal(other.Predicates) ||
		len(c.DirectCardinalities) != len(other.DirectCardinalities) {
		return false
	}
	for prop, card := range c.DirectCardinalities {
		o, ok := other.DirectCardinalities[prop]
		if !ok || o.Cardinality != card.Cardinality || !intPtrEqual(o.GuiOrder, card.GuiOrder) {
			return false
		}
	}
	return true
}

// Ontology is a named collection of class and property definitions.
// LastModificationDate is the optimistic-concurrency version token:
// every mutation must present the value it last observed.
type Ontology struct {
	IRI                  IRI
	ProjectID            uuid.UUID
	IsShared             bool
	Label                string
	Comment              string
	LastModificationDate time.Time
	Classes              map[IRI]*ClassDefinition
	Properties           map[IRI]*PropertyDefinition
}

// Clone returns a deep copy.
func (o *Ontology) Clone() *Ontology {
	cp := *o
	cp.Classes = make(map[IRI]*ClassDefinition, len(o.Classes))
	for iri, class := range o.Classes {
		cp.Classes[iri] = class.Clone()
	}
	cp.Properties = make(map[IRI]*PropertyDefinition, len(o.Properties))
	for iri, prop := range o.Properties {
		cp.Properties[iri] = prop.Clone()
	}
	return &cp
}

// Equal reports deep structural equality, with timestamps compared via
// time.Equal so that location differences never matter.
func (o *Ontology) Equal(other *Ontology) bool {
	if o == nil || other == nil {
		return o == other
	}
	if o.IRI != other.IRI ||
		o.ProjectID != other.ProjectID ||
		o.IsShared != other.IsShared ||
		o.Label != other.Label ||
		o.Comment != other.Comment ||
		!o.LastModificationDate.Equal(other.LastModificationDate) ||
		len(o.Classes) != len(other.Classes) ||
		len(o.Properties) != len(other.Properties) {
		return false
	}
	for iri, class := range o.Classes {
		if !class.Equal(other.Classes[iri]) {
			return false
		}
	}
	for iri, prop := range o.Properties {
		if !prop.Equal(other.Properties[iri]) {
			return false
		}
	}
	return true
}

// NewVersionToken returns a fresh last-modification timestamp. The
// value is truncated to microseconds because the store persists
// timestamptz at microsecond precision; comparing untruncated values
// would fail every optimistic check after one round trip. The result is
// always strictly after prev.
func NewVersionToken(prev time.Time) time.Time {
	now := time.Now().UTC().Truncate(time.Microsecond)
	if !now.After(prev) {
		now = prev.Add(time.Microsecond)
	}
	return now
}

func iriSetEqual(a, b []IRI) bool {
	if len(a) != len(b) {
		return false
	}
	as := slices.Clone(a)
	bs := slices.Clone(b)
	slices.Sort(as)
	slices.Sort(bs)
	return slices.Equal(as, bs)
}

func intPtrEqual(a, b *int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}
