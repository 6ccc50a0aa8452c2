package models

import (
	"fmt"
	"strings"
)

// IRI identifies an ontology, class, or property. IRIs are compared by
// string equality after normalization (see NewIRI).
type IRI string

// InternalOntologyPrefix is the namespace under which all ontologies
// managed by this engine live. IRIs outside this prefix are external
// vocabulary references and are never validated structurally.
const InternalOntologyPrefix = "http://api.ontoforge.org/ontology/"

// BaseOntologyIRI is the built-in base ontology that defines the root
// resource class and the root property hierarchy.
const BaseOntologyIRI IRI = InternalOntologyPrefix + "base"

// Well-known classes of the base ontology.
const (
	// ResourceClass is the root of every resource class hierarchy.
	ResourceClass IRI = BaseOntologyIRI + "#Resource"

	// StandoffTagClass is the root of standoff markup classes.
	StandoffTagClass IRI = BaseOntologyIRI + "#StandoffTag"

	// LinkValueClass is the reification class carried by link-value
	// properties.
	LinkValueClass IRI = BaseOntologyIRI + "#LinkValue"
)

// Well-known root properties. Every resource property must specialize
// exactly one of HasValue and HasLinkTo.
const (
	HasValue       IRI = BaseOntologyIRI + "#hasValue"
	HasLinkTo      IRI = BaseOntologyIRI + "#hasLinkTo"
	HasLinkToValue IRI = BaseOntologyIRI + "#hasLinkToValue"
	HasFileValue   IRI = BaseOntologyIRI + "#hasFileValue"
)

// linkValueSuffix is the deterministic naming transform pairing a link
// property with its link-value property.
const linkValueSuffix = "Value"

// NewIRI normalizes and validates a raw IRI string: surrounding
// whitespace and angle brackets are stripped, and the result must be an
// absolute http(s) IRI without embedded whitespace.
func NewIRI(raw string) (IRI, error) {
	s := strings.TrimSpace(raw)
	s = strings.TrimPrefix(s, "<")
	s = strings.TrimSuffix(s, ">")
	if s == "" {
		return "", fmt.Errorf("empty IRI")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		return "", fmt.Errorf("IRI %q is not an absolute http(s) IRI", raw)
	}
	if strings.ContainsAny(s, " \t\n<>\"") {
		return "", fmt.Errorf("IRI %q contains forbidden characters", raw)
	}
	return IRI(s), nil
}

// IsInternal reports whether the IRI belongs to an ontology managed by
// this engine.
func (i IRI) IsInternal() bool {
	return strings.HasPrefix(string(i), InternalOntologyPrefix)
}

// OntologyIRI returns the IRI of the ontology defining this entity.
// Internal entity IRIs use fragment syntax (ontology#localname); for an
// IRI without a fragment, the IRI itself is returned.
func (i IRI) OntologyIRI() IRI {
	if idx := strings.IndexByte(string(i), '#'); idx >= 0 {
		return i[:idx]
	}
	return i
}

// Localname returns the entity name after the fragment separator, or
// after the last path segment for fragment-less IRIs.
func (i IRI) Localname() string {
	s := string(i)
	if idx := strings.LastIndexByte(s, '#'); idx >= 0 {
		return s[idx+1:]
	}
	if idx := strings.LastIndexByte(s, '/'); idx >= 0 {
		return s[idx+1:]
	}
	return s
}

// LinkValuePropertyIRI returns the IRI of the link-value property
// paired with this link property (hasAuthor -> hasAuthorValue).
func (i IRI) LinkValuePropertyIRI() IRI {
	return i + linkValueSuffix
}

// LinkPropertyIRI returns the IRI of the link property paired with this
// link-value property (hasAuthorValue -> hasAuthor).
func (i IRI) LinkPropertyIRI() IRI {
	return IRI(strings.TrimSuffix(string(i), linkValueSuffix))
}
