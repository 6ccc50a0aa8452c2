package models

import (
	"time"

	"github.com/google/uuid"
)

// baseOntologyTimestamp is fixed so that snapshots built from the same
// store contents are always deep-equal.
var baseOntologyTimestamp = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC)

// BaseOntology returns the built-in base ontology defining the root
// resource class and the root property hierarchy. It is shared across
// all projects, injected into every snapshot, and never persisted or
// mutated.
func BaseOntology() *Ontology {
	return &Ontology{
		IRI:                  BaseOntologyIRI,
		ProjectID:            uuid.Nil,
		IsShared:             true,
		Label:                "Base ontology",
		LastModificationDate: baseOntologyTimestamp,
		Classes: map[IRI]*ClassDefinition{
			ResourceClass: {
				IRI: ResourceClass,
				Predicates: Predicates{
					Labels: map[string]string{"en": "Resource"},
				},
			},
			StandoffTagClass: {
				IRI: StandoffTagClass,
				Predicates: Predicates{
					Labels: map[string]string{"en": "Standoff tag"},
				},
			},
			LinkValueClass: {
				IRI: LinkValueClass,
				Predicates: Predicates{
					Labels: map[string]string{"en": "Link value"},
				},
			},
		},
		Properties: map[IRI]*PropertyDefinition{
			HasValue: {
				IRI:         HasValue,
				SubjectType: ResourceClass,
			},
			HasLinkTo: {
				IRI:         HasLinkTo,
				SubjectType: ResourceClass,
				ObjectType:  ResourceClass,
			},
			HasLinkToValue: {
				IRI:             HasLinkToValue,
				SuperProperties: []IRI{HasValue},
				SubjectType:     ResourceClass,
				ObjectType:      LinkValueClass,
			},
			HasFileValue: {
				IRI:             HasFileValue,
				SuperProperties: []IRI{HasValue},
				SubjectType:     ResourceClass,
			},
		},
	}
}
