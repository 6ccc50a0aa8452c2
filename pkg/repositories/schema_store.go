package repositories

import (
	"context"

	"github.com/ontoforge/schema-engine/pkg/models"
)

// SchemaStore is the persisted-store contract consumed by the schema
// cache and the update coordinator. Writes are atomic per call, but the
// store is not assumed transactional across calls - the coordinator's
// verify step reads the written ontology back and compares it.
//
// Values passed to WriteOntology are already normalized; any escaping a
// backend needs is the backend's own concern (this implementation uses
// parameterized statements throughout).
type SchemaStore interface {
	// WriteOntology persists the complete ontology, replacing any
	// previous state for the same IRI.
	WriteOntology(ctx context.Context, ont *models.Ontology) error

	// ReadOntology returns the persisted ontology, or nil if absent.
	ReadOntology(ctx context.Context, iri models.IRI) (*models.Ontology, error)

	// ListOntologies returns every persisted ontology, keyed by IRI.
	ListOntologies(ctx context.Context) (map[models.IRI]*models.Ontology, error)

	// DeleteOntology removes the ontology and all its definitions.
	DeleteOntology(ctx context.Context, iri models.IRI) error

	// AskClassUsedByData reports whether any resource instance has one
	// of the given class IRIs (a class plus its subclasses).
	AskClassUsedByData(ctx context.Context, classIRIs []models.IRI) (bool, error)

	// AskPropertyUsedByData reports whether any instance value uses one
	// of the given property IRIs.
	AskPropertyUsedByData(ctx context.Context, propertyIRIs []models.IRI) (bool, error)

	// AskPropertyUsedInClass reports whether any instance of the given
	// classes carries a value for one of the given properties.
	AskPropertyUsedInClass(ctx context.Context, classIRIs, propertyIRIs []models.IRI) (bool, error)
}
