package services

import (
	"context"
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/models"
	"github.com/ontoforge/schema-engine/pkg/repositories"
)

// UsageOracle answers "is this entity referenced by persisted instance
// data or by another schema element". It gates every destructive
// operation and must be consulted inside the schema lock, after
// validation and before the persisted write, so usage cannot appear
// between check and write.
type UsageOracle interface {
	// IsEntityUsed reports whether the class or property is referenced
	// by any other schema element or by instance data.
	IsEntityUsed(ctx context.Context, snap *models.SchemaSnapshot, iri models.IRI) (bool, error)

	// IsOntologyUsed reports whether any entity of the ontology is
	// referenced from outside it or by instance data.
	IsOntologyUsed(ctx context.Context, snap *models.SchemaSnapshot, ontologyIRI models.IRI) (bool, error)

	// IsCardinalityUsed reports whether any instance of the class (or
	// a subclass) carries a value for the property.
	IsCardinalityUsed(ctx context.Context, snap *models.SchemaSnapshot, classIRI, propertyIRI models.IRI) (bool, error)
}

type usageOracle struct {
	store  repositories.SchemaStore
	logger *zap.Logger
}

// NewUsageOracle creates a UsageOracle over the given store.
func NewUsageOracle(store repositories.SchemaStore, logger *zap.Logger) UsageOracle {
	return &usageOracle{
		store:  store,
		logger: logger.Named("usage-oracle"),
	}
}

var _ UsageOracle = (*usageOracle)(nil)

func (o *usageOracle) IsEntityUsed(ctx context.Context, snap *models.SchemaSnapshot, iri models.IRI) (bool, error) {
	if usedBySchema(snap, iri) {
		return true, nil
	}

	if snap.Class(iri) != nil {
		used, err := o.store.AskClassUsedByData(ctx, []models.IRI{iri})
		if err != nil {
			return false, fmt.Errorf("check class usage for %s: %w", iri, err)
		}
		return used, nil
	}

	if prop := snap.Property(iri); prop != nil {
		props := []models.IRI{iri}
		if prop.IsLinkProperty {
			props = append(props, iri.LinkValuePropertyIRI())
		}
		used, err := o.store.AskPropertyUsedByData(ctx, props)
		if err != nil {
			return false, fmt.Errorf("check property usage for %s: %w", iri, err)
		}
		return used, nil
	}

	return false, nil
}

func (o *usageOracle) IsOntologyUsed(ctx context.Context, snap *models.SchemaSnapshot, ontologyIRI models.IRI) (bool, error) {
	ont := snap.Ontology(ontologyIRI)
	if ont == nil {
		return false, nil
	}

	for iri := range ont.Classes {
		if usedBySchemaOutside(snap, iri, ontologyIRI) {
			return true, nil
		}
	}
	for iri := range ont.Properties {
		if usedBySchemaOutside(snap, iri, ontologyIRI) {
			return true, nil
		}
	}

	classIRIs := make([]models.IRI, 0, len(ont.Classes))
	for iri := range ont.Classes {
		classIRIs = append(classIRIs, iri)
	}
	used, err := o.store.AskClassUsedByData(ctx, classIRIs)
	if err != nil {
		return false, fmt.Errorf("check class usage for ontology %s: %w", ontologyIRI, err)
	}
	if used {
		return true, nil
	}

	propIRIs := make([]models.IRI, 0, len(ont.Properties))
	for iri := range ont.Properties {
		propIRIs = append(propIRIs, iri)
	}
	used, err = o.store.AskPropertyUsedByData(ctx, propIRIs)
	if err != nil {
		return false, fmt.Errorf("check property usage for ontology %s: %w", ontologyIRI, err)
	}
	return used, nil
}

func (o *usageOracle) IsCardinalityUsed(ctx context.Context, snap *models.SchemaSnapshot, classIRI, propertyIRI models.IRI) (bool, error) {
	classes := make([]models.IRI, 0, 8)
	for sub := range snap.SubClassesOf(classIRI) {
		classes = append(classes, sub)
	}
	if len(classes) == 0 {
		classes = append(classes, classIRI)
	}
	slices.Sort(classes)

	props := []models.IRI{propertyIRI}
	if prop := snap.Property(propertyIRI); prop != nil && prop.IsLinkProperty {
		props = append(props, propertyIRI.LinkValuePropertyIRI())
	}

	used, err := o.store.AskPropertyUsedInClass(ctx, classes, props)
	if err != nil {
		return false, fmt.Errorf("check cardinality usage for %s on %s: %w", propertyIRI, classIRI, err)
	}
	return used, nil
}

// usedBySchema reports whether any other schema element references the
// entity: as a super-class or super-property, in a direct cardinality,
// or as a subject/object class.
func usedBySchema(snap *models.SchemaSnapshot, iri models.IRI) bool {
	for _, ontIRI := range snap.OntologyIRIs() {
		if usedBySchemaIn(snap.Ontology(ontIRI), iri) {
			return true
		}
	}
	return false
}

// usedBySchemaOutside restricts the schema scan to ontologies other
// than home (used for whole-ontology deletion, where internal
// references die with the ontology).
func usedBySchemaOutside(snap *models.SchemaSnapshot, iri, home models.IRI) bool {
	for _, ontIRI := range snap.OntologyIRIs() {
		if ontIRI == home {
			continue
		}
		if usedBySchemaIn(snap.Ontology(ontIRI), iri) {
			return true
		}
	}
	return false
}

func usedBySchemaIn(ont *models.Ontology, iri models.IRI) bool {
	for _, class := range ont.Classes {
		if class.IRI == iri {
			continue
		}
		if slices.Contains(class.SuperClasses, iri) {
			return true
		}
		if _, ok := class.DirectCardinalities[iri]; ok {
			return true
		}
	}
	for _, prop := range ont.Properties {
		if prop.IRI == iri {
			continue
		}
		if slices.Contains(prop.SuperProperties, iri) {
			return true
		}
		if prop.SubjectType == iri || prop.ObjectType == iri {
			return true
		}
	}
	return false
}
