package services

import (
	"slices"

	"github.com/google/uuid"

	"github.com/ontoforge/schema-engine/pkg/apperrors"
	"github.com/ontoforge/schema-engine/pkg/models"
)

// ResolvedClass is the output of class validation: the definition with
// synthesized link-value cardinalities, the complete effective
// cardinality map including inherited entries, and the set of
// properties whose effective cardinality comes from an ancestor rather
// than the class itself.
type ResolvedClass struct {
	Definition             *models.ClassDefinition
	EffectiveCardinalities map[models.IRI]models.PropertyCardinality
	InheritedProperties    models.IRISet
}

// inheritedEntry tracks which ancestor contributed a cardinality so
// that a more specific ancestor can override a less specific one.
type inheritedEntry struct {
	card models.PropertyCardinality
	from models.IRI
}

// ValidateClass checks a proposed class definition (direct
// cardinalities only) against the snapshot and resolves its effective
// cardinalities. ancestors must be the full ancestor-class set of the
// proposed direct super-classes (snapshot.AncestorClasses). The
// pipeline is ordered; the first failure wins and is always BadInput.
func ValidateClass(snap *models.SchemaSnapshot, classDef *models.ClassDefinition, ancestors models.IRISet) (*ResolvedClass, error) {
	// 1. Every internal super-class must be a known resource class.
	for _, super := range classDef.SuperClasses {
		if !super.IsInternal() {
			continue
		}
		if snap.Class(super) == nil {
			return nil, apperrors.BadInput("class %s has undefined base class %s", classDef.IRI, super)
		}
		if !snap.IsSubclassOf(super, models.ResourceClass) {
			return nil, apperrors.BadInput("base class %s of %s is not a resource class", super, classDef.IRI)
		}
	}

	// 2. Cycle check: the class must not be its own ancestor.
	if ancestors.Contains(classDef.IRI) {
		return nil, apperrors.BadInput("class %s would inherit from itself", classDef.IRI)
	}

	// 3. Direct cardinalities must be on defined resource properties.
	for prop := range classDef.DirectCardinalities {
		propDef := snap.Property(prop)
		if propDef == nil {
			if prop.IsInternal() {
				return nil, apperrors.BadInput("class %s has a cardinality on undefined property %s", classDef.IRI, prop)
			}
			continue
		}
		if !propDef.IsResourceProperty {
			return nil, apperrors.BadInput("property %s of class %s is not a resource property", prop, classDef.IRI)
		}
	}

	// Changing a stored direct cardinality is delete-then-add, never a
	// silent replacement.
	if stored := snap.Class(classDef.IRI); stored != nil {
		for prop, card := range classDef.DirectCardinalities {
			if existing, ok := stored.DirectCardinalities[prop]; ok && !existing.SameAs(card) {
				return nil, apperrors.BadInput("class %s already has a direct cardinality %s on %s (remove it before declaring %s)",
					classDef.IRI, existing.Cardinality, prop, card.Cardinality)
			}
		}
	}

	// Inherited cardinalities: walk every ancestor's direct
	// cardinalities. When two ancestors declare the same property, the
	// more specific ancestor wins; unrelated ancestors declaring
	// different cardinalities are ambiguous unless the class overrides
	// the property directly.
	inherited := make(map[models.IRI]inheritedEntry)
	ambiguous := make(models.IRISet)
	for ancestor := range ancestors {
		ancestorDef := snap.Class(ancestor)
		if ancestorDef == nil {
			continue
		}
		for prop, card := range ancestorDef.DirectCardinalities {
			existing, seen := inherited[prop]
			switch {
			case !seen:
				inherited[prop] = inheritedEntry{card: card, from: ancestor}
			case snap.IsSubclassOf(ancestor, existing.from):
				inherited[prop] = inheritedEntry{card: card, from: ancestor}
			case snap.IsSubclassOf(existing.from, ancestor):
				// existing entry is more specific, keep it
			case !existing.card.SameAs(card):
				ambiguous[prop] = struct{}{}
			}
		}
	}

	// 4. Union with a direct-overrides-inherited rule.
	definition := classDef.Clone()
	effective := make(map[models.IRI]models.PropertyCardinality, len(inherited)+len(definition.DirectCardinalities))
	inheritedProps := make(models.IRISet)
	for prop, entry := range inherited {
		effective[prop] = entry.card
		inheritedProps[prop] = struct{}{}
	}
	for prop, card := range definition.DirectCardinalities {
		effective[prop] = card
		delete(inheritedProps, prop)
		delete(ambiguous, prop)
	}
	if len(ambiguous) > 0 {
		props := make([]models.IRI, 0, len(ambiguous))
		for prop := range ambiguous {
			props = append(props, prop)
		}
		slices.Sort(props)
		return nil, apperrors.BadInput("class %s inherits conflicting cardinalities on %s from unrelated base classes", classDef.IRI, props[0])
	}

	// 5. Link-property closure: every direct cardinality on a link
	// property carries a matching cardinality on its paired link-value
	// property, synthesized when not explicitly submitted. A submitted
	// link-value cardinality must match its pair and gets no
	// independent GUI order.
	for prop, card := range classDef.DirectCardinalities {
		propDef := snap.Property(prop)
		if propDef == nil {
			continue
		}
		if propDef.IsLinkProperty {
			valueProp := prop.LinkValuePropertyIRI()
			if snap.Property(valueProp) == nil {
				return nil, apperrors.BadInput("link property %s has no paired link-value property %s", prop, valueProp)
			}
			if existing, ok := definition.DirectCardinalities[valueProp]; ok {
				if !existing.SameAs(card) {
					return nil, apperrors.BadInput("class %s declares cardinality %s on link property %s but %s on %s",
						classDef.IRI, card.Cardinality, prop, existing.Cardinality, valueProp)
				}
			}
			definition.DirectCardinalities[valueProp] = models.PropertyCardinality{Cardinality: card.Cardinality}
			effective[valueProp] = models.PropertyCardinality{Cardinality: card.Cardinality}
			delete(inheritedProps, valueProp)
		}
		if propDef.IsLinkValueProperty {
			linkProp := prop.LinkPropertyIRI()
			if _, ok := classDef.DirectCardinalities[linkProp]; !ok {
				return nil, apperrors.BadInput("class %s declares a cardinality on link-value property %s without its link property %s",
					classDef.IRI, prop, linkProp)
			}
		}
	}

	// 6. Cross-project reference check over everything the resolved
	// class now points at.
	classOnt := snap.Ontology(classDef.IRI.OntologyIRI())
	if classOnt == nil {
		return nil, apperrors.BadInput("class %s belongs to unknown ontology %s", classDef.IRI, classDef.IRI.OntologyIRI())
	}
	referenced := make([]models.IRI, 0, len(definition.SuperClasses)+len(definition.DirectCardinalities))
	referenced = append(referenced, definition.SuperClasses...)
	for prop := range definition.DirectCardinalities {
		referenced = append(referenced, prop)
	}
	for _, ref := range referenced {
		if err := checkSameProjectReference(snap, classOnt, classDef.IRI, ref); err != nil {
			return nil, err
		}
	}

	return &ResolvedClass{
		Definition:             definition,
		EffectiveCardinalities: effective,
		InheritedProperties:    inheritedProps,
	}, nil
}

// ValidateProperty checks a proposed property definition: super
// hierarchy, cycle freedom, classification against the root properties,
// and cross-project references. On success the returned definition
// carries the derived facets.
func ValidateProperty(snap *models.SchemaSnapshot, propDef *models.PropertyDefinition) (*models.PropertyDefinition, error) {
	for _, super := range propDef.SuperProperties {
		if super.IsInternal() && snap.Property(super) == nil {
			return nil, apperrors.BadInput("property %s has undefined super-property %s", propDef.IRI, super)
		}
	}

	if err := CheckPropertyHierarchyCycle(snap, propDef.IRI, propDef.SuperProperties); err != nil {
		return nil, err
	}

	ancestors := snap.AncestorProperties(propDef.SuperProperties)
	specializesValue := ancestors.Contains(models.HasValue)
	specializesLink := ancestors.Contains(models.HasLinkTo)
	if specializesValue && specializesLink {
		return nil, apperrors.BadInput("property %s specializes both %s and %s", propDef.IRI, models.HasValue, models.HasLinkTo)
	}
	if !specializesValue && !specializesLink {
		return nil, apperrors.BadInput("property %s specializes neither %s nor %s", propDef.IRI, models.HasValue, models.HasLinkTo)
	}

	validated := propDef.Clone()
	validated.IsResourceProperty = true
	validated.IsLinkProperty = specializesLink
	validated.IsLinkValueProperty = ancestors.Contains(models.HasLinkToValue)
	validated.IsFileValueProperty = ancestors.Contains(models.HasFileValue)

	if validated.IsLinkProperty {
		if validated.ObjectType == "" {
			return nil, apperrors.BadInput("link property %s has no object class", propDef.IRI)
		}
		if validated.ObjectType.IsInternal() && !snap.IsSubclassOf(validated.ObjectType, models.ResourceClass) {
			return nil, apperrors.BadInput("link property %s points at %s, which is not a resource class", propDef.IRI, validated.ObjectType)
		}
	}
	if validated.SubjectType != "" && validated.SubjectType.IsInternal() && snap.Class(validated.SubjectType) == nil {
		return nil, apperrors.BadInput("property %s has undefined subject class %s", propDef.IRI, validated.SubjectType)
	}

	propOnt := snap.Ontology(propDef.IRI.OntologyIRI())
	if propOnt == nil {
		return nil, apperrors.BadInput("property %s belongs to unknown ontology %s", propDef.IRI, propDef.IRI.OntologyIRI())
	}
	referenced := make([]models.IRI, 0, len(validated.SuperProperties)+2)
	referenced = append(referenced, validated.SuperProperties...)
	if validated.SubjectType != "" {
		referenced = append(referenced, validated.SubjectType)
	}
	if validated.ObjectType != "" {
		referenced = append(referenced, validated.ObjectType)
	}
	for _, ref := range referenced {
		if err := checkSameProjectReference(snap, propOnt, propDef.IRI, ref); err != nil {
			return nil, err
		}
	}

	return validated, nil
}

// CheckPropertyHierarchyCycle rejects a super-property set that would
// make the property inherit from itself, directly or transitively.
func CheckPropertyHierarchyCycle(snap *models.SchemaSnapshot, propIRI models.IRI, superProps []models.IRI) error {
	if snap.AncestorProperties(superProps).Contains(propIRI) {
		return apperrors.BadInput("property %s would inherit from itself", propIRI)
	}
	return nil
}

// ValidateCardinalityRemoval checks a cardinality-removal submission.
// Exactly one cardinality must be submitted (multi-removal interacts
// with the no-merge-on-conflict rule in unspecified ways and is
// deliberately not supported), it must be directly defined on the
// class, and the submitted value must match the stored one. Returns the
// property whose cardinality is to be removed.
func ValidateCardinalityRemoval(snap *models.SchemaSnapshot, classIRI models.IRI, submitted map[models.IRI]models.PropertyCardinality) (models.IRI, error) {
	if len(submitted) != 1 {
		return "", apperrors.BadInput("exactly one cardinality must be submitted for removal, got %d", len(submitted))
	}

	classDef := snap.Class(classIRI)
	if classDef == nil {
		return "", apperrors.NotFound("class %s", classIRI)
	}

	for prop, card := range submitted {
		stored, ok := classDef.DirectCardinalities[prop]
		if !ok {
			return "", apperrors.BadInput("class %s has no direct cardinality on %s (inherited cardinalities cannot be removed)", classIRI, prop)
		}
		if !stored.SameAs(card) {
			return "", apperrors.BadInput("submitted cardinality %s on %s does not match stored %s", card.Cardinality, prop, stored.Cardinality)
		}
		if propDef := snap.Property(prop); propDef != nil && propDef.IsLinkValueProperty {
			// Re-validation would synthesize the link-value cardinality
			// right back from its link cardinality.
			return "", apperrors.BadInput("cardinality on link-value property %s is removed through its link property %s", prop, prop.LinkPropertyIRI())
		}
		return prop, nil
	}
	return "", apperrors.BadInput("no cardinality submitted")
}

// checkSameProjectReference rejects a reference to an entity defined in
// a non-shared ontology owned by a different project. The built-in
// base ontology has no owning project and is always referencable.
func checkSameProjectReference(snap *models.SchemaSnapshot, fromOnt *models.Ontology, from, ref models.IRI) error {
	if !ref.IsInternal() {
		return nil
	}
	refOnt := snap.Ontology(ref.OntologyIRI())
	if refOnt == nil || refOnt.IsShared || refOnt.ProjectID == uuid.Nil {
		return nil
	}
	if refOnt.ProjectID != fromOnt.ProjectID {
		return apperrors.BadInput("%s references %s in non-shared ontology %s of another project", from, ref, refOnt.IRI)
	}
	return nil
}
