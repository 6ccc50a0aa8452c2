package models

import (
	"slices"
)

// IRISet is a set of IRIs. Sets returned by SchemaSnapshot accessors
// are shared internals and must not be modified by callers.
type IRISet map[IRI]struct{}

// Contains reports set membership.
func (s IRISet) Contains(iri IRI) bool {
	_, ok := s[iri]
	return ok
}

// SchemaSnapshot is an immutable, point-in-time view of every ontology
// plus the derived closure indices. Snapshots are built whole: the
// closures are always consistent with the ontology map because they are
// recomputed together, never patched in place. Readers may hold a
// snapshot for the duration of a request; it never changes underneath
// them.
type SchemaSnapshot struct {
	ontologies map[IRI]*Ontology

	// Reflexive-transitive closure of the subclass relation.
	superClassesOf map[IRI]IRISet
	subClassesOf   map[IRI]IRISet

	// Transitive (non-reflexive) closure of the subproperty relation.
	superPropertiesOf map[IRI]IRISet

	standoffClasses     IRISet
	linkProperties      IRISet
	linkValueProperties IRISet
	fileValueProperties IRISet
}

// NewSchemaSnapshot builds a snapshot from the given ontologies. The
// map and its definitions are deep-copied, so callers cannot reach into
// a published snapshot. Property facets are derived here from the
// super-property closure.
func NewSchemaSnapshot(ontologies map[IRI]*Ontology) *SchemaSnapshot {
	s := &SchemaSnapshot{
		ontologies:          make(map[IRI]*Ontology, len(ontologies)),
		superClassesOf:      make(map[IRI]IRISet),
		subClassesOf:        make(map[IRI]IRISet),
		superPropertiesOf:   make(map[IRI]IRISet),
		standoffClasses:     make(IRISet),
		linkProperties:      make(IRISet),
		linkValueProperties: make(IRISet),
		fileValueProperties: make(IRISet),
	}
	for iri, ont := range ontologies {
		s.ontologies[iri] = ont.Clone()
	}
	s.computeClassClosure()
	s.computePropertyClosure()
	s.derivePropertyFacets()
	return s
}

// EmptySnapshot returns a snapshot containing no ontologies. Used as
// the cache value before the first reload.
func EmptySnapshot() *SchemaSnapshot {
	return NewSchemaSnapshot(nil)
}

// Ontology returns the ontology with the given IRI, or nil.
func (s *SchemaSnapshot) Ontology(iri IRI) *Ontology {
	return s.ontologies[iri]
}

// OntologyIRIs returns the IRIs of all ontologies, sorted.
func (s *SchemaSnapshot) OntologyIRIs() []IRI {
	iris := make([]IRI, 0, len(s.ontologies))
	for iri := range s.ontologies {
		iris = append(iris, iri)
	}
	slices.Sort(iris)
	return iris
}

// Class looks up a class definition by IRI across all ontologies.
func (s *SchemaSnapshot) Class(iri IRI) *ClassDefinition {
	if ont := s.ontologies[iri.OntologyIRI()]; ont != nil {
		return ont.Classes[iri]
	}
	return nil
}

// Property looks up a property definition by IRI across all ontologies.
func (s *SchemaSnapshot) Property(iri IRI) *PropertyDefinition {
	if ont := s.ontologies[iri.OntologyIRI()]; ont != nil {
		return ont.Properties[iri]
	}
	return nil
}

// SuperClassesOf returns the reflexive-transitive super-class set of
// the given class. Unknown classes yield an empty set.
func (s *SchemaSnapshot) SuperClassesOf(iri IRI) IRISet {
	if set, ok := s.superClassesOf[iri]; ok {
		return set
	}
	return nil
}

// SubClassesOf returns the reflexive-transitive sub-class set.
func (s *SchemaSnapshot) SubClassesOf(iri IRI) IRISet {
	if set, ok := s.subClassesOf[iri]; ok {
		return set
	}
	return nil
}

// SuperPropertiesOf returns the transitive super-property set of the
// given property, not including the property itself.
func (s *SchemaSnapshot) SuperPropertiesOf(iri IRI) IRISet {
	if set, ok := s.superPropertiesOf[iri]; ok {
		return set
	}
	return nil
}

// AncestorClasses returns the union of the reflexive-transitive
// super-class sets of the given direct super-classes. A class IRI
// appearing in its own ancestor set means the proposed edge closes a
// cycle.
func (s *SchemaSnapshot) AncestorClasses(directSupers []IRI) IRISet {
	ancestors := make(IRISet)
	for _, super := range directSupers {
		ancestors[super] = struct{}{}
		for iri := range s.superClassesOf[super] {
			ancestors[iri] = struct{}{}
		}
	}
	return ancestors
}

// AncestorProperties is the property-hierarchy analogue of
// AncestorClasses.
func (s *SchemaSnapshot) AncestorProperties(directSupers []IRI) IRISet {
	ancestors := make(IRISet)
	for _, super := range directSupers {
		ancestors[super] = struct{}{}
		for iri := range s.superPropertiesOf[super] {
			ancestors[iri] = struct{}{}
		}
	}
	return ancestors
}

// IsSubclassOf reports whether sub is base or a transitive subclass of
// base.
func (s *SchemaSnapshot) IsSubclassOf(sub, base IRI) bool {
	return s.superClassesOf[sub].Contains(base)
}

// IsSubpropertyOf reports whether sub transitively specializes base.
// A property is not a subproperty of itself.
func (s *SchemaSnapshot) IsSubpropertyOf(sub, base IRI) bool {
	return s.superPropertiesOf[sub].Contains(base)
}

// StandoffClasses returns the set of classes specializing StandoffTag.
func (s *SchemaSnapshot) StandoffClasses() IRISet {
	return s.standoffClasses
}

// LinkProperties returns the set of properties specializing HasLinkTo.
func (s *SchemaSnapshot) LinkProperties() IRISet {
	return s.linkProperties
}

// WithOntology returns a new snapshot with one ontology replaced (or
// added) and every closure recomputed.
func (s *SchemaSnapshot) WithOntology(ont *Ontology) *SchemaSnapshot {
	next := make(map[IRI]*Ontology, len(s.ontologies)+1)
	for iri, existing := range s.ontologies {
		next[iri] = existing
	}
	next[ont.IRI] = ont
	return NewSchemaSnapshot(next)
}

// WithoutOntology returns a new snapshot with the given ontology
// removed and every closure recomputed.
func (s *SchemaSnapshot) WithoutOntology(iri IRI) *SchemaSnapshot {
	next := make(map[IRI]*Ontology, len(s.ontologies))
	for existing, ont := range s.ontologies {
		if existing != iri {
			next[existing] = ont
		}
	}
	return NewSchemaSnapshot(next)
}

func (s *SchemaSnapshot) computeClassClosure() {
	directSupers := make(map[IRI][]IRI)
	for _, ont := range s.ontologies {
		for iri, class := range ont.Classes {
			directSupers[iri] = class.SuperClasses
		}
	}
	for iri := range directSupers {
		closure := make(IRISet)
		collectTransitive(iri, directSupers, closure)
		closure[iri] = struct{}{} // reflexive
		s.superClassesOf[iri] = closure
	}
	for sub, supers := range s.superClassesOf {
		for super := range supers {
			set, ok := s.subClassesOf[super]
			if !ok {
				set = make(IRISet)
				s.subClassesOf[super] = set
			}
			set[sub] = struct{}{}
		}
	}
	for iri, supers := range s.superClassesOf {
		if iri != StandoffTagClass && supers.Contains(StandoffTagClass) {
			s.standoffClasses[iri] = struct{}{}
		}
	}
}

func (s *SchemaSnapshot) computePropertyClosure() {
	directSupers := make(map[IRI][]IRI)
	for _, ont := range s.ontologies {
		for iri, prop := range ont.Properties {
			directSupers[iri] = prop.SuperProperties
		}
	}
	for iri := range directSupers {
		closure := make(IRISet)
		collectTransitive(iri, directSupers, closure)
		delete(closure, iri) // transitive only
		s.superPropertiesOf[iri] = closure
	}
}

func (s *SchemaSnapshot) derivePropertyFacets() {
	for _, ont := range s.ontologies {
		for iri, prop := range ont.Properties {
			supers := s.superPropertiesOf[iri]
			prop.IsLinkProperty = supers.Contains(HasLinkTo)
			prop.IsLinkValueProperty = supers.Contains(HasLinkToValue)
			prop.IsFileValueProperty = supers.Contains(HasFileValue)
			prop.IsResourceProperty = prop.IsLinkProperty || supers.Contains(HasValue)
			if prop.IsLinkProperty {
				s.linkProperties[iri] = struct{}{}
			}
			if prop.IsLinkValueProperty {
				s.linkValueProperties[iri] = struct{}{}
			}
			if prop.IsFileValueProperty {
				s.fileValueProperties[iri] = struct{}{}
			}
		}
	}
}

// collectTransitive walks the direct-super edges from start, adding
// every reachable node to out. The visited set doubles as the output,
// so the walk terminates even on cyclic input.
func collectTransitive(start IRI, edges map[IRI][]IRI, out IRISet) {
	stack := slices.Clone(edges[start])
	for len(stack) > 0 {
		next := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if out.Contains(next) {
			continue
		}
		out[next] = struct{}{}
		stack = append(stack, edges[next]...)
	}
}
