package services

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ontoforge/schema-engine/pkg/models"
)

// Seeder bootstraps an empty store from a YAML ontology definition.
// Every definition goes through the regular coordinator path, so seed
// files are validated exactly like API submissions.
type Seeder struct {
	coordinator UpdateCoordinator
	cache       *SchemaCache
	logger      *zap.Logger
}

// NewSeeder creates a Seeder.
func NewSeeder(coordinator UpdateCoordinator, cache *SchemaCache, logger *zap.Logger) *Seeder {
	return &Seeder{
		coordinator: coordinator,
		cache:       cache,
		logger:      logger.Named("seeder"),
	}
}

type seedFile struct {
	Ontologies []seedOntology `yaml:"ontologies"`
}

type seedOntology struct {
	IRI        string         `yaml:"iri"`
	ProjectID  string         `yaml:"project_id"`
	Shared     bool           `yaml:"shared"`
	Label      string         `yaml:"label"`
	Comment    string         `yaml:"comment"`
	Properties []seedProperty `yaml:"properties"`
	Classes    []seedClass    `yaml:"classes"`
}

type seedProperty struct {
	IRI             string            `yaml:"iri"`
	SuperProperties []string          `yaml:"super_properties"`
	SubjectType     string            `yaml:"subject_type"`
	ObjectType      string            `yaml:"object_type"`
	Labels          map[string]string `yaml:"labels"`
	Comments        map[string]string `yaml:"comments"`
}

type seedClass struct {
	IRI           string            `yaml:"iri"`
	SuperClasses  []string          `yaml:"super_classes"`
	Labels        map[string]string `yaml:"labels"`
	Comments      map[string]string `yaml:"comments"`
	Cardinalities []seedCardinality `yaml:"cardinalities"`
}

type seedCardinality struct {
	Property    string `yaml:"property"`
	Cardinality string `yaml:"cardinality"`
	GuiOrder    *int   `yaml:"gui_order"`
}

// Run loads the seed file and creates every ontology it defines that
// the cache does not already know. Each ontology is built in three
// passes: classes without cardinalities, then properties, then the
// cardinalities, so link properties can target seeded classes and
// cardinalities can reference seeded properties. Classes must appear
// before their subclasses in the file.
func (s *Seeder) Run(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read seed file %s: %w", path, err)
	}

	var file seedFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("parse seed file %s: %w", path, err)
	}

	for _, seed := range file.Ontologies {
		ontIRI, err := models.NewIRI(seed.IRI)
		if err != nil {
			return fmt.Errorf("seed ontology: %w", err)
		}
		if s.cache.Snapshot().Ontology(ontIRI) != nil {
			s.logger.Info("Seed ontology already present, skipping",
				zap.String("ontology", string(ontIRI)))
			continue
		}
		if err := s.seedOntology(ctx, ontIRI, seed); err != nil {
			return fmt.Errorf("seed ontology %s: %w", ontIRI, err)
		}
	}
	return nil
}

func (s *Seeder) seedOntology(ctx context.Context, ontIRI models.IRI, seed seedOntology) error {
	projectID, err := uuid.Parse(seed.ProjectID)
	if err != nil {
		return fmt.Errorf("invalid project_id %q: %w", seed.ProjectID, err)
	}

	ont, err := s.coordinator.CreateOntology(ctx, CreateOntologyRequest{
		RequestID: uuid.New(),
		IRI:       ontIRI,
		ProjectID: projectID,
		IsShared:  seed.Shared,
		Label:     seed.Label,
		Comment:   seed.Comment,
	})
	if err != nil {
		return err
	}

	for _, class := range seed.Classes {
		classDef, err := class.toModel()
		if err != nil {
			return err
		}
		bare := classDef.Clone()
		bare.DirectCardinalities = nil
		if _, err := s.coordinator.ProposeClassChange(ctx, ClassChangeRequest{
			MutationRequest: MutationRequest{
				RequestID:       uuid.New(),
				ExpectedVersion: s.currentVersion(ont.IRI),
			},
			Class: bare,
		}); err != nil {
			return fmt.Errorf("class %s: %w", classDef.IRI, err)
		}
	}

	for _, prop := range seed.Properties {
		propDef, err := prop.toModel()
		if err != nil {
			return err
		}
		if _, err := s.coordinator.ProposePropertyChange(ctx, PropertyChangeRequest{
			MutationRequest: MutationRequest{
				RequestID:       uuid.New(),
				ExpectedVersion: s.currentVersion(ont.IRI),
			},
			Property: propDef,
		}); err != nil {
			return fmt.Errorf("property %s: %w", propDef.IRI, err)
		}
	}

	for _, class := range seed.Classes {
		if len(class.Cardinalities) == 0 {
			continue
		}
		classDef, err := class.toModel()
		if err != nil {
			return err
		}
		if _, err := s.coordinator.AddCardinalities(ctx, CardinalityRequest{
			MutationRequest: MutationRequest{
				RequestID:       uuid.New(),
				ExpectedVersion: s.currentVersion(ont.IRI),
			},
			ClassIRI:      classDef.IRI,
			Cardinalities: classDef.DirectCardinalities,
		}); err != nil {
			return fmt.Errorf("cardinalities of class %s: %w", classDef.IRI, err)
		}
	}

	s.logger.Info("Seeded ontology",
		zap.String("ontology", string(ontIRI)),
		zap.Int("classes", len(seed.Classes)),
		zap.Int("properties", len(seed.Properties)))
	return nil
}

// currentVersion re-reads the version token after each commit; the
// seeder runs strictly sequentially, so the cache value is always the
// one its own previous commit published.
func (s *Seeder) currentVersion(iri models.IRI) time.Time {
	return s.cache.Snapshot().Ontology(iri).LastModificationDate
}

func (p seedProperty) toModel() (*models.PropertyDefinition, error) {
	iri, err := models.NewIRI(p.IRI)
	if err != nil {
		return nil, err
	}
	supers, err := parseIRIs(p.SuperProperties)
	if err != nil {
		return nil, fmt.Errorf("property %s: %w", iri, err)
	}
	def := &models.PropertyDefinition{
		IRI:             iri,
		SuperProperties: supers,
		Predicates: models.Predicates{
			Labels:   p.Labels,
			Comments: p.Comments,
		},
	}
	if p.SubjectType != "" {
		if def.SubjectType, err = models.NewIRI(p.SubjectType); err != nil {
			return nil, fmt.Errorf("property %s: %w", iri, err)
		}
	}
	if p.ObjectType != "" {
		if def.ObjectType, err = models.NewIRI(p.ObjectType); err != nil {
			return nil, fmt.Errorf("property %s: %w", iri, err)
		}
	}
	return def, nil
}

func (c seedClass) toModel() (*models.ClassDefinition, error) {
	iri, err := models.NewIRI(c.IRI)
	if err != nil {
		return nil, err
	}
	supers, err := parseIRIs(c.SuperClasses)
	if err != nil {
		return nil, fmt.Errorf("class %s: %w", iri, err)
	}
	def := &models.ClassDefinition{
		IRI:                 iri,
		SuperClasses:        supers,
		DirectCardinalities: make(map[models.IRI]models.PropertyCardinality, len(c.Cardinalities)),
		Predicates: models.Predicates{
			Labels:   c.Labels,
			Comments: c.Comments,
		},
	}
	for _, card := range c.Cardinalities {
		prop, err := models.NewIRI(card.Property)
		if err != nil {
			return nil, fmt.Errorf("class %s: %w", iri, err)
		}
		parsed, err := models.ParseCardinality(card.Cardinality)
		if err != nil {
			return nil, fmt.Errorf("class %s, property %s: %w", iri, prop, err)
		}
		def.DirectCardinalities[prop] = models.PropertyCardinality{
			Cardinality: parsed,
			GuiOrder:    card.GuiOrder,
		}
	}
	return def, nil
}

func parseIRIs(raw []string) ([]models.IRI, error) {
	iris := make([]models.IRI, 0, len(raw))
	for _, r := range raw {
		iri, err := models.NewIRI(r)
		if err != nil {
			return nil, err
		}
		iris = append(iris, iri)
	}
	return iris, nil
}
