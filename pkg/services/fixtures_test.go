package services

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/models"
	"github.com/ontoforge/schema-engine/pkg/repositories"
)

const (
	booksOnt   = models.IRI(models.InternalOntologyPrefix + "0001/books")
	privateOnt = models.IRI(models.InternalOntologyPrefix + "0002/private")
	sharedOnt  = models.IRI(models.InternalOntologyPrefix + "0003/shared")

	publicationClass = booksOnt + "#Publication"
	bookClass        = booksOnt + "#Book"
	personClass      = booksOnt + "#Person"

	hasTitleProp       = booksOnt + "#hasTitle"
	hasAuthorProp      = booksOnt + "#hasAuthor"
	hasAuthorValueProp = booksOnt + "#hasAuthorValue"

	secretClass = privateOnt + "#Secret"
	secretProp  = privateOnt + "#secretNote"

	sharedProp = sharedOnt + "#sharedNote"
)

var (
	booksProject   = uuid.MustParse("11111111-1111-1111-1111-111111111111")
	privateProject = uuid.MustParse("22222222-2222-2222-2222-222222222222")
)

func fixtureTimestamp() time.Time {
	return time.Date(2026, 2, 3, 12, 0, 0, 0, time.UTC)
}

func booksFixture() *models.Ontology {
	one := 1
	return &models.Ontology{
		IRI:                  booksOnt,
		ProjectID:            booksProject,
		Label:                "Books",
		LastModificationDate: fixtureTimestamp(),
		Classes: map[models.IRI]*models.ClassDefinition{
			publicationClass: {
				IRI:          publicationClass,
				SuperClasses: []models.IRI{models.ResourceClass},
				DirectCardinalities: map[models.IRI]models.PropertyCardinality{
					hasTitleProp: {Cardinality: models.CardinalityExactlyOne, GuiOrder: &one},
				},
			},
			bookClass: {
				IRI:          bookClass,
				SuperClasses: []models.IRI{publicationClass},
				DirectCardinalities: map[models.IRI]models.PropertyCardinality{
					hasAuthorProp:      {Cardinality: models.CardinalityZeroOrMore},
					hasAuthorValueProp: {Cardinality: models.CardinalityZeroOrMore},
				},
			},
			personClass: {
				IRI:          personClass,
				SuperClasses: []models.IRI{models.ResourceClass},
			},
		},
		Properties: map[models.IRI]*models.PropertyDefinition{
			hasTitleProp: {
				IRI:             hasTitleProp,
				SuperProperties: []models.IRI{models.HasValue},
			},
			hasAuthorProp: {
				IRI:             hasAuthorProp,
				SuperProperties: []models.IRI{models.HasLinkTo},
				ObjectType:      personClass,
			},
			hasAuthorValueProp: {
				IRI:             hasAuthorValueProp,
				SuperProperties: []models.IRI{models.HasLinkToValue},
			},
		},
	}
}

func privateFixture() *models.Ontology {
	return &models.Ontology{
		IRI:                  privateOnt,
		ProjectID:            privateProject,
		Label:                "Private",
		LastModificationDate: fixtureTimestamp(),
		Classes: map[models.IRI]*models.ClassDefinition{
			secretClass: {
				IRI:          secretClass,
				SuperClasses: []models.IRI{models.ResourceClass},
			},
		},
		Properties: map[models.IRI]*models.PropertyDefinition{
			secretProp: {
				IRI:             secretProp,
				SuperProperties: []models.IRI{models.HasValue},
			},
		},
	}
}

func sharedFixture() *models.Ontology {
	return &models.Ontology{
		IRI:                  sharedOnt,
		ProjectID:            privateProject,
		IsShared:             true,
		Label:                "Shared",
		LastModificationDate: fixtureTimestamp(),
		Classes:              map[models.IRI]*models.ClassDefinition{},
		Properties: map[models.IRI]*models.PropertyDefinition{
			sharedProp: {
				IRI:             sharedProp,
				SuperProperties: []models.IRI{models.HasValue},
			},
		},
	}
}

func fixtureSnapshot() *models.SchemaSnapshot {
	return models.NewSchemaSnapshot(map[models.IRI]*models.Ontology{
		models.BaseOntologyIRI: models.BaseOntology(),
		booksOnt:               booksFixture(),
		privateOnt:             privateFixture(),
		sharedOnt:              sharedFixture(),
	})
}

// fakeSchemaStore is an in-memory SchemaStore with failure-injection
// hooks for coordinator state-machine tests.
type fakeSchemaStore struct {
	mu         sync.Mutex
	ontologies map[models.IRI]*models.Ontology

	listErr  error
	writeErr error
	readErr  error

	// corruptReadback, when set, transforms what ReadOntology returns
	// so the verify step can be exercised.
	corruptReadback func(*models.Ontology) *models.Ontology

	usedClasses    map[models.IRI]bool
	usedProperties map[models.IRI]bool
	usedCards      map[string]bool
}

func newFakeSchemaStore(ontologies ...*models.Ontology) *fakeSchemaStore {
	s := &fakeSchemaStore{
		ontologies:     make(map[models.IRI]*models.Ontology),
		usedClasses:    make(map[models.IRI]bool),
		usedProperties: make(map[models.IRI]bool),
		usedCards:      make(map[string]bool),
	}
	for _, ont := range ontologies {
		s.ontologies[ont.IRI] = ont.Clone()
	}
	return s
}

var _ repositories.SchemaStore = (*fakeSchemaStore)(nil)

func (s *fakeSchemaStore) WriteOntology(_ context.Context, ont *models.Ontology) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.writeErr != nil {
		return s.writeErr
	}
	s.ontologies[ont.IRI] = ont.Clone()
	return nil
}

func (s *fakeSchemaStore) ReadOntology(_ context.Context, iri models.IRI) (*models.Ontology, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.readErr != nil {
		return nil, s.readErr
	}
	ont, ok := s.ontologies[iri]
	if !ok {
		return nil, nil
	}
	out := ont.Clone()
	if s.corruptReadback != nil {
		out = s.corruptReadback(out)
	}
	return out, nil
}

func (s *fakeSchemaStore) ListOntologies(_ context.Context) (map[models.IRI]*models.Ontology, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listErr != nil {
		return nil, s.listErr
	}
	out := make(map[models.IRI]*models.Ontology, len(s.ontologies))
	for iri, ont := range s.ontologies {
		out[iri] = ont.Clone()
	}
	return out, nil
}

func (s *fakeSchemaStore) DeleteOntology(_ context.Context, iri models.IRI) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ontologies, iri)
	return nil
}

func (s *fakeSchemaStore) AskClassUsedByData(_ context.Context, classIRIs []models.IRI) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, iri := range classIRIs {
		if s.usedClasses[iri] {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSchemaStore) AskPropertyUsedByData(_ context.Context, propertyIRIs []models.IRI) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, iri := range propertyIRIs {
		if s.usedProperties[iri] {
			return true, nil
		}
	}
	return false, nil
}

func (s *fakeSchemaStore) AskPropertyUsedInClass(_ context.Context, classIRIs, propertyIRIs []models.IRI) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, class := range classIRIs {
		for _, prop := range propertyIRIs {
			if s.usedCards[cardKey(class, prop)] {
				return true, nil
			}
		}
	}
	return false, nil
}

func (s *fakeSchemaStore) markCardinalityUsed(class, prop models.IRI) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.usedCards[cardKey(class, prop)] = true
}

func cardKey(class, prop models.IRI) string {
	return fmt.Sprintf("%s|%s", class, prop)
}

type testEnv struct {
	store       *fakeSchemaStore
	cache       *SchemaCache
	lock        EntityLock
	coordinator UpdateCoordinator
}

func newTestEnv(t *testing.T, ontologies ...*models.Ontology) *testEnv {
	t.Helper()
	store := newFakeSchemaStore(ontologies...)
	logger := zap.NewNop()
	cache := NewSchemaCache(store, logger)
	require.NoError(t, cache.Reload(context.Background()))
	lock := NewEntityLock()
	oracle := NewUsageOracle(store, logger)
	coordinator := NewUpdateCoordinator(lock, cache, store, oracle, time.Second, logger)
	return &testEnv{store: store, cache: cache, lock: lock, coordinator: coordinator}
}

func (e *testEnv) version(t *testing.T, iri models.IRI) time.Time {
	t.Helper()
	ont := e.cache.Snapshot().Ontology(iri)
	require.NotNil(t, ont, "ontology %s not in cache", iri)
	return ont.LastModificationDate
}

func mutation(t *testing.T, e *testEnv, iri models.IRI) MutationRequest {
	t.Helper()
	return MutationRequest{
		RequestID:       uuid.New(),
		ExpectedVersion: e.version(t, iri),
	}
}
