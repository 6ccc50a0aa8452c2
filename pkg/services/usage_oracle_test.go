package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/models"
)

func TestIsEntityUsedBySchemaReferences(t *testing.T) {
	store := newFakeSchemaStore()
	oracle := NewUsageOracle(store, zap.NewNop())
	snap := fixtureSnapshot()
	ctx := context.Background()

	tests := []struct {
		name string
		iri  models.IRI
		used bool
	}{
		{"super-class reference", publicationClass, true},
		{"object-type reference", personClass, true},
		{"cardinality reference", hasAuthorProp, true},
		{"unreferenced class", bookClass, false},
		{"unreferenced property", secretProp, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			used, err := oracle.IsEntityUsed(ctx, snap, tt.iri)
			require.NoError(t, err)
			assert.Equal(t, tt.used, used)
		})
	}
}

func TestIsEntityUsedByInstanceData(t *testing.T) {
	store := newFakeSchemaStore()
	oracle := NewUsageOracle(store, zap.NewNop())
	snap := fixtureSnapshot()
	ctx := context.Background()

	used, err := oracle.IsEntityUsed(ctx, snap, bookClass)
	require.NoError(t, err)
	assert.False(t, used)

	store.usedClasses[bookClass] = true
	used, err = oracle.IsEntityUsed(ctx, snap, bookClass)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestIsEntityUsedIncludesLinkValuePairData(t *testing.T) {
	store := newFakeSchemaStore()
	oracle := NewUsageOracle(store, zap.NewNop())

	// Detach hasAuthor from any class so only instance data can make it
	// count as used.
	books := booksFixture()
	books.Classes[bookClass].DirectCardinalities = nil
	snap := models.NewSchemaSnapshot(map[models.IRI]*models.Ontology{
		models.BaseOntologyIRI: models.BaseOntology(),
		booksOnt:               books,
	})

	// Data carries only the reified link-value side; the link property
	// still counts as used.
	store.usedProperties[hasAuthorValueProp] = true
	used, err := oracle.IsEntityUsed(context.Background(), snap, hasAuthorProp)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestIsOntologyUsed(t *testing.T) {
	store := newFakeSchemaStore()
	oracle := NewUsageOracle(store, zap.NewNop())
	snap := fixtureSnapshot()
	ctx := context.Background()

	// Nothing outside the private ontology references it and it has no
	// data.
	used, err := oracle.IsOntologyUsed(ctx, snap, privateOnt)
	require.NoError(t, err)
	assert.False(t, used)

	store.usedClasses[secretClass] = true
	used, err = oracle.IsOntologyUsed(ctx, snap, privateOnt)
	require.NoError(t, err)
	assert.True(t, used)
}

func TestIsCardinalityUsedCoversSubclasses(t *testing.T) {
	store := newFakeSchemaStore()
	oracle := NewUsageOracle(store, zap.NewNop())
	snap := fixtureSnapshot()
	ctx := context.Background()

	used, err := oracle.IsCardinalityUsed(ctx, snap, publicationClass, hasTitleProp)
	require.NoError(t, err)
	assert.False(t, used)

	// A Book instance carries a title; the cardinality declared on
	// Publication is in use through the subclass.
	store.markCardinalityUsed(bookClass, hasTitleProp)
	used, err = oracle.IsCardinalityUsed(ctx, snap, publicationClass, hasTitleProp)
	require.NoError(t, err)
	assert.True(t, used)
}
