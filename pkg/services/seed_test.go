package services

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/models"
)

const librarySeed = `
ontologies:
  - iri: http://api.ontoforge.org/ontology/0042/library
    project_id: 33333333-3333-3333-3333-333333333333
    label: Library
    properties:
      - iri: http://api.ontoforge.org/ontology/0042/library#hasCallNumber
        super_properties:
          - http://api.ontoforge.org/ontology/base#hasValue
        labels:
          en: Call number
      - iri: http://api.ontoforge.org/ontology/0042/library#hasHolding
        super_properties:
          - http://api.ontoforge.org/ontology/base#hasLinkTo
        object_type: http://api.ontoforge.org/ontology/0042/library#Item
    classes:
      - iri: http://api.ontoforge.org/ontology/0042/library#Item
        super_classes:
          - http://api.ontoforge.org/ontology/base#Resource
        cardinalities:
          - property: http://api.ontoforge.org/ontology/0042/library#hasCallNumber
            cardinality: "1"
            gui_order: 1
      - iri: http://api.ontoforge.org/ontology/0042/library#Branch
        super_classes:
          - http://api.ontoforge.org/ontology/base#Resource
        cardinalities:
          - property: http://api.ontoforge.org/ontology/0042/library#hasHolding
            cardinality: 0-n
          - property: http://api.ontoforge.org/ontology/0042/library#hasHoldingValue
            cardinality: 0-n
`

func writeSeedFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestSeederBuildsOntologyThroughCoordinator(t *testing.T) {
	env := newTestEnv(t)
	seeder := NewSeeder(env.coordinator, env.cache, zap.NewNop())

	require.NoError(t, seeder.Run(context.Background(), writeSeedFile(t, librarySeed)))

	libraryOnt := models.IRI("http://api.ontoforge.org/ontology/0042/library")
	itemClass := libraryOnt + "#Item"
	hasHolding := libraryOnt + "#hasHolding"

	snap := env.cache.Snapshot()
	ont := snap.Ontology(libraryOnt)
	require.NotNil(t, ont)
	assert.Equal(t, "Library", ont.Label)

	item := snap.Class(itemClass)
	require.NotNil(t, item)
	assert.Equal(t, models.CardinalityExactlyOne, item.DirectCardinalities[libraryOnt+"#hasCallNumber"].Cardinality)

	// The seeded link property must have gone through the same pairing
	// logic as an API submission.
	pair := snap.Property(hasHolding.LinkValuePropertyIRI())
	require.NotNil(t, pair)
	assert.True(t, pair.IsLinkValueProperty)
}

func TestSeederSkipsExistingOntologies(t *testing.T) {
	env := newTestEnv(t, booksFixture())
	seeder := NewSeeder(env.coordinator, env.cache, zap.NewNop())
	before := env.version(t, booksOnt)

	seed := `
ontologies:
  - iri: ` + string(booksOnt) + `
    project_id: 11111111-1111-1111-1111-111111111111
    label: Replacement
`
	require.NoError(t, seeder.Run(context.Background(), writeSeedFile(t, seed)))

	ont := env.cache.Snapshot().Ontology(booksOnt)
	assert.Equal(t, "Books", ont.Label, "an existing ontology must not be reseeded")
	assert.True(t, ont.LastModificationDate.Equal(before))
}

func TestSeederRejectsInvalidDefinitions(t *testing.T) {
	tests := []struct {
		name string
		seed string
	}{
		{
			name: "malformed yaml",
			seed: "ontologies: [",
		},
		{
			name: "bad project id",
			seed: `
ontologies:
  - iri: http://api.ontoforge.org/ontology/0042/library
    project_id: not-a-uuid
`,
		},
		{
			name: "undefined cardinality property",
			seed: `
ontologies:
  - iri: http://api.ontoforge.org/ontology/0042/library
    project_id: 33333333-3333-3333-3333-333333333333
    classes:
      - iri: http://api.ontoforge.org/ontology/0042/library#Item
        super_classes:
          - http://api.ontoforge.org/ontology/base#Resource
        cardinalities:
          - property: http://api.ontoforge.org/ontology/0042/library#missing
            cardinality: "1"
`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t)
			seeder := NewSeeder(env.coordinator, env.cache, zap.NewNop())
			assert.Error(t, seeder.Run(context.Background(), writeSeedFile(t, tt.seed)))
		})
	}
}

func TestSeederMissingFile(t *testing.T) {
	env := newTestEnv(t)
	seeder := NewSeeder(env.coordinator, env.cache, zap.NewNop())
	assert.Error(t, seeder.Run(context.Background(), filepath.Join(t.TempDir(), "absent.yaml")))
}
