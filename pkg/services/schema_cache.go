package services

import (
	"context"
	"fmt"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/models"
	"github.com/ontoforge/schema-engine/pkg/repositories"
)

// SchemaCache holds the authoritative in-memory snapshot used by all
// query traffic. The snapshot is an atomically-swapped immutable value:
// readers never block and never observe a mutation mid-read. All
// publication goes through the update coordinator (or a full Reload);
// there are no ad-hoc writers.
type SchemaCache struct {
	store   repositories.SchemaStore
	logger  *zap.Logger
	current atomic.Pointer[models.SchemaSnapshot]
}

// NewSchemaCache creates a cache holding an empty snapshot. Call Reload
// to populate it from the store.
func NewSchemaCache(store repositories.SchemaStore, logger *zap.Logger) *SchemaCache {
	c := &SchemaCache{
		store:  store,
		logger: logger.Named("schema-cache"),
	}
	c.current.Store(models.EmptySnapshot())
	return c
}

// Snapshot returns the current snapshot. Non-blocking; always succeeds.
// Two calls without an intervening commit return the same reference.
func (c *SchemaCache) Snapshot() *models.SchemaSnapshot {
	return c.current.Load()
}

// Reload rebuilds the snapshot wholesale from the store. The built-in
// base ontology is always present, whether or not the store knows it.
func (c *SchemaCache) Reload(ctx context.Context) error {
	ontologies, err := c.store.ListOntologies(ctx)
	if err != nil {
		return fmt.Errorf("load ontologies from store: %w", err)
	}
	if ontologies == nil {
		ontologies = make(map[models.IRI]*models.Ontology, 1)
	}
	ontologies[models.BaseOntologyIRI] = models.BaseOntology()

	snap := models.NewSchemaSnapshot(ontologies)
	c.current.Store(snap)
	c.logger.Info("Schema cache reloaded",
		zap.Int("ontologies", len(ontologies)))
	return nil
}

// publish atomically replaces the snapshot. Only the update coordinator
// calls this, while holding the schema lock.
func (c *SchemaCache) publish(snap *models.SchemaSnapshot) {
	c.current.Store(snap)
}
