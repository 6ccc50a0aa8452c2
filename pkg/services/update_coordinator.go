package services

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ontoforge/schema-engine/pkg/apperrors"
	"github.com/ontoforge/schema-engine/pkg/models"
	"github.com/ontoforge/schema-engine/pkg/repositories"
)

// MutationRequest carries what every schema mutation needs: a request
// ID scoping lock ownership and the ontology version the caller last
// observed.
type MutationRequest struct {
	RequestID       uuid.UUID
	ExpectedVersion time.Time
}

// CreateOntologyRequest creates a new, empty ontology. There is no
// expected version because nothing exists yet.
type CreateOntologyRequest struct {
	RequestID uuid.UUID
	IRI       models.IRI
	ProjectID uuid.UUID
	IsShared  bool
	Label     string
	Comment   string
}

// ChangeOntologyMetadataRequest updates an ontology's label/comment.
type ChangeOntologyMetadataRequest struct {
	MutationRequest
	IRI     models.IRI
	Label   string
	Comment string
}

// ClassChangeRequest creates a class or replaces its definition. Only
// direct cardinalities may be populated.
type ClassChangeRequest struct {
	MutationRequest
	Class *models.ClassDefinition
}

// PropertyChangeRequest creates a property or replaces its definition.
type PropertyChangeRequest struct {
	MutationRequest
	Property *models.PropertyDefinition
}

// CardinalityRequest adds or removes direct cardinalities on a class.
type CardinalityRequest struct {
	MutationRequest
	ClassIRI      models.IRI
	Cardinalities map[models.IRI]models.PropertyCardinality
}

// DeleteEntityRequest deletes a class, property, or ontology.
type DeleteEntityRequest struct {
	MutationRequest
	IRI models.IRI
}

// UpdateCoordinator orchestrates every schema mutation through the same
// sequence: acquire the schema lock, re-read the snapshot, validate,
// check the optimistic version, write to the store, read back and
// verify, publish the new snapshot, release the lock. Failure at any
// step releases the lock without publishing anything.
type UpdateCoordinator interface {
	CreateOntology(ctx context.Context, req CreateOntologyRequest) (*models.Ontology, error)
	ChangeOntologyMetadata(ctx context.Context, req ChangeOntologyMetadataRequest) (*models.Ontology, error)
	DeleteOntology(ctx context.Context, req DeleteEntityRequest) error

	ProposeClassChange(ctx context.Context, req ClassChangeRequest) (*ResolvedClass, error)
	AddCardinalities(ctx context.Context, req CardinalityRequest) (*ResolvedClass, error)
	RemoveCardinality(ctx context.Context, req CardinalityRequest) (*ResolvedClass, error)
	DeleteClass(ctx context.Context, req DeleteEntityRequest) error

	ProposePropertyChange(ctx context.Context, req PropertyChangeRequest) (*models.PropertyDefinition, error)
	DeleteProperty(ctx context.Context, req DeleteEntityRequest) error

	// CanRemove is a side-effect-free pre-flight check for UIs. It
	// takes no lock; the authoritative check happens again inside the
	// mutation.
	CanRemove(ctx context.Context, iri models.IRI) (bool, error)
}

type updateCoordinator struct {
	lock        EntityLock
	cache       *SchemaCache
	store       repositories.SchemaStore
	oracle      UsageOracle
	logger      *zap.Logger
	lockTimeout time.Duration
}

// NewUpdateCoordinator creates an UpdateCoordinator.
func NewUpdateCoordinator(
	lock EntityLock,
	cache *SchemaCache,
	store repositories.SchemaStore,
	oracle UsageOracle,
	lockTimeout time.Duration,
	logger *zap.Logger,
) UpdateCoordinator {
	return &updateCoordinator{
		lock:        lock,
		cache:       cache,
		store:       store,
		oracle:      oracle,
		logger:      logger.Named("update-coordinator"),
		lockTimeout: lockTimeout,
	}
}

var _ UpdateCoordinator = (*updateCoordinator)(nil)

// acquire takes the global schema lock, bounded by the configured
// timeout. The caller must defer the matching Release.
func (c *updateCoordinator) acquire(ctx context.Context, requestID uuid.UUID) error {
	lockCtx, cancel := context.WithTimeout(ctx, c.lockTimeout)
	defer cancel()
	return c.lock.Acquire(lockCtx, SchemaCacheLockKey, requestID)
}

func (c *updateCoordinator) CreateOntology(ctx context.Context, req CreateOntologyRequest) (*models.Ontology, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	if !req.IRI.IsInternal() {
		return nil, apperrors.BadInput("ontology IRI %s is outside %s", req.IRI, models.InternalOntologyPrefix)
	}
	if req.ProjectID == uuid.Nil {
		return nil, apperrors.BadInput("ontology %s has no owning project", req.IRI)
	}

	snap := c.cache.Snapshot()
	if snap.Ontology(req.IRI) != nil {
		return nil, apperrors.Conflict("ontology %s already exists", req.IRI)
	}

	ont := &models.Ontology{
		IRI:                  req.IRI,
		ProjectID:            req.ProjectID,
		IsShared:             req.IsShared,
		Label:                req.Label,
		Comment:              req.Comment,
		LastModificationDate: models.NewVersionToken(time.Time{}),
		Classes:              make(map[models.IRI]*models.ClassDefinition),
		Properties:           make(map[models.IRI]*models.PropertyDefinition),
	}
	return c.persistVerifyCommit(ctx, snap, ont)
}

func (c *updateCoordinator) ChangeOntologyMetadata(ctx context.Context, req ChangeOntologyMetadataRequest) (*models.Ontology, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.IRI)
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return nil, err
	}

	next := ont.Clone()
	next.Label = req.Label
	next.Comment = req.Comment
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	return c.persistVerifyCommit(ctx, snap, next)
}

func (c *updateCoordinator) DeleteOntology(ctx context.Context, req DeleteEntityRequest) error {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.IRI)
	if err != nil {
		return err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return err
	}

	used, err := c.oracle.IsOntologyUsed(ctx, snap, req.IRI)
	if err != nil {
		return err
	}
	if used {
		return apperrors.Conflict("ontology %s is in use and cannot be deleted", req.IRI)
	}

	if err := c.store.DeleteOntology(ctx, req.IRI); err != nil {
		return fmt.Errorf("delete ontology %s: %w", req.IRI, err)
	}

	// Verify the deletion before dropping the ontology from the cache.
	got, err := c.store.ReadOntology(ctx, req.IRI)
	if err != nil {
		return fmt.Errorf("verify deletion of %s: %w", req.IRI, err)
	}
	if got != nil {
		c.logger.Error("Store still returns ontology after deletion",
			zap.String("ontology", string(req.IRI)))
		return apperrors.InconsistentStore("ontology %s still present after deletion", req.IRI)
	}

	c.cache.publish(snap.WithoutOntology(req.IRI))
	c.logger.Info("Ontology deleted", zap.String("ontology", string(req.IRI)))
	return nil
}

func (c *updateCoordinator) ProposeClassChange(ctx context.Context, req ClassChangeRequest) (*ResolvedClass, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	classDef := req.Class
	ont, err := c.mutableOntology(snap, classDef.IRI.OntologyIRI())
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return nil, err
	}

	resolved, err := ValidateClass(snap, classDef, snap.AncestorClasses(classDef.SuperClasses))
	if err != nil {
		return nil, err
	}

	next := ont.Clone()
	next.Classes[classDef.IRI] = resolved.Definition.Clone()
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	if _, err := c.persistVerifyCommit(ctx, snap, next); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (c *updateCoordinator) AddCardinalities(ctx context.Context, req CardinalityRequest) (*ResolvedClass, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.ClassIRI.OntologyIRI())
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return nil, err
	}

	existing := snap.Class(req.ClassIRI)
	if existing == nil {
		return nil, apperrors.NotFound("class %s", req.ClassIRI)
	}

	merged := existing.Clone()
	for prop, card := range req.Cardinalities {
		if _, defined := merged.DirectCardinalities[prop]; defined {
			// Changing an existing direct cardinality is delete-then-add,
			// never a silent merge.
			return nil, apperrors.BadInput("class %s already has a direct cardinality on %s", req.ClassIRI, prop)
		}
		if merged.DirectCardinalities == nil {
			merged.DirectCardinalities = make(map[models.IRI]models.PropertyCardinality)
		}
		merged.DirectCardinalities[prop] = card
	}

	resolved, err := ValidateClass(snap, merged, snap.AncestorClasses(merged.SuperClasses))
	if err != nil {
		return nil, err
	}

	next := ont.Clone()
	next.Classes[req.ClassIRI] = resolved.Definition.Clone()
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	if _, err := c.persistVerifyCommit(ctx, snap, next); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (c *updateCoordinator) RemoveCardinality(ctx context.Context, req CardinalityRequest) (*ResolvedClass, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.ClassIRI.OntologyIRI())
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return nil, err
	}

	prop, err := ValidateCardinalityRemoval(snap, req.ClassIRI, req.Cardinalities)
	if err != nil {
		return nil, err
	}

	used, err := c.oracle.IsCardinalityUsed(ctx, snap, req.ClassIRI, prop)
	if err != nil {
		return nil, err
	}
	if used {
		return nil, apperrors.Conflict("cardinality on %s of class %s is in use", prop, req.ClassIRI)
	}

	trimmed := snap.Class(req.ClassIRI).Clone()
	delete(trimmed.DirectCardinalities, prop)
	if propDef := snap.Property(prop); propDef != nil && propDef.IsLinkProperty {
		// The paired link-value cardinality never outlives its link
		// cardinality.
		delete(trimmed.DirectCardinalities, prop.LinkValuePropertyIRI())
	}

	resolved, err := ValidateClass(snap, trimmed, snap.AncestorClasses(trimmed.SuperClasses))
	if err != nil {
		return nil, err
	}

	next := ont.Clone()
	next.Classes[req.ClassIRI] = resolved.Definition.Clone()
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	if _, err := c.persistVerifyCommit(ctx, snap, next); err != nil {
		return nil, err
	}
	return resolved, nil
}

func (c *updateCoordinator) DeleteClass(ctx context.Context, req DeleteEntityRequest) error {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.IRI.OntologyIRI())
	if err != nil {
		return err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return err
	}
	if snap.Class(req.IRI) == nil {
		return apperrors.NotFound("class %s", req.IRI)
	}

	used, err := c.oracle.IsEntityUsed(ctx, snap, req.IRI)
	if err != nil {
		return err
	}
	if used {
		return apperrors.Conflict("class %s is in use and cannot be deleted", req.IRI)
	}

	next := ont.Clone()
	delete(next.Classes, req.IRI)
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	_, err = c.persistVerifyCommit(ctx, snap, next)
	return err
}

func (c *updateCoordinator) ProposePropertyChange(ctx context.Context, req PropertyChangeRequest) (*models.PropertyDefinition, error) {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return nil, err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	propDef := req.Property
	ont, err := c.mutableOntology(snap, propDef.IRI.OntologyIRI())
	if err != nil {
		return nil, err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return nil, err
	}

	validated, err := ValidateProperty(snap, propDef)
	if err != nil {
		return nil, err
	}

	next := ont.Clone()
	next.Properties[validated.IRI] = validated.Clone()
	if validated.IsLinkProperty && snap.Property(validated.IRI.LinkValuePropertyIRI()) == nil {
		// Creating a link property implies creating its paired
		// link-value property.
		next.Properties[validated.IRI.LinkValuePropertyIRI()] = pairedLinkValueProperty(validated)
	}
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	if _, err := c.persistVerifyCommit(ctx, snap, next); err != nil {
		return nil, err
	}
	return validated, nil
}

func (c *updateCoordinator) DeleteProperty(ctx context.Context, req DeleteEntityRequest) error {
	if err := c.acquire(ctx, req.RequestID); err != nil {
		return err
	}
	defer c.lock.Release(SchemaCacheLockKey, req.RequestID)

	snap := c.cache.Snapshot()
	ont, err := c.mutableOntology(snap, req.IRI.OntologyIRI())
	if err != nil {
		return err
	}
	if err := checkVersion(ont, req.ExpectedVersion); err != nil {
		return err
	}
	propDef := snap.Property(req.IRI)
	if propDef == nil {
		return apperrors.NotFound("property %s", req.IRI)
	}
	if propDef.IsLinkValueProperty {
		return apperrors.BadInput("link-value property %s is deleted through its link property %s", req.IRI, req.IRI.LinkPropertyIRI())
	}

	used, err := c.oracle.IsEntityUsed(ctx, snap, req.IRI)
	if err != nil {
		return err
	}
	if used {
		return apperrors.Conflict("property %s is in use and cannot be deleted", req.IRI)
	}

	next := ont.Clone()
	delete(next.Properties, req.IRI)
	if propDef.IsLinkProperty {
		// Deleting a link property implies deleting its pair.
		delete(next.Properties, req.IRI.LinkValuePropertyIRI())
	}
	next.LastModificationDate = models.NewVersionToken(ont.LastModificationDate)
	_, err = c.persistVerifyCommit(ctx, snap, next)
	return err
}

func (c *updateCoordinator) CanRemove(ctx context.Context, iri models.IRI) (bool, error) {
	snap := c.cache.Snapshot()
	if snap.Ontology(iri) != nil {
		used, err := c.oracle.IsOntologyUsed(ctx, snap, iri)
		return !used, err
	}
	if snap.Class(iri) == nil && snap.Property(iri) == nil {
		return false, apperrors.NotFound("entity %s", iri)
	}
	used, err := c.oracle.IsEntityUsed(ctx, snap, iri)
	return !used, err
}

// persistVerifyCommit runs the Persisted -> Verified -> Committed tail
// of the state machine: write the ontology, read it back, structurally
// compare, and only then publish a new snapshot. A readback mismatch is
// fatal and nothing is committed.
func (c *updateCoordinator) persistVerifyCommit(ctx context.Context, snap *models.SchemaSnapshot, next *models.Ontology) (*models.Ontology, error) {
	if err := c.store.WriteOntology(ctx, next); err != nil {
		return nil, fmt.Errorf("write ontology %s: %w", next.IRI, err)
	}

	got, err := c.store.ReadOntology(ctx, next.IRI)
	if err != nil {
		return nil, fmt.Errorf("read back ontology %s: %w", next.IRI, err)
	}
	if got == nil || !got.Equal(next) {
		// The store acknowledged the write but returned something else.
		// Retrying a write that silently diverged risks compounding
		// corruption, so this is surfaced as fatal.
		c.logger.Error("Store readback does not match written ontology",
			zap.String("ontology", string(next.IRI)))
		return nil, apperrors.InconsistentStore("readback of %s does not match written state", next.IRI)
	}

	c.cache.publish(snap.WithOntology(got))
	c.logger.Info("Ontology committed",
		zap.String("ontology", string(next.IRI)),
		zap.Time("version", next.LastModificationDate))
	return got, nil
}

// mutableOntology resolves the target ontology and rejects mutation of
// the built-in base ontology.
func (c *updateCoordinator) mutableOntology(snap *models.SchemaSnapshot, iri models.IRI) (*models.Ontology, error) {
	ont := snap.Ontology(iri)
	if ont == nil {
		return nil, apperrors.NotFound("ontology %s", iri)
	}
	if ont.IRI == models.BaseOntologyIRI {
		return nil, apperrors.BadInput("the base ontology is read-only")
	}
	return ont, nil
}

// checkVersion enforces the optimistic-concurrency token: the caller
// must present the last-modification date it observed. A mismatch means
// a concurrent editor won; the operation fails rather than merging.
func checkVersion(ont *models.Ontology, expected time.Time) error {
	if !ont.LastModificationDate.Equal(expected) {
		return apperrors.Conflict("ontology %s was changed concurrently (expected version %s, current %s)",
			ont.IRI, expected.UTC().Format(time.RFC3339Nano), ont.LastModificationDate.UTC().Format(time.RFC3339Nano))
	}
	return nil
}

// pairedLinkValueProperty derives the link-value property implied by a
// link property. It carries the same subject and labels but points at
// the reification class and has no independent GUI state.
func pairedLinkValueProperty(link *models.PropertyDefinition) *models.PropertyDefinition {
	return &models.PropertyDefinition{
		IRI:             link.IRI.LinkValuePropertyIRI(),
		SuperProperties: []models.IRI{models.HasLinkToValue},
		SubjectType:     link.SubjectType,
		ObjectType:      models.LinkValueClass,
		Predicates: models.Predicates{
			Labels:   link.Predicates.Clone().Labels,
			Comments: link.Predicates.Clone().Comments,
		},
	}
}
