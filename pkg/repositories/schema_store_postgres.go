package repositories

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/ontoforge/schema-engine/pkg/database"
	"github.com/ontoforge/schema-engine/pkg/models"
)

type postgresSchemaStore struct {
	db *database.DB
}

// NewPostgresSchemaStore creates a SchemaStore backed by PostgreSQL.
func NewPostgresSchemaStore(db *database.DB) SchemaStore {
	return &postgresSchemaStore{db: db}
}

var _ SchemaStore = (*postgresSchemaStore)(nil)

func (s *postgresSchemaStore) WriteOntology(ctx context.Context, ont *models.Ontology) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // rollback on defer is best-effort

	_, err = tx.Exec(ctx, `
		INSERT INTO ontologies (iri, project_id, is_shared, label, comment, last_modification_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (iri) DO UPDATE SET
			project_id = EXCLUDED.project_id,
			is_shared = EXCLUDED.is_shared,
			label = EXCLUDED.label,
			comment = EXCLUDED.comment,
			last_modification_date = EXCLUDED.last_modification_date`,
		ont.IRI, ont.ProjectID, ont.IsShared, ont.Label, ont.Comment, ont.LastModificationDate)
	if err != nil {
		return fmt.Errorf("failed to upsert ontology %s: %w", ont.IRI, err)
	}

	// Definitions are replaced wholesale: the ontology row is the unit
	// of versioning, so partial class/property updates never exist.
	if _, err := tx.Exec(ctx, "DELETE FROM ontology_classes WHERE ontology_iri = $1", ont.IRI); err != nil {
		return fmt.Errorf("failed to clear classes for %s: %w", ont.IRI, err)
	}
	if _, err := tx.Exec(ctx, "DELETE FROM ontology_properties WHERE ontology_iri = $1", ont.IRI); err != nil {
		return fmt.Errorf("failed to clear properties for %s: %w", ont.IRI, err)
	}

	for iri, class := range ont.Classes {
		superJSON, err := json.Marshal(class.SuperClasses)
		if err != nil {
			return fmt.Errorf("failed to marshal super_classes for %s: %w", iri, err)
		}
		cardsJSON, err := json.Marshal(class.DirectCardinalities)
		if err != nil {
			return fmt.Errorf("failed to marshal direct_cardinalities for %s: %w", iri, err)
		}
		predsJSON, err := json.Marshal(class.Predicates)
		if err != nil {
			return fmt.Errorf("failed to marshal predicates for %s: %w", iri, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ontology_classes (iri, ontology_iri, super_classes, direct_cardinalities, predicates)
			VALUES ($1, $2, $3, $4, $5)`,
			iri, ont.IRI, superJSON, cardsJSON, predsJSON)
		if err != nil {
			return fmt.Errorf("failed to insert class %s: %w", iri, err)
		}
	}

	for iri, prop := range ont.Properties {
		superJSON, err := json.Marshal(prop.SuperProperties)
		if err != nil {
			return fmt.Errorf("failed to marshal super_properties for %s: %w", iri, err)
		}
		predsJSON, err := json.Marshal(prop.Predicates)
		if err != nil {
			return fmt.Errorf("failed to marshal predicates for %s: %w", iri, err)
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO ontology_properties (iri, ontology_iri, super_properties, subject_type, object_type, predicates)
			VALUES ($1, $2, $3, $4, $5, $6)`,
			iri, ont.IRI, superJSON, prop.SubjectType, prop.ObjectType, predsJSON)
		if err != nil {
			return fmt.Errorf("failed to insert property %s: %w", iri, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

func (s *postgresSchemaStore) ReadOntology(ctx context.Context, iri models.IRI) (*models.Ontology, error) {
	ont := &models.Ontology{
		IRI:        iri,
		Classes:    make(map[models.IRI]*models.ClassDefinition),
		Properties: make(map[models.IRI]*models.PropertyDefinition),
	}

	err := s.db.QueryRow(ctx, `
		SELECT project_id, is_shared, label, comment, last_modification_date
		FROM ontologies WHERE iri = $1`, iri).
		Scan(&ont.ProjectID, &ont.IsShared, &ont.Label, &ont.Comment, &ont.LastModificationDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read ontology %s: %w", iri, err)
	}
	ont.LastModificationDate = ont.LastModificationDate.UTC()

	if err := s.readClasses(ctx, ont); err != nil {
		return nil, err
	}
	if err := s.readProperties(ctx, ont); err != nil {
		return nil, err
	}
	return ont, nil
}

func (s *postgresSchemaStore) readClasses(ctx context.Context, ont *models.Ontology) error {
	rows, err := s.db.Query(ctx, `
		SELECT iri, super_classes, direct_cardinalities, predicates
		FROM ontology_classes WHERE ontology_iri = $1`, ont.IRI)
	if err != nil {
		return fmt.Errorf("failed to query classes for %s: %w", ont.IRI, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			iri       models.IRI
			superJSON []byte
			cardsJSON []byte
			predsJSON []byte
		)
		if err := rows.Scan(&iri, &superJSON, &cardsJSON, &predsJSON); err != nil {
			return fmt.Errorf("failed to scan class row: %w", err)
		}
		class := &models.ClassDefinition{IRI: iri}
		if err := json.Unmarshal(superJSON, &class.SuperClasses); err != nil {
			return fmt.Errorf("failed to unmarshal super_classes for %s: %w", iri, err)
		}
		if err := json.Unmarshal(cardsJSON, &class.DirectCardinalities); err != nil {
			return fmt.Errorf("failed to unmarshal direct_cardinalities for %s: %w", iri, err)
		}
		if err := json.Unmarshal(predsJSON, &class.Predicates); err != nil {
			return fmt.Errorf("failed to unmarshal predicates for %s: %w", iri, err)
		}
		ont.Classes[iri] = class
	}
	return rows.Err()
}

func (s *postgresSchemaStore) readProperties(ctx context.Context, ont *models.Ontology) error {
	rows, err := s.db.Query(ctx, `
		SELECT iri, super_properties, subject_type, object_type, predicates
		FROM ontology_properties WHERE ontology_iri = $1`, ont.IRI)
	if err != nil {
		return fmt.Errorf("failed to query properties for %s: %w", ont.IRI, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			iri       models.IRI
			superJSON []byte
			predsJSON []byte
		)
		prop := &models.PropertyDefinition{}
		if err := rows.Scan(&iri, &superJSON, &prop.SubjectType, &prop.ObjectType, &predsJSON); err != nil {
			return fmt.Errorf("failed to scan property row: %w", err)
		}
		prop.IRI = iri
		if err := json.Unmarshal(superJSON, &prop.SuperProperties); err != nil {
			return fmt.Errorf("failed to unmarshal super_properties for %s: %w", iri, err)
		}
		if err := json.Unmarshal(predsJSON, &prop.Predicates); err != nil {
			return fmt.Errorf("failed to unmarshal predicates for %s: %w", iri, err)
		}
		ont.Properties[iri] = prop
	}
	return rows.Err()
}

func (s *postgresSchemaStore) ListOntologies(ctx context.Context) (map[models.IRI]*models.Ontology, error) {
	rows, err := s.db.Query(ctx, "SELECT iri FROM ontologies")
	if err != nil {
		return nil, fmt.Errorf("failed to list ontologies: %w", err)
	}
	defer rows.Close()

	var iris []models.IRI
	for rows.Next() {
		var iri models.IRI
		if err := rows.Scan(&iri); err != nil {
			return nil, fmt.Errorf("failed to scan ontology IRI: %w", err)
		}
		iris = append(iris, iri)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	ontologies := make(map[models.IRI]*models.Ontology, len(iris))
	for _, iri := range iris {
		ont, err := s.ReadOntology(ctx, iri)
		if err != nil {
			return nil, err
		}
		if ont != nil {
			ontologies[iri] = ont
		}
	}
	return ontologies, nil
}

func (s *postgresSchemaStore) DeleteOntology(ctx context.Context, iri models.IRI) error {
	// Classes and properties cascade.
	if _, err := s.db.Exec(ctx, "DELETE FROM ontologies WHERE iri = $1", iri); err != nil {
		return fmt.Errorf("failed to delete ontology %s: %w", iri, err)
	}
	return nil
}

func (s *postgresSchemaStore) AskClassUsedByData(ctx context.Context, classIRIs []models.IRI) (bool, error) {
	if len(classIRIs) == 0 {
		return false, nil
	}
	var used bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM resource_instances WHERE class_iri = ANY($1))",
		iriStrings(classIRIs)).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check class usage: %w", err)
	}
	return used, nil
}

func (s *postgresSchemaStore) AskPropertyUsedByData(ctx context.Context, propertyIRIs []models.IRI) (bool, error) {
	if len(propertyIRIs) == 0 {
		return false, nil
	}
	var used bool
	err := s.db.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM instance_values WHERE property_iri = ANY($1))",
		iriStrings(propertyIRIs)).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check property usage: %w", err)
	}
	return used, nil
}

func (s *postgresSchemaStore) AskPropertyUsedInClass(ctx context.Context, classIRIs, propertyIRIs []models.IRI) (bool, error) {
	if len(classIRIs) == 0 || len(propertyIRIs) == 0 {
		return false, nil
	}
	var used bool
	err := s.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1
			FROM instance_values v
			JOIN resource_instances r ON r.id = v.resource_id
			WHERE r.class_iri = ANY($1) AND v.property_iri = ANY($2)
		)`,
		iriStrings(classIRIs), iriStrings(propertyIRIs)).Scan(&used)
	if err != nil {
		return false, fmt.Errorf("failed to check cardinality usage: %w", err)
	}
	return used, nil
}

func iriStrings(iris []models.IRI) []string {
	out := make([]string, len(iris))
	for i, iri := range iris {
		out[i] = string(iri)
	}
	return out
}
