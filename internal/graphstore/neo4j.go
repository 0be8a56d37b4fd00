// Package graphstore mirrors scene nodes and derived spatial relationships into Neo4j.
package graphstore

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/go-playground/validator/v10"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"multiverse-spatial/internal/reasoning"
	"multiverse-spatial/internal/scenegraph"
)

var ErrInvalidRelationType = errors.New("invalid relationship type")

// relationLabel guards the relationship type spliced into Cypher.
var relationLabel = regexp.MustCompile(`^[A-Z][A-Z_]*$`)

// Config holds the Neo4j connection settings.
type Config struct {
	URI      string `validate:"required"`
	User     string `validate:"required"`
	Password string
	Database string
}

var validate = validator.New()

// Store writes to Neo4j.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
	logger   *zap.Logger
}

// New connects to Neo4j and verifies connectivity.
func New(ctx context.Context, cfg Config, logger *zap.Logger) (*Store, error) {
	if err := validate.Struct(cfg); err != nil {
		return nil, fmt.Errorf("neo4j config: %w", err)
	}
	if cfg.Database == "" {
		cfg.Database = "neo4j"
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver creation failed: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j connectivity test failed: %w", err)
	}
	return &Store{driver: driver, database: cfg.Database, logger: logger}, nil
}

func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}

func (s *Store) write(ctx context.Context, query string, params map[string]any) error {
	session := s.driver.NewSession(ctx, neo4j.SessionConfig{
		DatabaseName: s.database,
		AccessMode:   neo4j.AccessModeWrite,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	return err
}

const upsertNodeQuery = `
MERGE (n:SceneNode {id: $id})
SET n += $props
`

// UpsertNode creates or updates a scene node.
func (s *Store) UpsertNode(ctx context.Context, n *scenegraph.Node) error {
	if err := s.write(ctx, upsertNodeQuery, map[string]any{"id": n.ID, "props": NodeProperties(n)}); err != nil {
		return fmt.Errorf("upsert scene node %s: %w", n.ID, err)
	}
	return nil
}

const removeNodeQuery = `
MATCH (n:SceneNode {id: $id})
DETACH DELETE n
`

// RemoveNode deletes a scene node and its relationships.
func (s *Store) RemoveNode(ctx context.Context, id string) error {
	if err := s.write(ctx, removeNodeQuery, map[string]any{"id": id}); err != nil {
		return fmt.Errorf("remove scene node %s: %w", id, err)
	}
	return nil
}

// ExportRelationships merges each relationship and both of its endpoints.
func (s *Store) ExportRelationships(ctx context.Context, rels []reasoning.SpatialRelationship) error {
	for _, r := range rels {
		query, err := RelationshipQuery(r.Type)
		if err != nil {
			return err
		}
		if err := s.write(ctx, query, RelationshipParams(r)); err != nil {
			return fmt.Errorf("export relationship %s: %w", r.ID, err)
		}
	}
	s.logger.Debug("relationships exported", zap.Int("count", len(rels)))
	return nil
}

// RelationshipQuery builds the MERGE statement for a relationship type.
func RelationshipQuery(typ reasoning.RelationType) (string, error) {
	if !relationLabel.MatchString(string(typ)) {
		return "", fmt.Errorf("%w: %q", ErrInvalidRelationType, typ)
	}
	return fmt.Sprintf(`
MERGE (a:SceneNode {id: $a_id})
SET a += $a_props
MERGE (b:SceneNode {id: $b_id})
SET b += $b_props
MERGE (a)-[r:%s {id: $id}]->(b)
SET r += $props
`, typ), nil
}

// RelationshipParams flattens a relationship into Cypher parameters. Metrics
// become metric_<name> and attributes attr_<name>.
func RelationshipParams(r reasoning.SpatialRelationship) map[string]any {
	props := make(map[string]any, len(r.Metrics)+len(r.Attributes))
	for k, v := range r.Metrics {
		props["metric_"+k] = v
	}
	for k, v := range r.Attributes {
		props["attr_"+k] = v
	}
	params := map[string]any{
		"id":    r.ID,
		"props": props,
	}
	for prefix, n := range map[string]*scenegraph.Node{"a": r.ObjectA, "b": r.ObjectB} {
		if n == nil {
			params[prefix+"_id"] = ""
			params[prefix+"_props"] = map[string]any{}
			continue
		}
		params[prefix+"_id"] = n.ID
		params[prefix+"_props"] = NodeProperties(n)
	}
	return params
}

// NodeProperties returns the flat property map stored on a SceneNode.
func NodeProperties(n *scenegraph.Node) map[string]any {
	return map[string]any{
		"name":       n.Name,
		"type":       string(n.Type),
		"x":          n.Coordinates.X,
		"y":          n.Coordinates.Y,
		"z":          n.Coordinates.Z,
		"width":      n.Dimensions.Width,
		"height":     n.Dimensions.Height,
		"depth":      n.Dimensions.Depth,
		"importance": n.Importance,
	}
}
