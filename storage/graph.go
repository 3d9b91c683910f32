package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"ci-mapping/config"
)

// GraphEdge ist eine gewichtete Kante zwischen zwei Fields of Study.
type GraphEdge struct {
	Source string
	Target string
	Weight int
}

// GraphStore schreibt den Kookkurrenz-Graphen nach Neo4j.
type GraphStore struct {
	Driver   neo4j.DriverWithContext
	Database string
	Logger   *zap.Logger
}

// OpenGraph verbindet sich mit Neo4j. Ohne NEO4J_URI wird nil zurückgegeben.
func OpenGraph(ctx context.Context, cfg *config.Config, log *zap.Logger) (*GraphStore, error) {
	if cfg.Neo4jURI == "" {
		return nil, nil
	}
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPassword, ""), func(c *neo4j.Config) {
		c.SocketConnectTimeout = 10 * time.Second
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j: init driver: %w", err)
	}

	vctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := driver.VerifyConnectivity(vctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("neo4j: verify connectivity: %w", err)
	}
	return &GraphStore{Driver: driver, Database: cfg.Neo4jDatabase, Logger: log}, nil
}

// Close schließt den Treiber.
func (g *GraphStore) Close(ctx context.Context) error {
	if g == nil || g.Driver == nil {
		return nil
	}
	return g.Driver.Close(ctx)
}

// ReplaceCooccurrence ersetzt die Kanten des Graphen für ein Label-Set.
func (g *GraphStore) ReplaceCooccurrence(ctx context.Context, graph string, edges []GraphEdge) error {
	rows := make([]map[string]any, 0, len(edges))
	for _, e := range edges {
		rows = append(rows, map[string]any{
			"source": e.Source,
			"target": e.Target,
			"weight": int64(e.Weight),
		})
	}

	session := g.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: g.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if _, err := tx.Run(ctx, `
MATCH (:FieldOfStudy)-[r:COOCCURS {graph: $graph}]->(:FieldOfStudy)
DELETE r`, map[string]any{"graph": graph}); err != nil {
			return nil, err
		}
		res, err := tx.Run(ctx, `
UNWIND $rows AS r
MERGE (a:FieldOfStudy {name: r.source})
MERGE (b:FieldOfStudy {name: r.target})
CREATE (a)-[:COOCCURS {graph: $graph, weight: r.weight}]->(b)`, map[string]any{"rows": rows, "graph": graph})
		if err != nil {
			return nil, err
		}
		return res.Consume(ctx)
	})
	if err != nil {
		return fmt.Errorf("neo4j cooccurrence sync: %w", err)
	}
	g.Logger.Info("Kookkurrenz-Graph nach Neo4j geschrieben", zap.String("graph", graph), zap.Int("edges", len(edges)))
	return nil
}
