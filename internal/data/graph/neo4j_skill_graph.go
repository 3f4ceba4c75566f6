package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	types "github.com/yungbote/codeflow-backend/internal/domain"
	"github.com/yungbote/codeflow-backend/internal/platform/logger"
	"github.com/yungbote/codeflow-backend/internal/platform/neo4jdb"
)

// UpsertSkillGraph mirrors the skill catalog and its prerequisite table into
// Neo4j as (:Skill)-[:REQUIRES]->(:Skill).
func UpsertSkillGraph(ctx context.Context, client *neo4jdb.Client, log *logger.Logger, skills []*types.Skill, prereqs map[string][]string) error {
	if client == nil || client.Driver == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	now := time.Now().UTC().Format(time.RFC3339Nano)

	nodes := make([]map[string]any, 0, len(skills))
	for _, s := range skills {
		if s == nil || strings.TrimSpace(s.ID) == "" {
			continue
		}
		nodes = append(nodes, map[string]any{"id": s.ID, "name": s.Name})
	}
	edges := make([]map[string]any, 0, len(prereqs))
	for skill, reqs := range prereqs {
		for _, req := range reqs {
			if skill == "" || req == "" || req == skill {
				continue
			}
			edges = append(edges, map[string]any{"skill": skill, "requires": req})
		}
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeWrite,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	if res, err := session.Run(ctx, `CREATE CONSTRAINT skill_id_unique IF NOT EXISTS FOR (s:Skill) REQUIRE s.id IS UNIQUE`, nil); err != nil {
		if log != nil {
			log.Warn("neo4j schema init failed (continuing)", "error", err)
		}
	} else {
		_, _ = res.Consume(ctx)
	}

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		if len(nodes) > 0 {
			res, err := tx.Run(ctx, `
UNWIND $nodes AS n
MERGE (s:Skill {id: n.id})
SET s.name = n.name, s.synced_at = $synced_at
`, map[string]any{"nodes": nodes, "synced_at": now})
			if err != nil {
				return nil, err
			}
			if _, err := res.Consume(ctx); err != nil {
				return nil, err
			}
		}
		if len(edges) == 0 {
			return nil, nil
		}
		res, err := tx.Run(ctx, `
UNWIND $edges AS e
MERGE (s:Skill {id: e.skill})
MERGE (p:Skill {id: e.requires})
MERGE (s)-[r:REQUIRES]->(p)
SET r.synced_at = $synced_at
`, map[string]any{"edges": edges, "synced_at": now})
		if err != nil {
			return nil, err
		}
		_, err = res.Consume(ctx)
		return nil, err
	})
	if err != nil {
		return fmt.Errorf("neo4j skill graph sync: %w", err)
	}
	if log != nil {
		log.Debug("neo4j skill graph synced", "skills", len(nodes), "edges", len(edges))
	}
	return nil
}

// LoadSkillPrerequisites reads every REQUIRES edge. A nil client yields an
// empty map.
func LoadSkillPrerequisites(ctx context.Context, client *neo4jdb.Client) (map[string][]string, error) {
	out := map[string][]string{}
	if client == nil || client.Driver == nil {
		return out, nil
	}
	if ctx == nil {
		ctx = context.Background()
	}

	session := client.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   neo4j.AccessModeRead,
		DatabaseName: client.Database,
	})
	defer session.Close(ctx)

	_, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, `
MATCH (s:Skill)-[:REQUIRES]->(p:Skill)
RETURN s.id AS skill, p.id AS requires
`, nil)
		if err != nil {
			return nil, err
		}
		for res.Next(ctx) {
			rec := res.Record()
			skill, _, err := neo4j.GetRecordValue[string](rec, "skill")
			if err != nil {
				return nil, err
			}
			req, _, err := neo4j.GetRecordValue[string](rec, "requires")
			if err != nil {
				return nil, err
			}
			out[skill] = append(out[skill], req)
		}
		return nil, res.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("neo4j load skill prerequisites: %w", err)
	}
	for k := range out {
		sort.Strings(out[k])
	}
	return out, nil
}
