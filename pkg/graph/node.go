package graph

import (
	"context"
	"fmt"
	"strings"

	"github.com/Gobusters/ectologger"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"github.com/Ramsey-B/clover/pkg/models"
	"github.com/Ramsey-B/clover/pkg/tracing"
)

// MergedIntoType links a retired node to its survivor.
const MergedIntoType = "MERGED_INTO"

// Executor runs a write transaction. *Client implements it.
type Executor interface {
	ExecuteWrite(ctx context.Context, work func(tx neo4j.ManagedTransaction) (any, error)) (any, error)
}

// NodeService keeps record nodes consistent with merges in the relational store.
type NodeService struct {
	client Executor
	logger ectologger.Logger
}

func NewNodeService(client Executor, logger ectologger.Logger) *NodeService {
	return &NodeService{client: client, logger: logger}
}

// edge is one relationship of the loser, seen from the loser's side.
type edge struct {
	relType    string
	outgoing   bool
	otherID    string
	otherLabel string
	props      map[string]any
}

// RepointNode moves every relationship of the loser node to the survivor node,
// then detaches the loser and links it to the survivor with MERGED_INTO.
// Relationships between the two records are dropped.
func (s *NodeService) RepointNode(ctx context.Context, tenantID string, kind models.EntityKind, loserID, survivorID string) error {
	ctx, span := tracing.StartSpan(ctx, "graph.NodeService.RepointNode")
	defer span.End()

	log := s.logger.WithContext(ctx).WithFields(map[string]any{
		"tenant_id":   tenantID,
		"entity_kind": kind,
		"loser_id":    loserID,
		"survivor_id": survivorID,
	})

	label := LabelFor(kind)
	params := map[string]any{
		"tenant_id":   tenantID,
		"loser_id":    loserID,
		"survivor_id": survivorID,
	}

	moved, err := s.client.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		edges, err := loserEdges(ctx, tx, label, params)
		if err != nil {
			return nil, err
		}

		for _, e := range edges {
			if e.otherID == survivorID && e.otherLabel == label {
				continue
			}
			result, err := tx.Run(ctx, recreateEdgeQuery(label, e), map[string]any{
				"tenant_id":   tenantID,
				"survivor_id": survivorID,
				"other_id":    e.otherID,
				"props":       e.props,
			})
			if err != nil {
				return nil, err
			}
			if _, err := result.Consume(ctx); err != nil {
				return nil, err
			}
		}

		result, err := tx.Run(ctx, retireQuery(label), params)
		if err != nil {
			return nil, err
		}
		if _, err := result.Consume(ctx); err != nil {
			return nil, err
		}
		return len(edges), nil
	})
	if err != nil {
		tracing.RecordError(span, err)
		log.WithError(err).Error("Failed to repoint graph node")
		return fmt.Errorf("failed to repoint graph node: %w", err)
	}

	log.WithField("edges", moved).Debug("Repointed graph node")
	return nil
}

func loserEdges(ctx context.Context, tx neo4j.ManagedTransaction, label string, params map[string]any) ([]edge, error) {
	result, err := tx.Run(ctx, edgesQuery(label), params)
	if err != nil {
		return nil, err
	}
	records, err := result.Collect(ctx)
	if err != nil {
		return nil, err
	}

	edges := make([]edge, 0, len(records))
	for _, rec := range records {
		m := rec.AsMap()
		e := edge{
			relType:    asString(m["rel_type"]),
			otherID:    asString(m["other_id"]),
			otherLabel: asString(m["other_label"]),
		}
		e.outgoing, _ = m["outgoing"].(bool)
		e.props, _ = m["props"].(map[string]any)
		if e.relType == MergedIntoType || e.otherID == "" {
			continue
		}
		edges = append(edges, e)
	}
	return edges, nil
}

func edgesQuery(label string) string {
	return fmt.Sprintf(`
		MATCH (l:%s {id: $loser_id, tenant_id: $tenant_id})-[r]-(o)
		RETURN type(r) AS rel_type, startNode(r) = l AS outgoing, o.id AS other_id,
		       head(labels(o)) AS other_label, properties(r) AS props
	`, label)
}

func recreateEdgeQuery(label string, e edge) string {
	pattern := "(s)-[r:%s]->(o)"
	if !e.outgoing {
		pattern = "(s)<-[r:%s]-(o)"
	}
	return fmt.Sprintf(`
		MERGE (s:%s {id: $survivor_id, tenant_id: $tenant_id})
		WITH s
		MATCH (o:%s {id: $other_id, tenant_id: $tenant_id})
		MERGE `+pattern+`
		SET r += $props
	`, label, sanitizeLabel(e.otherLabel), sanitizeLabel(e.relType))
}

func retireQuery(label string) string {
	return fmt.Sprintf(`
		MATCH (l:%[1]s {id: $loser_id, tenant_id: $tenant_id})
		OPTIONAL MATCH (l)-[r]-()
		DELETE r
		WITH DISTINCT l
		MERGE (s:%[1]s {id: $survivor_id, tenant_id: $tenant_id})
		MERGE (l)-[:%[2]s]->(s)
		SET l.merged_into_id = $survivor_id, l.merged_at = datetime()
	`, label, MergedIntoType)
}

// LabelFor returns the node label of kind, e.g. Person.
func LabelFor(kind models.EntityKind) string {
	k := sanitizeLabel(string(kind))
	return strings.ToUpper(k[:1]) + k[1:]
}

// sanitizeLabel ensures the label is safe for Cypher
func sanitizeLabel(label string) string {
	var b strings.Builder
	for _, c := range label {
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || (c >= '0' && c <= '9') || c == '_' {
			b.WriteRune(c)
		}
	}
	if b.Len() == 0 {
		return "Record"
	}
	return b.String()
}

func asString(v any) string {
	s, _ := v.(string)
	return s
}
