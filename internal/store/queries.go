package store

// Cypher used by the Memgraph-backed GraphStore. Nodes carry a single
// KGNode label with the entity type as a property so one index set covers
// every type; edges are KGEDGE relationships typed by property for the
// same reason.
const (
	upsertEntityQuery = `
		MERGE (n:KGNode {id: $id})
		SET n.entity_type = $entity_type,
			n.tenant_id = $tenant_id,
			n.project_key = $project_key,
			n.props = $props,
			n.created_at = $created_at,
			n.updated_at = $updated_at
		RETURN n.id AS id
	`

	upsertEdgeQuery = `
		MATCH (a:KGNode {id: $source_id})
		MATCH (b:KGNode {id: $target_id})
		MERGE (a)-[e:KGEDGE {edge_type: $edge_type}]->(b)
		ON CREATE SET e.id = $id
		SET e.tenant_id = $tenant_id,
			e.project_key = $project_key,
			e.meta = $meta
		RETURN e.id AS id
	`

	getEntityQuery = `
		MATCH (n:KGNode {id: $id})
		RETURN n.id AS id, n.entity_type AS entity_type, n.tenant_id AS tenant_id,
			n.project_key AS project_key, n.props AS props,
			n.created_at AS created_at, n.updated_at AS updated_at
	`

	listEntitiesQuery = `
		MATCH (n:KGNode)
		WHERE n.tenant_id = $tenant_id
			AND ($project_key = "" OR n.project_key = $project_key)
			AND (size($types) = 0 OR n.entity_type IN $types)
		RETURN n.id AS id, n.entity_type AS entity_type, n.tenant_id AS tenant_id,
			n.project_key AS project_key, n.props AS props,
			n.created_at AS created_at, n.updated_at AS updated_at
	`

	listEdgesQuery = `
		MATCH (a:KGNode)-[e:KGEDGE]->(b:KGNode)
		WHERE e.tenant_id = $tenant_id
			AND ($project_key = "" OR e.project_key = $project_key)
			AND (size($types) = 0 OR e.edge_type IN $types)
			AND ($source_id = "" OR a.id = $source_id)
			AND ($target_id = "" OR b.id = $target_id)
		RETURN e.id AS id, e.edge_type AS edge_type, a.id AS source_id, b.id AS target_id,
			e.tenant_id AS tenant_id, e.project_key AS project_key, e.meta AS meta
		LIMIT $limit
	`
)

var indexQueries = []string{
	"CREATE INDEX ON :KGNode(id);",
	"CREATE INDEX ON :KGNode(tenant_id);",
	"CREATE INDEX ON :KGNode(project_key);",
	"CREATE INDEX ON :KGNode(entity_type);",
}
