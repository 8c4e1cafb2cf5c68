package service

import (
	"context"

	"github.com/craftflow/mes-api/internal/auth"
	"github.com/craftflow/mes-api/internal/domain"
	"github.com/craftflow/mes-api/internal/repository"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// RelationService maintains the append-only document traceability
// graph. Edges are never deleted; a wrong edge is countered with a
// reversal edge, and any edge that would close a cycle is refused.
type RelationService struct {
	repo   *repository.RelationRepository
	logger *zap.Logger
}

// NewRelationService creates a new RelationService
func NewRelationService(repo *repository.RelationRepository, logger *zap.Logger) *RelationService {
	return &RelationService{
		repo:   repo,
		logger: logger,
	}
}

// Record appends one edge after checking it keeps the graph acyclic.
func (s *RelationService) Record(ctx context.Context, req *domain.RecordEdgeRequest) (*domain.DocumentRelation, error) {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	kind := req.Kind
	if kind == "" {
		kind = domain.RelationKindGenerated
	}

	edge := &domain.DocumentRelation{
		TenantID:   user.TenantID,
		SourceType: req.SourceType,
		SourceID:   req.SourceID,
		TargetType: req.TargetType,
		TargetID:   req.TargetID,
		Kind:       kind,
		CreatedBy:  user.UserID,
	}

	if err := s.record(ctx, nil, user.TenantID, edge); err != nil {
		return nil, err
	}
	return edge, nil
}

// RecordTx appends an edge inside an enclosing transaction. Used by the
// computation and document-generation pipelines.
func (s *RelationService) RecordTx(ctx context.Context, tx *gorm.DB, edge *domain.DocumentRelation) error {
	user, ok := auth.FromContext(ctx)
	if !ok {
		return ErrNoTenant
	}
	edge.TenantID = user.TenantID
	if edge.Kind == "" {
		edge.Kind = domain.RelationKindGenerated
	}
	if edge.CreatedBy == "" {
		edge.CreatedBy = user.UserID
	}
	return s.record(ctx, tx, user.TenantID, edge)
}

func (s *RelationService) record(ctx context.Context, tx *gorm.DB, tenantID uint, edge *domain.DocumentRelation) error {
	if edge.SourceType == edge.TargetType && edge.SourceID == edge.TargetID {
		return domain.NewBusinessLogic("a document cannot relate to itself")
	}

	exists, err := s.repo.Exists(ctx, tenantID, edge)
	if err != nil {
		return err
	}
	if exists {
		return domain.NewBusinessLogic("relation edge already recorded")
	}

	// Reversal edges intentionally run against the flow and are exempt
	// from the cycle check.
	if edge.Kind != domain.RelationKindReversal {
		cyclic, err := s.wouldCycle(ctx, tenantID, edge)
		if err != nil {
			return err
		}
		if cyclic {
			return domain.NewBusinessLogic("relation edge would create a cycle").
				WithDetail("source", string(edge.SourceType)).
				WithDetail("target", string(edge.TargetType))
		}
	}

	return s.repo.Create(ctx, tx, edge)
}

type graphNode struct {
	docType domain.DocumentType
	docID   uint
}

// wouldCycle walks the existing graph from the new edge's target with
// BFS; reaching the source means the edge closes a loop.
func (s *RelationService) wouldCycle(ctx context.Context, tenantID uint, edge *domain.DocumentRelation) (bool, error) {
	relations, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return false, err
	}

	adjacency := make(map[graphNode][]graphNode)
	for _, rel := range relations {
		if rel.Kind == domain.RelationKindReversal {
			continue
		}
		from := graphNode{rel.SourceType, rel.SourceID}
		adjacency[from] = append(adjacency[from], graphNode{rel.TargetType, rel.TargetID})
	}

	source := graphNode{edge.SourceType, edge.SourceID}
	start := graphNode{edge.TargetType, edge.TargetID}

	visited := map[graphNode]bool{}
	queue := []graphNode{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if current == source {
			return true, nil
		}
		if visited[current] {
			continue
		}
		visited[current] = true
		queue = append(queue, adjacency[current]...)
	}
	return false, nil
}

// Downstream lists direct successors of a document.
func (s *RelationService) Downstream(ctx context.Context, docType domain.DocumentType, docID uint) ([]domain.DocumentRelation, error) {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.repo.ListDownstream(ctx, tenantID, docType, docID)
}

// Upstream lists direct predecessors of a document.
func (s *RelationService) Upstream(ctx context.Context, docType domain.DocumentType, docID uint) ([]domain.DocumentRelation, error) {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}
	return s.repo.ListUpstream(ctx, tenantID, docType, docID)
}

// TraceChain walks upstream from a document to its roots and back down,
// producing the full source chain ordered root-first. Reversal edges
// are excluded from the walk.
func (s *RelationService) TraceChain(ctx context.Context, docType domain.DocumentType, docID uint) ([]domain.ChainNode, error) {
	tenantID, ok := auth.TenantFromContext(ctx)
	if !ok {
		return nil, ErrNoTenant
	}

	relations, err := s.repo.ListByTenant(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	parents := make(map[graphNode][]graphNode)
	children := make(map[graphNode][]graphNode)
	kinds := make(map[[2]graphNode]domain.RelationKind)
	for _, rel := range relations {
		if rel.Kind == domain.RelationKindReversal {
			continue
		}
		from := graphNode{rel.SourceType, rel.SourceID}
		to := graphNode{rel.TargetType, rel.TargetID}
		children[from] = append(children[from], to)
		parents[to] = append(parents[to], from)
		kinds[[2]graphNode{from, to}] = rel.Kind
	}

	// Climb to the roots.
	start := graphNode{docType, docID}
	if len(parents[start]) == 0 && len(children[start]) == 0 {
		return nil, domain.NewNotFound("document chain")
	}
	roots := []graphNode{}
	visited := map[graphNode]bool{}
	queue := []graphNode{start}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		if visited[current] {
			continue
		}
		visited[current] = true
		if len(parents[current]) == 0 {
			roots = append(roots, current)
			continue
		}
		queue = append(queue, parents[current]...)
	}

	// Descend from the roots collecting the chain in depth order.
	var chain []domain.ChainNode
	visited = map[graphNode]bool{}
	type depthNode struct {
		node  graphNode
		depth int
		kind  domain.RelationKind
	}
	dq := make([]depthNode, 0, len(roots))
	for _, root := range roots {
		dq = append(dq, depthNode{node: root})
	}
	for len(dq) > 0 {
		current := dq[0]
		dq = dq[1:]
		if visited[current.node] {
			continue
		}
		visited[current.node] = true
		chain = append(chain, domain.ChainNode{
			DocumentType: current.node.docType,
			DocumentID:   current.node.docID,
			Depth:        current.depth,
			Kind:         current.kind,
		})
		for _, child := range children[current.node] {
			dq = append(dq, depthNode{
				node:  child,
				depth: current.depth + 1,
				kind:  kinds[[2]graphNode{current.node, child}],
			})
		}
	}

	if len(chain) == 0 {
		return nil, domain.NewNotFound("document chain")
	}
	return chain, nil
}
