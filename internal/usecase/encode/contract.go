package encode

import "github.com/kailas-cloud/dsrank/internal/domain"

// Adapters holds the embedder used for each (role, field) pair.
// Query and document embedders of one field share an adapter and differ in truncation.
type Adapters struct {
	Query    [len(domain.Fields)]domain.Embedder
	Document [len(domain.Fields)]domain.Embedder
}

func (a Adapters) get(role domain.Role, f domain.Field) domain.Embedder {
	if role == domain.RoleQuery {
		return a.Query[f]
	}
	return a.Document[f]
}
