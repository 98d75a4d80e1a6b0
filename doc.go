// Package rankingengine implements explainable semantic search and
// session-based recommendations over a product catalog: query/product
// embeddings, a cosine vector index, a weighted linear re-ranker, a
// session-interaction store, and an offline IR evaluator.
//
// The HTTP/RPC transport, authentication, admin UI, and relational
// storage engine are external collaborators; this module only exposes
// the interfaces (repository.Repository, embedding.Provider,
// vectorindex.Index) that a host process wires up to them.
package rankingengine
