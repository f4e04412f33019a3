// Package repository persists finished harvest runs in PostgreSQL.
//
// # Overview
//
// A stored run is three tables: harvest_runs holds the run metadata,
// stream_reports holds one row per (source, disease) stream, and
// canonical_records holds the deduplicated corpus with the best and
// contributing records as JSONB.
//
// # Error Handling
//
// Methods return domain errors wrapped with fmt.Errorf and %w:
//
//   - domain.ErrNotFound: the run does not exist
//   - domain.ErrAlreadyExists: the run ID was already saved
//   - domain.ErrInvalidInput: the run ID is not a UUID
//
// # Transactions
//
// Repositories accept DBTX, so they run against the pool or inside a
// transaction from database.DB.WithTransaction.
//
//	db, _ := database.New(ctx, &cfg.Database, logger)
//	runs := repository.NewPgCorpusRepository(db)
package repository

import (
	"github.com/helixir/disease-literature-harvester/internal/database"
)

// DBTX is the database interface supporting both pool and transaction contexts.
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    return repository.NewPgCorpusRepository(tx).SaveCorpus(ctx, corpus)
//	})
type DBTX = database.DBTX

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter queries.
// It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
