package pgx

import (
	"context"
	"fmt"
	"sync"

	pgxv5 "github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/Bunka-lab/epstein-files/pkg/logger"
	"github.com/Bunka-lab/epstein-files/pkg/store"
)

const insertChunkSize = 1000

type pgxIConn interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, optionsAndArgs ...any) (pgxv5.Rows, error)
	QueryRow(ctx context.Context, sql string, optionsAndArgs ...any) pgxv5.Row
	Begin(ctx context.Context) (pgxv5.Tx, error)
}

// PipelineDBStorage implements the store.PipelineStorage interface on
// PostgreSQL. Stage writes are whole-table replacements inside a single
// transaction. A PipelineDBStorage should be created using
// NewPipelineDBStorage.
type PipelineDBStorage struct {
	conn   pgxIConn
	dbLock sync.Mutex
}

var _ store.PipelineStorage = (*PipelineDBStorage)(nil)

// NewPipelineDBStorage creates a PipelineDBStorage on an existing
// connection or pool.
func NewPipelineDBStorage(conn pgxIConn) *PipelineDBStorage {
	return &PipelineDBStorage{conn: conn}
}

// EnsureSchema creates the pipeline tables when they do not exist yet.
func (s *PipelineDBStorage) EnsureSchema(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS discussions (
			thread_id TEXT PRIMARY KEY,
			sender TEXT NOT NULL DEFAULT '',
			receiver TEXT NOT NULL DEFAULT '',
			cc TEXT NOT NULL DEFAULT '',
			body TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			run_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			raw_name TEXT NOT NULL,
			mention_count INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS identities (
			run_id TEXT NOT NULL,
			identity_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			variants JSONB NOT NULL,
			provenance JSONB NOT NULL,
			occurrences INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS edges (
			run_id TEXT NOT NULL,
			source_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			weight INTEGER NOT NULL,
			examples JSONB NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS nodes (
			run_id TEXT NOT NULL,
			identity_id TEXT NOT NULL,
			display_name TEXT NOT NULL,
			occurrences INTEGER NOT NULL,
			degree INTEGER NOT NULL,
			weighted_degree INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS communities (
			run_id TEXT NOT NULL,
			community_id TEXT NOT NULL,
			members JSONB NOT NULL,
			generation INTEGER NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS classification_runs (
			run_id TEXT PRIMARY KEY,
			run_type TEXT NOT NULL,
			inputs JSONB NOT NULL,
			outputs JSONB NOT NULL,
			created_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.conn.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to ensure schema: %w", err)
		}
	}
	return nil
}

// replaceTable deletes every row of the table and inserts the given rows
// in one transaction, batched to keep statements bounded.
func (s *PipelineDBStorage) replaceTable(ctx context.Context, table, insertSQL string, rows [][]any) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	tx, err := s.conn.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, "DELETE FROM "+table); err != nil {
		return fmt.Errorf("failed to clear %s: %w", table, err)
	}

	err = store.ChunkRange(len(rows), insertChunkSize, func(start, end int) error {
		batch := &pgxv5.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(insertSQL, row...)
		}
		results := tx.SendBatch(ctx, batch)
		for range rows[start:end] {
			if _, err := results.Exec(); err != nil {
				results.Close()
				return fmt.Errorf("failed to insert into %s: %w", table, err)
			}
		}
		return results.Close()
	})
	if err != nil {
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit %s replacement: %w", table, err)
	}
	logger.Info("[Store] table replaced", "table", table, "rows", len(rows))
	return nil
}
