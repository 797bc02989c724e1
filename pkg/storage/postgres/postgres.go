// Package postgres provides a PostgreSQL implementation of storage.Store.
// It uses pgx/v5 for connection pooling, JSONB for structured columns, and
// float4 arrays for chunk embeddings. Similarity ranking happens in
// process: candidate chunks are fetched per collection and scored with the
// shared cosine helper, which keeps the schema free of vector extensions.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// Store is a PostgreSQL-backed storage.Store.
type Store struct {
	pool *pgxpool.Pool
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new PostgreSQL store with the given configuration.
// If MigrateOnStart is true, schema migrations are applied automatically.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parsing DSN: %w", err)
	}

	poolCfg.MaxConns = cfg.MaxConns
	poolCfg.MinConns = cfg.MinConns
	poolCfg.MaxConnLifetime = cfg.MaxConnLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	// Verify connectivity.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("connecting to database: %w", err)
	}

	s := &Store{pool: pool}

	if cfg.MigrateOnStart {
		if err := s.migrate(ctx); err != nil {
			pool.Close()
			return nil, fmt.Errorf("running migrations: %w", err)
		}
	}

	return s, nil
}

// SaveDocument persists a document and its chunks in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc *api.Document, chunks []storage.Chunk) error {
	tenantID := storage.GetTenant(ctx)

	metadataJSON, err := marshalOrNil(doc.Metadata, len(doc.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO documents (id, tenant_id, name, collection, chunk_count, enriched, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`,
		doc.ID, tenantID, doc.Name, doc.Collection, doc.ChunkCount, doc.Enriched,
		metadataJSON, doc.CreatedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting document: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, tenant_id, collection, seq, content, summary, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, c.ID, doc.ID, tenantID, doc.Collection, c.Seq, c.Text, c.Summary, c.Embedding)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("inserting chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID, excluding soft-deleted ones.
func (s *Store) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	query := `
		SELECT id, name, collection, chunk_count, enriched, metadata, created_at
		FROM documents
		WHERE id = $1 AND deleted_at IS NULL
	`
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	var doc api.Document
	var metadataJSON []byte
	err := s.pool.QueryRow(ctx, query, args...).Scan(
		&doc.ID, &doc.Name, &doc.Collection, &doc.ChunkCount, &doc.Enriched,
		&metadataJSON, &doc.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying document: %w", err)
	}

	doc.Object = "document"
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}
	return &doc, nil
}

// ListDocuments returns a paginated list of documents.
func (s *Store) ListDocuments(ctx context.Context, opts storage.ListOptions) (*api.DocumentList, error) {
	query := `
		SELECT id, name, collection, chunk_count, enriched, metadata, created_at
		FROM documents
		WHERE deleted_at IS NULL
	`
	var args []any
	argIdx := 1

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, tenantID)
		argIdx++
	}
	if opts.Collection != "" {
		query += fmt.Sprintf(" AND collection = $%d", argIdx)
		args = append(args, opts.Collection)
		argIdx++
	}

	asc := opts.Order == "asc"
	if opts.After != "" {
		cmp := "<"
		if asc {
			cmp = ">"
		}
		query += fmt.Sprintf(" AND (created_at, id) %s (SELECT created_at, id FROM documents WHERE id = $%d)", cmp, argIdx)
		args = append(args, opts.After)
		argIdx++
	}

	limit := clampLimit(opts.Limit)
	if asc {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	docs := []api.Document{}
	for rows.Next() {
		var doc api.Document
		var metadataJSON []byte
		if err := rows.Scan(&doc.ID, &doc.Name, &doc.Collection, &doc.ChunkCount,
			&doc.Enriched, &metadataJSON, &doc.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		doc.Object = "document"
		if metadataJSON != nil {
			if err := json.Unmarshal(metadataJSON, &doc.Metadata); err != nil {
				return nil, fmt.Errorf("unmarshaling metadata: %w", err)
			}
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	hasMore := len(docs) > limit
	if hasMore {
		docs = docs[:limit]
	}

	result := &api.DocumentList{Object: "list", Data: docs, HasMore: hasMore}
	if len(docs) > 0 {
		result.LastID = docs[len(docs)-1].ID
	}
	return result, nil
}

// DeleteDocument soft-deletes a document by setting deleted_at. Its chunks
// stop matching searches immediately through the join on the parent row.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	query := "UPDATE documents SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL"
	args := []any{time.Now(), id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// SearchChunks fetches the collection's live chunks and ranks them in
// process against the query embedding.
func (s *Store) SearchChunks(ctx context.Context, collection string, embedding []float32, topK int) ([]storage.ScoredChunk, error) {
	query := `
		SELECT c.id, c.document_id, d.name, c.collection, c.seq, c.content, c.summary, c.embedding
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.deleted_at IS NULL
	`
	var args []any
	argIdx := 1

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += fmt.Sprintf(" AND c.tenant_id = $%d", argIdx)
		args = append(args, tenantID)
		argIdx++
	}
	if collection != "" {
		query += fmt.Sprintf(" AND c.collection = $%d", argIdx)
		args = append(args, collection)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []storage.ScoredChunk
	for rows.Next() {
		var sc storage.ScoredChunk
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.DocumentName,
			&sc.Chunk.Collection, &sc.Chunk.Seq, &sc.Chunk.Text, &sc.Chunk.Summary,
			&sc.Chunk.Embedding); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		candidates = append(candidates, sc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}

	return storage.RankChunks(embedding, candidates, topK), nil
}

// SaveAnswer persists a new answer record.
func (s *Store) SaveAnswer(ctx context.Context, ans *api.Answer) error {
	row, err := newAnswerRow(ans)
	if err != nil {
		return err
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO answers (
			id, tenant_id, status, question, answer_text, model, backend, collection,
			sources, usage_prompt_tokens, usage_completion_tokens, usage_total_tokens,
			error, metadata, created_at, completed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
	`, ans.ID, storage.GetTenant(ctx), string(ans.Status), ans.Question, ans.Text,
		ans.Model, ans.Backend, ans.Collection,
		row.sources, row.promptTokens, row.completionTokens, row.totalTokens,
		row.errorJSON, row.metadata, ans.CreatedAt, ans.CompletedAt,
	)
	if err != nil {
		if isDuplicateKey(err) {
			return storage.ErrConflict
		}
		return fmt.Errorf("inserting answer: %w", err)
	}
	return nil
}

// UpdateAnswer replaces a previously saved answer.
func (s *Store) UpdateAnswer(ctx context.Context, ans *api.Answer) error {
	row, err := newAnswerRow(ans)
	if err != nil {
		return err
	}

	query := `
		UPDATE answers SET
			status = $1, answer_text = $2, sources = $3,
			usage_prompt_tokens = $4, usage_completion_tokens = $5, usage_total_tokens = $6,
			error = $7, metadata = $8, completed_at = $9
		WHERE id = $10 AND deleted_at IS NULL
	`
	args := []any{
		string(ans.Status), ans.Text, row.sources,
		row.promptTokens, row.completionTokens, row.totalTokens,
		row.errorJSON, row.metadata, ans.CompletedAt, ans.ID,
	}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $11"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating answer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAnswer retrieves an answer by ID, excluding soft-deleted ones.
func (s *Store) GetAnswer(ctx context.Context, id string) (*api.Answer, error) {
	query := answerSelect + " WHERE id = $1 AND deleted_at IS NULL"
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $2"
		args = append(args, tenantID)
	}

	ans, err := scanAnswer(s.pool.QueryRow(ctx, query, args...))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return ans, nil
}

// ListAnswers returns a paginated list of answers.
func (s *Store) ListAnswers(ctx context.Context, opts storage.ListOptions) (*api.AnswerList, error) {
	query := answerSelect + " WHERE deleted_at IS NULL"
	var args []any
	argIdx := 1

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += fmt.Sprintf(" AND tenant_id = $%d", argIdx)
		args = append(args, tenantID)
		argIdx++
	}
	if opts.Collection != "" {
		query += fmt.Sprintf(" AND collection = $%d", argIdx)
		args = append(args, opts.Collection)
		argIdx++
	}
	if opts.Model != "" {
		query += fmt.Sprintf(" AND model = $%d", argIdx)
		args = append(args, opts.Model)
		argIdx++
	}

	asc := opts.Order == "asc"
	if opts.After != "" {
		cmp := "<"
		if asc {
			cmp = ">"
		}
		query += fmt.Sprintf(" AND (created_at, id) %s (SELECT created_at, id FROM answers WHERE id = $%d)", cmp, argIdx)
		args = append(args, opts.After)
		argIdx++
	}

	limit := clampLimit(opts.Limit)
	if asc {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, limit+1)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}
	defer rows.Close()

	answers := []api.Answer{}
	for rows.Next() {
		ans, err := scanAnswer(rows)
		if err != nil {
			return nil, err
		}
		answers = append(answers, *ans)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing answers: %w", err)
	}

	hasMore := len(answers) > limit
	if hasMore {
		answers = answers[:limit]
	}

	result := &api.AnswerList{Object: "list", Data: answers, HasMore: hasMore}
	if len(answers) > 0 {
		result.LastID = answers[len(answers)-1].ID
	}
	return result, nil
}

// DeleteAnswer soft-deletes an answer by setting deleted_at.
func (s *Store) DeleteAnswer(ctx context.Context, id string) error {
	query := "UPDATE answers SET deleted_at = $1 WHERE id = $2 AND deleted_at IS NULL"
	args := []any{time.Now(), id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = $3"
		args = append(args, tenantID)
	}

	result, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting answer: %w", err)
	}
	if result.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PurgeDeleted permanently removes records soft-deleted before olderThan.
// Chunks of purged documents go with them via the foreign key cascade.
func (s *Store) PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error) {
	purged := 0

	result, err := s.pool.Exec(ctx,
		"DELETE FROM answers WHERE deleted_at IS NOT NULL AND deleted_at < $1", olderThan)
	if err != nil {
		return 0, fmt.Errorf("purging answers: %w", err)
	}
	purged += int(result.RowsAffected())

	result, err = s.pool.Exec(ctx,
		"DELETE FROM documents WHERE deleted_at IS NOT NULL AND deleted_at < $1", olderThan)
	if err != nil {
		return purged, fmt.Errorf("purging documents: %w", err)
	}
	purged += int(result.RowsAffected())

	return purged, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Store) Close() error {
	s.pool.Close()
	return nil
}

const answerSelect = `
	SELECT id, status, question, answer_text, model, backend, collection,
	       sources, usage_prompt_tokens, usage_completion_tokens, usage_total_tokens,
	       error, metadata, created_at, completed_at
	FROM answers
`

// answerRow holds the marshaled JSONB columns and usage counters of one
// answers row.
type answerRow struct {
	sources          []byte
	errorJSON        []byte
	metadata         []byte
	promptTokens     int
	completionTokens int
	totalTokens      int
}

func newAnswerRow(ans *api.Answer) (*answerRow, error) {
	var row answerRow
	var err error

	row.sources, err = marshalOrNil(ans.Sources, len(ans.Sources) > 0)
	if err != nil {
		return nil, fmt.Errorf("marshaling sources: %w", err)
	}
	row.errorJSON, err = marshalOrNil(ans.Error, ans.Error != nil)
	if err != nil {
		return nil, fmt.Errorf("marshaling error: %w", err)
	}
	row.metadata, err = marshalOrNil(ans.Metadata, len(ans.Metadata) > 0)
	if err != nil {
		return nil, fmt.Errorf("marshaling metadata: %w", err)
	}

	if ans.Usage != nil {
		row.promptTokens = ans.Usage.PromptTokens
		row.completionTokens = ans.Usage.CompletionTokens
		row.totalTokens = ans.Usage.TotalTokens
	}
	return &row, nil
}

// scanAnswer reads one answers row from a pgx row scanner.
func scanAnswer(row pgx.Row) (*api.Answer, error) {
	var ans api.Answer
	var status string
	var sourcesJSON, errorJSON, metadataJSON []byte
	var promptTokens, completionTokens, totalTokens int

	err := row.Scan(
		&ans.ID, &status, &ans.Question, &ans.Text, &ans.Model, &ans.Backend, &ans.Collection,
		&sourcesJSON, &promptTokens, &completionTokens, &totalTokens,
		&errorJSON, &metadataJSON, &ans.CreatedAt, &ans.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	ans.Object = "answer"
	ans.Status = api.AnswerStatus(status)
	ans.Sources = []api.Source{}
	if sourcesJSON != nil {
		if err := json.Unmarshal(sourcesJSON, &ans.Sources); err != nil {
			return nil, fmt.Errorf("unmarshaling sources: %w", err)
		}
	}
	if errorJSON != nil {
		var apiErr api.APIError
		if err := json.Unmarshal(errorJSON, &apiErr); err == nil {
			ans.Error = &apiErr
		}
	}
	if metadataJSON != nil {
		if err := json.Unmarshal(metadataJSON, &ans.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshaling metadata: %w", err)
		}
	}

	ans.Usage = &api.Usage{
		PromptTokens:     promptTokens,
		CompletionTokens: completionTokens,
		TotalTokens:      totalTokens,
	}
	return &ans, nil
}

// marshalOrNil marshals v when present is true, otherwise returns nil for
// a NULL JSONB column.
func marshalOrNil(v any, present bool) ([]byte, error) {
	if !present {
		return nil, nil
	}
	return json.Marshal(v)
}

// clampLimit applies the default and maximum page size.
func clampLimit(limit int) int {
	if limit <= 0 {
		return 20
	}
	if limit > 100 {
		return 100
	}
	return limit
}

// isDuplicateKey checks if the error is a PostgreSQL unique violation (23505).
func isDuplicateKey(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
