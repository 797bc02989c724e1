// Package sqlite provides a single-file SQLite implementation of
// storage.Store, suitable for single-node deployments that need
// persistence without running a database server. It uses the pure-Go
// modernc.org/sqlite driver, stores structured columns as JSON text,
// and encodes chunk embeddings as little-endian float32 blobs.
// Similarity ranking happens in process with the shared cosine helper.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// Store is a SQLite-backed storage.Store.
type Store struct {
	db *sql.DB
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
    id          TEXT PRIMARY KEY,
    tenant_id   TEXT NOT NULL DEFAULT '',
    name        TEXT NOT NULL DEFAULT '',
    collection  TEXT NOT NULL DEFAULT 'default',
    chunk_count INTEGER NOT NULL DEFAULT 0,
    enriched    INTEGER NOT NULL DEFAULT 0,
    metadata    TEXT,
    created_at  INTEGER NOT NULL,
    deleted_at  INTEGER
);

CREATE INDEX IF NOT EXISTS idx_documents_tenant_collection
    ON documents (tenant_id, collection);

CREATE TABLE IF NOT EXISTS chunks (
    id          TEXT PRIMARY KEY,
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    tenant_id   TEXT NOT NULL DEFAULT '',
    collection  TEXT NOT NULL DEFAULT 'default',
    seq         INTEGER NOT NULL,
    content     TEXT NOT NULL,
    summary     TEXT NOT NULL DEFAULT '',
    embedding   BLOB
);

CREATE INDEX IF NOT EXISTS idx_chunks_tenant_collection
    ON chunks (tenant_id, collection);

CREATE TABLE IF NOT EXISTS answers (
    id                      TEXT PRIMARY KEY,
    tenant_id               TEXT NOT NULL DEFAULT '',
    status                  TEXT NOT NULL,
    question                TEXT NOT NULL,
    answer_text             TEXT NOT NULL DEFAULT '',
    model                   TEXT NOT NULL DEFAULT '',
    backend                 TEXT NOT NULL DEFAULT '',
    collection              TEXT NOT NULL DEFAULT '',
    sources                 TEXT,
    usage_prompt_tokens     INTEGER NOT NULL DEFAULT 0,
    usage_completion_tokens INTEGER NOT NULL DEFAULT 0,
    usage_total_tokens      INTEGER NOT NULL DEFAULT 0,
    error                   TEXT,
    metadata                TEXT,
    created_at              INTEGER NOT NULL,
    completed_at            INTEGER,
    deleted_at              INTEGER
);

CREATE INDEX IF NOT EXISTS idx_answers_tenant_created
    ON answers (tenant_id, created_at DESC);
`

// New opens (or creates) the database file and ensures the schema exists.
func New(ctx context.Context, cfg Config) (*Store, error) {
	cfg.defaults()

	dsn := cfg.Path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// SQLite allows a single writer; serializing through one connection
	// avoids SQLITE_BUSY errors under concurrent writes.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	return &Store{db: db}, nil
}

// SaveDocument persists a document and its chunks in one transaction.
func (s *Store) SaveDocument(ctx context.Context, doc *api.Document, chunks []storage.Chunk) error {
	tenantID := storage.GetTenant(ctx)

	metadataJSON, err := marshalOrNil(doc.Metadata, len(doc.Metadata) > 0)
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, tenant_id, name, collection, chunk_count, enriched, metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
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

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, document_id, tenant_id, collection, seq, content, summary, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("preparing chunk insert: %w", err)
	}
	defer stmt.Close()

	for _, c := range chunks {
		if _, err := stmt.ExecContext(ctx, c.ID, doc.ID, tenantID, doc.Collection,
			c.Seq, c.Text, c.Summary, encodeEmbedding(c.Embedding)); err != nil {
			return fmt.Errorf("inserting chunk: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing document: %w", err)
	}
	return nil
}

// GetDocument retrieves a document by ID, excluding soft-deleted ones.
func (s *Store) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	query := `
		SELECT id, name, collection, chunk_count, enriched, metadata, created_at
		FROM documents
		WHERE id = ? AND deleted_at IS NULL
	`
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	var doc api.Document
	var metadataJSON []byte
	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&doc.ID, &doc.Name, &doc.Collection, &doc.ChunkCount, &doc.Enriched,
		&metadataJSON, &doc.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
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

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}
	if opts.Collection != "" {
		query += " AND collection = ?"
		args = append(args, opts.Collection)
	}

	asc := opts.Order == "asc"
	if opts.After != "" {
		cmp := "<"
		if asc {
			cmp = ">"
		}
		query += fmt.Sprintf(" AND (created_at, id) %s (SELECT created_at, id FROM documents WHERE id = ?)", cmp)
		args = append(args, opts.After)
	}

	limit := clampLimit(opts.Limit)
	if asc {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += " LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query := "UPDATE documents SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL"
	args := []any{time.Now().Unix(), id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting document: %w", err)
	}
	if affected == 0 {
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

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND c.tenant_id = ?"
		args = append(args, tenantID)
	}
	if collection != "" {
		query += " AND c.collection = ?"
		args = append(args, collection)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying chunks: %w", err)
	}
	defer rows.Close()

	var candidates []storage.ScoredChunk
	for rows.Next() {
		var sc storage.ScoredChunk
		var blob []byte
		if err := rows.Scan(&sc.Chunk.ID, &sc.Chunk.DocumentID, &sc.DocumentName,
			&sc.Chunk.Collection, &sc.Chunk.Seq, &sc.Chunk.Text, &sc.Chunk.Summary,
			&blob); err != nil {
			return nil, fmt.Errorf("scanning chunk: %w", err)
		}
		sc.Chunk.Embedding = decodeEmbedding(blob)
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

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO answers (
			id, tenant_id, status, question, answer_text, model, backend, collection,
			sources, usage_prompt_tokens, usage_completion_tokens, usage_total_tokens,
			error, metadata, created_at, completed_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
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
			status = ?, answer_text = ?, sources = ?,
			usage_prompt_tokens = ?, usage_completion_tokens = ?, usage_total_tokens = ?,
			error = ?, metadata = ?, completed_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	args := []any{
		string(ans.Status), ans.Text, row.sources,
		row.promptTokens, row.completionTokens, row.totalTokens,
		row.errorJSON, row.metadata, ans.CompletedAt, ans.ID,
	}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating answer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating answer: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// GetAnswer retrieves an answer by ID, excluding soft-deleted ones.
func (s *Store) GetAnswer(ctx context.Context, id string) (*api.Answer, error) {
	query := answerSelect + " WHERE id = ? AND deleted_at IS NULL"
	args := []any{id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	ans, err := scanAnswer(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
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

	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}
	if opts.Collection != "" {
		query += " AND collection = ?"
		args = append(args, opts.Collection)
	}
	if opts.Model != "" {
		query += " AND model = ?"
		args = append(args, opts.Model)
	}

	asc := opts.Order == "asc"
	if opts.After != "" {
		cmp := "<"
		if asc {
			cmp = ">"
		}
		query += fmt.Sprintf(" AND (created_at, id) %s (SELECT created_at, id FROM answers WHERE id = ?)", cmp)
		args = append(args, opts.After)
	}

	limit := clampLimit(opts.Limit)
	if asc {
		query += " ORDER BY created_at ASC, id ASC"
	} else {
		query += " ORDER BY created_at DESC, id DESC"
	}
	query += " LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
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
	query := "UPDATE answers SET deleted_at = ? WHERE id = ? AND deleted_at IS NULL"
	args := []any{time.Now().Unix(), id}
	if tenantID := storage.GetTenant(ctx); tenantID != "" {
		query += " AND tenant_id = ?"
		args = append(args, tenantID)
	}

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("deleting answer: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting answer: %w", err)
	}
	if affected == 0 {
		return storage.ErrNotFound
	}
	return nil
}

// PurgeDeleted permanently removes records soft-deleted before olderThan.
// Chunks of purged documents go with them via the foreign key cascade.
func (s *Store) PurgeDeleted(ctx context.Context, olderThan time.Time) (int, error) {
	purged := 0
	cutoff := olderThan.Unix()

	result, err := s.db.ExecContext(ctx,
		"DELETE FROM answers WHERE deleted_at IS NOT NULL AND deleted_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("purging answers: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		purged += int(n)
	}

	result, err = s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE deleted_at IS NOT NULL AND deleted_at < ?", cutoff)
	if err != nil {
		return purged, fmt.Errorf("purging documents: %w", err)
	}
	if n, err := result.RowsAffected(); err == nil {
		purged += int(n)
	}

	return purged, nil
}

// HealthCheck verifies the database connection.
func (s *Store) HealthCheck(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

const answerSelect = `
	SELECT id, status, question, answer_text, model, backend, collection,
	       sources, usage_prompt_tokens, usage_completion_tokens, usage_total_tokens,
	       error, metadata, created_at, completed_at
	FROM answers
`

// answerRow holds the marshaled JSON columns and usage counters of one
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

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanAnswer reads one answers row.
func scanAnswer(row rowScanner) (*api.Answer, error) {
	var ans api.Answer
	var status string
	var sourcesJSON, errorJSON, metadataJSON []byte
	var promptTokens, completionTokens, totalTokens int
	var completedAt sql.NullInt64

	err := row.Scan(
		&ans.ID, &status, &ans.Question, &ans.Text, &ans.Model, &ans.Backend, &ans.Collection,
		&sourcesJSON, &promptTokens, &completionTokens, &totalTokens,
		&errorJSON, &metadataJSON, &ans.CreatedAt, &completedAt,
	)
	if err != nil {
		return nil, err
	}

	ans.Object = "answer"
	ans.Status = api.AnswerStatus(status)
	if completedAt.Valid {
		ans.CompletedAt = &completedAt.Int64
	}
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

// encodeEmbedding packs a vector as little-endian float32 bytes.
func encodeEmbedding(v []float32) []byte {
	if len(v) == 0 {
		return nil
	}
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeEmbedding unpacks a little-endian float32 blob. Trailing bytes
// that don't fill a full float are ignored.
func decodeEmbedding(b []byte) []float32 {
	if len(b) < 4 {
		return nil
	}
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

// marshalOrNil marshals v when present is true, otherwise returns nil for
// a NULL column.
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

// isDuplicateKey checks for a SQLite unique constraint violation.
func isDuplicateKey(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
