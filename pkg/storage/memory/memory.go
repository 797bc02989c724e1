// Package memory provides an in-memory implementation of storage.Store
// for testing and lightweight deployments. Records are lost when the
// process restarts. Optional LRU eviction bounds the number of retained
// answers; documents are never evicted, only deleted explicitly.
package memory

import (
	"container/list"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/antwort-dev/auskunft/pkg/api"
	"github.com/antwort-dev/auskunft/pkg/storage"
)

// answerEntry holds a stored answer and its metadata.
type answerEntry struct {
	ans       *api.Answer
	tenantID  string
	deletedAt *time.Time
	lruElem   *list.Element // position in LRU list
}

// documentEntry holds a stored document with its chunks.
type documentEntry struct {
	doc       *api.Document
	chunks    []storage.Chunk
	tenantID  string
	deletedAt *time.Time
}

// Store is an in-memory storage.Store with optional LRU eviction of answers.
type Store struct {
	mu        sync.RWMutex
	answers   map[string]*answerEntry
	documents map[string]*documentEntry
	lruList   *list.List // front = most recently used, back = least recently used
	maxSize   int        // 0 = unlimited
}

// Ensure Store implements storage.Store at compile time.
var _ storage.Store = (*Store)(nil)

// New creates a new in-memory store. If maxSize is 0, the answer set grows
// without limit. If maxSize > 0, the oldest answer is evicted when the
// limit is reached.
func New(maxSize int) *Store {
	return &Store{
		answers:   make(map[string]*answerEntry),
		documents: make(map[string]*documentEntry),
		lruList:   list.New(),
		maxSize:   maxSize,
	}
}

// SaveDocument persists a document and its chunks in memory.
func (s *Store) SaveDocument(ctx context.Context, doc *api.Document, chunks []storage.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.documents[doc.ID]; exists {
		return storage.ErrConflict
	}

	s.documents[doc.ID] = &documentEntry{
		doc:      doc,
		chunks:   chunks,
		tenantID: storage.GetTenant(ctx),
	}
	return nil
}

// GetDocument retrieves a document by ID. Returns ErrNotFound if the
// document does not exist or has been soft-deleted. Scoped by tenant
// when a tenant is present in the context.
func (s *Store) GetDocument(ctx context.Context, id string) (*api.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.documents[id]
	if !ok || e.deletedAt != nil {
		return nil, storage.ErrNotFound
	}
	if !visibleTo(ctx, e.tenantID) {
		return nil, storage.ErrNotFound
	}
	return e.doc, nil
}

// ListDocuments returns a paginated list of documents filtered by tenant
// and optionally by collection, with cursor-based pagination.
func (s *Store) ListDocuments(ctx context.Context, opts storage.ListOptions) (*api.DocumentList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*api.Document
	for _, e := range s.documents {
		if e.deletedAt != nil {
			continue
		}
		if !visibleTo(ctx, e.tenantID) {
			continue
		}
		if opts.Collection != "" && e.doc.Collection != opts.Collection {
			continue
		}
		matches = append(matches, e.doc)
	}

	sortByCreated(matches, opts.Order, func(d *api.Document) (int64, string) { return d.CreatedAt, d.ID })

	matches, hasMore := paginate(matches, opts, func(d *api.Document) string { return d.ID })

	result := &api.DocumentList{Object: "list", Data: make([]api.Document, 0, len(matches)), HasMore: hasMore}
	for _, d := range matches {
		result.Data = append(result.Data, *d)
	}
	if len(matches) > 0 {
		result.LastID = matches[len(matches)-1].ID
	}
	return result, nil
}

// DeleteDocument soft-deletes a document. Its chunks stop matching
// searches immediately; the record is removed for good by PurgeDeleted.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.documents[id]
	if !ok || e.deletedAt != nil {
		return storage.ErrNotFound
	}
	if !visibleTo(ctx, e.tenantID) {
		return storage.ErrNotFound
	}

	now := time.Now()
	e.deletedAt = &now
	return nil
}

// SearchChunks ranks all live chunks of the collection against the query
// embedding and returns the topK best matches.
func (s *Store) SearchChunks(ctx context.Context, collection string, embedding []float32, topK int) ([]storage.ScoredChunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var candidates []storage.ScoredChunk
	for _, e := range s.documents {
		if e.deletedAt != nil {
			continue
		}
		if !visibleTo(ctx, e.tenantID) {
			continue
		}
		if collection != "" && e.doc.Collection != collection {
			continue
		}
		for _, c := range e.chunks {
			candidates = append(candidates, storage.ScoredChunk{
				Chunk:        c,
				DocumentName: e.doc.Name,
			})
		}
	}

	return storage.RankChunks(embedding, candidates, topK), nil
}

// SaveAnswer persists an answer in memory.
func (s *Store) SaveAnswer(ctx context.Context, ans *api.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.answers[ans.ID]; exists {
		return storage.ErrConflict
	}

	// Evict if at capacity.
	if s.maxSize > 0 && len(s.answers) >= s.maxSize {
		s.evictOldest()
	}

	elem := s.lruList.PushFront(ans.ID)
	s.answers[ans.ID] = &answerEntry{
		ans:      ans,
		tenantID: storage.GetTenant(ctx),
		lruElem:  elem,
	}
	return nil
}

// UpdateAnswer replaces a previously saved answer, typically when a
// streamed answer is finalized.
func (s *Store) UpdateAnswer(ctx context.Context, ans *api.Answer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.answers[ans.ID]
	if !ok || e.deletedAt != nil {
		return storage.ErrNotFound
	}
	if !visibleTo(ctx, e.tenantID) {
		return storage.ErrNotFound
	}

	e.ans = ans
	return nil
}

// GetAnswer retrieves an answer by ID. Returns ErrNotFound if the answer
// does not exist or has been soft-deleted.
func (s *Store) GetAnswer(ctx context.Context, id string) (*api.Answer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.answers[id]
	if !ok || e.deletedAt != nil {
		return nil, storage.ErrNotFound
	}
	if !visibleTo(ctx, e.tenantID) {
		return nil, storage.ErrNotFound
	}
	return e.ans, nil
}

// ListAnswers returns a paginated list of answers filtered by tenant and
// optionally by collection or model, with cursor-based pagination.
func (s *Store) ListAnswers(ctx context.Context, opts storage.ListOptions) (*api.AnswerList, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*api.Answer
	for _, e := range s.answers {
		if e.deletedAt != nil {
			continue
		}
		if !visibleTo(ctx, e.tenantID) {
			continue
		}
		if opts.Collection != "" && e.ans.Collection != opts.Collection {
			continue
		}
		if opts.Model != "" && e.ans.Model != opts.Model {
			continue
		}
		matches = append(matches, e.ans)
	}

	sortByCreated(matches, opts.Order, func(a *api.Answer) (int64, string) { return a.CreatedAt, a.ID })

	matches, hasMore := paginate(matches, opts, func(a *api.Answer) string { return a.ID })

	result := &api.AnswerList{Object: "list", Data: make([]api.Answer, 0, len(matches)), HasMore: hasMore}
	for _, a := range matches {
		result.Data = append(result.Data, *a)
	}
	if len(matches) > 0 {
		result.LastID = matches[len(matches)-1].ID
	}
	return result, nil
}

// DeleteAnswer soft-deletes an answer.
func (s *Store) DeleteAnswer(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.answers[id]
	if !ok || e.deletedAt != nil {
		return storage.ErrNotFound
	}
	if !visibleTo(ctx, e.tenantID) {
		return storage.ErrNotFound
	}

	now := time.Now()
	e.deletedAt = &now
	return nil
}

// PurgeDeleted permanently removes records soft-deleted before olderThan.
func (s *Store) PurgeDeleted(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	purged := 0
	for id, e := range s.answers {
		if e.deletedAt != nil && e.deletedAt.Before(olderThan) {
			s.lruList.Remove(e.lruElem)
			delete(s.answers, id)
			purged++
		}
	}
	for id, e := range s.documents {
		if e.deletedAt != nil && e.deletedAt.Before(olderThan) {
			delete(s.documents, id)
			purged++
		}
	}
	return purged, nil
}

// HealthCheck always returns nil for the in-memory store.
func (s *Store) HealthCheck(_ context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Store) Close() error {
	return nil
}

// evictOldest removes the least recently used answer.
// Must be called with s.mu held.
func (s *Store) evictOldest() {
	back := s.lruList.Back()
	if back == nil {
		return
	}

	id := back.Value.(string)
	s.lruList.Remove(back)
	delete(s.answers, id)
}

// visibleTo reports whether a record owned by ownerTenant may be seen by
// the caller. An empty caller tenant means single-tenant mode: everything
// is visible.
func visibleTo(ctx context.Context, ownerTenant string) bool {
	tenantID := storage.GetTenant(ctx)
	return tenantID == "" || tenantID == ownerTenant
}

// sortByCreated orders records by creation time, newest first by default,
// with the ID as a deterministic tiebreaker.
func sortByCreated[T any](items []*T, order string, key func(*T) (int64, string)) {
	asc := order == "asc"
	sort.Slice(items, func(i, j int) bool {
		ci, idi := key(items[i])
		cj, idj := key(items[j])
		if asc {
			if ci != cj {
				return ci < cj
			}
			return idi < idj
		}
		if ci != cj {
			return ci > cj
		}
		return idi > idj
	})
}

// paginate applies the After cursor and limit to a sorted result set.
func paginate[T any](items []*T, opts storage.ListOptions, id func(*T) string) ([]*T, bool) {
	if opts.After != "" {
		idx := -1
		for i, item := range items {
			if id(item) == opts.After {
				idx = i
				break
			}
		}
		if idx >= 0 {
			items = items[idx+1:]
		} else {
			items = nil
		}
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	hasMore := len(items) > limit
	if hasMore {
		items = items[:limit]
	}
	return items, hasMore
}
