package archival

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/initializ/hmm/storageerr"
	"github.com/philippgille/chromem-go"
)

const metadataKey = "hmm_metadata_json"

// ChromemStore is a Store backed by the embeddable chromem-go vector
// database, with embeddings produced by an external Embedder.
//
// chromem-go's Collection does not expose an "all documents" listing call,
// so ChromemStore keeps a lightweight insertion-ordered index alongside it
// purely to serve All(); similarity search always goes through the
// collection itself.
type ChromemStore struct {
	db             *chromem.DB
	collectionName string
	embedFunc      chromem.EmbeddingFunc
	collection     *chromem.Collection

	mu    sync.Mutex
	index []Result
}

// NewChromemStore opens (creating if necessary) a persistent chromem-go
// database at dbPath and returns a Store backed by a single collection
// named collectionName, embedding documents with embedder.
func NewChromemStore(dbPath, collectionName string, embedder Embedder) (*ChromemStore, error) {
	db, err := chromem.NewPersistentDB(dbPath, false)
	if err != nil {
		return nil, fmt.Errorf("opening archival database: %w", err)
	}

	embedFunc := func(ctx context.Context, text string) ([]float32, error) {
		vecs, err := embedder.Embed(ctx, []string{text})
		if err != nil {
			return nil, err
		}
		if len(vecs) == 0 {
			return nil, fmt.Errorf("embedder returned no vectors")
		}
		if len(vecs[0]) != embedder.Dimensions() {
			return nil, fmt.Errorf("embedding has %d dimensions, collection expects %d", len(vecs[0]), embedder.Dimensions())
		}
		return vecs[0], nil
	}

	collection, err := db.GetOrCreateCollection(collectionName, nil, embedFunc)
	if err != nil {
		return nil, fmt.Errorf("creating archival collection: %w", err)
	}

	return &ChromemStore{
		db:             db,
		collectionName: collectionName,
		embedFunc:      embedFunc,
		collection:     collection,
	}, nil
}

// Count returns the number of stored documents.
func (s *ChromemStore) Count() uint64 {
	return uint64(s.collection.Count())
}

func (s *ChromemStore) Insert(ctx context.Context, content string, metadata map[string]any) (string, error) {
	id := uuid.NewString()

	meta, err := encodeMetadata(metadata)
	if err != nil {
		return "", err
	}

	doc := chromem.Document{
		ID:       id,
		Content:  content,
		Metadata: meta,
	}
	if err := s.collection.AddDocument(ctx, doc); err != nil {
		return "", storageerr.Wrap("archival.Insert", err)
	}

	s.mu.Lock()
	s.index = append(s.index, Result{ID: id, Content: content, Metadata: metadata})
	s.mu.Unlock()

	return id, nil
}

func (s *ChromemStore) Search(ctx context.Context, query string, limit, offset int) ([]Result, error) {
	n := offset + limit
	if n <= 0 {
		return nil, nil
	}
	if n > s.collection.Count() {
		n = s.collection.Count()
	}
	if n == 0 {
		return nil, nil
	}

	results, err := s.collection.Query(ctx, query, n, nil, nil)
	if err != nil {
		return nil, storageerr.Wrap("archival.Search", err)
	}

	out := toResults(results)
	if offset >= len(out) {
		return nil, nil
	}
	end := offset + limit
	if end > len(out) {
		end = len(out)
	}
	return out[offset:end], nil
}

func (s *ChromemStore) All(_ context.Context, limit int) ([]Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := limit
	if n > len(s.index) {
		n = len(s.index)
	}
	out := make([]Result, n)
	copy(out, s.index[:n])
	return out, nil
}

// Delete removes the document with the given id from both the vector
// collection and the All()-serving index, reporting whether it existed.
func (s *ChromemStore) Delete(ctx context.Context, docID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	found := -1
	for i, r := range s.index {
		if r.ID == docID {
			found = i
			break
		}
	}
	if found == -1 {
		return false, nil
	}

	if err := s.collection.Delete(ctx, nil, nil, docID); err != nil {
		return false, storageerr.Wrap("archival.Delete", err)
	}
	s.index = append(s.index[:found], s.index[found+1:]...)
	return true, nil
}

// Clear removes every stored document by dropping and recreating the
// underlying collection.
func (s *ChromemStore) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.db.DeleteCollection(s.collectionName); err != nil {
		return storageerr.Wrap("archival.Clear", err)
	}
	collection, err := s.db.GetOrCreateCollection(s.collectionName, nil, s.embedFunc)
	if err != nil {
		return storageerr.Wrap("archival.Clear", err)
	}
	s.collection = collection
	s.index = nil
	return nil
}

func (s *ChromemStore) Close() error {
	// chromem-go persists synchronously on write; nothing to flush here.
	return nil
}

func toResults(results []chromem.Result) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		out = append(out, Result{
			ID:         r.ID,
			Content:    r.Content,
			Similarity: float64(r.Similarity),
			Metadata:   decodeMetadata(r.Metadata),
		})
	}
	return out
}

func encodeMetadata(metadata map[string]any) (map[string]string, error) {
	if len(metadata) == 0 {
		return nil, nil
	}
	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("marshalling archival metadata: %w", err)
	}
	return map[string]string{metadataKey: string(data)}, nil
}

func decodeMetadata(meta map[string]string) map[string]any {
	raw, ok := meta[metadataKey]
	if !ok || raw == "" {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil
	}
	return out
}
