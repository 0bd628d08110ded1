package index_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/compliance-auditor/internal/index"
	"github.com/verityhq/compliance-auditor/internal/models"
)

type memRegistry struct {
	docs map[string]models.Document
}

func (r *memRegistry) key(docType, docID string) string { return docType + "/" + docID }

func (r *memRegistry) Put(_ context.Context, doc models.Document) error {
	r.docs[r.key(doc.Type, doc.ID)] = doc
	return nil
}

func (r *memRegistry) Get(_ context.Context, docType, docID string) (models.Document, bool, error) {
	doc, ok := r.docs[r.key(docType, docID)]
	return doc, ok, nil
}

func (r *memRegistry) Documents(_ context.Context, docType string) ([]models.Document, error) {
	var docs []models.Document
	for _, doc := range r.docs {
		if doc.Type == docType {
			docs = append(docs, doc)
		}
	}
	return docs, nil
}

func (r *memRegistry) Delete(_ context.Context, docType, docID string) error {
	delete(r.docs, r.key(docType, docID))
	return nil
}

type memVectors struct {
	collections map[string]int
	points      map[string][]models.Point
	searchHits  []models.SearchResult

	deletedDocs []string
}

func (v *memVectors) EnsureCollection(_ context.Context, name string, dimension int) error {
	v.collections[name] = dimension
	return nil
}

func (v *memVectors) Upsert(_ context.Context, collection string, points []models.Point) error {
	v.points[collection] = append(v.points[collection], points...)
	return nil
}

func (v *memVectors) Search(_ context.Context, _ string, _ []float32, _ int, _ []string) ([]models.SearchResult, error) {
	return v.searchHits, nil
}

func (v *memVectors) DeleteByDoc(_ context.Context, collection, docID string) error {
	v.deletedDocs = append(v.deletedDocs, collection+"/"+docID)
	kept := v.points[collection][:0]
	for _, p := range v.points[collection] {
		if p.DocID != docID {
			kept = append(kept, p)
		}
	}
	v.points[collection] = kept
	return nil
}

type fixedEmbedder struct{}

func (fixedEmbedder) Embed(_ context.Context, _ string) ([]float32, error) {
	return []float32{0.1, 0.2, 0.3}, nil
}

func newTestLibrary(t *testing.T) (*index.Library, *memRegistry, *memVectors) {
	t.Helper()
	registry := &memRegistry{docs: map[string]models.Document{}}
	vectors := &memVectors{collections: map[string]int{}, points: map[string][]models.Point{}}
	chunker, err := index.NewChunker(50, 10)
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lib, err := index.NewLibrary(context.Background(), registry, vectors, fixedEmbedder{}, chunker, 3, logger)
	require.NoError(t, err)
	return lib, registry, vectors
}

func writeDoc(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0600))
	return path
}

func TestNewLibraryEnsuresCollections(t *testing.T) {
	_, _, vectors := newTestLibrary(t)
	assert.Equal(t, 3, vectors.collections[index.CollectionRegulations])
	assert.Equal(t, 3, vectors.collections[index.CollectionCompanyDocs])
}

func TestAddFile(t *testing.T) {
	lib, registry, vectors := newTestLibrary(t)

	path := writeDoc(t, "retention-policy.txt",
		"All records are retained for seven years. Deletion requests are honored within thirty days.")

	doc, err := lib.AddFile(context.Background(), path, models.DocTypeCompanyDoc)
	require.NoError(t, err)

	assert.Equal(t, "retention-policy", doc.ID)
	assert.Equal(t, models.DocTypeCompanyDoc, doc.Type)
	assert.Greater(t, doc.Chunks, 0)

	stored, ok, err := registry.Get(context.Background(), models.DocTypeCompanyDoc, "retention-policy")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, doc.Chunks, stored.Chunks)

	points := vectors.points[index.CollectionCompanyDocs]
	require.Len(t, points, doc.Chunks)
	for i, p := range points {
		assert.Equal(t, "retention-policy", p.DocID)
		assert.Equal(t, i, p.ChunkIndex)
		assert.NotEmpty(t, p.ID)
		assert.NotEmpty(t, p.Text)
	}
}

func TestAddFileReplacesExisting(t *testing.T) {
	lib, _, vectors := newTestLibrary(t)

	path := writeDoc(t, "policy.txt", "First version of the policy text.")
	_, err := lib.AddFile(context.Background(), path, models.DocTypeRegulation)
	require.NoError(t, err)

	path = writeDoc(t, "policy.txt", "Second version with different wording entirely.")
	_, err = lib.AddFile(context.Background(), path, models.DocTypeRegulation)
	require.NoError(t, err)

	// The first upload's points were dropped before the second was written.
	assert.Contains(t, vectors.deletedDocs, index.CollectionRegulations+"/policy")
	for _, p := range vectors.points[index.CollectionRegulations] {
		assert.Contains(t, "Second version with different wording entirely.", p.Text)
	}
}

func TestAddFileInvalidType(t *testing.T) {
	lib, _, _ := newTestLibrary(t)

	path := writeDoc(t, "doc.txt", "content")
	_, err := lib.AddFile(context.Background(), path, "contracts")
	assert.Error(t, err)
}

func TestListAndDelete(t *testing.T) {
	lib, registry, vectors := newTestLibrary(t)

	path := writeDoc(t, "gdpr.txt", "Article 32 requires appropriate security measures.")
	_, err := lib.AddFile(context.Background(), path, models.DocTypeRegulation)
	require.NoError(t, err)

	ids, err := lib.List(context.Background(), models.DocTypeRegulation)
	require.NoError(t, err)
	assert.Equal(t, []string{"gdpr"}, ids)

	require.NoError(t, lib.Delete(context.Background(), models.DocTypeRegulation, "gdpr"))

	_, ok, err := registry.Get(context.Background(), models.DocTypeRegulation, "gdpr")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Empty(t, vectors.points[index.CollectionRegulations])
}

func TestSearch(t *testing.T) {
	lib, _, vectors := newTestLibrary(t)
	vectors.searchHits = []models.SearchResult{
		{Text: "Article 32", Score: 0.9, DocID: "gdpr"},
	}

	results, err := lib.Search(context.Background(), "encryption", models.DocTypeRegulation, 3, []string{"gdpr"})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "gdpr", results[0].DocID)

	_, err = lib.Search(context.Background(), "encryption", "contracts", 3, nil)
	assert.Error(t, err)
}
