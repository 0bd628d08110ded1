package index

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Collection names in the vector store, one per document type.
const (
	CollectionRegulations = "regulations"
	CollectionCompanyDocs = "company_docs"
)

// CollectionFor maps a document type to its vector store collection.
func CollectionFor(docType string) string {
	if docType == models.DocTypeRegulation {
		return CollectionRegulations
	}
	return CollectionCompanyDocs
}

// Registry persists document records.
type Registry interface {
	Put(ctx context.Context, doc models.Document) error
	Get(ctx context.Context, docType, docID string) (models.Document, bool, error)
	Documents(ctx context.Context, docType string) ([]models.Document, error)
	Delete(ctx context.Context, docType, docID string) error
}

// VectorStore persists and searches embedded chunks.
type VectorStore interface {
	EnsureCollection(ctx context.Context, name string, dimension int) error
	Upsert(ctx context.Context, collection string, points []models.Point) error
	Search(ctx context.Context, collection string, vector []float32, limit int, docIDs []string) ([]models.SearchResult, error)
	DeleteByDoc(ctx context.Context, collection, docID string) error
}

// Embedder turns text into embedding vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Library composes extraction, chunking, embedding, the vector store and the
// registry into the document index the rest of the system works against.
type Library struct {
	registry Registry
	vectors  VectorStore
	embedder Embedder
	chunker  Chunker

	logger *slog.Logger
}

// NewLibrary creates a library and ensures both collections exist with the
// given embedding dimension.
func NewLibrary(
	ctx context.Context,
	registry Registry,
	vectors VectorStore,
	embedder Embedder,
	chunker Chunker,
	dimension int,
	logger *slog.Logger,
) (*Library, error) {
	for _, name := range []string{CollectionRegulations, CollectionCompanyDocs} {
		if err := vectors.EnsureCollection(ctx, name, dimension); err != nil {
			return nil, fmt.Errorf("error ensuring collection %s: %w", name, err)
		}
	}

	return &Library{
		registry: registry,
		vectors:  vectors,
		embedder: embedder,
		chunker:  chunker,
		logger:   logger.With(slog.String("module", "index")),
	}, nil
}

// DocID derives the document id from a filename: the base name without its
// extension.
func DocID(filename string) string {
	base := filepath.Base(filename)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AddFile extracts, chunks, embeds and indexes the file at path as a document
// of the given type. Re-uploading a document with the same id replaces the
// previous version. It returns the document record on success.
func (l *Library) AddFile(ctx context.Context, path, docType string) (models.Document, error) {
	if !models.ValidDocType(docType) {
		return models.Document{}, fmt.Errorf("invalid document type %q", docType)
	}

	text, pages, err := ExtractText(path)
	if err != nil {
		return models.Document{}, fmt.Errorf("error extracting text: %w", err)
	}

	chunks := l.chunker.Chunk(text)
	if len(chunks) == 0 {
		return models.Document{}, fmt.Errorf("no indexable content in %s", filepath.Base(path))
	}

	docID := DocID(path)
	collection := CollectionFor(docType)

	// Drop stale points from a previous upload of the same document.
	if _, found, err := l.registry.Get(ctx, docType, docID); err == nil && found {
		if err := l.vectors.DeleteByDoc(ctx, collection, docID); err != nil {
			return models.Document{}, fmt.Errorf("error replacing document %s: %w", docID, err)
		}
	}

	points := make([]models.Point, len(chunks))
	for i, chunk := range chunks {
		vector, err := l.embedder.Embed(ctx, chunk)
		if err != nil {
			return models.Document{}, fmt.Errorf("error embedding chunk %d: %w", i, err)
		}
		points[i] = models.Point{
			ID:         uuid.NewString(),
			Vector:     vector,
			Text:       chunk,
			DocID:      docID,
			ChunkIndex: i,
		}
	}

	if err := l.vectors.Upsert(ctx, collection, points); err != nil {
		return models.Document{}, fmt.Errorf("error storing points: %w", err)
	}

	doc := models.Document{
		ID:         docID,
		Type:       docType,
		Filename:   filepath.Base(path),
		Pages:      pages,
		Chunks:     len(chunks),
		UploadedAt: time.Now().UTC(),
	}
	if err := l.registry.Put(ctx, doc); err != nil {
		return models.Document{}, fmt.Errorf("error recording document: %w", err)
	}

	l.logger.Info("Indexed document",
		slog.String("docID", docID),
		slog.String("type", docType),
		slog.Int("chunks", len(chunks)),
	)

	return doc, nil
}

// List returns the ids of all documents of one type.
func (l *Library) List(ctx context.Context, docType string) ([]string, error) {
	if !models.ValidDocType(docType) {
		return nil, fmt.Errorf("invalid document type %q", docType)
	}

	docs, err := l.registry.Documents(ctx, docType)
	if err != nil {
		return nil, fmt.Errorf("error listing documents: %w", err)
	}

	ids := make([]string, len(docs))
	for i, doc := range docs {
		ids[i] = doc.ID
	}
	return ids, nil
}

// Delete removes a document from both the vector store and the registry.
func (l *Library) Delete(ctx context.Context, docType, docID string) error {
	if !models.ValidDocType(docType) {
		return fmt.Errorf("invalid document type %q", docType)
	}

	if err := l.vectors.DeleteByDoc(ctx, CollectionFor(docType), docID); err != nil {
		return fmt.Errorf("error deleting points: %w", err)
	}
	if err := l.registry.Delete(ctx, docType, docID); err != nil {
		return fmt.Errorf("error deleting record: %w", err)
	}

	l.logger.Info("Deleted document", slog.String("docID", docID), slog.String("type", docType))

	return nil
}

// Search embeds the query and returns the most similar chunks of the given
// document type, restricted to docIDs when non-empty.
func (l *Library) Search(ctx context.Context, query, docType string, limit int, docIDs []string) ([]models.SearchResult, error) {
	if !models.ValidDocType(docType) {
		return nil, fmt.Errorf("invalid document type %q", docType)
	}

	vector, err := l.embedder.Embed(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error embedding query: %w", err)
	}

	results, err := l.vectors.Search(ctx, CollectionFor(docType), vector, limit, docIDs)
	if err != nil {
		return nil, fmt.Errorf("error searching: %w", err)
	}
	return results, nil
}
