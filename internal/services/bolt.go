package services

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	bolt "go.etcd.io/bbolt"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// BoltDB implements the document registry using a BoltDB backend. Each
// document type gets its own bucket, keyed by document id, so listing one
// type never touches the other.
type BoltDB struct {
	db *bolt.DB
}

// NewBoltDB creates a new BoltDB instance with the specified file path. It
// initializes the database with one bucket per document type and returns an
// error if the database cannot be opened or initialized. The database file is
// created with 0600 permissions if it doesn't exist.
func NewBoltDB(path string) (BoltDB, error) {
	db, err := bolt.Open(path, 0600, nil)
	if err != nil {
		return BoltDB{}, fmt.Errorf("failed to open bolt db: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{models.DocTypeRegulation, models.DocTypeCompanyDoc} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})

	return BoltDB{db: db}, err
}

// Close closes the underlying database file.
func (b BoltDB) Close() error {
	return b.db.Close()
}

// Put stores or replaces the registry record for a document. The bucket is
// selected by the document's type.
func (b BoltDB) Put(_ context.Context, doc models.Document) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(doc.Type))
		if bk == nil {
			return fmt.Errorf("unknown document type %q", doc.Type)
		}

		v, err := json.Marshal(doc)
		if err != nil {
			return fmt.Errorf("failed to marshal document: %w", err)
		}

		return bk.Put([]byte(doc.ID), v)
	})
}

// Get retrieves one document record, reporting whether it exists.
func (b BoltDB) Get(_ context.Context, docType, docID string) (models.Document, bool, error) {
	var doc models.Document
	var found bool
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(docType))
		if bk == nil {
			return nil
		}

		v := bk.Get([]byte(docID))
		if v == nil {
			return nil
		}

		if err := json.Unmarshal(v, &doc); err != nil {
			return fmt.Errorf("failed to unmarshal document: %w", err)
		}
		found = true
		return nil
	})
	return doc, found, err
}

// Documents retrieves all stored document records of one type, sorted by id.
func (b BoltDB) Documents(_ context.Context, docType string) ([]models.Document, error) {
	var docs []models.Document
	err := b.db.View(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(docType))
		if bk == nil {
			return nil
		}

		return bk.ForEach(func(_, v []byte) error {
			var doc models.Document
			if err := json.Unmarshal(v, &doc); err != nil {
				return fmt.Errorf("failed to unmarshal document: %w", err)
			}
			docs = append(docs, doc)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
	return docs, nil
}

// Delete removes a document record. Deleting a missing document is not an
// error.
func (b BoltDB) Delete(_ context.Context, docType, docID string) error {
	return b.db.Update(func(tx *bolt.Tx) error {
		bk := tx.Bucket([]byte(docType))
		if bk == nil {
			return nil
		}
		return bk.Delete([]byte(docID))
	})
}
