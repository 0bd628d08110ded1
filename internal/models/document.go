package models

import "time"

// Document types understood by the library. The names mirror the wire values
// used by the document endpoints.
const (
	// DocTypeRegulation marks compliance documents (GDPR, HIPAA, and the like).
	DocTypeRegulation = "regulation"
	// DocTypeCompanyDoc marks internal company documents checked for compliance.
	DocTypeCompanyDoc = "company_doc"
)

// ValidDocType reports whether docType is one of the recognized document types.
func ValidDocType(docType string) bool {
	return docType == DocTypeRegulation || docType == DocTypeCompanyDoc
}

// Document is the registry record for an indexed document.
type Document struct {
	ID         string    `json:"id"`
	Type       string    `json:"type"`
	Filename   string    `json:"filename"`
	Pages      int       `json:"pages"`
	Chunks     int       `json:"chunks"`
	UploadedAt time.Time `json:"uploaded_at"`
}

// Point is one embedded chunk headed for the vector store.
type Point struct {
	ID         string
	Vector     []float32
	Text       string
	DocID      string
	ChunkIndex int
}

// SearchResult is a single chunk returned by a vector search.
type SearchResult struct {
	Text  string  `json:"text"`
	Score float32 `json:"score"`
	DocID string  `json:"doc_id"`
}

// DocumentListResponse is returned when listing documents of one type.
type DocumentListResponse struct {
	Documents []string `json:"documents"`
	DocType   string   `json:"doc_type"`
}

// UploadResponse is returned after uploading a document.
type UploadResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	DocID   string `json:"doc_id,omitempty"`
}

// DeleteResponse is returned after deleting a document.
type DeleteResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}
