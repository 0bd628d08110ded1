package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// HandleDocuments serves the document collection endpoint: GET lists the
// documents of one type, POST uploads and indexes a new document. The type
// comes from the "type" query parameter for both methods.
func (m Main) HandleDocuments(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		m.listDocuments(w, r)
	case http.MethodPost:
		m.uploadDocument(w, r)
	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (m Main) listDocuments(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("type")
	if !models.ValidDocType(docType) {
		http.Error(w, fmt.Sprintf("invalid document type %q", docType), http.StatusBadRequest)
		return
	}

	docs, err := m.library.List(r.Context(), docType)
	if err != nil {
		m.logger.Error("Failed to list documents",
			slog.String("type", docType),
			slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if docs == nil {
		docs = []string{}
	}

	writeJSON(w, http.StatusOK, models.DocumentListResponse{
		Documents: docs,
		DocType:   docType,
	})
}

func (m Main) uploadDocument(w http.ResponseWriter, r *http.Request) {
	docType := r.URL.Query().Get("type")
	if !models.ValidDocType(docType) {
		http.Error(w, fmt.Sprintf("invalid document type %q", docType), http.StatusBadRequest)
		return
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		http.Error(w, "file is required", http.StatusBadRequest)
		return
	}
	defer file.Close()

	if header.Filename == "" {
		http.Error(w, "no filename provided", http.StatusBadRequest)
		return
	}

	// The document id derives from the filename, so the temp copy keeps the
	// original name inside its own directory.
	tmpDir, err := os.MkdirTemp("", "upload-")
	if err != nil {
		m.logger.Error("Failed to create temp dir", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	defer os.RemoveAll(tmpDir)

	tmpPath := filepath.Join(tmpDir, filepath.Base(header.Filename))
	dst, err := os.Create(tmpPath)
	if err != nil {
		m.logger.Error("Failed to create temp file", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if _, err := io.Copy(dst, file); err != nil {
		dst.Close()
		m.logger.Error("Failed to save upload", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	dst.Close()

	doc, err := m.library.AddFile(r.Context(), tmpPath, docType)
	if err != nil {
		m.logger.Error("Failed to index document",
			slog.String("filename", header.Filename),
			slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, models.UploadResponse{
			Success: false,
			Message: fmt.Sprintf("Error: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.UploadResponse{
		Success: true,
		Message: fmt.Sprintf("Uploaded '%s' successfully", doc.ID),
		DocID:   doc.ID,
	})
}

// HandleDeleteDocument removes a document from the index. The document id
// comes from the request path and the type from the "type" query parameter.
func (m Main) HandleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	docID := r.PathValue("docID")
	docType := r.URL.Query().Get("type")
	if !models.ValidDocType(docType) {
		http.Error(w, fmt.Sprintf("invalid document type %q", docType), http.StatusBadRequest)
		return
	}

	if err := m.library.Delete(r.Context(), docType, docID); err != nil {
		m.logger.Error("Failed to delete document",
			slog.String("docID", docID),
			slog.String(errLoggerKey, err.Error()))
		writeJSON(w, http.StatusInternalServerError, models.DeleteResponse{
			Success: false,
			Message: fmt.Sprintf("Error: %v", err),
		})
		return
	}

	writeJSON(w, http.StatusOK, models.DeleteResponse{
		Success: true,
		Message: fmt.Sprintf("Deleted '%s'", docID),
	})
}
