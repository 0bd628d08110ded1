package handlers

import (
	"log/slog"
	"net/http"

	"github.com/verityhq/compliance-auditor/internal/models"
)

type homePageData struct {
	ComplianceDocs []string
	InternalDocs   []string
}

// HandleHome renders the main page with the current document lists.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}

	complianceDocs, err := m.library.List(r.Context(), models.DocTypeRegulation)
	if err != nil {
		m.logger.Error("Failed to list compliance documents", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	internalDocs, err := m.library.List(r.Context(), models.DocTypeCompanyDoc)
	if err != nil {
		m.logger.Error("Failed to list internal documents", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	data := homePageData{
		ComplianceDocs: complianceDocs,
		InternalDocs:   internalDocs,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
}
