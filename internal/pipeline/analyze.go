// Package pipeline runs the three-step compliance analysis that precedes each
// chat response: retrieve internal document content, extract requirements from
// it, and search the regulation index for each requirement.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/verityhq/compliance-auditor/internal/models"
)

const (
	// Retrieval ceiling for pulling full internal document content.
	internalRetrievalLimit = 100
	// Results per requirement when searching the regulation index.
	complianceSearchLimit = 3
	// Character cap on the extraction prompt's document section.
	extractionContentLimit = 8000

	retrieveAllQuery = "Return all content from documents"
)

const extractionPromptFormat = `Extract all specific requirements, policies, or procedures from this document.

IMPORTANT RULES:
- Extract each requirement EXACTLY as written - do NOT summarize or shorten
- Preserve all details, conditions, and qualifications
- Return as a numbered list, one requirement per line

Document:
%s

Requirements (verbatim, complete sentences):`

// Searcher is the slice of the document library the analyzer needs.
type Searcher interface {
	Search(ctx context.Context, query, docType string, limit int, docIDs []string) ([]models.SearchResult, error)
}

// Completer produces a full LLM response for a single prompt.
type Completer interface {
	Complete(ctx context.Context, prompt string) (string, error)
}

// Result carries everything the analysis produced: the raw internal document
// content, the extracted requirements, and the per-requirement compliance
// search results.
type Result struct {
	InternalContent   string
	Requirements      []string
	ComplianceResults []models.ComplianceResult
}

// StatusFunc receives progress updates during an analysis, together with the
// running requirement and compliance result counts.
type StatusFunc func(message string, requirementsCount, complianceResultsCount int)

// Analyzer runs compliance analyses against a document library and an LLM.
type Analyzer struct {
	searcher  Searcher
	completer Completer

	logger *slog.Logger
}

// NewAnalyzer creates an analyzer on top of the given library and LLM.
func NewAnalyzer(searcher Searcher, completer Completer, logger *slog.Logger) *Analyzer {
	return &Analyzer{
		searcher:  searcher,
		completer: completer,
		logger:    logger.With(slog.String("module", "pipeline")),
	}
}

// Analyze runs the three analysis steps for the given document selection,
// reporting progress through onStatus. Failures inside a step are reported as
// status updates and leave the remaining steps to work with what is available;
// only context cancellation aborts the analysis.
func (a *Analyzer) Analyze(ctx context.Context, selectedCompliance, selectedInternal []string, onStatus StatusFunc) (Result, error) {
	var res Result
	status := func(msg string) {
		if onStatus != nil {
			onStatus(msg, len(res.Requirements), len(res.ComplianceResults))
		}
	}

	if len(selectedInternal) > 0 {
		status("**Step 1/3:** Retrieving internal documents...")
		results, err := a.searcher.Search(ctx, retrieveAllQuery, models.DocTypeCompanyDoc,
			internalRetrievalLimit, selectedInternal)
		if err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			a.logger.Error("Error retrieving internal docs", slog.String("err", err.Error()))
			res.InternalContent = fmt.Sprintf("Error retrieving internal documents: %v", err)
			status(fmt.Sprintf("**Error:** %v", err))
		} else {
			texts := make([]string, len(results))
			for i, r := range results {
				texts[i] = r.Text
			}
			res.InternalContent = strings.Join(texts, "\n\n")
			a.logger.Info("Retrieved internal content", slog.Int("chunks", len(results)))
			status(fmt.Sprintf("**Step 1/3:** Retrieved %d chunks from internal documents", len(results)))
		}
	}

	if res.InternalContent != "" && len(selectedCompliance) > 0 {
		status("**Step 2/3:** Extracting requirements from internal documents...")
		if err := a.extractAndQuery(ctx, selectedCompliance, &res, status); err != nil {
			if ctx.Err() != nil {
				return res, ctx.Err()
			}
			a.logger.Error("Error in requirement extraction", slog.String("err", err.Error()))
			status(fmt.Sprintf("**Error:** %v", err))
		}
	}

	status("**Complete:** Analysis ready")

	return res, nil
}

func (a *Analyzer) extractAndQuery(ctx context.Context, selectedCompliance []string, res *Result, status func(string)) error {
	prompt := fmt.Sprintf(extractionPromptFormat, truncate(res.InternalContent, extractionContentLimit))

	a.logger.Info("Extracting requirements from internal docs")
	response, err := a.completer.Complete(ctx, prompt)
	if err != nil {
		return fmt.Errorf("error extracting requirements: %w", err)
	}

	res.Requirements = parseRequirements(response)
	a.logger.Info("Extracted requirements", slog.Int("count", len(res.Requirements)))

	var reqList strings.Builder
	for i, req := range res.Requirements {
		fmt.Fprintf(&reqList, "  %d. %s\n", i+1, truncate(req, 80))
	}
	status(fmt.Sprintf("**Step 2/3:** Extracted %d requirements:\n%s",
		len(res.Requirements), strings.TrimRight(reqList.String(), "\n")))

	for i, req := range res.Requirements {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		status(fmt.Sprintf("**Step 3/3:** Querying compliance for requirement %d/%d...\n\n**Requirement:** %s",
			i+1, len(res.Requirements), req))

		results, err := a.searcher.Search(ctx, req, models.DocTypeRegulation,
			complianceSearchLimit, selectedCompliance)
		if err != nil {
			a.logger.Error("Error querying compliance", slog.Int("requirement", i+1), slog.String("err", err.Error()))
			res.ComplianceResults = append(res.ComplianceResults, models.ComplianceResult{
				Requirement:    req,
				ComplianceInfo: fmt.Sprintf("Error querying compliance: %v", err),
			})
			status(fmt.Sprintf("**Step 3/3:** Requirement %d - Error: %v", i+1, err))
			continue
		}

		complianceInfo := "No matching regulations found."
		if len(results) > 0 {
			blocks := make([]string, len(results))
			for j, r := range results {
				blocks[j] = fmt.Sprintf("**[%s]** (score: %.2f)\n%s", r.DocID, r.Score, r.Text)
			}
			complianceInfo = strings.Join(blocks, "\n\n")
		}

		res.ComplianceResults = append(res.ComplianceResults, models.ComplianceResult{
			Requirement:    req,
			ComplianceInfo: complianceInfo,
		})

		status(fmt.Sprintf("**Step 3/3:** Requirement %d/%d complete\n\n**Requirement:** %s\n\n**Compliance Result:**\n%s",
			i+1, len(res.Requirements), req, truncate(complianceInfo, 500)))
	}

	return nil
}
