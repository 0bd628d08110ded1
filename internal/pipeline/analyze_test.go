package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/pipeline"
)

type mockSearcher struct {
	internal   []models.SearchResult
	compliance map[string][]models.SearchResult
	err        error

	queries []string
}

func (m *mockSearcher) Search(_ context.Context, query, docType string, _ int, _ []string) ([]models.SearchResult, error) {
	m.queries = append(m.queries, docType+":"+query)
	if m.err != nil {
		return nil, m.err
	}
	if docType == models.DocTypeCompanyDoc {
		return m.internal, nil
	}
	return m.compliance[query], nil
}

type mockCompleter struct {
	response string
	err      error

	prompts []string
}

func (m *mockCompleter) Complete(_ context.Context, prompt string) (string, error) {
	m.prompts = append(m.prompts, prompt)
	if m.err != nil {
		return "", m.err
	}
	return m.response, nil
}

func TestAnalyze(t *testing.T) {
	searcher := &mockSearcher{
		internal: []models.SearchResult{
			{Text: "All customer data must be encrypted at rest.", Score: 0.9, DocID: "policy"},
			{Text: "Backups are retained for 30 days.", Score: 0.8, DocID: "policy"},
		},
		compliance: map[string][]models.SearchResult{
			"All customer data must be encrypted at rest.": {
				{Text: "Article 32 requires encryption.", Score: 0.91, DocID: "gdpr"},
			},
			"Backups are retained for 30 days.": {},
		},
	}
	completer := &mockCompleter{
		response: "1. All customer data must be encrypted at rest.\n" +
			"some commentary that is not a requirement\n" +
			"2. Backups are retained for 30 days.",
	}
	analyzer := pipeline.NewAnalyzer(searcher, completer, testLogger())

	var statuses []string
	res, err := analyzer.Analyze(context.Background(), []string{"gdpr"}, []string{"policy"},
		func(message string, _, _ int) { statuses = append(statuses, message) })
	require.NoError(t, err)

	assert.Equal(t,
		"All customer data must be encrypted at rest.\n\nBackups are retained for 30 days.",
		res.InternalContent)
	assert.Equal(t, []string{
		"All customer data must be encrypted at rest.",
		"Backups are retained for 30 days.",
	}, res.Requirements)

	require.Len(t, res.ComplianceResults, 2)
	assert.Contains(t, res.ComplianceResults[0].ComplianceInfo, "**[gdpr]** (score: 0.91)")
	assert.Contains(t, res.ComplianceResults[0].ComplianceInfo, "Article 32 requires encryption.")
	assert.Equal(t, "No matching regulations found.", res.ComplianceResults[1].ComplianceInfo)

	// The extraction prompt carries the retrieved content.
	require.Len(t, completer.prompts, 1)
	assert.Contains(t, completer.prompts[0], "All customer data must be encrypted at rest.")

	require.NotEmpty(t, statuses)
	assert.Equal(t, "**Step 1/3:** Retrieving internal documents...", statuses[0])
	assert.Contains(t, statuses, "**Step 1/3:** Retrieved 2 chunks from internal documents")
	assert.Contains(t, statuses, "**Step 2/3:** Extracting requirements from internal documents...")
	assert.Equal(t, "**Complete:** Analysis ready", statuses[len(statuses)-1])

	var step3 int
	for _, s := range statuses {
		if strings.HasPrefix(s, "**Step 3/3:**") {
			step3++
		}
	}
	assert.Equal(t, 4, step3, "one querying and one complete status per requirement")
}

func TestAnalyzeNoSelection(t *testing.T) {
	searcher := &mockSearcher{}
	completer := &mockCompleter{}
	analyzer := pipeline.NewAnalyzer(searcher, completer, testLogger())

	var statuses []string
	res, err := analyzer.Analyze(context.Background(), nil, nil,
		func(message string, _, _ int) { statuses = append(statuses, message) })
	require.NoError(t, err)

	assert.Empty(t, res.InternalContent)
	assert.Empty(t, res.Requirements)
	assert.Empty(t, searcher.queries)
	assert.Empty(t, completer.prompts)
	assert.Equal(t, []string{"**Complete:** Analysis ready"}, statuses)
}

func TestAnalyzeRetrievalError(t *testing.T) {
	searcher := &mockSearcher{err: errors.New("qdrant unavailable")}
	completer := &mockCompleter{}
	analyzer := pipeline.NewAnalyzer(searcher, completer, testLogger())

	var statuses []string
	res, err := analyzer.Analyze(context.Background(), []string{"gdpr"}, []string{"policy"},
		func(message string, _, _ int) { statuses = append(statuses, message) })
	require.NoError(t, err)

	assert.Contains(t, res.InternalContent, "Error retrieving internal documents")
	assert.Contains(t, statuses, "**Error:** qdrant unavailable")
	assert.Equal(t, "**Complete:** Analysis ready", statuses[len(statuses)-1])
}

func TestAnalyzeExtractionError(t *testing.T) {
	searcher := &mockSearcher{
		internal: []models.SearchResult{{Text: "content", DocID: "policy"}},
	}
	completer := &mockCompleter{err: errors.New("llm down")}
	analyzer := pipeline.NewAnalyzer(searcher, completer, testLogger())

	var statuses []string
	res, err := analyzer.Analyze(context.Background(), []string{"gdpr"}, []string{"policy"},
		func(message string, _, _ int) { statuses = append(statuses, message) })
	require.NoError(t, err)

	assert.Empty(t, res.Requirements)
	var sawError bool
	for _, s := range statuses {
		if strings.HasPrefix(s, "**Error:**") {
			sawError = true
		}
	}
	assert.True(t, sawError)
	assert.Equal(t, "**Complete:** Analysis ready", statuses[len(statuses)-1])
}

func TestAnalyzeStatusCounts(t *testing.T) {
	searcher := &mockSearcher{
		internal: []models.SearchResult{{Text: "content", DocID: "policy"}},
		compliance: map[string][]models.SearchResult{
			"req one": {{Text: "match", Score: 0.5, DocID: "gdpr"}},
		},
	}
	completer := &mockCompleter{response: "1. req one"}
	analyzer := pipeline.NewAnalyzer(searcher, completer, testLogger())

	type counts struct{ reqs, results int }
	var last counts
	_, err := analyzer.Analyze(context.Background(), []string{"gdpr"}, []string{"policy"},
		func(_ string, reqCount, resCount int) { last = counts{reqCount, resCount} })
	require.NoError(t, err)

	assert.Equal(t, counts{1, 1}, last)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
