// Package client talks to the compliance-auditor backend: the streaming chat
// endpoint plus the request/response document management endpoints.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/verityhq/compliance-auditor/internal/models"
)

// Client issues requests against one backend instance.
type Client struct {
	baseURL string

	httpClient *http.Client
}

// New creates a client for the backend at baseURL.
func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{},
	}
}

// StreamChat opens one chat stream and returns the raw response body. The
// caller owns the body and must close it; a non-success status is a hard
// failure of the turn and returns an error with no body.
func (c *Client) StreamChat(ctx context.Context, req models.ChatRequest) (io.ReadCloser, error) {
	jsonBody, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/chat", bytes.NewBuffer(jsonBody))
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "text/event-stream")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("error sending request: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	return resp.Body, nil
}

// ListDocuments returns the ids of all indexed documents of the given type.
func (c *Client) ListDocuments(ctx context.Context, docType string) ([]string, error) {
	u := c.baseURL + "/api/documents?type=" + url.QueryEscape(docType)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	var res models.DocumentListResponse
	if err := c.doJSON(req, &res); err != nil {
		return nil, err
	}
	return res.Documents, nil
}

// UploadDocument uploads and indexes the file at path as a document of the
// given type.
func (c *Client) UploadDocument(ctx context.Context, path, docType string) (models.UploadResponse, error) {
	f, err := os.Open(path)
	if err != nil {
		return models.UploadResponse{}, fmt.Errorf("error opening file: %w", err)
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return models.UploadResponse{}, fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, f); err != nil {
		return models.UploadResponse{}, fmt.Errorf("error reading file: %w", err)
	}
	if err := mw.Close(); err != nil {
		return models.UploadResponse{}, fmt.Errorf("error finalizing form: %w", err)
	}

	u := c.baseURL + "/api/documents?type=" + url.QueryEscape(docType)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, &buf)
	if err != nil {
		return models.UploadResponse{}, fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	var res models.UploadResponse
	if err := c.doJSON(req, &res); err != nil {
		return models.UploadResponse{}, err
	}
	return res, nil
}

// DeleteDocument removes a document from the index.
func (c *Client) DeleteDocument(ctx context.Context, docID, docType string) (models.DeleteResponse, error) {
	u := c.baseURL + "/api/documents/" + url.PathEscape(docID) + "?type=" + url.QueryEscape(docType)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, u, nil)
	if err != nil {
		return models.DeleteResponse{}, fmt.Errorf("error creating request: %w", err)
	}

	var res models.DeleteResponse
	if err := c.doJSON(req, &res); err != nil {
		return models.DeleteResponse{}, err
	}
	return res, nil
}

func (c *Client) doJSON(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("error decoding response: %w", err)
	}
	return nil
}
