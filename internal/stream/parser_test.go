package stream_test

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/verityhq/compliance-auditor/internal/models"
	"github.com/verityhq/compliance-auditor/internal/stream"
)

// collector records every dispatched event as a tagged string so ordering
// across event kinds can be asserted.
type collector struct {
	events []string
	reqs   [][]string
	done   int
}

func (c *collector) handler() stream.Handler {
	return stream.Handler{
		OnStatus: func(message string) {
			c.events = append(c.events, "status:"+message)
		},
		OnRequirements: func(requirements []string, results []models.ComplianceResult) {
			c.events = append(c.events, fmt.Sprintf("requirements:%d/%d", len(requirements), len(results)))
			c.reqs = append(c.reqs, requirements)
		},
		OnToken: func(token string) {
			c.events = append(c.events, "token:"+token)
		},
		OnDone: func() {
			c.events = append(c.events, "done")
			c.done++
		},
		OnError: func(message string) {
			c.events = append(c.events, "error:"+message)
		},
	}
}

// chunkReader yields at most size bytes per Read call.
type chunkReader struct {
	data []byte
	size int
	pos  int
}

func (r *chunkReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	n := r.size
	if n > len(r.data)-r.pos {
		n = len(r.data) - r.pos
	}
	if n > len(p) {
		n = len(p)
	}
	copy(p, r.data[r.pos:r.pos+n])
	r.pos += n
	return n, nil
}

const fullStream = "event:status\n" +
	`data:{"message":"**Step 1/3:** Retrieving internal documents...","requirements_count":0,"compliance_results_count":0}` + "\n" +
	"\n" +
	"event:requirements\n" +
	`data:{"requirements":["Data must be encrypted at rest"],"compliance_results":[{"requirement":"Data must be encrypted at rest","compliance_info":"**[gdpr]** (score: 0.91)\nArticle 32..."}]}` + "\n" +
	"\n" +
	"event:token\n" +
	`data:{"token":"Based "}` + "\n" +
	"\n" +
	"event:token\n" +
	`data:{"token":"on the 規制 📋 analysis"}` + "\n" +
	"\n" +
	"event:done\n" +
	`data:{"complete":true}` + "\n" +
	"\n"

var fullStreamEvents = []string{
	"status:**Step 1/3:** Retrieving internal documents...",
	"requirements:1/1",
	"token:Based ",
	"token:on the 規制 📋 analysis",
	"done",
}

func TestParse(t *testing.T) {
	c := &collector{}
	err := stream.Parse(strings.NewReader(fullStream), c.handler(), nil)
	require.NoError(t, err)
	assert.Equal(t, fullStreamEvents, c.events)
	require.Len(t, c.reqs, 1)
	assert.Equal(t, []string{"Data must be encrypted at rest"}, c.reqs[0])
}

func TestParseChunkBoundaryInvariance(t *testing.T) {
	// The stream contains multi-byte runes, so small chunk sizes split lines
	// and UTF-8 sequences at every possible offset.
	for size := 1; size <= len(fullStream); size++ {
		c := &collector{}
		r := &chunkReader{data: []byte(fullStream), size: size}
		err := stream.Parse(r, c.handler(), nil)
		require.NoError(t, err, "chunk size %d", size)
		require.Equal(t, fullStreamEvents, c.events, "chunk size %d", size)
	}
}

func TestParseCRLF(t *testing.T) {
	input := "event:token\r\n" +
		`data:{"token":"hi"}` + "\r\n" +
		"\r\n" +
		"event:done\r\n" +
		`data:{"complete":true}` + "\r\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:hi", "done"}, c.events)
}

func TestParseFinalLineWithoutNewline(t *testing.T) {
	input := "event:token\n" + `data:{"token":"hi"}`
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:hi"}, c.events)
}

func TestParseMalformedPayloadSkipped(t *testing.T) {
	input := "event:token\n" +
		"data:{not json}\n" +
		`data:{"token":"ok"}` + "\n" +
		"event:done\n" +
		`data:{"complete":true}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:ok", "done"}, c.events)
}

func TestParseUnknownEventDropped(t *testing.T) {
	input := "event:heartbeat\n" +
		`data:{"ts":123}` + "\n" +
		"event:heartbeat\n" +
		"data:not json either\n" +
		"event:token\n" +
		`data:{"token":"after"}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:after"}, c.events)
}

func TestParseEmptyDataIgnored(t *testing.T) {
	input := "event:token\n" +
		"data:\n" +
		"data: \n" +
		`data:{"token":"x"}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:x"}, c.events)
}

func TestParseDataBeforeEventIgnored(t *testing.T) {
	input := `data:{"token":"orphan"}` + "\n" +
		"event:token\n" +
		`data:{"token":"kept"}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:kept"}, c.events)
}

func TestParseEOFWithoutDone(t *testing.T) {
	input := "event:token\n" + `data:{"token":"partial"}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"token:partial"}, c.events)
	assert.Zero(t, c.done)
}

func TestParseErrorEvent(t *testing.T) {
	input := "event:error\n" + `data:{"error":"backend exploded"}` + "\n"
	c := &collector{}
	require.NoError(t, stream.Parse(strings.NewReader(input), c.handler(), nil))
	assert.Equal(t, []string{"error:backend exploded"}, c.events)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) {
	return 0, errors.New("connection reset")
}

func TestParseReadError(t *testing.T) {
	err := stream.Parse(failingReader{}, stream.Handler{}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")
}

func TestParseNilCallbacks(t *testing.T) {
	// A handler with no callbacks must not panic.
	require.NoError(t, stream.Parse(strings.NewReader(fullStream), stream.Handler{}, nil))
}
