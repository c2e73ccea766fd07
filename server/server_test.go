package server_test

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quillworks-ai/quill"
	"github.com/quillworks-ai/quill/ai"
	"github.com/quillworks-ai/quill/server"
	"github.com/quillworks-ai/quill/store"
)

const testOutline = `{"title":"Remote Team Culture","sections":[{"heading":"Why Culture Drifts","summary":"Causes","word_target":120}]}`

func stageReply(messages []ai.Message) (string, error) {
	var system string
	for _, msg := range messages {
		if role, content := msg.Value(); role == ai.SystemRole {
			system = content
			break
		}
	}
	switch {
	case strings.Contains(system, "brand strategist"):
		return `{"summary":"Plainspoken and direct.","traits":["candid"],"differentiators":["field-tested"]}`, nil
	case strings.Contains(system, "content strategist"):
		return testOutline, nil
	case strings.Contains(system, "content writer"):
		return "Culture drifts when rituals stop scaling with headcount and nobody notices.", nil
	case strings.Contains(system, "an editor"):
		return `{"body":"# Remote Team Culture\n\nCulture drifts when rituals stop.\n","changes":["tightened"]}`, nil
	case strings.Contains(system, "schema.org"):
		return `{"@context":"https://schema.org","@type":"Article","headline":"Remote Team Culture"}`, nil
	case strings.Contains(system, "finalize content"):
		return `{"title":"Remote Team Culture","meta_description":"Keeping culture alive on distributed teams."}`, nil
	}
	return "", fmt.Errorf("unrecognized stage prompt: %q", system)
}

func testPipeline(t *testing.T) *quill.Pipeline {
	t.Helper()
	model := ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		content, err := stageReply(messages)
		if err != nil {
			return ai.AIMessage{}, err
		}
		return ai.AIMessage{
			Role:    ai.AssistantRole,
			Content: content,
			Response: ai.Response{
				Usage: ai.Usage{PromptTokens: 100, CompletionTokens: 100, TotalTokens: 200},
			},
		}, nil
	})
	return &quill.Pipeline{Model: model}
}

func testRequestBody(t *testing.T) *bytes.Reader {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"brief": quill.Brief{
			Topic:     "Remote team culture",
			Keywords:  []string{"culture"},
			WordCount: 300,
		},
		"brand_profile": quill.BrandProfile{Name: "Fieldnote"},
	})
	require.NoError(t, err)
	return bytes.NewReader(body)
}

type streamLine struct {
	Type     string          `json:"type"`
	RunID    string          `json:"run_id"`
	Stage    string          `json:"stage"`
	Fragment string          `json:"fragment"`
	Status   string          `json:"status"`
	Run      json.RawMessage `json:"run"`
}

func readStream(t *testing.T, body *bufio.Scanner) []streamLine {
	t.Helper()
	var lines []streamLine
	for body.Scan() {
		text := strings.TrimSpace(body.Text())
		if text == "" {
			continue
		}
		var line streamLine
		require.NoError(t, json.Unmarshal([]byte(text), &line), "line: %s", text)
		lines = append(lines, line)
	}
	require.NoError(t, body.Err())
	return lines
}

func TestRunEndpointStreamsEvents(t *testing.T) {
	srv, err := server.New(testPipeline(t), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", testRequestBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/x-ndjson", resp.Header.Get("Content-Type"))

	lines := readStream(t, bufio.NewScanner(resp.Body))
	require.NotEmpty(t, lines)

	first := lines[0]
	assert.Equal(t, "run_accepted", first.Type)
	assert.NotEmpty(t, first.RunID)

	var started []string
	var sawProgress, sawCompleted bool
	for _, line := range lines {
		switch line.Type {
		case "stage_started":
			started = append(started, line.Stage)
		case "stage_progress":
			sawProgress = true
		case "run_completed":
			sawCompleted = true
		}
		if line.RunID != "" {
			assert.Equal(t, first.RunID, line.RunID)
		}
	}
	assert.Equal(t, quill.StageOrder, started)
	assert.True(t, sawProgress, "writer should stream fragments")
	assert.True(t, sawCompleted)

	last := lines[len(lines)-1]
	require.Equal(t, "run_state", last.Type)
	var rec store.Record
	require.NoError(t, json.Unmarshal(last.Run, &rec))
	assert.Equal(t, quill.StatusComplete, rec.Status)
	require.NotNil(t, rec.Artifact)
	assert.Equal(t, "Remote Team Culture", rec.Artifact.Title)
	assert.Len(t, rec.Stages, len(quill.StageOrder))
}

func TestRunEndpointRejectsInvalidBrief(t *testing.T) {
	srv, err := server.New(testPipeline(t), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	body, err := json.Marshal(map[string]any{
		"brief":         quill.Brief{Topic: "", WordCount: 300},
		"brand_profile": quill.BrandProfile{Name: "Fieldnote"},
	})
	require.NoError(t, err)

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestRunEndpointRejectsGet(t *testing.T) {
	srv, err := server.New(testPipeline(t), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/runs")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestGetRunReturnsPersistedRecord(t *testing.T) {
	st, err := store.Open(filepath.Join(t.TempDir(), "quill.db"))
	require.NoError(t, err)
	defer st.Close()

	srv, err := server.New(testPipeline(t), st, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", testRequestBody(t))
	require.NoError(t, err)
	lines := readStream(t, bufio.NewScanner(resp.Body))
	resp.Body.Close()
	runID := lines[0].RunID

	getResp, err := http.Get(ts.URL + "/api/runs/" + runID)
	require.NoError(t, err)
	defer getResp.Body.Close()
	require.Equal(t, http.StatusOK, getResp.StatusCode)

	var rec store.Record
	require.NoError(t, json.NewDecoder(getResp.Body).Decode(&rec))
	assert.Equal(t, runID, rec.RunID)
	assert.Equal(t, quill.StatusComplete, rec.Status)
	require.NotNil(t, rec.Artifact)

	stored, err := st.Get(context.Background(), runID)
	require.NoError(t, err)
	require.NotNil(t, stored, "terminal run should be persisted")
	assert.Equal(t, quill.StatusComplete, stored.Status)
}

func TestGetMissingRunReturns404(t *testing.T) {
	srv, err := server.New(testPipeline(t), nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/api/runs/no-such-run")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeleteCancelsLiveRun(t *testing.T) {
	var once sync.Once
	writerStarted := make(chan struct{})

	model := ai.NewDummyModel(func(ctx context.Context, messages []ai.Message) (ai.AIMessage, error) {
		var system string
		for _, msg := range messages {
			if role, content := msg.Value(); role == ai.SystemRole {
				system = content
				break
			}
		}
		if strings.Contains(system, "content writer") {
			once.Do(func() { close(writerStarted) })
			<-ctx.Done()
			return ai.AIMessage{}, ctx.Err()
		}
		content, err := stageReply(messages)
		if err != nil {
			return ai.AIMessage{}, err
		}
		return ai.AIMessage{Role: ai.AssistantRole, Content: content}, nil
	})

	srv, err := server.New(&quill.Pipeline{Model: model}, nil, nil)
	require.NoError(t, err)
	ts := httptest.NewServer(srv.Routes())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/api/runs", "application/json", testRequestBody(t))
	require.NoError(t, err)
	defer resp.Body.Close()

	scanner := bufio.NewScanner(resp.Body)
	require.True(t, scanner.Scan(), "expected acceptance line")
	var first streamLine
	require.NoError(t, json.Unmarshal(scanner.Bytes(), &first))
	require.Equal(t, "run_accepted", first.Type)

	<-writerStarted

	delReq, err := http.NewRequest(http.MethodDelete, ts.URL+"/api/runs/"+first.RunID, nil)
	require.NoError(t, err)
	delResp, err := http.DefaultClient.Do(delReq)
	require.NoError(t, err)
	delResp.Body.Close()
	assert.Equal(t, http.StatusAccepted, delResp.StatusCode)

	lines := readStream(t, scanner)
	require.NotEmpty(t, lines)

	var sawCancelled bool
	for _, line := range lines {
		if line.Type == "run_cancelled" {
			sawCancelled = true
		}
	}
	assert.True(t, sawCancelled)

	last := lines[len(lines)-1]
	require.Equal(t, "run_state", last.Type)
	var rec store.Record
	require.NoError(t, json.Unmarshal(last.Run, &rec))
	assert.Equal(t, quill.StatusCancelled, rec.Status)
	assert.Nil(t, rec.Artifact)
}
