package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/jsonrepair"
	"github.com/calvin-seamons/ShadowScribe2.0-sub001/internal/models"
)

type fakeLLM struct {
	reply  string
	err    error
	prompt string
}

func (f *fakeLLM) GenerateJSONResponse(ctx context.Context, prompt string) (string, error) {
	f.prompt = prompt
	return f.reply, f.err
}

func TestLLMBackend_Classify(t *testing.T) {
	client := &fakeLLM{reply: "```json\n{'tools_needed': [" +
		"{'tool': 'rules_corpus', 'intention': 'explain_rule', 'confidence': 0.6}," +
		"{'tool': 'rules_corpus', 'intention': 'describe_entity', 'confidence': 0.9}," +
		"{'tool': 'Historical_Notes', 'intention': 'made_up'}," +
		"{'tool': 'weather', 'intention': 'forecast'}," +
		"{'intention': 'orphan'},]}\n```"}
	b := NewLLMBackend(client)
	res, err := b.Classify(context.Background(), "what does Divine Smite do", &QueryContext{CharacterName: "Duskryn"})
	require.NoError(t, err)

	assert.Equal(t, BackendLLM, res.Backend)
	require.Len(t, res.ToolsNeeded, 2)

	assert.Equal(t, models.ToolRulesCorpus, res.ToolsNeeded[0].Tool)
	assert.Equal(t, "describe_entity", res.ToolsNeeded[0].Intention, "highest confidence survives the cap")
	assert.InDelta(t, 0.9, res.ToolsNeeded[0].Confidence, 1e-9)

	assert.Equal(t, models.ToolHistoricalNotes, res.ToolsNeeded[1].Tool)
	assert.Equal(t, DefaultIntention(models.ToolHistoricalNotes), res.ToolsNeeded[1].Intention)
	assert.InDelta(t, DefaultLLMConfidence, res.ToolsNeeded[1].Confidence, 1e-9)

	assert.InDelta(t, 0.9, res.ToolConfidences[models.ToolRulesCorpus], 1e-9)
	assert.Contains(t, client.prompt, "Duskryn")
	assert.Contains(t, client.prompt, "what does Divine Smite do")
}

func TestLLMBackend_NoCap(t *testing.T) {
	client := &fakeLLM{reply: `{"tools_needed": [
		{"tool": "rules_corpus", "intention": "explain_rule", "confidence": 0.6},
		{"tool": "rules_corpus", "intention": "describe_entity", "confidence": 0.9},
		{"tool": "rules_corpus", "intention": "explain_rule", "confidence": 0.7}]}`}
	res, err := NewLLMBackend(client, WithMaxIntentionsPerTool(0)).Classify(context.Background(), "q", nil)
	require.NoError(t, err)
	require.Len(t, res.ToolsNeeded, 2, "duplicate intentions merge")
	assert.Equal(t, "describe_entity", res.ToolsNeeded[0].Intention)
	assert.Equal(t, "explain_rule", res.ToolsNeeded[1].Intention)
	assert.InDelta(t, 0.7, res.ToolsNeeded[1].Confidence, 1e-9)
}

func TestLLMBackend_Errors(t *testing.T) {
	tests := []struct {
		name     string
		client   *fakeLLM
		stage    string
		wantKind jsonrepair.Kind
	}{
		{"transport", &fakeLLM{err: errors.New("connection refused")}, "generate", ""},
		{"garbage", &fakeLLM{reply: "I'm not sure."}, "repair", jsonrepair.KindSyntax},
		{"wrong envelope", &fakeLLM{reply: `{"tools": ["rules_corpus"]}`}, "validate", jsonrepair.KindSchema},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewLLMBackend(tt.client).Classify(context.Background(), "q", nil)
			var ce *ClassificationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.stage, ce.Stage)
			assert.Equal(t, BackendLLM, ce.Backend)
			if tt.wantKind != "" {
				var re *jsonrepair.RepairError
				require.True(t, errors.As(err, &re))
				assert.Equal(t, tt.wantKind, re.Kind)
			}
		})
	}
}

func TestLLMBackend_EmptySelection(t *testing.T) {
	res, err := NewLLMBackend(&fakeLLM{reply: `{"tools_needed": []}`}).Classify(context.Background(), "hello", nil)
	require.NoError(t, err)
	assert.NotNil(t, res.ToolsNeeded)
	assert.Empty(t, res.ToolsNeeded)
}

func TestBuildPrompt(t *testing.T) {
	p := BuildPrompt("where is my sword", &QueryContext{
		CharacterName: "Duskryn",
		RecentQueries: []string{"q1", "q2", "q3", "q4"},
	})
	for _, tool := range models.AllTools() {
		assert.Contains(t, p, string(tool))
		for _, i := range Intentions(tool) {
			assert.Contains(t, p, i)
		}
	}
	assert.NotContains(t, p, "- q1\n")
	assert.Contains(t, p, "- q4\n")
	assert.Contains(t, p, "tools_needed")

	assert.NotContains(t, BuildPrompt("q", nil), "Character:")
}

func TestHTTPClient_GenerateJSONResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer secret", r.Header.Get("Authorization"))
		var req chatRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "router-model", req.Model)
		assert.Equal(t, "json_object", req.ResponseFormat["type"])
		if assert.Len(t, req.Messages, 1) {
			assert.True(t, strings.Contains(req.Messages[0].Content, "ping"))
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"choices": [{"message": {"role": "assistant", "content": "{\"tools_needed\": []}"}}]}`))
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/v1/", "router-model", "secret", 5*time.Second)
	out, err := c.GenerateJSONResponse(context.Background(), "ping")
	require.NoError(t, err)
	assert.Equal(t, `{"tools_needed": []}`, out)
}

func TestHTTPClient_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr string
	}{
		{"server error", http.StatusInternalServerError, "overloaded", "status 500"},
		{"no choices", http.StatusOK, `{"choices": []}`, "no choices"},
		{"bad body", http.StatusOK, `not json`, "decode error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, "m", "", time.Second).GenerateJSONResponse(context.Background(), "p")
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrLLMRequestFailed)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}
