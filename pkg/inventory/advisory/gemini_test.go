package advisory

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

func geminiBody(text string) string {
	resp := map[string]any{
		"candidates": []any{
			map[string]any{"content": map[string]any{"parts": []any{map[string]any{"text": text}}}},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

var snapshot = inventory.InventorySnapshot{Products: []inventory.SnapshotProduct{
	{Name: "Mechanical Keyboard RGB", SKU: "ELEC-002", Qty: 12, Min: 15, Value: 89.99},
}}

func TestGeminiAdvisor_Analyze(t *testing.T) {
	var gotPath, gotKey string
	var gotReq geminiRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.URL.Query().Get("key")
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotReq)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, geminiBody(`[
			{"type":"warning","message":"Keyboard below minimum","action":"Reorder Now"},
			{"type":"info","message":"Unknown type becomes suggestion"},
			{"type":"success","message":"  "}
		]`))
	}))
	defer srv.Close()

	advisor := NewGeminiAdvisor("test-key", "", WithBaseURL(srv.URL+"/"))

	// テスト実行
	insights, err := advisor.Analyze(context.Background(), snapshot)

	// アサーション
	require.NoError(t, err)
	assert.Equal(t, "/models/gemini-2.5-flash:generateContent", gotPath)
	assert.Equal(t, "test-key", gotKey)
	assert.Equal(t, "application/json", gotReq.GenerationConfig.ResponseMIMEType)
	require.Len(t, gotReq.Contents, 1)
	assert.True(t, strings.Contains(gotReq.Contents[0].Parts[0].Text, "ELEC-002"))

	require.Len(t, insights, 2)
	assert.Equal(t, inventory.Insight{Type: inventory.InsightWarning, Message: "Keyboard below minimum", Action: "Reorder Now"}, insights[0])
	assert.Equal(t, inventory.InsightSuggestion, insights[1].Type)
}

func TestGeminiAdvisor_NoAPIKey(t *testing.T) {
	_, err := NewGeminiAdvisor("", "").Analyze(context.Background(), snapshot)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestGeminiAdvisor_ErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":{"code":403,"message":"API key not valid"}}`)
	}))
	defer srv.Close()

	_, err := NewGeminiAdvisor("bad", "", WithBaseURL(srv.URL)).Analyze(context.Background(), snapshot)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "API key not valid")
}

func TestGeminiAdvisor_InvalidJSON(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, geminiBody("not json"))
	}))
	defer srv.Close()

	_, err := NewGeminiAdvisor("k", "", WithBaseURL(srv.URL)).Analyze(context.Background(), snapshot)

	assert.Error(t, err)
}

func TestGeminiAdvisor_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := NewGeminiAdvisor("k", "", WithBaseURL(srv.URL)).Analyze(ctx, snapshot)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGeminiAdvisor_EmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"candidates":[]}`)
	}))
	defer srv.Close()

	insights, err := NewGeminiAdvisor("k", "", WithBaseURL(srv.URL)).Analyze(context.Background(), snapshot)

	require.NoError(t, err)
	assert.Empty(t, insights)
}
