// Package advisory implements inventory insight advisors
package advisory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/nemonet1337/nexinventory/pkg/inventory"
)

// DefaultBaseURL is the Gemini generateContent endpoint root
const DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

// DefaultModel is used when no model is configured
const DefaultModel = "gemini-2.5-flash"

// ErrNoAPIKey is returned when the client has no API key
var ErrNoAPIKey = errors.New("GEMINI_API_KEY が設定されていません")

const promptTemplate = `Analyze this inventory data for a warehouse management system.
Identify critical issues such as stockouts, low stock (below min level), or overstocking.
Also look for potential shipping delays based on pending operations.

Return a valid JSON array of objects with these keys:
- type: 'warning' | 'suggestion' | 'success'
- message: A short, actionable insight string.
- action: (Optional) A button label for the user (e.g., "Reorder Now", "Check Schedule").

Data: %s`

// GeminiAdvisor calls the Gemini REST API to analyze stock levels
// Gemini REST APIを呼び出して在庫を分析
type GeminiAdvisor struct {
	apiKey     string
	model      string
	baseURL    string
	httpClient *http.Client
}

var _ inventory.Advisor = (*GeminiAdvisor)(nil)

// Option configures a GeminiAdvisor
type Option func(*GeminiAdvisor)

// WithBaseURL overrides the API root
func WithBaseURL(url string) Option {
	return func(g *GeminiAdvisor) { g.baseURL = strings.TrimRight(url, "/") }
}

// WithHTTPClient overrides the HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(g *GeminiAdvisor) { g.httpClient = c }
}

// NewGeminiAdvisor creates the advisor. An empty apiKey makes every call fail with ErrNoAPIKey.
// アドバイザーを作成（APIキーが空の場合は常にErrNoAPIKey）
func NewGeminiAdvisor(apiKey, model string, opts ...Option) *GeminiAdvisor {
	if model == "" {
		model = DefaultModel
	}
	g := &GeminiAdvisor{
		apiKey:     apiKey,
		model:      model,
		baseURL:    DefaultBaseURL,
		httpClient: &http.Client{Timeout: 20 * time.Second},
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

type geminiRequest struct {
	Contents         []geminiContent `json:"contents"`
	GenerationConfig genConfig       `json:"generationConfig"`
}

type geminiContent struct {
	Parts []geminiPart `json:"parts"`
	Role  string       `json:"role,omitempty"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type genConfig struct {
	ResponseMIMEType string  `json:"responseMimeType"`
	Temperature      float32 `json:"temperature"`
}

type geminiResponse struct {
	Candidates []struct {
		Content geminiContent `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Analyze sends the snapshot to Gemini and decodes the returned insights
// スナップショットをGeminiに送信し、分析結果を返す
func (g *GeminiAdvisor) Analyze(ctx context.Context, snapshot inventory.InventorySnapshot) ([]inventory.Insight, error) {
	if g.apiKey == "" {
		return nil, ErrNoAPIKey
	}

	data, err := json.Marshal(snapshot.Products)
	if err != nil {
		return nil, fmt.Errorf("advisory: スナップショットのシリアライズに失敗しました: %w", err)
	}

	payload := geminiRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: fmt.Sprintf(promptTemplate, data)}},
		}},
		GenerationConfig: genConfig{
			ResponseMIMEType: "application/json",
			Temperature:      0.2,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("advisory: リクエストのシリアライズに失敗しました: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.baseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("advisory: HTTPリクエスト作成に失敗しました: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("advisory: タイムアウトまたはキャンセル: %w", ctx.Err())
		}
		return nil, fmt.Errorf("advisory: HTTP呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 256*1024))
	if err != nil {
		return nil, fmt.Errorf("advisory: レスポンスの読み取りに失敗しました: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		var errResp geminiResponse
		if jsonErr := json.Unmarshal(raw, &errResp); jsonErr == nil && errResp.Error != nil {
			return nil, fmt.Errorf("advisory: Gemini エラー %d: %s", errResp.Error.Code, errResp.Error.Message)
		}
		return nil, fmt.Errorf("advisory: Gemini HTTP %d", resp.StatusCode)
	}

	var gemResp geminiResponse
	if err := json.Unmarshal(raw, &gemResp); err != nil {
		return nil, fmt.Errorf("advisory: Geminiレスポンスの解析に失敗しました: %w", err)
	}
	if len(gemResp.Candidates) == 0 || len(gemResp.Candidates[0].Content.Parts) == 0 {
		return []inventory.Insight{}, nil
	}

	text := strings.TrimSpace(gemResp.Candidates[0].Content.Parts[0].Text)
	if text == "" {
		return []inventory.Insight{}, nil
	}

	var insights []inventory.Insight
	if err := json.Unmarshal([]byte(text), &insights); err != nil {
		return nil, fmt.Errorf("advisory: モデルの応答が有効なJSONではありません: %w", err)
	}
	return normalize(insights), nil
}

// normalize drops empty messages and maps unknown types to suggestions
func normalize(in []inventory.Insight) []inventory.Insight {
	out := make([]inventory.Insight, 0, len(in))
	for _, i := range in {
		if strings.TrimSpace(i.Message) == "" {
			continue
		}
		switch i.Type {
		case inventory.InsightWarning, inventory.InsightSuggestion, inventory.InsightSuccess:
		default:
			i.Type = inventory.InsightSuggestion
		}
		out = append(out, i)
	}
	return out
}
