package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/hyperjump/kensaku/internal/models"
)

// OllamaGenerator calls an Ollama-compatible generate endpoint over HTTP.
type OllamaGenerator struct {
	apiURL string
	model  string
	client *http.Client
}

// OllamaConfig configures the generation endpoint.
type OllamaConfig struct {
	APIURL  string
	Model   string
	Timeout time.Duration
}

// NewOllamaGenerator creates a generator for the given endpoint.
func NewOllamaGenerator(cfg OllamaConfig) *OllamaGenerator {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 300 * time.Second
	}
	return &OllamaGenerator{
		apiURL: cfg.APIURL,
		model:  cfg.Model,
		client: &http.Client{Timeout: timeout},
	}
}

type generateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type generateResponse struct {
	Response string `json:"response"`
}

// Generate builds a grounded prompt from the contexts and returns the model's
// answer. An empty context set still produces a generation call.
func (g *OllamaGenerator) Generate(ctx context.Context, query string, contexts []*models.SearchHit) (string, error) {
	prompt := buildPrompt(query, contexts)
	body, err := json.Marshal(generateRequest{Model: g.model, Prompt: prompt})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.apiURL, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrService, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: generate returned %s", ErrService, resp.Status)
	}
	var out generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("%w: decode generate response: %v", ErrService, err)
	}
	return out.Response, nil
}

// Close is a no-op for OllamaGenerator.
func (g *OllamaGenerator) Close() error {
	return nil
}

func buildPrompt(query string, contexts []*models.SearchHit) string {
	snippets := make([]string, 0, len(contexts))
	for _, c := range contexts {
		snippets = append(snippets, c.TextSnippet)
	}
	var b strings.Builder
	b.WriteString("You are an AI assistant. Answer the user question using ONLY the context below.\n\n")
	b.WriteString("Question:\n")
	b.WriteString(query)
	b.WriteString("\n\nContext:\n")
	b.WriteString(strings.Join(snippets, "\n\n"))
	b.WriteString("\n\nGive a concise, factual answer.\n")
	return b.String()
}
