package ai

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
)

const maxOllamaBody = 4 << 20

// OllamaProvider talks to a local Ollama server's non-streaming /api/chat.
type OllamaProvider struct {
	BaseURL string
	Model   string
	Client  *http.Client
}

func NewOllamaProvider(baseURL, model string) *OllamaProvider {
	if baseURL == "" {
		baseURL = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3:latest"
	}
	return &OllamaProvider{
		BaseURL: baseURL,
		Model:   model,
		Client:  &http.Client{Timeout: 90 * time.Second},
	}
}

type ollamaChatReq struct {
	Model    string      `json:"model"`
	Messages []ollamaMsg `json:"messages"`
	Stream   bool        `json:"stream"`
}

type ollamaMsg struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatResp struct {
	Message ollamaMsg `json:"message"`
	Error   string    `json:"error,omitempty"`
}

func (p *OllamaProvider) Chat(ctx context.Context, history []Turn, message string) (string, error) {
	if p.Client == nil {
		return "", errors.New("ollama: http client is nil")
	}

	// ollama speaks user/assistant, so model turns go back to assistant
	msgs := make([]ollamaMsg, 0, len(history)+1)
	for _, t := range history {
		role := RoleAssistant
		if t.Role == RoleUser {
			role = RoleUser
		}
		msgs = append(msgs, ollamaMsg{Role: role, Content: t.Text})
	}
	msgs = append(msgs, ollamaMsg{Role: RoleUser, Content: message})

	b, err := json.Marshal(ollamaChatReq{Model: p.Model, Messages: msgs, Stream: false})
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/api/chat", strings.TrimRight(p.BaseURL, "/"))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := p.Client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var decoded ollamaChatResp
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxOllamaBody))
	if err != nil {
		return "", fmt.Errorf("ollama: read body: %w", err)
	}
	// error bodies are JSON too; keep whatever message they carry
	_ = json.Unmarshal(body, &decoded)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if decoded.Error != "" {
			return "", fmt.Errorf("ollama: status %d: %s", resp.StatusCode, decoded.Error)
		}
		return "", fmt.Errorf("ollama: status %d", resp.StatusCode)
	}
	if decoded.Error != "" {
		return "", errors.New("ollama: " + decoded.Error)
	}
	if decoded.Message.Content == "" {
		return "", errors.New("ollama: empty reply")
	}
	return decoded.Message.Content, nil
}
