package gemini

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"google.golang.org/genai"

	"arxiv-digest/config"
)

// Client kapselt den Gemini-Zugriff für die Summary-Generierung.
type Client struct {
	client *genai.Client
	model  string
	logger *zap.Logger
}

// NewClient erstellt einen neuen Gemini-Client.
func NewClient(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY ist nicht konfiguriert")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("genai-Client konnte nicht initialisiert werden: %w", err)
	}

	return &Client{client: client, model: cfg.GeminiModel, logger: logger}, nil
}

// Model gibt den Identifier des konfigurierten Modells zurück.
func (c *Client) Model() string {
	return c.model
}

// Generate schickt den Prompt an Gemini und gibt den Antworttext zurück.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	contents := []*genai.Content{
		genai.NewContentFromText(prompt, genai.RoleUser),
	}

	resp, err := c.client.Models.GenerateContent(ctx, c.model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(float32(0.4)),
	})
	if err != nil {
		return "", fmt.Errorf("generierung fehlgeschlagen: %w", err)
	}

	var out strings.Builder
	if resp != nil {
		for _, candidate := range resp.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.WriteString(part.Text)
				}
			}
			if out.Len() > 0 {
				break
			}
		}
	}
	if out.Len() == 0 {
		return "", fmt.Errorf("leere Antwort vom Modell")
	}

	c.logger.Debug("Gemini-Antwort erhalten", zap.Int("response_length", out.Len()))
	return out.String(), nil
}
