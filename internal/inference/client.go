// Package inference talks to the hosted multimodal model: it classifies a
// document, builds the extraction prompt and runs the extraction request.
package inference

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/joseph-ayodele/document-extractor/constants"
	"github.com/joseph-ayodele/document-extractor/internal/common"
)

const (
	AnthropicVersion     = "bedrock-2023-05-31"
	DefaultMaxTokens     = 4000
	ClassifyMaxTokens    = 100
	DefaultResourceGroup = "default"

	// maxErrorBody bounds how much of a failed response ends up in an error message.
	maxErrorBody = 512
)

// Config for the inference client.
type Config struct {
	DeploymentURL string
	ResourceGroup string        // AI-Resource-Group header; "default" when empty
	Timeout       time.Duration // http client timeout
	MaxTokens     int
}

// Document is the image or PDF sent alongside a prompt.
type Document struct {
	Data      []byte
	MediaType string
}

type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, logger *slog.Logger) *Client {
	if cfg.ResourceGroup == "" {
		cfg.ResourceGroup = DefaultResourceGroup
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = DefaultMaxTokens
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 120 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		cfg:    cfg,
		http:   &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}
}

type messageSource struct {
	Type      string `json:"type"`
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
}

type contentPart struct {
	Type   string         `json:"type"`
	Text   string         `json:"text,omitempty"`
	Source *messageSource `json:"source,omitempty"`
}

type message struct {
	Role    string        `json:"role"`
	Content []contentPart `json:"content"`
}

type invokeRequest struct {
	AnthropicVersion string    `json:"anthropic_version"`
	MaxTokens        int       `json:"max_tokens"`
	Messages         []message `json:"messages"`
	Temperature      float64   `json:"temperature"`
}

func newInvokeRequest(doc Document, prompt string, maxTokens int) invokeRequest {
	return invokeRequest{
		AnthropicVersion: AnthropicVersion,
		MaxTokens:        maxTokens,
		Messages: []message{{
			Role: "user",
			Content: []contentPart{
				{Type: "text", Text: prompt},
				{Type: "image", Source: &messageSource{
					Type:      "base64",
					MediaType: doc.MediaType,
					Data:      base64.StdEncoding.EncodeToString(doc.Data),
				}},
			},
		}},
		Temperature: 0.0,
	}
}

// Invoke sends prompt and document to the deployment and returns the text of
// the first content part. Failures are INFERENCE_ERROR; a 401 also matches
// common.ErrUnauthorized so callers can refresh their token.
func (c *Client) Invoke(ctx context.Context, doc Document, prompt, token string) (string, error) {
	return c.invoke(ctx, "extract", newInvokeRequest(doc, prompt, c.cfg.MaxTokens), token)
}

// Classify asks for the document type. It never fails: any error or empty
// answer yields the unknown type.
func (c *Client) Classify(ctx context.Context, doc Document, token string) string {
	text, err := c.invoke(ctx, "classify", newInvokeRequest(doc, ClassificationPrompt, ClassifyMaxTokens), token)
	if err != nil {
		c.logger.Warn("inference.classify.failed", "error", err)
		return constants.UnknownDocumentType
	}
	label := strings.TrimSpace(text)
	if label == "" {
		return constants.UnknownDocumentType
	}
	return label
}

func (c *Client) invoke(ctx context.Context, op string, body invokeRequest, token string) (string, error) {
	start := time.Now()
	endpoint := strings.TrimRight(c.cfg.DeploymentURL, "/") + "/invoke"
	headers := map[string]string{
		"Authorization":     "Bearer " + token,
		"AI-Resource-Group": c.cfg.ResourceGroup,
	}

	c.logger.Info("inference."+op+".start",
		"max_tokens", body.MaxTokens,
		"media_type", body.Messages[0].Content[1].Source.MediaType,
		"prompt_len", len(body.Messages[0].Content[0].Text),
	)

	raw, status, err := postJSON(ctx, c.http, endpoint, body, headers, c.logger)
	if err != nil {
		c.logger.Error("inference."+op+".http_error",
			"status", status, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return "", httpFailure(status, raw, err)
	}

	text := gjson.GetBytes(raw, "content.0.text")
	if text.Type != gjson.String {
		c.logger.Error("inference."+op+".no_content",
			"bytes", len(raw), "elapsed_ms", time.Since(start).Milliseconds())
		return "", common.InferenceError("response carried no text content", errors.New("missing content.0.text"))
	}

	c.logger.Info("inference."+op+".ok",
		"text_len", len(text.Str),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return text.Str, nil
}

func httpFailure(status int, body []byte, err error) error {
	if status == 0 {
		return common.InferenceError("inference request failed", err)
	}
	msg := fmt.Sprintf("inference service returned status %d", status)
	if snippet := strings.TrimSpace(string(body)); snippet != "" {
		if len(snippet) > maxErrorBody {
			snippet = snippet[:maxErrorBody]
		}
		msg += ": " + snippet
	}
	if status == http.StatusUnauthorized {
		return common.InferenceError(msg, errors.Join(common.ErrUnauthorized, err))
	}
	return common.InferenceError(msg, err)
}
