package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gulfautoparts/partsbot-backend/internal/models"
)

// ExtractedEntities is the structured result of entity extraction over a
// user's unified message text.
type ExtractedEntities struct {
	VINList          []string `json:"vin_list"`
	PartNumbers      []string `json:"part_numbers"`
	ItemDescriptions []string `json:"item_descriptions"`
}

// ResponseContext is the assembled hard data handed to response
// composition. The model answers from this, not from its own guesses.
type ResponseContext struct {
	VehicleInfo    *VehicleInfo        `json:"vehicle_info"`
	PartsFound     []models.PartResult `json:"parts_found"`
	SessionSummary string              `json:"session_summary"`
}

// ComposedReply is the model's answer plus the backend action it requested.
type ComposedReply struct {
	Text   string `json:"whatsapp_text"`
	Action string `json:"action"`
}

// Response actions the model may request.
const (
	ActionQuote      = "quote"
	ActionAskClarify = "ask_clarify"
	ActionInfoOnly   = "info_only"
	ActionEscalate   = "escalate"
)

// ResponderClient is the LLM collaborator: entity extraction and response
// composition. Prompt wording lives server-side with the model service.
type ResponderClient interface {
	ExtractEntities(ctx context.Context, text string) (ExtractedEntities, error)
	ComposeResponse(ctx context.Context, userText string, rc ResponseContext) (ComposedReply, error)
}

// OpenAIResponder talks to an OpenAI-compatible chat completions endpoint
// with JSON response mode.
type OpenAIResponder struct {
	client  *http.Client
	baseURL string
	apiKey  string
	model   string
}

// NewOpenAIResponder creates a responder from environment configuration
// (OPENAI_API_KEY, OPENAI_BASE_URL, OPENAI_MODEL).
func NewOpenAIResponder() (*OpenAIResponder, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY in environment variables")
	}

	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com/v1"
	}
	baseURL = strings.TrimRight(baseURL, "/")

	model := os.Getenv("OPENAI_MODEL")
	if model == "" {
		model = "gpt-4o-mini"
	}

	return &OpenAIResponder{
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
	}, nil
}

const extractionSystemPrompt = `You extract structured entities from car-parts sales chat messages.
Return JSON only: {"vin_list": [...], "part_numbers": [...], "item_descriptions": [...]}.
VINs are 17-character alphanumeric identifiers. Part numbers are explicit codes.
Item descriptions are free-text part names like "brake pads" or "oil filter".`

// ExtractEntities asks the model for VINs, part numbers and part
// descriptions found in text. A malformed model payload degrades to empty
// entities rather than failing the batch.
func (r *OpenAIResponder) ExtractEntities(ctx context.Context, text string) (ExtractedEntities, error) {
	content, err := r.chatJSON(ctx, extractionSystemPrompt, text)
	if err != nil {
		return ExtractedEntities{}, NewTransientFault("extract_entities", err)
	}

	var entities ExtractedEntities
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &entities); err != nil {
		// Auto-repair: unparseable extraction means no entities, not a dead batch.
		return ExtractedEntities{}, nil
	}
	return entities, nil
}

const compositionSystemPrompt = `You are a sales assistant for a WhatsApp car-parts store.
Answer from the provided context data only. Do not guess prices or stock.
Parts with status "out_of_stock" exist in the catalog but are not in stock; say so.
Status "error" means the catalog search failed; status "empty" means nothing was found in the catalog.
Return JSON only: {"whatsapp_text": "...", "action": "quote" | "ask_clarify" | "info_only" | "escalate"}.`

// ComposeResponse asks the model for the final reply given the user text
// and the assembled lookup context.
func (r *OpenAIResponder) ComposeResponse(ctx context.Context, userText string, rc ResponseContext) (ComposedReply, error) {
	ctxJSON, err := json.Marshal(rc)
	if err != nil {
		return ComposedReply{}, NewTerminalFault("compose_response", err)
	}

	user := fmt.Sprintf("User message:\n%s\n\nContext data:\n%s", userText, ctxJSON)
	content, err := r.chatJSON(ctx, compositionSystemPrompt, user)
	if err != nil {
		return ComposedReply{}, NewTransientFault("compose_response", err)
	}

	var reply ComposedReply
	if err := json.Unmarshal([]byte(stripCodeFences(content)), &reply); err != nil || reply.Text == "" {
		// Auto-repair missing reply fields with a safe default that routes
		// the conversation to a human.
		return ComposedReply{
			Text:   "Thank you for your message. Our team will contact you soon to assist you further.",
			Action: ActionEscalate,
		}, nil
	}
	if reply.Action == "" {
		reply.Action = ActionInfoOnly
	}
	return reply, nil
}

type chatRequest struct {
	Model          string        `json:"model"`
	Messages       []chatMessage `json:"messages"`
	Temperature    float32       `json:"temperature"`
	ResponseFormat struct {
		Type string `json:"type"`
	} `json:"response_format"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
}

func (r *OpenAIResponder) chatJSON(ctx context.Context, system, user string) (string, error) {
	reqBody := chatRequest{
		Model: r.model,
		Messages: []chatMessage{
			{Role: "system", Content: system},
			{Role: "user", Content: user},
		},
	}
	reqBody.ResponseFormat.Type = "json_object"

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/chat/completions", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", "Bearer "+r.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("chat completions returned status %d", resp.StatusCode)
	}

	var parsed chatResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", err
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat completions returned no choices")
	}
	return parsed.Choices[0].Message.Content, nil
}

// stripCodeFences removes markdown code fences some models wrap around JSON.
func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return strings.TrimSpace(s)
}
