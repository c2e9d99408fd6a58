package ai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/example/lingua/pkg/models"
)

const defaultChatURL = "https://api.openai.com/v1/chat/completions"

// ChatGPT represents a client for the OpenAI chat completions API that
// generates lessons and grades answers in JSON mode
type ChatGPT struct {
	apiKey      string
	apiURL      string
	model       string
	temperature float64
	http        *http.Client
	lessons     *lessonCache
}

// ChatOption configures a ChatGPT client
type ChatOption func(*ChatGPT)

// WithChatURL points the client at a compatible endpoint
func WithChatURL(url string) ChatOption {
	return func(c *ChatGPT) { c.apiURL = url }
}

func WithHTTPClient(client *http.Client) ChatOption {
	return func(c *ChatGPT) { c.http = client }
}

// NewChatGPT creates a new ChatGPT client
func NewChatGPT(apiKey, model string, opts ...ChatOption) (*ChatGPT, error) {
	if apiKey == "" {
		return nil, errors.New("OpenAI API key is not set")
	}
	c := &ChatGPT{
		apiKey:      apiKey,
		apiURL:      defaultChatURL,
		model:       model,
		temperature: 0.7,
		http:        &http.Client{},
		lessons:     newLessonCache(32),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Message represents a message in the ChatGPT conversation
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type responseFormat struct {
	Type string `json:"type"`
}

// ChatRequest represents a request to the ChatGPT API
type ChatRequest struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    float64         `json:"temperature"`
	ResponseFormat *responseFormat `json:"response_format,omitempty"`
}

// ChatResponse represents a response from the ChatGPT API
type ChatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// completeJSON sends one system+user exchange and decodes the JSON reply into out
func (c *ChatGPT) completeJSON(ctx context.Context, system, prompt string, temperature float64, out interface{}) error {
	request := ChatRequest{
		Model: c.model,
		Messages: []Message{
			{Role: "system", Content: system},
			{Role: "user", Content: prompt},
		},
		Temperature:    temperature,
		ResponseFormat: &responseFormat{Type: "json_object"},
	}

	var response ChatResponse
	if err := postJSON(ctx, c.http, c.apiURL, c.apiKey, request, &response); err != nil {
		return err
	}
	if response.Error != nil {
		return fmt.Errorf("API error: %s", response.Error.Message)
	}
	if len(response.Choices) == 0 {
		return errors.New("no response choices returned")
	}

	content := strings.TrimSpace(response.Choices[0].Message.Content)
	if err := json.Unmarshal([]byte(content), out); err != nil {
		return fmt.Errorf("failed to decode completion: %w", err)
	}
	return nil
}

const lessonSystemPrompt = `You are a language tutor. Reply with a JSON object only, shaped as
{"items":[{"id":"1","prompt":"...","suggestedAnswer":"...","focus":{"terms":["..."],"concepts":["..."]}}]}.
Prompts are written in the learner's native language and ask for an answer in the target language.
Terms are target-language vocabulary; concepts are short names of grammar points.`

// GenerateLesson asks the model for ten practice items
func (c *ChatGPT) GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.GeneratedLesson, error) {
	prompt := fmt.Sprintf(
		"Create 10 short translation exercises about %q for a %s learner of %s whose native language is %s.",
		req.Topic, req.Level, req.Language, req.NativeLanguage,
	)

	var out struct {
		Items []models.LessonItem `json:"items"`
	}
	if err := c.completeJSON(ctx, lessonSystemPrompt, prompt, c.temperature, &out); err != nil {
		return nil, err
	}

	lesson := &models.GeneratedLesson{
		LessonID: uuid.NewString(),
		Request:  req,
		Items:    out.Items,
	}
	c.lessons.put(lesson.LessonID, lesson.Items)
	return lesson, nil
}

const gradeSystemPrompt = `You grade language exercises. Reply with a JSON object only, shaped as
{"correctedAnswer":"...","spellingScore":0-100,"grammarScore":0-100,"notes":"..."}.
Both scores are integers from 0 to 100.`

// ScoreAttempt grades an answer to an item this client generated
func (c *ChatGPT) ScoreAttempt(ctx context.Context, attempt models.Attempt) (*models.Grade, error) {
	item, err := c.lessons.item(attempt.LessonID, attempt.ItemID)
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(
		"Exercise: %s\nReference answer: %s\nLearner answer: %s",
		item.Prompt, item.SuggestedAnswer, attempt.Answer,
	)

	var feedback models.Feedback
	// Lower temperature keeps grading stable
	if err := c.completeJSON(ctx, gradeSystemPrompt, prompt, 0.2, &feedback); err != nil {
		return nil, err
	}
	return &models.Grade{Feedback: feedback}, nil
}
