package ai

import (
	"context"
	"net/http"
	"strings"

	"github.com/example/lingua/pkg/models"
)

// FunctionsClient calls the hosted lesson functions:
// POST {base}/generate-lesson and POST {base}/submit-answer
type FunctionsClient struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// NewFunctionsClient creates a client for the function service at baseURL.
// httpClient may be nil.
func NewFunctionsClient(baseURL, apiKey string, httpClient *http.Client) *FunctionsClient {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &FunctionsClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		http:    httpClient,
	}
}

// GenerateLesson asks the service for lesson items
func (c *FunctionsClient) GenerateLesson(ctx context.Context, req models.LessonRequest) (*models.GeneratedLesson, error) {
	var out models.GeneratedLesson
	if err := postJSON(ctx, c.http, c.baseURL+"/generate-lesson", c.apiKey, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScoreAttempt submits an answer for grading
func (c *FunctionsClient) ScoreAttempt(ctx context.Context, attempt models.Attempt) (*models.Grade, error) {
	var out models.Grade
	if err := postJSON(ctx, c.http, c.baseURL+"/submit-answer", c.apiKey, attempt, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
