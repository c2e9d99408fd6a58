// Package ai holds the lesson generation and answer scoring collaborators:
// the hosted function service, OpenAI chat completions and an offline mock.
package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/example/lingua/pkg/models"
)

// maxErrorBody bounds how much of a failed response ends up in an error message
const maxErrorBody = 512

// HTTPError is returned for non-2xx responses
type HTTPError struct {
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("unexpected status %d: %s", e.StatusCode, e.Body)
}

// postJSON sends in as JSON and decodes a 2xx response into out
func postJSON(ctx context.Context, client *http.Client, url, apiKey string, in, out interface{}) error {
	requestData, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(requestData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+apiKey)
	}

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &HTTPError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// lessonCache remembers generated items so a scorer that only receives
// lesson and item ids can find the prompt and the suggested answer
type lessonCache struct {
	mu      sync.Mutex
	max     int
	order   []string
	lessons map[string]map[string]models.LessonItem
}

func newLessonCache(max int) *lessonCache {
	return &lessonCache{max: max, lessons: make(map[string]map[string]models.LessonItem)}
}

func (c *lessonCache) put(lessonID string, items []models.LessonItem) {
	c.mu.Lock()
	defer c.mu.Unlock()

	byID := make(map[string]models.LessonItem, len(items))
	for _, item := range items {
		byID[item.ID] = item
	}
	if _, ok := c.lessons[lessonID]; !ok {
		c.order = append(c.order, lessonID)
	}
	c.lessons[lessonID] = byID

	for len(c.order) > c.max {
		delete(c.lessons, c.order[0])
		c.order = c.order[1:]
	}
}

func (c *lessonCache) item(lessonID, itemID string) (models.LessonItem, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	items, ok := c.lessons[lessonID]
	if !ok {
		return models.LessonItem{}, fmt.Errorf("unknown lesson %q", lessonID)
	}
	item, ok := items[itemID]
	if !ok {
		return models.LessonItem{}, fmt.Errorf("unknown item %q in lesson %q", itemID, lessonID)
	}
	return item, nil
}
