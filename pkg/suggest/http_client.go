package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"inboxd/pkg/models"
)

// HTTPSuggester calls an external suggestion service over HTTP. The
// service receives the recent window and replies with a list of
// candidate texts.
type HTTPSuggester struct {
	endpoint string
	client   *http.Client
}

// NewHTTPSuggester targets endpoint. The per-call deadline comes from
// the gateway's context, so the client itself carries no timeout.
func NewHTTPSuggester(endpoint string) *HTTPSuggester {
	return &HTTPSuggester{endpoint: endpoint, client: &http.Client{}}
}

type suggestRequest struct {
	ThreadID     string           `json:"thread_id"`
	Platform     string           `json:"platform"`
	CustomerName string           `json:"customer_name,omitempty"`
	Messages     []suggestMessage `json:"messages"`
}

type suggestMessage struct {
	Direction string `json:"direction"`
	Content   string `json:"content"`
}

type suggestResponse struct {
	Suggestions []string `json:"suggestions"`
}

// Suggest implements Suggester.
func (s *HTTPSuggester) Suggest(ctx context.Context, t models.Thread, window []models.Message) ([]string, error) {
	req := suggestRequest{
		ThreadID:     t.ID,
		Platform:     t.Platform,
		CustomerName: t.CustomerName,
		Messages:     make([]suggestMessage, 0, len(window)),
	}
	for _, m := range window {
		req.Messages = append(req.Messages, suggestMessage{Direction: string(m.Direction), Content: m.Content})
	}
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || ctx.Err() != nil {
			return nil, fmt.Errorf("suggestion service: %w", models.ErrExternalTimeout)
		}
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggestion service returned %d", resp.StatusCode)
	}
	var out suggestResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode suggestion response: %w", err)
	}
	return out.Suggestions, nil
}
