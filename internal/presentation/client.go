package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/voicedeck/voicedeck/internal/deck"
)

// Client fetches the slide deck read model over the gateway's REST API.
// The deck is read once at startup, outside the voice session core.
type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) FetchSlides(ctx context.Context) ([]deck.Slide, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api/v1/slides", nil)
	if err != nil {
		return nil, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch slides: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch slides: unexpected status %d", resp.StatusCode)
	}

	var slides []deck.Slide
	if err := json.NewDecoder(resp.Body).Decode(&slides); err != nil {
		return nil, fmt.Errorf("decode slides: %w", err)
	}
	return slides, nil
}
