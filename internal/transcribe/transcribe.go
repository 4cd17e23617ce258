package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Transcript is the collaborator's speech-to-text result.
type Transcript struct {
	Text     string    `json:"text"`
	Segments []Segment `json:"segments"`
}

// Segment is one timed span of the transcript, offsets in seconds.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Summary is the collaborator's structured digest of a transcript.
type Summary struct {
	Overview    string   `json:"overview"`
	KeyPoints   []string `json:"key_points"`
	Decisions   []string `json:"decisions"`
	ActionItems []string `json:"action_items"`
}

// Client is the transcription/summarization collaborator. Both calls
// are best-effort from the core's point of view: failures are logged
// and the corresponding artifact stays absent.
type Client interface {
	Transcribe(ctx context.Context, audioURL string) (*Transcript, error)
	Summarize(ctx context.Context, text string) (*Summary, error)
}

// HTTPClient talks to the collaborator over plain JSON POSTs.
type HTTPClient struct {
	baseURL string
	client  *http.Client
}

func NewHTTPClient(baseURL string) *HTTPClient {
	return &HTTPClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		// Transcription of a long recording is slow; this bounds the
		// worker, not an interactive request.
		client: &http.Client{Timeout: 2 * time.Minute},
	}
}

func (c *HTTPClient) Transcribe(ctx context.Context, audioURL string) (*Transcript, error) {
	var out Transcript
	if err := c.post(ctx, "/transcribe", map[string]string{"audio_url": audioURL}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) Summarize(ctx context.Context, text string) (*Summary, error) {
	var out Summary
	if err := c.post(ctx, "/summarize", map[string]string{"text": text}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *HTTPClient) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("call transcriber: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("transcriber returned %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode transcriber response: %w", err)
	}
	return nil
}
