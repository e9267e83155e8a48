package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"parley/transport"
)

// DefaultEndpoint is the unauthenticated gtx translate endpoint.
const DefaultEndpoint = "https://translate.googleapis.com/translate_a/single"

type Google struct {
	client   *transport.TracedClient
	endpoint string
}

func NewGoogle(endpoint string) *Google {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	return &Google{
		client:   transport.NewTracedClient(),
		endpoint: endpoint,
	}
}

func (g *Google) Name() string { return "google" }

// Warm opens the connection ahead of the first translation.
func (g *Google) Warm() { go g.client.Warm(g.endpoint) }

// Translate converts text to the target language. On failure it retries once
// with auto-detected source before giving up.
func (g *Google) Translate(ctx context.Context, text, source, target string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", nil
	}

	out, err := g.translateOnce(ctx, text, source, target)
	if err != nil && source != AutoDetect {
		out, err = g.translateOnce(ctx, text, AutoDetect, target)
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTranslation, err)
	}
	return out, nil
}

func (g *Google) translateOnce(ctx context.Context, text, source, target string) (string, error) {
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)
	reqURL := g.endpoint + "?" + q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", err
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate API error %d: %s", resp.StatusCode, resp.Body)
	}

	return parseGtx(resp.Body)
}

// parseGtx extracts the translated text from the gtx response, a nested JSON
// array whose first element lists [translated, original, ...] segments.
func parseGtx(body []byte) (string, error) {
	var payload []any
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", fmt.Errorf("translate response parse error: %w", err)
	}
	if len(payload) == 0 {
		return "", fmt.Errorf("empty translate response")
	}
	segments, ok := payload[0].([]any)
	if !ok {
		return "", fmt.Errorf("unexpected translate response shape")
	}

	var sb strings.Builder
	for _, seg := range segments {
		parts, ok := seg.([]any)
		if !ok || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			sb.WriteString(s)
		}
	}
	out := strings.TrimSpace(sb.String())
	if out == "" {
		return "", fmt.Errorf("translate response held no text")
	}
	return out, nil
}
