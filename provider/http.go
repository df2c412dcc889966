package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"strings"

	"github.com/goccy/go-json"

	apperrors "github.com/Skryldev/filter-engine/errors"
	"github.com/Skryldev/filter-engine/utils"
)

// maxResponseBytes bounds any single vendor response body.
const maxResponseBytes = 64 << 20

// httpStatusError is a non-2xx vendor response.
type httpStatusError struct {
	Status int
	Body   string
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.Status, e.Body)
}

// send executes req and returns the body of a 2xx response.
func send(ctx context.Context, client *http.Client, req *http.Request) ([]byte, http.Header, error) {
	resp, err := client.Do(req.WithContext(ctx))
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close()

	body, err := utils.ReadAll(ctx, resp.Body, maxResponseBytes, 0)
	if err != nil {
		return nil, nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, nil, &httpStatusError{Status: resp.StatusCode, Body: strings.TrimSpace(snippet)}
	}
	return body, resp.Header, nil
}

// fetchJSON posts payload as JSON and decodes the response into out.  Extra
// headers are added to the request.
func fetchJSON(ctx context.Context, client *http.Client, url, token string, header http.Header, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header[k] = v
	}
	return doJSON(ctx, client, req, token, out)
}

// getJSON fetches url and decodes the response into out.
func getJSON(ctx context.Context, client *http.Client, url, token string, out any) error {
	req, err := http.NewRequest(http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("%w: url %q", apperrors.ErrMalformedResponse, url)
	}
	return doJSON(ctx, client, req, token, out)
}

func doJSON(ctx context.Context, client *http.Client, req *http.Request, token string, out any) error {
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	raw, _, err := send(ctx, client, req)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrMalformedResponse, err)
	}
	return nil
}

// dataURI encodes img as a base64 data URI with its sniffed media type.
func dataURI(img []byte) string {
	mt := utils.DetectMediaType(img)
	if mt == "" {
		mt = "application/octet-stream"
	}
	return "data:" + mt + ";base64," + base64.StdEncoding.EncodeToString(img)
}

// decodeDataURI returns the payload of a base64 data URI.
func decodeDataURI(s string) ([]byte, bool) {
	if !strings.HasPrefix(s, "data:") {
		return nil, false
	}
	i := strings.Index(s, ";base64,")
	if i < 0 {
		return nil, false
	}
	b, err := base64.StdEncoding.DecodeString(s[i+len(";base64,"):])
	if err != nil {
		return nil, false
	}
	return b, true
}

func withDefault(base, def string) string {
	if base == "" {
		base = def
	}
	return strings.TrimRight(base, "/")
}
