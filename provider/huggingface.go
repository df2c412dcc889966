package provider

import (
	"bytes"
	"context"
	"encoding/base64"
	"net/http"

	"github.com/goccy/go-json"

	"github.com/Skryldev/filter-engine/core"
)

const huggingFaceDefaultURL = "https://api-inference.huggingface.co"

// HuggingFace serves mood enhancement only.
var huggingFaceMoods = map[string]Model{
	"dramatic":    {ID: "timbrooks/instruct-pix2pix", Prompt: "make it dramatic with deep shadows"},
	"cozy":        {ID: "timbrooks/instruct-pix2pix", Prompt: "make it warm and cozy"},
	"serene":      {ID: "timbrooks/instruct-pix2pix", Prompt: "make it calm and serene"},
	"energetic":   {ID: "timbrooks/instruct-pix2pix", Prompt: "make it vivid and energetic"},
	"melancholic": {ID: "timbrooks/instruct-pix2pix", Prompt: "make it muted and melancholic"},
}

// HuggingFace calls the hosted inference API, which answers with raw image
// bytes.
type HuggingFace struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewHuggingFace returns a HuggingFace provider.
func NewHuggingFace(baseURL, token string, client *http.Client) *HuggingFace {
	return &HuggingFace{baseURL: withDefault(baseURL, huggingFaceDefaultURL), token: token, client: client}
}

func (h *HuggingFace) Name() string { return "huggingface" }

func (h *HuggingFace) Resolve(kind core.AIKind, style string) (Model, bool) {
	if kind != core.AIMoodEnhancement {
		return Model{}, false
	}
	m, ok := huggingFaceMoods[style]
	return m, ok
}

func (h *HuggingFace) Invoke(ctx context.Context, m Model, req core.AIRequest) (*Output, error) {
	params := map[string]any{
		"prompt":               m.Prompt,
		"image_guidance_scale": 1 + 1.5*(1-req.Intensity),
	}
	for k, v := range req.ExtraParams {
		params[k] = v
	}
	payload, err := json.Marshal(map[string]any{
		"inputs":     base64.StdEncoding.EncodeToString(req.SourceImage),
		"parameters": params,
	})
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, h.baseURL+"/models/"+m.ID, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "image/png")
	if h.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+h.token)
	}

	img, _, err := send(ctx, h.client, httpReq)
	if err != nil {
		return nil, err
	}
	return &Output{Image: img, Confidence: 0.8}, nil
}
