package provider

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"

	"github.com/Skryldev/filter-engine/core"
)

const stabilityDefaultURL = "https://api.stability.ai"

// Stability serves style transfer only.
var stabilityStyles = map[string]Model{
	"watercolor":   {ID: "stable-diffusion-xl-1024-v1-0", Prompt: "watercolor painting, soft edges", Params: map[string]any{"style_preset": "watercolor"}},
	"oil_painting": {ID: "stable-diffusion-xl-1024-v1-0", Prompt: "oil painting, rich texture", Params: map[string]any{"style_preset": "oil-painting"}},
	"sketch":       {ID: "stable-diffusion-xl-1024-v1-0", Prompt: "pencil line art", Params: map[string]any{"style_preset": "line-art"}},
	"anime":        {ID: "stable-diffusion-xl-1024-v1-0", Prompt: "anime illustration", Params: map[string]any{"style_preset": "anime"}},
	"cyberpunk":    {ID: "stable-diffusion-xl-1024-v1-0", Prompt: "neon cyberpunk city", Params: map[string]any{"style_preset": "neon-punk"}},
}

// Stability calls the image-to-image endpoint with a multipart body and
// receives the raw image.
type Stability struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewStability returns a Stability provider.
func NewStability(baseURL, token string, client *http.Client) *Stability {
	return &Stability{baseURL: withDefault(baseURL, stabilityDefaultURL), token: token, client: client}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Resolve(kind core.AIKind, style string) (Model, bool) {
	if kind != core.AIStyleTransfer {
		return Model{}, false
	}
	m, ok := stabilityStyles[style]
	return m, ok
}

func (s *Stability) Invoke(ctx context.Context, m Model, req core.AIRequest) (*Output, error) {
	var body bytes.Buffer
	w := multipart.NewWriter(&body)

	part, err := w.CreateFormFile("init_image", "source")
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(req.SourceImage); err != nil {
		return nil, err
	}
	fields := map[string]string{
		"text_prompts[0][text]": m.Prompt,
		"init_image_mode":       "IMAGE_STRENGTH",
		// image_strength is how much of the source survives
		"image_strength": strconv.FormatFloat(1-req.Intensity, 'f', 3, 64),
	}
	for k, v := range m.Params {
		fields[k] = fmt.Sprint(v)
	}
	for k, v := range req.ExtraParams {
		fields[k] = fmt.Sprint(v)
	}
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/v1/generation/%s/image-to-image", s.baseURL, m.ID)
	httpReq, err := http.NewRequest(http.MethodPost, url, &body)
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", w.FormDataContentType())
	httpReq.Header.Set("Accept", "image/png")
	if s.token != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.token)
	}

	img, hdr, err := send(ctx, s.client, httpReq)
	if err != nil {
		return nil, err
	}
	conf := 0.9
	if reason := hdr.Get("Finish-Reason"); strings.EqualFold(reason, "CONTENT_FILTERED") {
		conf = 0.3
	}
	return &Output{Image: img, Confidence: conf, Params: map[string]any{"seed": hdr.Get("Seed")}}, nil
}
