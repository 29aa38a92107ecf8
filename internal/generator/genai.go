package generator

import (
	"context"
	"errors"

	genai "google.golang.org/genai"
)

// Gemini is a Service backed by the official genai client. The API key is
// read from the environment (GEMINI_API_KEY) by the client itself.
type Gemini struct {
	cli   *genai.Client
	model string
}

func NewGemini(ctx context.Context, model string) (*Gemini, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	return &Gemini{cli: cli, model: model}, nil
}

func (g *Gemini) Model() string { return g.model }

func (g *Gemini) Generate(ctx context.Context, req Request) (*Response, error) {
	full := req.Directive + "\n\n[INPUT IR]\n" + string(req.Slice)

	// Temperature 0 keeps responses as reproducible as the backend allows;
	// true reproducibility comes from the response cache.
	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{Temperature: genai.Ptr[float32](0)},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil ||
		len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, errors.New("empty response from model")
	}

	model := resp.ModelVersion
	if model == "" {
		model = g.model
	}
	return &Response{
		Content:    []byte(resp.Candidates[0].Content.Parts[0].Text),
		Model:      model,
		ResponseID: resp.ResponseID,
	}, nil
}
