package generator

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/roach88/dspec/internal/ir"
)

// Request is one delegated generation call: the step's directive plus the
// IR slice serialized as JSON.
type Request struct {
	Directive string
	Slice     []byte
}

// Response is the external service's reply. Model and ResponseID identify
// exactly which service produced the content; both land in provenance.
type Response struct {
	Content    []byte
	Model      string
	ResponseID string
}

// Service is an external generation backend. Model returns the pinned model
// identifier, which is part of the response cache key: replaying a cached
// response from a different model would silently change outputs.
type Service interface {
	Model() string
	Generate(ctx context.Context, req Request) (*Response, error)
}

// ResponseCache persists delegated responses across runs so an unchanged
// step replays its prior response instead of re-invoking the service.
// Get returns (nil, nil) on a miss.
type ResponseCache interface {
	GetResponse(key string) (*Response, error)
	PutResponse(key string, resp *Response) error
}

// Delegated wraps a generation Service with response caching. It performs
// a single attempt per call; retry policy belongs to the executor.
type Delegated struct {
	svc   Service
	cache ResponseCache // nil disables caching
}

func NewDelegated(svc Service, cache ResponseCache) *Delegated {
	return &Delegated{svc: svc, cache: cache}
}

func (g *Delegated) Generate(ctx context.Context, slice *ir.Slice, cfg StepConfig) (*Output, error) {
	if cfg.Directive == "" {
		return nil, &GenerationError{Code: ErrService, Step: cfg.StepName, Message: "delegated step has no directive"}
	}

	sliceHash, err := slice.Hash()
	if err != nil {
		return nil, &GenerationError{Code: ErrService, Step: cfg.StepName, Message: "hashing input slice", Err: err}
	}
	directiveHash := ir.ConfigHash(map[string]string{"directive": cfg.Directive})
	key := ir.GenCacheKey(sliceHash, directiveHash, g.svc.Model())

	if g.cache != nil {
		cached, err := g.cache.GetResponse(key)
		if err != nil {
			return nil, &GenerationError{Code: ErrService, Step: cfg.StepName, Message: "reading response cache", Err: err}
		}
		if cached != nil {
			return &Output{
				Content:    cached.Content,
				Model:      cached.Model,
				ResponseID: cached.ResponseID,
				CacheHit:   true,
			}, nil
		}
	}

	payload, err := json.MarshalIndent(slice, "", "  ")
	if err != nil {
		return nil, &GenerationError{Code: ErrService, Step: cfg.StepName, Message: "serializing input slice", Err: err}
	}

	resp, err := g.svc.Generate(ctx, Request{Directive: cfg.Directive, Slice: payload})
	if err != nil {
		return nil, &GenerationError{Code: ErrService, Step: cfg.StepName, Message: "generation service call", Err: err}
	}

	out := &Output{Content: resp.Content, Model: resp.Model, ResponseID: resp.ResponseID}
	if g.cache != nil {
		if err := g.cache.PutResponse(key, resp); err != nil {
			out.Diagnostics = append(out.Diagnostics,
				fmt.Sprintf("response cache write failed: %v", err))
		}
	}
	return out, nil
}
