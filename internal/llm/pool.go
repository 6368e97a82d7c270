package llm

import (
	"context"

	"polybot/internal/workers"
)

type pooledProvider struct {
	inner Provider
	pool  *workers.Pool
}

// WithPool runs every generation inside a pool slot. Put it inside the
// retry decorator so backoff sleeps do not hold a slot.
func WithPool(p Provider, pool *workers.Pool) Provider {
	return &pooledProvider{inner: p, pool: pool}
}

func (p *pooledProvider) Generate(ctx context.Context, req Request) (*Response, error) {
	var resp *Response
	err := p.pool.Do(ctx, func(ctx context.Context) error {
		var err error
		resp, err = p.inner.Generate(ctx, req)
		return err
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (p *pooledProvider) ModelID() string {
	return p.inner.ModelID()
}
