package upstream

import (
	"context"
	"sync/atomic"

	"github.com/prompt-architect/relay/internal/types"
)

// ReloadableClient holds the active Client behind an atomic pointer so a
// config reload can swap it while completions are in flight. Calls started
// on the old client finish on the old client.
type ReloadableClient struct {
	current atomic.Pointer[Client]
}

func NewReloadableClient(c *Client) *ReloadableClient {
	r := &ReloadableClient{}
	r.current.Store(c)
	return r
}

// Swap installs a new client for subsequent calls.
func (r *ReloadableClient) Swap(c *Client) {
	r.current.Store(c)
}

func (r *ReloadableClient) Complete(ctx context.Context, req Request) (*types.Completion, error) {
	return r.current.Load().Complete(ctx, req)
}
