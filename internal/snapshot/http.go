package snapshot

import (
	"context"
	"fmt"

	"github.com/wonny/aegis-risk/internal/contracts"
	"github.com/wonny/aegis-risk/pkg/httputil"
)

// HTTPSource fetches a snapshot from a collaborator endpoint (GET → JSON)
type HTTPSource struct {
	client *httputil.Client
	url    string
}

// NewHTTPSource creates an HTTP-backed source
func NewHTTPSource(client *httputil.Client, url string) *HTTPSource {
	return &HTTPSource{client: client, url: url}
}

// Name returns the source identifier
func (s *HTTPSource) Name() string {
	return "http:" + s.url
}

// Load fetches and decodes the snapshot
func (s *HTTPSource) Load(ctx context.Context) (*contracts.Snapshot, error) {
	var snap contracts.Snapshot
	if err := s.client.GetJSON(ctx, s.url, &snap); err != nil {
		return nil, fmt.Errorf("failed to fetch snapshot: %w", err)
	}
	return &snap, nil
}
