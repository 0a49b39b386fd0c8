package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// archiveDocument matches the top level of the archive endpoint: an array of
// documents, each holding a list of code entries.
type archiveDocument struct {
	Codes []ArchiveEntry `json:"codes"`
}

// ArchiveClient pulls the JSON code archive over HTTP.
type ArchiveClient struct {
	url    string
	client *http.Client
}

// NewArchiveClient creates a client for the given archive endpoint.
func NewArchiveClient(url string, timeout time.Duration) *ArchiveClient {
	return &ArchiveClient{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves the current archive contents.
func (c *ArchiveClient) Fetch(ctx context.Context) ([]ArchiveEntry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build archive request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch archive: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("archive returned status %d", resp.StatusCode)
	}

	var docs []archiveDocument
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("failed to decode archive: %w", err)
	}
	if len(docs) == 0 {
		return nil, nil
	}

	return docs[0].Codes, nil
}
