package portal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// RemoteAgent implements Agent against a browser-driver sidecar speaking a
// small JSON protocol. The sidecar owns the actual browser; one RemoteAgent
// corresponds to one browser context over there.
type RemoteAgent struct {
	baseURL string
	client  *http.Client
}

// NewRemoteAgent creates an agent talking to the sidecar at baseURL.
func NewRemoteAgent(baseURL string, timeout time.Duration) *RemoteAgent {
	return &RemoteAgent{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type driverRequest struct {
	URL       string `json:"url,omitempty"`
	Field     string `json:"field,omitempty"`
	Value     string `json:"value,omitempty"`
	Selector  string `json:"selector,omitempty"`
	ElementID string `json:"element_id,omitempty"`
}

type driverResponse struct {
	Found     bool     `json:"found"`
	Displayed bool     `json:"displayed"`
	Text      string   `json:"text"`
	Values    []string `json:"values"`
	Error     string   `json:"error"`
}

// Navigate implements Agent.
func (a *RemoteAgent) Navigate(ctx context.Context, url string) error {
	_, err := a.call(ctx, "navigate", driverRequest{URL: url})
	return err
}

// FillField implements Agent.
func (a *RemoteAgent) FillField(ctx context.Context, fieldID, value string) error {
	_, err := a.call(ctx, "fill", driverRequest{Field: fieldID, Value: value})
	return err
}

// Click implements Agent.
func (a *RemoteAgent) Click(ctx context.Context, selector string) (bool, error) {
	resp, err := a.call(ctx, "click", driverRequest{Selector: selector})
	if err != nil {
		return false, err
	}
	return resp.Found, nil
}

// ReadPageText implements Agent.
func (a *RemoteAgent) ReadPageText(ctx context.Context) (string, error) {
	resp, err := a.call(ctx, "text", driverRequest{})
	if err != nil {
		return "", err
	}
	return resp.Text, nil
}

// ElementDisplayed implements Agent.
func (a *RemoteAgent) ElementDisplayed(ctx context.Context, elementID string) (bool, error) {
	resp, err := a.call(ctx, "displayed", driverRequest{ElementID: elementID})
	if err != nil {
		return false, err
	}
	return resp.Displayed, nil
}

// ElementTexts implements Agent.
func (a *RemoteAgent) ElementTexts(ctx context.Context, selector string) ([]string, error) {
	resp, err := a.call(ctx, "texts", driverRequest{Selector: selector})
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

// Close implements Agent.
func (a *RemoteAgent) Close(ctx context.Context) error {
	_, err := a.call(ctx, "close", driverRequest{})
	return err
}

func (a *RemoteAgent) call(ctx context.Context, action string, payload driverRequest) (*driverResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode driver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.baseURL+"/"+action, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build driver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("driver %s failed: %w", action, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("driver %s returned status %d", action, httpResp.StatusCode)
	}

	var resp driverResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode driver response: %w", err)
	}
	if resp.Error != "" {
		return nil, fmt.Errorf("driver %s: %s", action, resp.Error)
	}

	return &resp, nil
}
