package control

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/whispurrnet/overlay/orchestrator"
)

// Client talks to a Server over HTTP. It is what cmd/meshnode's whisper and
// resonate subcommands use to reach an already-running node.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient builds a Client against a control Server listening at addr
// (host:port, as passed to NewServer).
func NewClient(addr string) *Client {
	return &Client{
		baseURL:    "http://" + addr,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Whisper asks the running node to send a Whisper record to peerID.
func (c *Client) Whisper(ctx context.Context, peerID, content, intent string) (bool, error) {
	var resp whisperResponse
	err := c.post(ctx, "/whisper", whisperRequest{PeerID: peerID, Content: content, Intent: intent}, &resp)
	return resp.Delivered, err
}

// Resonate asks the running node to broadcast a Resonance record.
func (c *Client) Resonate(ctx context.Context, intent string, strength float64) (int, error) {
	var resp resonateResponse
	err := c.post(ctx, "/resonate", resonateRequest{Intent: intent, Strength: strength}, &resp)
	return resp.PeersAccepted, err
}

// Stats fetches the running node's current stats snapshot.
func (c *Client) Stats(ctx context.Context) (orchestrator.Stats, error) {
	var stats orchestrator.Stats
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/stats", nil)
	if err != nil {
		return stats, err
	}
	res, err := c.httpClient.Do(req)
	if err != nil {
		return stats, err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return stats, fmt.Errorf("control: stats request failed: %s", res.Status)
	}
	err = json.NewDecoder(res.Body).Decode(&stats)
	return stats, err
}

func (c *Client) post(ctx context.Context, path string, body, out interface{}) error {
	data, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("control: %s failed: %s", path, res.Status)
	}
	return json.NewDecoder(res.Body).Decode(out)
}
