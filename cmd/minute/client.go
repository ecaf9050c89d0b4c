package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/kalambet/minute/internal/api"
	"github.com/kalambet/minute/internal/config"
	"github.com/kalambet/minute/internal/storage"
)

type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	secret, err := config.AuthSecret()
	if err != nil {
		return nil, fmt.Errorf("getting auth secret: %w", err)
	}

	token, err := api.IssueToken(secret, cfg.Auth.Owner, cfg.TokenTTL())
	if err != nil {
		return nil, fmt.Errorf("minting token: %w", err)
	}

	return &apiClient{
		baseURL:    fmt.Sprintf("http://127.0.0.1:%d", cfg.Server.Port),
		token:      token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is minute running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "GET", path, nil)
}

func (c *apiClient) post(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, "POST", path, body)
}

func (c *apiClient) put(ctx context.Context, path string, body any) (*http.Response, error) {
	return c.do(ctx, "PUT", path, body)
}

func (c *apiClient) delete(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, "DELETE", path, nil)
}

// apiEnvelope mirrors the server's response wrapper.
type apiEnvelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
	Count   *int            `json:"count"`
}

// decodeEnvelope reads and closes the response body. A non-success
// envelope becomes an error carrying the server's message.
func decodeEnvelope(resp *http.Response) (apiEnvelope, error) {
	defer resp.Body.Close()

	var env apiEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return apiEnvelope{}, fmt.Errorf("server returned %d (unreadable body: %w)", resp.StatusCode, err)
	}
	if env.Status != "success" {
		if env.Message != "" {
			return apiEnvelope{}, fmt.Errorf("%s", env.Message)
		}
		return apiEnvelope{}, fmt.Errorf("server returned %d", resp.StatusCode)
	}
	return env, nil
}

func decodeDecision(resp *http.Response) (storage.Decision, error) {
	env, err := decodeEnvelope(resp)
	if err != nil {
		return storage.Decision{}, err
	}
	var d storage.Decision
	if err := json.Unmarshal(env.Data, &d); err != nil {
		return storage.Decision{}, fmt.Errorf("decoding decision: %w", err)
	}
	return d, nil
}

func decodeDecisions(resp *http.Response) ([]storage.Decision, error) {
	env, err := decodeEnvelope(resp)
	if err != nil {
		return nil, err
	}
	var ds []storage.Decision
	if err := json.Unmarshal(env.Data, &ds); err != nil {
		return nil, fmt.Errorf("decoding decisions: %w", err)
	}
	return ds, nil
}
