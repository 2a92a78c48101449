package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/driftlock/recall/pkg/types"
)

// PineconeConfig holds configuration for the Pinecone backend.
type PineconeConfig struct {
	APIKey  string
	BaseURL string        // control plane, default: https://api.pinecone.io
	Cloud   string        // serverless cloud, default: aws
	Region  string        // serverless region, default: us-east-1
	Timeout time.Duration // default: 30s
}

// PineconeProvider talks to Pinecone's REST API. Index hosts are resolved
// through the control plane and cached per index.
type PineconeProvider struct {
	cfg    PineconeConfig
	client *http.Client

	mu    sync.RWMutex
	hosts map[string]string
}

// NewPineconeProvider creates a Pinecone-backed provider.
func NewPineconeProvider(cfg PineconeConfig) *PineconeProvider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.pinecone.io"
	}
	if cfg.Cloud == "" {
		cfg.Cloud = "aws"
	}
	if cfg.Region == "" {
		cfg.Region = "us-east-1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	return &PineconeProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		hosts:  make(map[string]string),
	}
}

func (p *PineconeProvider) Name() string { return "pinecone" }

type pineconeCreateIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	Spec      struct {
		Serverless struct {
			Cloud  string `json:"cloud"`
			Region string `json:"region"`
		} `json:"serverless"`
	} `json:"spec"`
}

type pineconeIndexDescription struct {
	Name string `json:"name"`
	Host string `json:"host"`
}

// CreateIndex provisions a serverless index.
func (p *PineconeProvider) CreateIndex(ctx context.Context, name string, dimension int, metric string) error {
	reqBody := pineconeCreateIndexRequest{
		Name:      name,
		Dimension: dimension,
		Metric:    metric,
	}
	reqBody.Spec.Serverless.Cloud = p.cfg.Cloud
	reqBody.Spec.Serverless.Region = p.cfg.Region

	resp, err := p.do(ctx, "POST", p.cfg.BaseURL+"/indexes", reqBody)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone create index returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

// IndexExists checks the control plane for the index.
func (p *PineconeProvider) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := p.do(ctx, "GET", p.cfg.BaseURL+"/indexes/"+name, nil)
	if err != nil {
		return false, err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusOK:
		var desc pineconeIndexDescription
		if err := json.NewDecoder(resp.Body).Decode(&desc); err == nil && desc.Host != "" {
			p.mu.Lock()
			p.hosts[name] = desc.Host
			p.mu.Unlock()
		}
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		body, _ := io.ReadAll(resp.Body)
		return false, fmt.Errorf("pinecone describe index returned status %d: %s", resp.StatusCode, string(body))
	}
}

// DeleteIndex removes the index.
func (p *PineconeProvider) DeleteIndex(ctx context.Context, name string) error {
	resp, err := p.do(ctx, "DELETE", p.cfg.BaseURL+"/indexes/"+name, nil)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusNoContent, http.StatusOK:
		p.mu.Lock()
		delete(p.hosts, name)
		p.mu.Unlock()
		return nil
	case http.StatusNotFound:
		return ErrIndexNotFound
	default:
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone delete index returned status %d: %s", resp.StatusCode, string(body))
	}
}

// host resolves the data plane host for an index, consulting the cache first.
func (p *PineconeProvider) host(ctx context.Context, index string) (string, error) {
	p.mu.RLock()
	h, ok := p.hosts[index]
	p.mu.RUnlock()
	if ok {
		return h, nil
	}

	resp, err := p.do(ctx, "GET", p.cfg.BaseURL+"/indexes/"+index, nil)
	if err != nil {
		return "", err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrIndexNotFound
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("pinecone describe index returned status %d: %s", resp.StatusCode, string(body))
	}

	var desc pineconeIndexDescription
	if err := json.NewDecoder(resp.Body).Decode(&desc); err != nil {
		return "", fmt.Errorf("failed to decode index description: %w", err)
	}
	if desc.Host == "" {
		return "", fmt.Errorf("pinecone index %q has no host yet", index)
	}

	p.mu.Lock()
	p.hosts[index] = desc.Host
	p.mu.Unlock()
	return desc.Host, nil
}

type pineconeVector struct {
	ID       string            `json:"id"`
	Values   []float32         `json:"values"`
	Metadata map[string]any    `json:"metadata,omitempty"`
}

type pineconeUpsertRequest struct {
	Vectors   []pineconeVector `json:"vectors"`
	Namespace string           `json:"namespace,omitempty"`
}

// Upsert writes records to the index's data plane.
func (p *PineconeProvider) Upsert(ctx context.Context, index, namespace string, records []types.VectorRecord) error {
	host, err := p.host(ctx, index)
	if err != nil {
		return err
	}

	vectors := make([]pineconeVector, 0, len(records))
	for _, rec := range records {
		vectors = append(vectors, pineconeVector{
			ID:     rec.ID,
			Values: rec.Vector,
			Metadata: map[string]any{
				"role":      string(rec.Role),
				"text":      rec.Text,
				"timestamp": rec.Timestamp,
				"ownerId":   rec.OwnerID,
			},
		})
	}

	resp, err := p.do(ctx, "POST", "https://"+host+"/vectors/upsert", pineconeUpsertRequest{
		Vectors:   vectors,
		Namespace: namespace,
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone upsert returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

type pineconeQueryRequest struct {
	Vector          []float32 `json:"vector"`
	TopK            int       `json:"topK"`
	Namespace       string    `json:"namespace,omitempty"`
	IncludeMetadata bool      `json:"includeMetadata"`
}

type pineconeQueryResponse struct {
	Matches []struct {
		ID       string         `json:"id"`
		Score    float32        `json:"score"`
		Metadata map[string]any `json:"metadata"`
	} `json:"matches"`
}

// Query runs a similarity search against the index.
func (p *PineconeProvider) Query(ctx context.Context, index, namespace string, vector []float32, topK int) ([]types.Match, error) {
	host, err := p.host(ctx, index)
	if err != nil {
		return nil, err
	}

	resp, err := p.do(ctx, "POST", "https://"+host+"/query", pineconeQueryRequest{
		Vector:          vector,
		TopK:            topK,
		Namespace:       namespace,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("pinecone query returned status %d: %s", resp.StatusCode, string(body))
	}

	var respData pineconeQueryResponse
	if err := json.NewDecoder(resp.Body).Decode(&respData); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	matches := make([]types.Match, 0, len(respData.Matches))
	for _, m := range respData.Matches {
		rec := types.VectorRecord{ID: m.ID}
		if m.Metadata != nil {
			if role, ok := m.Metadata["role"].(string); ok {
				rec.Role = types.Role(role)
			}
			rec.Text, _ = m.Metadata["text"].(string)
			rec.OwnerID, _ = m.Metadata["ownerId"].(string)
			if ts, ok := m.Metadata["timestamp"].(float64); ok {
				rec.Timestamp = int64(ts)
			}
		}
		matches = append(matches, types.Match{Record: rec, Score: m.Score})
	}
	return matches, nil
}

type pineconeDeleteRequest struct {
	DeleteAll bool   `json:"deleteAll"`
	Namespace string `json:"namespace,omitempty"`
}

// DeleteNamespace drops every vector in the namespace.
func (p *PineconeProvider) DeleteNamespace(ctx context.Context, index, namespace string) error {
	host, err := p.host(ctx, index)
	if err != nil {
		return err
	}

	resp, err := p.do(ctx, "POST", "https://"+host+"/vectors/delete", pineconeDeleteRequest{
		DeleteAll: true,
		Namespace: namespace,
	})
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	// Pinecone returns 200 even when the namespace is empty.
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("pinecone delete returned status %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (p *PineconeProvider) Close() error { return nil }

func (p *PineconeProvider) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Api-Key", p.cfg.APIKey)
	req.Header.Set("X-Pinecone-API-Version", "2024-07")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	return resp, nil
}

var _ Provider = (*PineconeProvider)(nil)
