// Package remotehttp implements the RemoteHttp Node RPC Pool variant: a
// plain REST client for a peer gateway instance exposing this same
// LNURL-Pay protocol, used to delegate invoice minting to a fleet member
// this node does not hold direct Lightning credentials for.
package remotehttp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"lnurl-gateway/internal/pool"
)

type invoiceRequest struct {
	AmountMsat      *uint64 `json:"amount_msat,omitempty"`
	Description     string  `json:"description,omitempty"`
	DescriptionHash string  `json:"description_hash,omitempty"`
	ExpirySecs      *uint32 `json:"expiry_secs,omitempty"`
}

type invoiceResponse struct {
	Invoice string `json:"invoice"`
}

type metricsResponse struct {
	Healthy              bool   `json:"healthy"`
	EffectiveInboundMsat uint64 `json:"effective_inbound_msat"`
}

type featuresResponse struct {
	InvoiceFromDescHash bool `json:"invoice_from_desc_hash"`
}

// Client is a pool.Backend backed by a remote gateway's HTTP API.
type Client struct {
	baseURL     string
	bearerToken string
	httpClient  *http.Client
	features    pool.Features
}

// Dial probes the remote gateway's feature endpoint once up front so
// subsequent GetInvoice calls know which description binding to expect.
func Dial(impl pool.Implementation) (pool.Backend, error) {
	c := &Client{
		baseURL:     impl.BaseURL,
		bearerToken: impl.BearerToken,
		httpClient:  &http.Client{Timeout: 15 * time.Second},
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var resp featuresResponse
	if err := c.do(ctx, http.MethodGet, "/features", nil, &resp); err != nil {
		return nil, fmt.Errorf("probing remote gateway features at %s: %w", impl.BaseURL, err)
	}
	c.features = pool.Features{InvoiceFromDescHash: resp.InvoiceFromDescHash}
	return c, nil
}

func (c *Client) GetInvoice(ctx context.Context, amountMsat *uint64, desc pool.Description, expirySecs *uint32) (string, error) {
	req := invoiceRequest{AmountMsat: amountMsat, ExpirySecs: expirySecs}
	switch desc.Kind {
	case pool.DescriptionDirect, pool.DescriptionDirectIntoHash:
		req.Description = desc.Text
	case pool.DescriptionHash:
		h := desc.ResolveHash()
		req.DescriptionHash = fmt.Sprintf("%x", h)
	}

	var resp invoiceResponse
	if err := c.do(ctx, http.MethodPost, "/invoice", req, &resp); err != nil {
		return "", fmt.Errorf("remote gateway invoice request: %w", err)
	}
	return resp.Invoice, nil
}

func (c *Client) GetMetrics(ctx context.Context) (pool.Metrics, error) {
	var resp metricsResponse
	if err := c.do(ctx, http.MethodGet, "/metrics", nil, &resp); err != nil {
		return pool.Metrics{}, fmt.Errorf("remote gateway metrics request: %w", err)
	}
	return pool.Metrics{Healthy: resp.Healthy, EffectiveInboundMsat: resp.EffectiveInboundMsat}, nil
}

func (c *Client) Features() pool.Features {
	return c.features
}

func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.bearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.bearerToken)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		data, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("remote gateway returned %s: %s", resp.Status, string(data))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
