package controller

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/speedwagon-io/wificonnector/internal/config"
	"github.com/speedwagon-io/wificonnector/internal/retry"
)

const maxErrorBody = 512

// Client performs raw requests against the controller's public REST API.
type Client struct {
	log          *slog.Logger
	baseURL      string
	apiVersion   string
	loginVersion string
	client       *http.Client
}

func NewClient(log *slog.Logger, cfg *config.ControllerConfig) *Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: !cfg.VerifySSL} //nolint:gosec // self-signed controllers

	return &Client{
		log:          log,
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion:   cfg.APIVersion,
		loginVersion: cfg.LoginVersion(),
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: transport,
		},
	}
}

func (c *Client) Close() error {
	c.client.CloseIdleConnections()
	return nil
}

func (c *Client) endpoint(version, path string) string {
	return fmt.Sprintf("%s/wsg/api/public/%s%s", c.baseURL, version, path)
}

type response struct {
	header  http.Header
	cookies []*http.Cookie
	body    []byte
}

// do sends one request. Non-2xx statuses and transport failures come back
// as *retry.Error so callers can decide on retries and reauthentication.
func (c *Client) do(ctx context.Context, op, method, rawURL string, query url.Values, body any, cred *Credential) (*response, error) {
	var reader io.Reader = http.NoBody
	if body != nil {
		bodyBytes, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reader = bytes.NewReader(bodyBytes)
	}

	if cred != nil && cred.Ticket != "" {
		if query == nil {
			query = url.Values{}
		}
		query.Set("serviceTicket", cred.Ticket)
	}
	if len(query) > 0 {
		rawURL += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if cred != nil {
		cred.apply(req)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, retry.FromTransport(ctx, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, retry.FromTransport(ctx, op, fmt.Errorf("failed to read response body: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debug("controller returned error status",
			slog.String("op", op),
			slog.Int("status", resp.StatusCode),
		)
		return nil, retry.FromStatus(op, resp.StatusCode, resp.Header, truncate(respBody))
	}

	return &response{
		header:  resp.Header,
		cookies: resp.Cookies(),
		body:    respBody,
	}, nil
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxErrorBody {
		return s[:maxErrorBody]
	}
	return s
}
