package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"mercator-hq/switchboard/pkg/backends"
	"mercator-hq/switchboard/pkg/gateway"
	"mercator-hq/switchboard/pkg/server"
)

// adminClient talks to a running gateway's HTTP surface.
type adminClient struct {
	baseURL string
	http    *http.Client
}

func newAdminClient(addr string, timeout time.Duration) (*adminClient, error) {
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil || u.Host == "" {
		return nil, fmt.Errorf("invalid gateway address %q", addr)
	}
	return &adminClient{
		baseURL: strings.TrimRight(u.String(), "/"),
		http:    &http.Client{Timeout: timeout},
	}, nil
}

// apiError is a non-2xx answer from the gateway.
type apiError struct {
	StatusCode int
	Body       server.ErrorResponse
}

func (e *apiError) Error() string {
	if e.Body.Error.Message == "" {
		return fmt.Sprintf("gateway returned %d", e.StatusCode)
	}
	return fmt.Sprintf("gateway returned %d: %s", e.StatusCode, e.Body.Error.Message)
}

func (c *adminClient) Status(ctx context.Context, probe bool) (*gateway.Status, error) {
	path := "/status"
	if probe {
		path += "?probe=true"
	}
	var st gateway.Status
	if err := c.do(ctx, http.MethodGet, path, nil, &st); err != nil {
		return nil, err
	}
	return &st, nil
}

func (c *adminClient) SetEnabled(ctx context.Context, id string, enabled bool) error {
	action := "disable"
	if enabled {
		action = "enable"
	}
	return c.do(ctx, http.MethodPost, "/backends/"+url.PathEscape(id)+"/"+action, nil, nil)
}

func (c *adminClient) Route(ctx context.Context, req *backends.Request) (*backends.Response, error) {
	var resp backends.Response
	if err := c.do(ctx, http.MethodPost, "/v1/route", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *adminClient) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		apiErr := &apiError{StatusCode: resp.StatusCode}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr.Body)
		return apiErr
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode gateway response: %w", err)
	}
	return nil
}
