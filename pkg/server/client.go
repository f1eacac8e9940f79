package server

import (
	"context"
	"strings"

	"github.com/jmylchreest/smelly/pkg/findings"
	"github.com/jmylchreest/smelly/pkg/httputil"
	"github.com/jmylchreest/smelly/pkg/rules"
)

// Client talks to a running smelly server.
type Client struct {
	base string
	http *httputil.Client
}

// NewClient returns a client for the server at baseURL, such as
// "http://localhost:7733".
func NewClient(baseURL string, opts ...httputil.RetryOption) *Client {
	if !strings.Contains(baseURL, "://") {
		baseURL = "http://" + baseURL
	}
	return &Client{
		base: strings.TrimRight(baseURL, "/"),
		http: httputil.NewClient(opts...),
	}
}

// Health checks that the server answers.
func (c *Client) Health(ctx context.Context) error {
	return c.http.GetJSON(ctx, c.base+"/health", nil)
}

// Scan has the server scan one text blob.
func (c *Client) Scan(ctx context.Context, req ScanRequest) (*findings.Report, error) {
	var report findings.Report
	if err := c.http.PostJSON(ctx, c.base+"/api/scan", req, &report); err != nil {
		return nil, err
	}
	return &report, nil
}

// Rules lists the server's active rules.
func (c *Client) Rules(ctx context.Context) ([]rules.Info, error) {
	var out []rules.Info
	if err := c.http.GetJSON(ctx, c.base+"/api/rules", &out); err != nil {
		return nil, err
	}
	return out, nil
}
