// Package httpsource speaks the dataset HTTP API in both directions: Client
// consumes it as a dataset.Source and dataset.ResultSource, and Handler
// serves any Source and ResultSource over it.
//
//	GET /api/datasets/{id}/frames/{n}/points?resolution=R
//	GET /api/datasets/{id}/trajectory
//	GET /api/datasets/{id}/frames/{n}/images/{sensor}
//	GET /api/results/{id}
package httpsource

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/banshee-data/slamview/internal/dataset"
	"github.com/banshee-data/slamview/internal/httputil"
)

// maxBodyBytes caps a single response body.
const maxBodyBytes = 256 << 20

// Client fetches datasets from a remote server.
type Client struct {
	base *url.URL
	http httputil.HTTPClient
}

// NewClient returns a client for the server at baseURL. A nil hc uses
// http.DefaultClient.
func NewClient(baseURL string, hc httputil.HTTPClient) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base url %q: scheme must be http or https", baseURL)
	}
	if hc == nil {
		hc = httputil.NewStandardClient(nil)
	}
	return &Client{base: u, http: hc}, nil
}

func (c *Client) get(ctx context.Context, query url.Values, segments ...string) ([]byte, error) {
	u := c.base.JoinPath(segments...)
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("GET %s: %v: %w", u.Path, err, dataset.ErrUnavailable)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("GET %s: read body: %v: %w", u.Path, err, dataset.ErrUnavailable)
	}
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("GET %s: %s: %w", u.Path, errorMessage(body), dataset.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("GET %s: status %d: %s: %w", u.Path, resp.StatusCode, errorMessage(body), dataset.ErrUnavailable)
	}
	return body, nil
}

// errorMessage extracts {"error": "..."} from a body, falling back to the
// status text of the raw body.
func errorMessage(body []byte) string {
	var e struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	if len(body) > 200 {
		body = body[:200]
	}
	return string(body)
}

func (c *Client) getJSON(ctx context.Context, v interface{}, query url.Values, segments ...string) error {
	body, err := c.get(ctx, query, segments...)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("decode %v: %v: %w", segments, err, dataset.ErrUnavailable)
	}
	return nil
}

func frameSeg(frame uint32) string { return strconv.FormatUint(uint64(frame), 10) }

// FramePoints implements dataset.Source. Ragged arrays from the server are
// reported as unavailable data.
func (c *Client) FramePoints(ctx context.Context, datasetID string, frame uint32, resolution int) (dataset.FramePoints, error) {
	var q url.Values
	if resolution > 0 {
		q = url.Values{"resolution": {strconv.Itoa(resolution)}}
	}
	var fp dataset.FramePoints
	if err := c.getJSON(ctx, &fp, q, "api", "datasets", datasetID, "frames", frameSeg(frame), "points"); err != nil {
		return dataset.FramePoints{}, err
	}
	if err := fp.Validate(); err != nil {
		return dataset.FramePoints{}, fmt.Errorf("%v: %w", err, dataset.ErrUnavailable)
	}
	return fp, nil
}

// Trajectory implements dataset.Source.
func (c *Client) Trajectory(ctx context.Context, datasetID string) (dataset.TrajectoryResponse, error) {
	var tr dataset.TrajectoryResponse
	err := c.getJSON(ctx, &tr, nil, "api", "datasets", datasetID, "trajectory")
	return tr, err
}

// FrameImage implements dataset.Source.
func (c *Client) FrameImage(ctx context.Context, datasetID string, frame uint32, sensor string) ([]byte, error) {
	return c.get(ctx, nil, "api", "datasets", datasetID, "frames", frameSeg(frame), "images", sensor)
}

// Result implements dataset.ResultSource.
func (c *Client) Result(ctx context.Context, resultID string) (dataset.Result, error) {
	var res dataset.Result
	err := c.getJSON(ctx, &res, nil, "api", "results", resultID)
	return res, err
}

// StatusFor maps a source error onto an HTTP status.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, dataset.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusServiceUnavailable
	}
}
