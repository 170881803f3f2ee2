// Package gradio implements transport.Client against a Gradio application.
//
// Gradio exposes every event handler registered with an api_name as a named
// endpoint. A call is a two step exchange:
//
//	POST {prefix}/call/{name}            {"data": [...]}  -> {"event_id": "..."}
//	GET  {prefix}/call/{name}/{event_id} server-sent events until "complete"
//
// Positional data is built from keyword arguments using the endpoint
// description served at {prefix}/info. Gradio 5 mounts everything under
// /gradio_api; Gradio 4 serves it from the root.
package gradio

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/nadzzz/ttsprobe/internal/transport"
)

const (
	modernPrefix = "/gradio_api"
	legacyPrefix = ""
)

// Options configures a Client.
type Options struct {
	// URL is the root of the Gradio app (e.g. http://127.0.0.1:7860/).
	URL string

	// Timeout bounds each Predict call including result streaming.
	// Zero means no limit beyond the caller's context.
	Timeout time.Duration

	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client

	// DownloadDir receives file outputs. When empty a temporary directory
	// is created and removed on Close.
	DownloadDir string
}

// Client talks to one Gradio app. It is not safe for concurrent use.
type Client struct {
	base        string
	prefix      string
	http        *http.Client
	timeout     time.Duration
	endpoints   map[string]endpoint
	downloadDir string
	ownsDir     bool
	downloads   int
}

var _ transport.Client = (*Client)(nil)

// Connect fetches the API description of the app at opts.URL. Any failure
// here wraps transport.ErrConnection.
func Connect(ctx context.Context, opts Options) (*Client, error) {
	base := strings.TrimRight(strings.TrimSpace(opts.URL), "/")
	if base == "" {
		return nil, fmt.Errorf("%w: empty url", transport.ErrConnection)
	}

	c := &Client{
		base:    base,
		http:    opts.HTTPClient,
		timeout: opts.Timeout,
	}
	if c.http == nil {
		c.http = &http.Client{}
	}

	info, prefix, err := c.fetchInfo(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", transport.ErrConnection, base, err)
	}
	c.prefix = prefix
	c.endpoints = info.NamedEndpoints

	if opts.DownloadDir != "" {
		if err := os.MkdirAll(opts.DownloadDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating download dir: %w", err)
		}
		c.downloadDir = opts.DownloadDir
	} else {
		dir, err := os.MkdirTemp("", "ttsprobe-*")
		if err != nil {
			return nil, fmt.Errorf("creating download dir: %w", err)
		}
		c.downloadDir = dir
		c.ownsDir = true
	}

	slog.Debug("gradio connected", "url", base, "prefix", prefix, "endpoints", len(c.endpoints))
	return c, nil
}

// fetchInfo tries the Gradio 5 layout first and falls back to Gradio 4.
func (c *Client) fetchInfo(ctx context.Context) (*apiInfo, string, error) {
	var lastErr error
	for _, prefix := range []string{modernPrefix, legacyPrefix} {
		var info apiInfo
		status, err := c.getJSON(ctx, c.base+prefix+"/info", &info)
		if err != nil {
			lastErr = err
			if status == http.StatusNotFound {
				continue
			}
			return nil, "", err
		}
		return &info, prefix, nil
	}
	return nil, "", lastErr
}

// Endpoints lists the named endpoints the app exposes.
func (c *Client) Endpoints() []string {
	names := make([]string, 0, len(c.endpoints))
	for name := range c.endpoints {
		names = append(names, name)
	}
	return names
}

// Predict implements transport.Client.
func (c *Client) Predict(ctx context.Context, procedure string, params map[string]any) ([]any, error) {
	name := strings.TrimPrefix(procedure, "/")

	out, err := c.predict(ctx, name, params)
	if err != nil {
		return nil, &transport.CallError{Procedure: "/" + name, Err: err}
	}
	return out, nil
}

func (c *Client) predict(ctx context.Context, name string, params map[string]any) ([]any, error) {
	ep, ok := c.endpoints["/"+name]
	if !ok {
		return nil, fmt.Errorf("cannot find a function with api_name /%s", name)
	}
	data, err := ep.bind(params)
	if err != nil {
		return nil, err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	eventID, err := c.submit(ctx, name, data)
	if err != nil {
		return nil, err
	}
	slog.Debug("gradio call submitted", "api_name", name, "event_id", eventID)

	outputs, err := c.await(ctx, name, eventID)
	if err != nil {
		return nil, err
	}

	outputs, err = c.resolveFiles(ctx, outputs)
	if err != nil {
		return nil, err
	}

	slog.Debug("gradio call complete", "api_name", name, "outputs", len(outputs), "duration", time.Since(start))
	return outputs, nil
}

// submit queues the call and returns its event id.
func (c *Client) submit(ctx context.Context, name string, data []any) (string, error) {
	body, err := json.Marshal(map[string]any{"data": data})
	if err != nil {
		return "", fmt.Errorf("marshalling call data: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+c.prefix+"/call/"+name, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("submitting call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("submitting call: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var queued struct {
		EventID string `json:"event_id"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&queued); err != nil {
		return "", fmt.Errorf("decoding call response: %w", err)
	}
	if queued.EventID == "" {
		return "", errors.New("call response carried no event_id")
	}
	return queued.EventID, nil
}

// await streams the call's events until it completes or fails.
func (c *Client) await(ctx context.Context, name, eventID string) ([]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+c.prefix+"/call/"+name+"/"+eventID, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "text/event-stream")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("streaming result: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("streaming result: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	events := newEventReader(resp.Body)
	for {
		evt, err := events.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, errors.New("event stream ended without a result")
			}
			return nil, fmt.Errorf("reading event stream: %w", err)
		}

		switch evt.Name {
		case "complete":
			var outputs []any
			if err := json.Unmarshal([]byte(evt.Data), &outputs); err != nil {
				return nil, fmt.Errorf("decoding result: %w", err)
			}
			return outputs, nil

		case "error":
			return nil, remoteError(evt.Data)

		case "generating", "heartbeat":
			slog.Debug("gradio event", "api_name", name, "event", evt.Name)

		default:
			slog.Debug("gradio unknown event", "api_name", name, "event", evt.Name)
		}
	}
}

// remoteError turns the payload of an "error" event into an error. Gradio
// sends null unless the app was launched with show_error.
func remoteError(data string) error {
	data = strings.TrimSpace(data)
	if data == "" || data == "null" {
		return errors.New("the upstream app raised an error")
	}
	var msg string
	if err := json.Unmarshal([]byte(data), &msg); err == nil {
		return errors.New(msg)
	}
	return errors.New(data)
}

// getJSON decodes a JSON GET response into dest and returns the HTTP status.
func (c *Client) getJSON(ctx context.Context, url string, dest any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, fmt.Errorf("GET %s: status %d: %s", url, resp.StatusCode, strings.TrimSpace(string(msg)))
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return resp.StatusCode, fmt.Errorf("decoding %s: %w", url, err)
	}
	return resp.StatusCode, nil
}

// Close removes downloaded files when the client created their directory.
func (c *Client) Close() error {
	if c.ownsDir && c.downloadDir != "" {
		return os.RemoveAll(c.downloadDir)
	}
	return nil
}
