package gradio

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// fileData is Gradio's serialized file reference.
type fileData struct {
	Path     string
	URL      string
	OrigName string
}

func asFileData(v any) (fileData, bool) {
	m, ok := v.(map[string]any)
	if !ok {
		return fileData{}, false
	}
	p, _ := m["path"].(string)
	if p == "" {
		return fileData{}, false
	}
	if meta, ok := m["meta"].(map[string]any); ok {
		if t, _ := meta["_type"].(string); t != "" && t != "gradio.FileData" {
			return fileData{}, false
		}
	}
	u, _ := m["url"].(string)
	orig, _ := m["orig_name"].(string)
	return fileData{Path: p, URL: u, OrigName: orig}, true
}

// resolveFiles replaces file references in the outputs with local copies.
func (c *Client) resolveFiles(ctx context.Context, outputs []any) ([]any, error) {
	for i, v := range outputs {
		switch val := v.(type) {
		case map[string]any:
			fd, ok := asFileData(val)
			if !ok {
				continue
			}
			local, err := c.download(ctx, fd)
			if err != nil {
				return nil, err
			}
			outputs[i] = local
		case []any:
			resolved, err := c.resolveFiles(ctx, val)
			if err != nil {
				return nil, err
			}
			outputs[i] = resolved
		}
	}
	return outputs, nil
}

// download fetches a remote file into the client's download directory.
func (c *Client) download(ctx context.Context, fd fileData) (string, error) {
	src := fd.URL
	if src == "" {
		src = c.base + c.prefix + "/file=" + fd.Path
	} else if u, err := url.Parse(src); err == nil && !u.IsAbs() {
		src = c.base + "/" + strings.TrimPrefix(src, "/")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return "", fmt.Errorf("creating download request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading %s: %w", fd.Path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading %s: status %d", fd.Path, resp.StatusCode)
	}

	name := fd.OrigName
	if name == "" {
		name = path.Base(filepath.ToSlash(fd.Path))
	}
	c.downloads++
	dest := filepath.Join(c.downloadDir, fmt.Sprintf("%03d-%s", c.downloads, filepath.Base(name)))

	f, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", dest, err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return "", fmt.Errorf("writing %s: %w", dest, err)
	}

	slog.Debug("gradio file downloaded", "remote", fd.Path, "local", dest, "bytes", n)
	return dest, nil
}
