package gateway

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"redub/internal/api"
	"redub/internal/logging"
)

// ResultFileName extracts the artifact file name from a task's result
// reference. Falls back to "<taskID>.mp4" when the reference has no
// usable base name.
func ResultFileName(taskID, resultURL string) string {
	if parsed, err := url.Parse(strings.TrimSpace(resultURL)); err == nil {
		if base := path.Base(parsed.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return taskID + ".mp4"
}

// Download streams a completed task's artifact to destPath, writing
// through a temporary file so a partial transfer never replaces an
// existing artifact. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, taskID, fileName, destPath string) (int64, error) {
	const op = "download"

	endpoint := c.baseURL.JoinPath("v1", "tasks", "download", taskID, fileName)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return 0, api.Wrap(api.ErrValidation, op, "build request", err)
	}

	resp, err := c.do(req)
	if err != nil {
		return 0, api.Wrap(api.ErrTransport, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, c.statusError(op, resp)
	}

	if dir := filepath.Dir(destPath); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return 0, fmt.Errorf("create destination directory: %w", err)
		}
	}

	tmpPath := destPath + ".partial"
	out, err := os.OpenFile(tmpPath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, fmt.Errorf("create destination: %w", err)
	}

	written, err := io.Copy(out, resp.Body)
	if err != nil {
		out.Close()
		_ = os.Remove(tmpPath)
		return 0, api.Wrap(api.ErrTransport, op, "copy body", err)
	}
	if err := out.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("close destination: %w", err)
	}
	if err := os.Rename(tmpPath, destPath); err != nil {
		_ = os.Remove(tmpPath)
		return 0, fmt.Errorf("move artifact into place: %w", err)
	}

	c.logger.Info("artifact downloaded",
		logging.String(logging.FieldTaskID, taskID),
		logging.String("dest", destPath),
		logging.Int64("bytes", written))
	return written, nil
}
