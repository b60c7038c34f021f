package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"redub/internal/api"
	"redub/internal/logging"
)

// ProgressFunc receives cumulative bytes sent out of the total size.
type ProgressFunc func(sent, total int64)

// Upload streams a video file to the gateway as multipart form data and
// returns the freshly assigned task id. The request body is produced
// through a pipe so the file is never buffered in memory. Cancelling
// ctx aborts the transfer.
func (c *Client) Upload(ctx context.Context, path string, progress ProgressFunc) (*api.UploadResponse, error) {
	const op = "upload"

	file, err := os.Open(path)
	if err != nil {
		return nil, api.Wrap(api.ErrValidation, op, "open file", err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, api.Wrap(api.ErrValidation, op, "stat file", err)
	}

	reader := &progressReader{reader: file, total: info.Size(), fn: progress}

	pr, pw := io.Pipe()
	form := multipart.NewWriter(pw)
	go func() {
		part, err := form.CreateFormFile("file", filepath.Base(path))
		if err != nil {
			pw.CloseWithError(fmt.Errorf("create form file: %w", err))
			return
		}
		if _, err := io.Copy(part, reader); err != nil {
			pw.CloseWithError(fmt.Errorf("copy file: %w", err))
			return
		}
		pw.CloseWithError(form.Close())
	}()

	endpoint := c.baseURL.JoinPath("v1", "tasks", "upload")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint.String(), pr)
	if err != nil {
		return nil, api.Wrap(api.ErrValidation, op, "build request", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())

	resp, err := c.do(req)
	if err != nil {
		return nil, api.Wrap(api.ErrTransport, op, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.statusError(op, resp)
	}

	var uploaded api.UploadResponse
	if err := json.NewDecoder(resp.Body).Decode(&uploaded); err != nil {
		return nil, api.Wrap(api.ErrTransport, op, "decode response", err)
	}
	if uploaded.TaskID == "" {
		return nil, api.Wrap(api.ErrServer, op, "gateway returned empty task id", nil)
	}

	c.logger.Info("upload accepted",
		logging.String(logging.FieldTaskID, uploaded.TaskID),
		logging.Int64("bytes", info.Size()))
	return &uploaded, nil
}

type progressReader struct {
	reader io.Reader
	total  int64
	sent   atomic.Int64
	fn     ProgressFunc
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.reader.Read(buf)
	if n > 0 && p.fn != nil {
		p.fn(p.sent.Add(int64(n)), p.total)
	}
	return n, err
}
