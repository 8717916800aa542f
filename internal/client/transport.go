package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"os"
	"time"

	"github.com/cvlens/cvlens/internal/models"
)

// ProgressFunc receives transport progress as an integer percentage. It
// may be invoked zero or more times before Send resolves; values outside
// [0,100] and regressions are the coordinator's problem, not the caller's.
type ProgressFunc func(pct int)

// Transport performs a single file submission to a remote endpoint.
// Timeouts are the transport's own concern; the coordinator only
// distinguishes success from failure.
type Transport interface {
	Send(ctx context.Context, file models.FileMeta, onProgress ProgressFunc) error
}

// HTTPTransport submits files to the cvlens server as multipart uploads,
// reporting progress as the request body is consumed by the wire.
type HTTPTransport struct {
	baseURL string
	client  *http.Client
}

// NewHTTPTransport creates a transport talking to baseURL, e.g.
// "http://localhost:8080".
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 2 * time.Minute},
	}
}

// Send uploads the file at file.Path. On a non-2xx response the server's
// error message is returned verbatim so it can be displayed as-is.
func (t *HTTPTransport) Send(ctx context.Context, file models.FileMeta, onProgress ProgressFunc) error {
	if file.Path == "" {
		return fmt.Errorf("file %q has no local path to read from", file.Name)
	}

	src, err := os.Open(file.Path)
	if err != nil {
		return fmt.Errorf("opening file: %w", err)
	}
	defer src.Close()

	body := new(bytes.Buffer)
	writer := multipart.NewWriter(body)

	// CreateFormFile would tag the part application/octet-stream; build
	// the part by hand so the declared media type travels with the file.
	header := make(textproto.MIMEHeader)
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, file.Name))
	header.Set("Content-Type", file.MediaType)
	part, err := writer.CreatePart(header)
	if err != nil {
		return fmt.Errorf("creating form part: %w", err)
	}
	if _, err := io.Copy(part, src); err != nil {
		return fmt.Errorf("reading file: %w", err)
	}
	if err := writer.Close(); err != nil {
		return fmt.Errorf("finalizing form: %w", err)
	}

	// Progress counts consumption of the assembled body by the HTTP
	// client, which tracks actual transmission rather than local reads.
	reader := &progressReader{
		r:          body,
		total:      int64(body.Len()),
		onProgress: onProgress,
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+"/api/resumes", reader)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.ContentLength = reader.total

	resp, err := t.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%s", serverErrorMessage(resp))
	}
	return nil
}

// serverErrorMessage extracts the structured error message from a failed
// response, falling back to the raw body, then the status line.
func serverErrorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var apiErr struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(data, &apiErr); err == nil && apiErr.Message != "" {
		return apiErr.Message
	}
	if len(bytes.TrimSpace(data)) > 0 {
		return string(bytes.TrimSpace(data))
	}
	return resp.Status
}

// progressReader reports cumulative read percentage while the request
// body drains.
type progressReader struct {
	r          io.Reader
	total      int64
	read       int64
	onProgress ProgressFunc
}

func (p *progressReader) Read(b []byte) (int, error) {
	n, err := p.r.Read(b)
	if n > 0 && p.total > 0 && p.onProgress != nil {
		p.read += int64(n)
		p.onProgress(int(p.read * 100 / p.total))
	}
	return n, err
}
