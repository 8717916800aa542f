package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/cvlens/cvlens/internal/models"
)

// QueryService lists the resume collection from the authoritative source.
// The returned order is the server's and must be preserved by callers.
type QueryService interface {
	List(ctx context.Context) ([]models.Resume, error)
}

// HTTPQueryService fetches the resume list over HTTP. With msgpack
// enabled it uses the binary listing endpoint, which is markedly smaller
// than JSON for large collections.
type HTTPQueryService struct {
	baseURL    string
	client     *http.Client
	useMsgpack bool
}

// NewHTTPQueryService creates a JSON-backed query service for baseURL.
func NewHTTPQueryService(baseURL string) *HTTPQueryService {
	return &HTTPQueryService{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// UseMsgpack switches List to the MessagePack listing endpoint.
func (q *HTTPQueryService) UseMsgpack(enabled bool) *HTTPQueryService {
	q.useMsgpack = enabled
	return q
}

type listResponse struct {
	Resumes []models.Resume `json:"resumes" msgpack:"resumes"`
	Count   int             `json:"count" msgpack:"count"`
}

// List fetches the collection. Failures are transient fetch errors; the
// cache retains its last snapshot when one occurs.
func (q *HTTPQueryService) List(ctx context.Context) ([]models.Resume, error) {
	url := q.baseURL + "/api/resumes"
	if q.useMsgpack {
		url += "/msgpack"
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("listing resumes: %s", serverErrorMessage(resp))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}

	var list listResponse
	if q.useMsgpack {
		err = msgpack.Unmarshal(data, &list)
	} else {
		err = json.Unmarshal(data, &list)
	}
	if err != nil {
		return nil, fmt.Errorf("decoding resume list: %w", err)
	}

	return list.Resumes, nil
}

// Get fetches a single resume record.
func (q *HTTPQueryService) Get(ctx context.Context, id string) (*models.Resume, error) {
	var resume models.Resume
	if err := q.getJSON(ctx, "/api/resumes/"+id, &resume); err != nil {
		return nil, err
	}
	return &resume, nil
}

// Result fetches the analysis result. The server answers 404 until the
// analysis has completed.
func (q *HTTPQueryService) Result(ctx context.Context, id string) (*models.AnalysisResult, error) {
	var result models.AnalysisResult
	if err := q.getJSON(ctx, "/api/resumes/"+id+"/result", &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (q *HTTPQueryService) getJSON(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, q.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("building request: %w", err)
	}

	resp, err := q.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s", serverErrorMessage(resp))
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}
