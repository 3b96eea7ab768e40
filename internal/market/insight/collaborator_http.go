package insight

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/segmentio/encoding/json"
	"traderhub.com/internal/market/model"
)

// HTTPCollaborator 把请求 POST 给外部分析服务，响应体就是 Analysis
type HTTPCollaborator struct {
	Endpoint string
	Client   *http.Client
}

func NewHTTPCollaborator(endpoint string, timeout time.Duration) *HTTPCollaborator {
	if timeout <= 0 {
		timeout = 20 * time.Second
	}
	return &HTTPCollaborator{Endpoint: endpoint, Client: &http.Client{Timeout: timeout}}
}

func (c *HTTPCollaborator) Analyze(ctx context.Context, req Request) (Analysis, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return Analysis{}, err
	}
	hreq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return Analysis{}, err
	}
	hreq.Header.Set("Content-Type", "application/json")

	resp, err := c.Client.Do(hreq)
	if err != nil {
		return Analysis{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Analysis{}, err
	}
	if resp.StatusCode != http.StatusOK {
		return Analysis{}, fmt.Errorf("insight endpoint status %d", resp.StatusCode)
	}
	var a Analysis
	if err := json.Unmarshal(raw, &a); err != nil {
		return Analysis{}, fmt.Errorf("%w: %v", ErrInvalidAnalysis, err)
	}
	if a.DataSource == "" {
		a.DataSource = model.DataSourceLive
	}
	return a, nil
}
