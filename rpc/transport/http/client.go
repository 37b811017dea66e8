package http

import (
	"bytes"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/transport"
)

// NewHttpClientTransport creates a client transport that posts every request to
// {endpoint}/{shardId}. Endpoints without a scheme are plain http.
func NewHttpClientTransport() transport.IRPCClientTransport {
	return &httpClientTransport{}
}

type httpClientTransport struct {
	client     *http.Client
	endpoints  []string // base urls without trailing slash
	next       atomic.Uint32
	retryCount int
}

func (t *httpClientTransport) Connect(config common.ClientConfig) error {
	if len(config.Transport.Endpoints) == 0 {
		return fmt.Errorf("no endpoints provided")
	}

	endpoints := make([]string, 0, len(config.Transport.Endpoints))
	for _, endpoint := range config.Transport.Endpoints {
		if !strings.Contains(endpoint, "://") {
			endpoint = "http://" + endpoint
		}
		u, err := url.Parse(endpoint)
		if err != nil {
			return fmt.Errorf("invalid endpoint %q: %w", endpoint, err)
		}
		endpoints = append(endpoints, strings.TrimSuffix(u.String(), "/"))
	}

	t.client = &http.Client{
		Timeout: time.Duration(config.TimeoutSecond) * time.Second,
		Transport: &http.Transport{
			MaxIdleConns:        100,
			MaxIdleConnsPerHost: max(10, config.Transport.ConnectionsPerEndpoint),
			IdleConnTimeout:     90 * time.Second,
			WriteBufferSize:     config.Transport.WriteBufferSize,
			ReadBufferSize:      config.Transport.ReadBufferSize,
		},
	}
	t.endpoints = endpoints
	t.retryCount = max(1, config.Transport.RetryCount)
	return nil
}

// Send retries on network errors and 5xx answers, each attempt on the next endpoint
func (t *httpClientTransport) Send(shardId uint64, req []byte) ([]byte, error) {
	if t.client == nil {
		return nil, fmt.Errorf("http transport not initialized")
	}

	var lastErr error
	for i := 0; i < t.retryCount; i++ {
		endpoint := t.endpoints[t.next.Add(1)%uint32(len(t.endpoints))]

		resp, err := t.post(endpoint+"/"+strconv.FormatUint(shardId, 10), req)
		if err == nil {
			return resp, nil
		}
		if !retryable(err) {
			return nil, err
		}
		lastErr = err
		Logger.Debugf("Request attempt %d/%d to %s failed: %v", i+1, t.retryCount, endpoint, err)
	}
	return nil, lastErr
}

func (t *httpClientTransport) Close() error {
	if t.client != nil {
		t.client.CloseIdleConnections()
	}
	t.client = nil
	t.endpoints = nil
	return nil
}

// statusError is an answer with a status other than 200
type statusError struct {
	status string
	code   int
}

func (e *statusError) Error() string {
	return "http error: " + e.status
}

func retryable(err error) bool {
	se, ok := err.(*statusError)
	return !ok || se.code >= http.StatusInternalServerError
}

func (t *httpClientTransport) post(requestURL string, req []byte) ([]byte, error) {
	resp, err := t.client.Post(requestURL, "application/octet-stream", bytes.NewReader(req))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			Logger.Errorf("Failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil, &statusError{status: resp.Status, code: resp.StatusCode}
	}
	return io.ReadAll(resp.Body)
}
