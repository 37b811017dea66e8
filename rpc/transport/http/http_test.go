package http

import (
	"bytes"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/go-chi/chi/v5"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	tr := &httpServerTransport{}
	tr.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", shardId, req))
	})

	r := chi.NewRouter()
	r.Post("/{shardId}", tr.handleRequest)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func TestSendRoundTrip(t *testing.T) {
	srv := newTestServer(t)

	cl := NewHttpClientTransport()
	if err := cl.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport:     common.ClientTransportConfig{Endpoints: []string{srv.URL}},
	}); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	defer cl.Close()

	resp, err := cl.Send(7, []byte("ping"))
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if string(resp) != "7:ping" {
		t.Errorf("Expected 7:ping, got %q", resp)
	}
}

func TestInvalidShard(t *testing.T) {
	srv := newTestServer(t)

	resp, err := http.Post(srv.URL+"/abc", "application/octet-stream", bytes.NewReader([]byte("x")))
	if err != nil {
		t.Fatalf("Post failed: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("Expected status %d, got %d", http.StatusBadRequest, resp.StatusCode)
	}
}

func TestSendWithoutConnect(t *testing.T) {
	if _, err := NewHttpClientTransport().Send(1, nil); err == nil {
		t.Errorf("Expected an error before Connect")
	}
}
