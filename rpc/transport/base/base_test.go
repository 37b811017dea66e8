package base

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/DazeHolic/lvdb/rpc/common"
)

func TestFrameRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		buf     []byte
	}{
		{"empty", nil, nil},
		{"no buffer", []byte("hello"), nil},
		{"fits buffer", []byte("hello"), make([]byte, 64)},
		{"exceeds buffer", bytes.Repeat([]byte("x"), 100), make([]byte, 8)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stream bytes.Buffer
			if err := writeFrame(&stream, 3, 42, tt.payload); err != nil {
				t.Fatalf("writeFrame failed: %v", err)
			}
			if stream.Len() != frameHeaderSize+len(tt.payload) {
				t.Errorf("Expected %d bytes on the wire, got %d", frameHeaderSize+len(tt.payload), stream.Len())
			}

			shardID, requestID, data, err := readFrame(&stream, tt.buf)
			if err != nil {
				t.Fatalf("readFrame failed: %v", err)
			}
			if shardID != 3 || requestID != 42 {
				t.Errorf("Expected shard 3 and request 42, got %d and %d", shardID, requestID)
			}
			if !bytes.Equal(data, tt.payload) {
				t.Errorf("Expected payload %q, got %q", tt.payload, data)
			}
		})
	}
}

func TestReadFrameErrors(t *testing.T) {
	header := func(length uint32) []byte {
		h := make([]byte, frameHeaderSize)
		putFrameHeader(h, 1, 1, 0)
		binary.BigEndian.PutUint32(h[16:20], length)
		return h
	}

	tests := []struct {
		name string
		data []byte
		want error
	}{
		{"clean eof", nil, io.EOF},
		{"short header", []byte{0, 1, 2}, io.ErrUnexpectedEOF},
		{"short payload", append(header(10), "abc"...), io.ErrUnexpectedEOF},
		{"missing payload", header(10), io.ErrUnexpectedEOF},
		{"too large", header(MaxFrameSize + 1), ErrFrameTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, _, err := readFrame(bytes.NewReader(tt.data), nil)
			if !errors.Is(err, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, err)
			}
		})
	}
}

// --------------------------------------------------------------------------
// Client and server over loopback tcp
// --------------------------------------------------------------------------

type testConnector struct {
	addr  chan string
	mu    sync.Mutex
	conns []net.Conn
}

func newTestConnector() *testConnector {
	return &testConnector{addr: make(chan string, 1)}
}

func (c *testConnector) GetName() string { return "test" }

func (c *testConnector) Listen(common.ServerConfig) (net.Listener, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, err
	}
	c.addr <- l.Addr().String()
	return l, nil
}

func (c *testConnector) Connect(endpoint string) (net.Conn, error) {
	conn, err := net.Dial("tcp", endpoint)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.conns = append(c.conns, conn)
	c.mu.Unlock()
	return conn, nil
}

func (c *testConnector) dropAll() {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, conn := range c.conns {
		_ = conn.Close()
	}
}

func (c *testConnector) UpgradeConnection(net.Conn, common.ServerConfig) error { return nil }

type testClientConnector struct{ *testConnector }

func (c testClientConnector) UpgradeConnection(net.Conn, common.ClientConfig) error { return nil }

// startEchoServer serves frames by prefixing the payload with its shard id
func startEchoServer(t *testing.T, connector *testConnector) string {
	t.Helper()

	srv := NewBaseServerTransport(connector, 1024, 4)
	srv.RegisterHandler(func(shardId uint64, req []byte) []byte {
		return []byte(fmt.Sprintf("%d:%s", shardId, req))
	})

	done := make(chan error, 1)
	go func() {
		done <- srv.Listen(common.ServerConfig{TimeoutSecond: 5})
	}()

	var addr string
	select {
	case addr = <-connector.addr:
	case err := <-done:
		t.Fatalf("Listen failed: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatalf("Server did not start")
	}

	t.Cleanup(func() {
		_ = srv.Close()
		if err := <-done; err != nil {
			t.Errorf("Listen returned %v", err)
		}
	})
	return addr
}

func newTestClient(t *testing.T, connector *testConnector, addr string) *clientTransport {
	t.Helper()

	cl := NewBaseClientTransport(testClientConnector{connector}).(*clientTransport)
	err := cl.Connect(common.ClientConfig{
		TimeoutSecond: 5,
		Transport: common.ClientTransportConfig{
			Endpoints:              []string{addr},
			RetryCount:             3,
			ConnectionsPerEndpoint: 2,
		},
	})
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = cl.Close() })
	return cl
}

func TestClientServerConcurrent(t *testing.T) {
	connector := newTestConnector()
	cl := newTestClient(t, connector, startEchoServer(t, connector))

	var wg sync.WaitGroup
	errs := make(chan error, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			shard := uint64(i%4 + 1)
			resp, err := cl.Send(shard, []byte(fmt.Sprintf("req-%d", i)))
			if err != nil {
				errs <- err
				return
			}
			if want := fmt.Sprintf("%d:req-%d", shard, i); string(resp) != want {
				errs <- fmt.Errorf("expected %q, got %q", want, resp)
			}
		}(i)
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestClientReconnects(t *testing.T) {
	connector := newTestConnector()
	cl := newTestClient(t, connector, startEchoServer(t, connector))

	if _, err := cl.Send(1, []byte("before")); err != nil {
		t.Fatalf("Send failed: %v", err)
	}

	connector.dropAll()

	resp, err := cl.Send(1, []byte("after"))
	if err != nil {
		t.Fatalf("Send after a dropped connection failed: %v", err)
	}
	if string(resp) != "1:after" {
		t.Errorf("Expected 1:after, got %q", resp)
	}
}

func TestClientClosed(t *testing.T) {
	connector := newTestConnector()
	cl := newTestClient(t, connector, startEchoServer(t, connector))

	if err := cl.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if _, err := cl.Send(1, []byte("x")); !errors.Is(err, errTransClosed) {
		t.Errorf("Expected %v, got %v", errTransClosed, err)
	}
}

func TestConnectWithoutEndpoints(t *testing.T) {
	cl := NewBaseClientTransport(testClientConnector{newTestConnector()})
	if err := cl.Connect(common.ClientConfig{}); err == nil {
		t.Errorf("Expected an error without endpoints")
	}
}
