package client

import (
	"fmt"

	"github.com/DazeHolic/lvdb/rpc/common"
	"github.com/DazeHolic/lvdb/rpc/serializer"
	"github.com/DazeHolic/lvdb/rpc/transport"
	"github.com/DazeHolic/lvdb/rpc/transport/http"
	"github.com/DazeHolic/lvdb/rpc/transport/tcp"
	"github.com/DazeHolic/lvdb/rpc/transport/unix"
	"github.com/lni/dragonboat/v4/logger"
)

var (
	Logger = logger.GetLogger("rpc")
)

// rpcClientAdapter is a struct that stores all data needed for an implementation of an RPC client
// Used by the RPCStore and the sync processor with composition pattern
type rpcClientAdapter struct {
	shardId    uint64
	config     common.ClientConfig
	transport  transport.IRPCClientTransport
	serializer serializer.IRPCSerializer
}

// newRPCClientAdapter connects the transport and bundles it with the serializer
func newRPCClientAdapter(
	shardId uint64,
	config common.ClientConfig,
	transport transport.IRPCClientTransport,
	serializer serializer.IRPCSerializer,
) (rpcClientAdapter, error) {
	if err := transport.Connect(config); err != nil {
		return rpcClientAdapter{}, err
	}
	return rpcClientAdapter{
		shardId:    shardId,
		config:     config,
		transport:  transport,
		serializer: serializer,
	}, nil
}

func (a *rpcClientAdapter) call(req *common.Message) (*common.Message, error) {
	return invokeRPCRequest(a.shardId, req, a.transport, a.serializer)
}

// Close closes the underlying transport
func (a *rpcClientAdapter) Close() error {
	return a.transport.Close()
}

// invokeRPCRequest is a helper function used for all RPC Clients to send requests
// It takes a shard ID, a request message, a transport layer and a serializer as parameters
// It returns a response message and an error if any occurs
// This method also checks if the response is an error response and if the type of the response is the expected type.
// Errors reported by the server are returned as *store.Error with the server side code.
func invokeRPCRequest(shardId uint64, req *common.Message, transport transport.IRPCClientTransport, serializer serializer.IRPCSerializer) (*common.Message, error) {
	// Serialize the request
	reqBytes, err := serializer.Serialize(*req)
	if err != nil {
		return nil, err
	}

	// Send the handler
	respBytes, err := transport.Send(shardId, reqBytes)
	if err != nil {
		return nil, err
	}

	// Deserialize the response
	resp := &common.Message{}
	err = serializer.Deserialize(respBytes, resp)
	if err != nil {
		return nil, fmt.Errorf("RPC client - Error: %w", err)
	}

	// Check if the response is an error response
	if err := resp.Error(); err != nil {
		return nil, err
	}

	// Check if the type of the response is the expected type
	if resp.MsgType != req.MsgType {
		return nil, fmt.Errorf("RPC client - Unexpected message type: %s, expected %s", resp.MsgType, req.MsgType)
	}

	// Return the response
	return resp, nil
}

// --------------------------------------------------------------------------
// Factories by name (used by the cli and for replication peers)
// --------------------------------------------------------------------------

// NewTransport returns the client transport with the given name (http, tcp, unix)
func NewTransport(name string) (transport.IRPCClientTransport, error) {
	switch name {
	case "http":
		return http.NewHttpClientTransport(), nil
	case "tcp", "":
		return tcp.NewTCPClientTransport(), nil
	case "unix":
		return unix.NewUnixClientTransport(), nil
	default:
		return nil, fmt.Errorf("unknown transport: %s", name)
	}
}

// NewSerializer returns the serializer with the given name (binary, json, gob)
func NewSerializer(name string) (serializer.IRPCSerializer, error) {
	return serializer.New(name)
}
