// Package http carries lvdb RPC messages over plain HTTP. Every request is a POST
// of the serialized message to /{shardId}, the response body is the serialized
// answer. Store errors travel inside the answer, a status other than 200 means the
// request never reached a shard.
//
// The client spreads requests round robin over its endpoints and retries network
// errors and 5xx answers on the next one. The server is a chi router, with request
// logging when the server log level is debug.
//
// HTTP costs a round trip per request and cannot multiplex, so tcp or unix are the
// better choice between lvdb processes. This transport is meant for proxies,
// debugging with curl and the json serializer.
package http
