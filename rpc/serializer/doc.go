// Package serializer turns common.Message values into bytes and back for the lvdb
// RPC layer. Client and server must agree on the serializer, the transports only
// see opaque frames.
//
// Three formats are available through New:
//
//   - binary: a compact custom layout. A leading bit set names the fields that are
//     present, absent fields cost nothing. This is the default and the fastest.
//
//   - json: readable output with message types written by name, handy when
//     debugging with the http transport.
//
//   - gob: encoding/gob. Every message carries its own type description, so the
//     payloads are the largest of the three. Kept for Go-only setups and comparison
//     benchmarks.
//
// All serializers are stateless and safe for concurrent use. Deserialize always
// starts from a zero message, so callers may reuse one message value:
//
//	s, _ := serializer.New("binary")
//	data, err := s.Serialize(msg)
//	// ... send data ...
//	var resp common.Message
//	err = s.Deserialize(received, &resp)
package serializer
