// Package keys implements the key codec that maps typed data (plain values, hashes,
// sorted sets, queues, metadata and binlog records) onto the flat ordered keyspace
// of a db.KVDB.
//
// Every key starts with a tag byte. Collection keys embed the collection name with a one
// byte length prefix, so all entries of one collection are contiguous and a shorter name
// never interleaves with a longer one. Scores and queue sequences are fixed width and big
// endian, so raw byte order equals numeric order and range scans need no decoding.
//
// Encoders are total. Decoders return ErrMalformed when the tag does not match or a length
// field overruns the input.
package keys
