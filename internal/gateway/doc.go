// Package gateway defines the gateway wire protocol: opcodes, the payload
// envelope, command and event bodies, intents, close codes, connection URLs
// and the inflater for compressed transports.
//
// # Envelope
//
// Every frame decodes to a Payload {op, d, s, t}. s and t are set only on
// dispatch frames (op 0).
//
// # Compression
//
//	none     text frames, passthrough
//	payload  each binary frame is a complete zlib stream
//	stream   one zlib context for the connection lifetime; a message is
//	         complete when the accumulated frames end in 00 00 ff ff
package gateway
