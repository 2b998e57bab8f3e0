// Package signalcore implements the client-side core of an end-to-end
// encrypted signaling protocol used to bootstrap a peer-to-peer session
// between an initiator and a responder, mediated by an untrusted relay.
//
// The package owns the signaling state machine, the cryptographic framing
// layer (nonces, combined sequence numbers, cookies, key selection) and a
// small chunking sublayer for large post-handshake payloads. Transport
// establishment, application-level dispatch after the handshake and
// long-term key persistence are left to the caller.
package signalcore
