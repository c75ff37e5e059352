// Package session provides the caller-facing secure session object used by
// the discovery, file-transfer, and messaging layers.
//
// A Session owns one handshake engine (and, after completion, one transport)
// per logical connection, behind a mutex so callers that share the instance
// across goroutines stay serialized. The session performs no network I/O:
// callers move the returned byte slices to the peer and feed received bytes
// back in. Handshake timeouts and retransmission policy belong to the layer
// that owns the sockets.
//
// Typical lifecycle:
//
//	s, _ := session.NewInitiator(identity)
//	m1, _ := s.HandshakeWrite(nil)
//	// ... exchange handshake bytes with the peer ...
//	if s.IsComplete() {
//	    s.UseRatchet(nil, &peerRatchetPub) // long-lived connection
//	    wire, _ := s.Send([]byte("hello"))
//	}
//
// Short-lived sessions can call UseDirectKeys instead, which derives
// one-shot directional keys and frames messages with an explicit counter
// checked against a sliding replay window.
package session
