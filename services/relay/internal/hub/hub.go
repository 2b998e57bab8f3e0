// Package hub implements the untrusted relay's server side of the
// signaling protocol: it hands out cookies and addresses during the
// server handshake, then forwards already-encrypted frames between an
// initiator and its responders by nonce destination, without ever
// inspecting payloads it is not itself addressed to.
package hub

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"relay/internal/observability/metrics"

	"signalcore"
)

// Hub owns the relay's single long-lived server identity and the set of
// currently open sessions, one per initiator path.
type Hub struct {
	keys *signalcore.KeyStore
	log  *slog.Logger

	mu       sync.Mutex
	sessions map[string]*session
}

// New constructs a Hub with a freshly generated server identity.
func New(log *slog.Logger) (*Hub, error) {
	keys, err := signalcore.GenerateKeyStore()
	if err != nil {
		return nil, err
	}
	return &Hub{keys: keys, log: log, sessions: make(map[string]*session)}, nil
}

// PublicHex returns the lowercase hex of the relay's server public key,
// the key clients learn from server-hello.
func (h *Hub) PublicHex() string { return h.keys.PublicHex() }

type participant struct {
	conn    signalcore.Transport
	ours    signalcore.Cookie
	theirs  signalcore.Cookie
	csn     *signalcore.CombinedSequence
	address signalcore.Address
	permKey [signalcore.KeySize]byte
}

type session struct {
	mu              sync.Mutex
	initiator       *participant
	responders      map[signalcore.Address]*participant
	nextResponderID signalcore.Address
}

// errPathFull is returned by ServeResponder once a session has handed out
// every responder address.
var errPathFull = errors.New("relay: path full")

func newSession() *session {
	return &session{responders: make(map[signalcore.Address]*participant), nextResponderID: signalcore.AddressResponderMin}
}

// sessionFor returns the session keyed by the initiator's path, the
// lowercase hex of its permanent public key, creating it if absent.
func (h *Hub) sessionFor(path string) *session {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[path]
	if !ok {
		s = newSession()
		h.sessions[path] = s
	}
	return s
}

func (h *Hub) dropSessionIfEmpty(path string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.sessions[path]
	if !ok {
		return
	}
	s.mu.Lock()
	empty := s.initiator == nil && len(s.responders) == 0
	s.mu.Unlock()
	if empty {
		delete(h.sessions, path)
	}
}

// ServeInitiator drives the relay's side of a connection identified as the
// path's initiator. initiatorPermKey must equal the hex-decoded path.
func (h *Hub) ServeInitiator(ctx context.Context, path string, conn signalcore.Transport, initiatorPermKey [signalcore.KeySize]byte) error {
	s := h.sessionFor(path)
	p := &participant{conn: conn, address: signalcore.AddressInitiator, permKey: initiatorPermKey}
	s.mu.Lock()
	s.initiator = p
	s.mu.Unlock()
	metrics.SessionsOpenTotal.WithLabelValues("initiator").Inc()
	metrics.SessionsActive.WithLabelValues("initiator").Inc()
	defer metrics.SessionsActive.WithLabelValues("initiator").Dec()

	err := h.run(ctx, s, p, true)

	s.mu.Lock()
	if s.initiator == p {
		s.initiator = nil
	}
	s.mu.Unlock()
	h.dropSessionIfEmpty(path)
	return err
}

// ServeResponder drives the relay's side of a connection identified as a
// responder on the initiator identified by path.
func (h *Hub) ServeResponder(ctx context.Context, path string, conn signalcore.Transport) error {
	s := h.sessionFor(path)
	s.mu.Lock()
	addr := s.nextResponderID
	if addr < signalcore.AddressResponderMin {
		// The counter wrapped past AddressResponderMax: every slot is used.
		s.mu.Unlock()
		_ = conn.Close(signalcore.ClosePathFull)
		return errPathFull
	}
	s.nextResponderID++
	p := &participant{conn: conn}
	s.responders[addr] = p
	s.mu.Unlock()
	metrics.SessionsOpenTotal.WithLabelValues("responder").Inc()
	metrics.SessionsActive.WithLabelValues("responder").Inc()
	defer metrics.SessionsActive.WithLabelValues("responder").Dec()

	err := h.run(ctx, s, p, false)

	s.mu.Lock()
	if s.responders[addr] == p {
		delete(s.responders, addr)
	}
	s.mu.Unlock()
	h.dropSessionIfEmpty(path)
	return err
}

func (h *Hub) run(ctx context.Context, s *session, p *participant, isInitiator bool) error {
	csn, err := signalcore.NewCombinedSequence()
	if err != nil {
		return err
	}
	p.csn = csn
	cookie, err := signalcore.NewCookie()
	if err != nil {
		return err
	}
	p.ours = cookie

	dest := signalcore.Address(0)
	if isInitiator {
		dest = signalcore.AddressInitiator
	}
	if err := h.sendServerHello(ctx, p, dest); err != nil {
		return err
	}

	if !isInitiator {
		permKey, theirs, err := h.readClientHello(ctx, p)
		if err != nil {
			metrics.HandshakeAbortsTotal.WithLabelValues("client-hello").Inc()
			return err
		}
		p.permKey = permKey
		p.theirs = theirs
	}

	if err := h.readClientAuth(ctx, p); err != nil {
		metrics.HandshakeAbortsTotal.WithLabelValues("client-auth").Inc()
		return err
	}

	if isInitiator {
		if err := h.completeInitiatorAuth(ctx, s, p); err != nil {
			return err
		}
	} else {
		if err := h.completeResponderAuth(ctx, s, p); err != nil {
			return err
		}
	}

	return h.forward(ctx, s, p)
}

func (h *Hub) sendServerHello(ctx context.Context, p *participant, dest signalcore.Address) error {
	return h.sendPlain(ctx, p, dest, serverHelloMessage(h.keys.PublicKey()))
}

func (h *Hub) forward(ctx context.Context, s *session, p *participant) error {
	for {
		frame, err := p.conn.Receive(ctx)
		if err != nil {
			return err
		}
		nonce, err := signalcore.ParseNonce(frame)
		if err != nil {
			return err
		}
		if nonce.Destination == signalcore.AddressServer {
			h.handleServerDirected(s, p, frame)
			continue
		}
		target := h.targetFor(s, nonce.Destination)
		if target == nil {
			continue
		}
		metrics.FramesRelayedTotal.WithLabelValues().Inc()
		metrics.FrameBytes.WithLabelValues().Observe(float64(len(frame)))
		if err := target.conn.Send(ctx, frame); err != nil {
			h.log.Warn("relay: forward failed", "dest", nonce.Destination, "error", err)
		}
	}
}

func (h *Hub) targetFor(s *session, dest signalcore.Address) *participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	if dest == signalcore.AddressInitiator {
		return s.initiator
	}
	return s.responders[dest]
}
