package signalcore

import (
	"context"
	"sync"
)

// link is one end of an in-memory, frame-preserving pipe used to connect an
// Engine under test to the fakeRelay below without any real networking.
type link struct {
	out    chan []byte
	in     chan []byte
	once   sync.Once
	closed chan struct{}
}

func newLinkPair() (client, server *link) {
	c2s := make(chan []byte, 32)
	s2c := make(chan []byte, 32)
	client = &link{out: c2s, in: s2c, closed: make(chan struct{})}
	server = &link{out: s2c, in: c2s, closed: make(chan struct{})}
	return client, server
}

func (l *link) Send(ctx context.Context, frame []byte) error {
	select {
	case l.out <- append([]byte(nil), frame...):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *link) Receive(ctx context.Context) ([]byte, error) {
	select {
	case f := <-l.in:
		return f, nil
	case <-l.closed:
		return nil, context.Canceled
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (l *link) Close(code CloseCode) error {
	l.once.Do(func() { close(l.closed) })
	return nil
}

// fakeRelay is a minimal stand-in for the untrusted relay server: it speaks
// just enough of the server handshake to hand out cookies and addresses,
// then forwards everything else verbatim by peeking the nonce destination.
// It is deliberately not the production relay implementation (see
// services/relay for that); it exists only to drive Engine tests without a
// real transport.
type fakeRelay struct {
	keys *KeyStore

	mu               sync.Mutex
	initiator        *relayParticipant
	responders       map[Address]*relayParticipant
	nextResponderID  Address
	initiatorPermKey [KeySize]byte

	// initiatorReady is closed once the initiator's server-auth has been
	// sent, so nothing else reaches the initiator before it.
	initiatorReady chan struct{}
}

type relayParticipant struct {
	conn        *link
	ours        Cookie
	theirs      Cookie
	csn         *CombinedSequence
	address     Address
	permKey     [KeySize]byte
	haveAddress bool
}

func newFakeRelay() (*fakeRelay, error) {
	keys, err := GenerateKeyStore()
	if err != nil {
		return nil, err
	}
	return &fakeRelay{keys: keys, responders: make(map[Address]*relayParticipant), nextResponderID: AddressResponderMin, initiatorReady: make(chan struct{})}, nil
}

// serveInitiator runs the server side of the initiator's connection on its
// own goroutine until the link closes.
func (r *fakeRelay) serveInitiator(conn *link, initiatorPermKey [KeySize]byte) {
	r.mu.Lock()
	r.initiatorPermKey = initiatorPermKey
	p := &relayParticipant{conn: conn, address: AddressInitiator, haveAddress: true, permKey: initiatorPermKey}
	r.initiator = p
	r.mu.Unlock()
	r.run(p, true)
}

func (r *fakeRelay) serveResponder(conn *link) {
	r.mu.Lock()
	addr := r.nextResponderID
	r.nextResponderID++
	p := &relayParticipant{conn: conn}
	r.responders[addr] = p
	r.mu.Unlock()
	r.run(p, false)
}

func (r *fakeRelay) run(p *relayParticipant, isInitiator bool) {
	ctx := context.Background()
	csn, err := NewCombinedSequence()
	if err != nil {
		return
	}
	p.csn = csn
	cookie, err := NewCookie()
	if err != nil {
		return
	}
	p.ours = cookie

	dest := Address(0)
	if isInitiator {
		dest = AddressInitiator
	}
	if err := r.sendPlain(p, dest, ServerHelloMsg{Type: TypeServerHello, Key: r.keys.PublicKey()}); err != nil {
		return
	}

	if !isInitiator {
		frame, err := p.conn.Receive(ctx)
		if err != nil {
			return
		}
		nonce, err := ParseNonce(frame)
		if err != nil {
			return
		}
		p.theirs = nonce.Cookie
		var msg ClientHelloMsg
		if err := DecodeMessage(frame[NonceSize:], &msg); err != nil {
			return
		}
		p.permKey = msg.Key
	}

	frame, err := p.conn.Receive(ctx)
	if err != nil {
		return
	}
	nonce, err := ParseNonce(frame)
	if err != nil {
		return
	}
	p.theirs = nonce.Cookie
	box, err := ParseBox(frame)
	if err != nil {
		return
	}
	plaintext, err := r.keys.Decrypt(box, p.permKey)
	if err != nil {
		return
	}
	var auth ClientAuthMsg
	if err := DecodeMessage(plaintext, &auth); err != nil {
		return
	}
	if !Cookie(auth.YourCookie).Equal(p.ours) {
		return
	}

	if !isInitiator {
		r.mu.Lock()
		p.address = r.responderIDOf(p)
		p.haveAddress = true
		initiatorConnected := r.initiator != nil
		r.mu.Unlock()
		if initiatorConnected {
			<-r.initiatorReady
		}
		if err := r.sendAuth(p, ServerAuthMsg{Type: TypeServerAuth, YourCookie: p.theirs, InitiatorConnected: initiatorConnected}); err != nil {
			return
		}
		r.mu.Lock()
		initiator := r.initiator
		r.mu.Unlock()
		if initiator != nil {
			_ = r.sendAuth(initiator, NewResponderMsg{Type: TypeNewResponder, ID: uint8(p.address)})
		}
	} else {
		r.mu.Lock()
		ids := make([]uint8, 0, len(r.responders))
		for id := range r.responders {
			ids = append(ids, uint8(id))
		}
		r.mu.Unlock()
		if err := r.sendAuth(p, ServerAuthMsg{Type: TypeServerAuth, YourCookie: p.theirs, Responders: ids}); err != nil {
			return
		}
		close(r.initiatorReady)
	}

	r.forward(p)
}

func (r *fakeRelay) responderIDOf(p *relayParticipant) Address {
	for id, rp := range r.responders {
		if rp == p {
			return id
		}
	}
	return 0
}

// forward relays every subsequent frame by destination address, decrypting
// only frames addressed to the relay itself (drop-responder).
func (r *fakeRelay) forward(p *relayParticipant) {
	ctx := context.Background()
	for {
		frame, err := p.conn.Receive(ctx)
		if err != nil {
			return
		}
		nonce, err := ParseNonce(frame)
		if err != nil {
			return
		}
		if nonce.Destination == AddressServer {
			box, err := ParseBox(frame)
			if err != nil {
				continue
			}
			plaintext, err := r.keys.Decrypt(box, p.permKey)
			if err != nil {
				continue
			}
			var drop DropResponderMsg
			if err := DecodeMessage(plaintext, &drop); err == nil && drop.Type == TypeDropResponder {
				r.mu.Lock()
				delete(r.responders, Address(drop.ID))
				r.mu.Unlock()
			}
			continue
		}
		r.mu.Lock()
		target := r.targetFor(nonce.Destination)
		r.mu.Unlock()
		if target == nil {
			continue
		}
		_ = target.conn.Send(ctx, frame)
	}
}

func (r *fakeRelay) targetFor(dest Address) *relayParticipant {
	if dest == AddressInitiator {
		return r.initiator
	}
	return r.responders[dest]
}

func (r *fakeRelay) sendPlain(p *relayParticipant, dest Address, msg interface{}) error {
	n, err := buildNonce(p.ours, AddressServer, dest, p.csn)
	if err != nil {
		return err
	}
	pt, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	nb := n.Bytes()
	frame := append(nb[:], pt...)
	return p.conn.Send(context.Background(), frame)
}

func (r *fakeRelay) sendAuth(p *relayParticipant, msg interface{}) error {
	n, err := buildNonce(p.ours, AddressServer, p.address, p.csn)
	if err != nil {
		return err
	}
	pt, err := EncodeMessage(msg)
	if err != nil {
		return err
	}
	box := r.keys.Encrypt(pt, n.Bytes(), p.permKey)
	return p.conn.Send(context.Background(), box.Bytes())
}
