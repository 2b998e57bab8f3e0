package hub

import (
	"context"

	"signalcore"
)

func serverHelloMessage(key [signalcore.KeySize]byte) signalcore.ServerHelloMsg {
	return signalcore.ServerHelloMsg{Type: signalcore.TypeServerHello, Key: key}
}

// buildNonce constructs the relay's own outbound nonce, always sourced
// from AddressServer.
func buildNonce(ours signalcore.Cookie, dest signalcore.Address, csn *signalcore.CombinedSequence) (signalcore.Nonce, error) {
	seq, overflow, err := csn.Next()
	if err != nil {
		return signalcore.Nonce{}, err
	}
	return signalcore.Nonce{
		Cookie:      ours,
		Source:      signalcore.AddressServer,
		Destination: dest,
		Overflow:    overflow,
		Sequence:    seq,
	}, nil
}

// sendPlain builds an unencrypted nonce||plaintext frame, the wire form
// used only for server-hello.
func (h *Hub) sendPlain(ctx context.Context, p *participant, dest signalcore.Address, msg interface{}) error {
	n, err := buildNonce(p.ours, dest, p.csn)
	if err != nil {
		return err
	}
	pt, err := signalcore.EncodeMessage(msg)
	if err != nil {
		return err
	}
	nb := n.Bytes()
	frame := append(nb[:], pt...)
	return p.conn.Send(ctx, frame)
}

// sendAuth builds an encrypted Box frame addressed to p under the relay's
// permanent key, the wire form used for server-auth and new-responder.
func (h *Hub) sendAuth(ctx context.Context, p *participant, msg interface{}) error {
	n, err := buildNonce(p.ours, p.address, p.csn)
	if err != nil {
		return err
	}
	pt, err := signalcore.EncodeMessage(msg)
	if err != nil {
		return err
	}
	box := h.keys.Encrypt(pt, n.Bytes(), p.permKey)
	return p.conn.Send(ctx, box.Bytes())
}

// readClientHello reads and validates the responder's unencrypted
// client-hello, returning its permanent key and the cookie it carried.
func (h *Hub) readClientHello(ctx context.Context, p *participant) ([signalcore.KeySize]byte, signalcore.Cookie, error) {
	frame, err := p.conn.Receive(ctx)
	if err != nil {
		return [signalcore.KeySize]byte{}, signalcore.Cookie{}, err
	}
	nonce, err := signalcore.ParseNonce(frame)
	if err != nil {
		return [signalcore.KeySize]byte{}, signalcore.Cookie{}, err
	}
	if len(frame) < signalcore.NonceSize {
		return [signalcore.KeySize]byte{}, signalcore.Cookie{}, signalcore.ErrBadMessageLength
	}
	var msg signalcore.ClientHelloMsg
	if err := signalcore.DecodeMessage(frame[signalcore.NonceSize:], &msg); err != nil {
		return [signalcore.KeySize]byte{}, signalcore.Cookie{}, err
	}
	return msg.Key, nonce.Cookie, nil
}

// readClientAuth reads and validates client-auth, confirming that the
// your_cookie it echoes matches ours and recording the client's own cookie
// from the frame's nonce.
func (h *Hub) readClientAuth(ctx context.Context, p *participant) error {
	frame, err := p.conn.Receive(ctx)
	if err != nil {
		return err
	}
	nonce, err := signalcore.ParseNonce(frame)
	if err != nil {
		return err
	}
	box, err := signalcore.ParseBox(frame)
	if err != nil {
		return err
	}
	plaintext, err := h.keys.Decrypt(box, p.permKey)
	if err != nil {
		return err
	}
	var auth signalcore.ClientAuthMsg
	if err := signalcore.DecodeMessage(plaintext, &auth); err != nil {
		return err
	}
	if !signalcore.Cookie(auth.YourCookie).Equal(p.ours) {
		return signalcore.ErrBadCookie
	}
	p.theirs = nonce.Cookie
	return nil
}

func (h *Hub) completeResponderAuth(ctx context.Context, s *session, p *participant) error {
	s.mu.Lock()
	p.address = responderIDOf(s, p)
	initiator := s.initiator
	s.mu.Unlock()

	msg := signalcore.ServerAuthMsg{Type: signalcore.TypeServerAuth, YourCookie: p.theirs, InitiatorConnected: initiator != nil}
	if err := h.sendAuth(ctx, p, msg); err != nil {
		return err
	}
	if initiator != nil {
		push := signalcore.NewResponderMsg{Type: signalcore.TypeNewResponder, ID: uint8(p.address)}
		if err := h.sendAuth(ctx, initiator, push); err != nil {
			h.log.Warn("relay: new-responder push failed", "error", err)
		}
	}
	return nil
}

func (h *Hub) completeInitiatorAuth(ctx context.Context, s *session, p *participant) error {
	s.mu.Lock()
	ids := make([]uint8, 0, len(s.responders))
	for id := range s.responders {
		ids = append(ids, uint8(id))
	}
	s.mu.Unlock()

	msg := signalcore.ServerAuthMsg{Type: signalcore.TypeServerAuth, YourCookie: p.theirs, Responders: ids}
	return h.sendAuth(ctx, p, msg)
}

func responderIDOf(s *session, p *participant) signalcore.Address {
	for id, rp := range s.responders {
		if rp == p {
			return id
		}
	}
	return 0
}

// handleServerDirected decrypts and acts on a frame addressed to the relay
// itself: the only such message clients send is drop-responder.
func (h *Hub) handleServerDirected(s *session, p *participant, frame []byte) {
	box, err := signalcore.ParseBox(frame)
	if err != nil {
		return
	}
	plaintext, err := h.keys.Decrypt(box, p.permKey)
	if err != nil {
		return
	}
	var drop signalcore.DropResponderMsg
	if err := signalcore.DecodeMessage(plaintext, &drop); err != nil || drop.Type != signalcore.TypeDropResponder {
		return
	}
	s.mu.Lock()
	delete(s.responders, signalcore.Address(drop.ID))
	s.mu.Unlock()
}
