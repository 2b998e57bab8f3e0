package signalcore

// peerState tracks an initiator's view of one responder's progress through
// the peer handshake.
type peerState int

const (
	peerNew peerState = iota
	peerTokenReceived
	peerKeyReceived
)

// Peer is the initiator's per-responder record: its keys, its outbound
// sequence and its handshake state.
type Peer struct {
	ID             Address
	PermanentPub   *[KeySize]byte
	SessionPub     *[KeySize]byte
	ownSession     *KeyStore
	state          peerState
	csn            *CombinedSequence
}

func newPeer(id Address) (*Peer, error) {
	csn, err := NewCombinedSequence()
	if err != nil {
		return nil, err
	}
	return &Peer{ID: id, state: peerNew, csn: csn}, nil
}

// session lazily creates this peer's session keystore on first use.
func (p *Peer) session() (*KeyStore, error) {
	if p.ownSession == nil {
		ks, err := GenerateKeyStore()
		if err != nil {
			return nil, err
		}
		p.ownSession = ks
	}
	return p.ownSession, nil
}
