package signalcore

import "crypto/subtle"

// CookieSize is the fixed length of a Cookie in bytes.
const CookieSize = 16

// Cookie is 16 random bytes echoed back by a peer to bind a reply to a
// request.
type Cookie [CookieSize]byte

// NewCookie draws a fresh cookie from the active randomness source.
func NewCookie() (Cookie, error) {
	var c Cookie
	if err := readRandom(c[:]); err != nil {
		return Cookie{}, err
	}
	return c, nil
}

// Equal reports whether two cookies are byte-wise identical.
func (c Cookie) Equal(other Cookie) bool {
	return subtle.ConstantTimeCompare(c[:], other[:]) == 1
}

// freshCookie draws cookies until it finds one that differs from theirs, as
// required by the cookie invariant ours != theirs.
func freshCookie(theirs Cookie) (Cookie, error) {
	for {
		c, err := NewCookie()
		if err != nil {
			return Cookie{}, err
		}
		if !c.Equal(theirs) {
			return c, nil
		}
	}
}
