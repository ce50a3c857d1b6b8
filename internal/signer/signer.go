// Package signer turns the content-addressed, author-less-signature Events
// the command interpreter produces into fully signed nostr wire events. It
// is a thin adapter external to the core: the signing key lifecycle lives
// here, not in the interpreter.
package signer

import (
	"strings"

	goerrors "github.com/go-errors/errors"
	"github.com/nbd-wtf/go-nostr"
	"github.com/nbd-wtf/go-nostr/nip19"

	"github.com/xeruf/mostr/internal/nostrevent"
)

// Signer holds one loaded private key and the pubkey derived from it.
type Signer struct {
	privateKeyHex string
	PublicKey     string
}

// New loads a key in either canonical hex or bech32 (nsec1...) form,
// matching the "key" config file format.
func New(key string) (*Signer, error) {
	sk := strings.TrimSpace(key)
	if strings.HasPrefix(sk, "nsec1") {
		prefix, value, err := nip19.Decode(sk)
		if err != nil {
			return nil, goerrors.Errorf("signer: decoding bech32 key: %w", err)
		}
		if prefix != "nsec" {
			return nil, goerrors.Errorf("signer: expected an nsec key, got %q", prefix)
		}
		decoded, ok := value.(string)
		if !ok {
			return nil, goerrors.Errorf("signer: unexpected nsec payload type")
		}
		sk = decoded
	}

	pub, err := nostr.GetPublicKey(sk)
	if err != nil {
		return nil, goerrors.Errorf("signer: deriving public key: %w", err)
	}
	return &Signer{privateKeyHex: sk, PublicKey: pub}, nil
}

// Sign converts a provisional Event — already carrying the content-addressed
// id the command interpreter precomputed via nostrevent.ComputeID, for
// optimistic local apply — into a signed wire event. The two
// id computations must agree by construction; a mismatch means the two
// canonicalizations have drifted apart and is treated as a programming
// error rather than something to paper over.
func (s *Signer) Sign(e nostrevent.Event) (nostr.Event, error) {
	tags := make(nostr.Tags, len(e.Tags))
	for i, t := range e.Tags {
		tags[i] = nostr.Tag(t)
	}
	wire := nostr.Event{
		PubKey:    s.PublicKey,
		CreatedAt: nostr.Timestamp(e.CreatedAt),
		Kind:      int(e.Kind),
		Tags:      tags,
		Content:   e.Content,
	}
	if err := wire.Sign(s.privateKeyHex); err != nil {
		return nostr.Event{}, goerrors.Errorf("signer: signing event: %w", err)
	}
	if wire.ID != e.ID {
		return nostr.Event{}, goerrors.Errorf("signer: computed id %s does not match provisional id %s", wire.ID, e.ID)
	}
	return wire, nil
}
