package signer

import "testing"

func TestNewRejectsMalformedHexKey(t *testing.T) {
	if _, err := New("not-a-valid-key"); err == nil {
		t.Fatalf("expected an error for a malformed hex key")
	}
}

func TestNewRejectsWrongBech32Prefix(t *testing.T) {
	// npub1... is a public key, not a private key; New only accepts nsec1...
	if _, err := New("npub180cvv07tjdrrgpa0j7j7tmnyl2yr6yr7l8j4s3evf6u64th6gkwsyjh6w6"); err == nil {
		t.Fatalf("expected an error for a non-nsec bech32 key")
	}
}
