package crypto

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
)

func testAddress(prefix AddressPrefix, suffix byte) Address {
	payload := make([]byte, 20)
	payload[19] = suffix
	return NewAddress(prefix, payload)
}

func TestAddressRoundTrip(t *testing.T) {
	addr := testAddress(AccountPrefix, 0x42)
	encoded := addr.String()
	if !strings.HasPrefix(encoded, string(AccountPrefix)+"1") {
		t.Fatalf("encoded address %q missing prefix", encoded)
	}

	decoded, err := DecodeAddress(encoded)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !bytes.Equal(decoded.Bytes(), addr.Bytes()) {
		t.Fatalf("payload changed across round trip: %x != %x", decoded.Bytes(), addr.Bytes())
	}
	if decoded.Prefix() != AccountPrefix {
		t.Fatalf("prefix changed: %s", decoded.Prefix())
	}
}

func TestDecodeAddressRejectsBadInput(t *testing.T) {
	if _, err := DecodeAddress("not-bech32"); err == nil {
		t.Fatal("expected error for malformed string")
	}

	// Valid bech32, wrong payload length.
	short := NewAddress(AccountPrefix, make([]byte, 20))
	truncated := short.String()[:len(short.String())-10]
	if _, err := DecodeAddress(truncated); err == nil {
		t.Fatal("expected error for truncated payload")
	}
}

func TestAddressEqualIgnoresPrefix(t *testing.T) {
	account := testAddress(AccountPrefix, 0x07)
	module := testAddress(ModulePrefix, 0x07)
	if !account.Equal(module) {
		t.Fatal("same payload should compare equal across prefixes")
	}
	if account.Key() != module.Key() {
		t.Fatal("map keys should match for identical payloads")
	}
	if account.Equal(testAddress(AccountPrefix, 0x08)) {
		t.Fatal("different payloads must not compare equal")
	}
}

func TestAddressZeroValue(t *testing.T) {
	var zero Address
	if !zero.IsZero() {
		t.Fatal("empty address should be zero")
	}
	if !testAddress(AccountPrefix, 0x00).IsZero() {
		t.Fatal("all-zero payload should be zero")
	}
	if testAddress(AccountPrefix, 0x01).IsZero() {
		t.Fatal("non-zero payload reported as zero")
	}
}

func TestAddressJSONEmbedding(t *testing.T) {
	type wrapper struct {
		Owner Address `json:"owner"`
	}
	in := wrapper{Owner: testAddress(ModulePrefix, 0x21)}

	raw, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var out wrapper
	if err := json.Unmarshal(raw, &out); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if !out.Owner.Equal(in.Owner) || out.Owner.Prefix() != ModulePrefix {
		t.Fatalf("owner changed across JSON round trip: %s", out.Owner)
	}

	var empty wrapper
	if err := json.Unmarshal([]byte(`{"owner":""}`), &empty); err != nil {
		t.Fatalf("unmarshal empty: %v", err)
	}
	if !empty.Owner.IsZero() {
		t.Fatal("empty string should decode to the zero address")
	}
}
