package cipher

import (
	"strconv"
	"testing"
)

// Golden vectors recorded against the panel's login script computation.
// Each pins the exact wrapped layout and keystream for a (token, password)
// pair, so any drift in the key schedule, wrap layout, or length digits
// shows up as a mismatch here.
var goldenVectors = []struct {
	name     string
	token    string
	password string
	wantHex  string
	wantGen  string
}{
	{
		name:     "short password padded to 14",
		token:    "abcdefghijklmnop",
		password: "test123",
		wantHex:  "cea327b8d421976f17944bcd9a063bc5",
		wantGen:  "16",
	},
	{
		name:     "numeric token",
		token:    "1234567890123456",
		password: "1234",
		wantHex:  "1281a18210d7ffbd26f728dcb1c4eecd",
		wantGen:  "16",
	},
	{
		name:     "mixed case token",
		token:    "fLq9zR3mXw7Kd2Tb",
		password: "secret",
		wantHex:  "e20bfedabf9277d4ca962816c037a1ab",
		wantGen:  "16",
	},
	{
		// 15-character password: the suffix end index 14-15 wraps to the
		// token's end, picking up token[7:15].
		name:     "password one over pad target",
		token:    "abcdefghijklmnop",
		password: "fifteencharpass",
		wantHex:  "cea327b8d421977d1b814b99cd5b6f9a9658c1e5763a1db5c387ac06a7ab9b0820",
		wantGen:  "33",
	},
	{
		name:     "password longer than pad target",
		token:    "abcdefghijklmnop",
		password: "verylongpassword",
		wantHex:  "cea327b8d421976d17954690c75b6b829659c2f36a3b11b4c086ab07a4aa9b0823",
		wantGen:  "33",
	},
}

func TestEncodeGoldenVectors(t *testing.T) {
	for _, tc := range goldenVectors {
		t.Run(tc.name, func(t *testing.T) {
			gotHex, gotGen := Encode(tc.password, tc.token)
			if gotHex != tc.wantHex {
				t.Errorf("Encode(%q, %q) hex = %s, want %s", tc.password, tc.token, gotHex, tc.wantHex)
			}
			if gotGen != tc.wantGen {
				t.Errorf("Encode(%q, %q) gen = %s, want %s", tc.password, tc.token, gotGen, tc.wantGen)
			}
		})
	}
}

func TestEncodeDeterministic(t *testing.T) {
	token := "abcdefghijklmnop"
	for _, password := range []string{"", "a", "1234", "test123", "averyverylongpassword"} {
		first, firstGen := Encode(password, token)
		for i := 0; i < 5; i++ {
			hex, gen := Encode(password, token)
			if hex != first || gen != firstGen {
				t.Fatalf("Encode(%q) not deterministic: got (%s, %s) then (%s, %s)",
					password, first, firstGen, hex, gen)
			}
		}
	}
}

func TestEncodeOutputShape(t *testing.T) {
	hex, gen := Encode("test123", "abcdefghijklmnop")

	n, err := strconv.Atoi(gen)
	if err != nil {
		t.Fatalf("gen value %q is not decimal: %v", gen, err)
	}

	// Two lowercase hex digits per wrapped plaintext byte.
	if len(hex) != n*2 {
		t.Errorf("hex length = %d, want %d (gen=%s)", len(hex), n*2, gen)
	}
	for _, c := range hex {
		if !(c >= '0' && c <= '9' || c >= 'a' && c <= 'f') {
			t.Errorf("unexpected character %q in hex output", c)
		}
	}
}

func TestEncodeShortToken(t *testing.T) {
	// Tokens shorter than the padding window must not panic; the key schedule
	// wraps through the token cyclically and the wrap slices clamp.
	for _, token := range []string{"x", "ab", "abcd"} {
		hex, gen := Encode("pass", token)
		if hex == "" || gen == "" {
			t.Errorf("Encode with token %q returned empty output", token)
		}
	}
}

func TestEncodeDiffersAcrossTokens(t *testing.T) {
	a, _ := Encode("test123", "abcdefghijklmnop")
	b, _ := Encode("test123", "ponmlkjihgfedcba")
	if a == b {
		t.Error("same ciphertext under different tokens; keystream not token-keyed")
	}
}
