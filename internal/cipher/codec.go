// Package cipher reproduces the password obfuscation performed by the Sigma
// panel's embedded login page script.
//
// The panel never receives the password in the clear. Its login page carries a
// one-time token in a hidden gen_input field; the browser script key-schedules
// an RC4-style 256-byte state from that token, wraps the password in token
// material plus two ASCII length digits, XORs the wrapped bytes against the
// keystream, and submits the result hex-encoded. The panel replays the same
// computation server-side using the token it issued.
//
// Encode is a pure function of (password, token). The browser script picks its
// padding amount at random; that would make the output non-reproducible, so
// this implementation derives it from the first token byte instead. The panel
// recovers the amount from the trailing digits of the wrapped plaintext, so
// any value in 1..7 is accepted.
package cipher

import (
	"encoding/hex"
	"strconv"
)

// wrapTarget is the combined prefix+password+suffix length the panel's script
// pads short passwords out to.
const wrapTarget = 14

// Encode obfuscates password under the one-time login token and returns the
// lowercase hex ciphertext together with the decimal gen_input value (the
// wrapped plaintext length) expected by the login form.
//
// The token must be non-empty; it is consumed by exactly one login attempt
// and must never be reused for another Encode-and-submit cycle.
func Encode(password, token string) (cipherHex string, genValue string) {
	state := keySchedule(token)

	wrapped := wrap(password, token)

	out := make([]byte, len(wrapped))
	i, j := 0, 0
	for n := 0; n < len(wrapped); n++ {
		i = (i + 1) % 256
		j = (j + int(state[i])) % 256
		state[i], state[j] = state[j], state[i]
		k := state[(int(state[i])+int(state[j]))%256]
		out[n] = wrapped[n] ^ k
	}

	return hex.EncodeToString(out), strconv.Itoa(len(wrapped))
}

// keySchedule builds the 256-byte permutation, scrambled Fisher-Yates style
// by the token bytes. The token wraps cyclically when shorter than 256.
func keySchedule(token string) *[256]byte {
	var s [256]byte
	for i := range s {
		s[i] = byte(i)
	}
	j := 0
	for i := 0; i < 256; i++ {
		j = (j + int(s[i]) + int(token[i%len(token)])) % 256
		s[i], s[j] = s[j], s[i]
	}
	return &s
}

// wrap surrounds the password with token material and appends the padding
// amount and password length as ASCII decimal digits. Layout pinned from the
// panel's login script:
//
//	prefix  = token[1 : 1+num]
//	suffix  = token[num : 14-len(password)]
//	wrapped = prefix + password + suffix + itoa(num) + itoa(len(password))
//
// The suffix slice follows the script's slicing rules: a negative end index
// counts back from the token's end (so passwords longer than 14 characters
// still pick up token material), and an end at or before the start yields
// the empty string.
func wrap(password, token string) []byte {
	num := int(token[0])%7 + 1

	prefix := sliceToken(token, 1, 1+num)

	end := wrapTarget - len(password)
	if end < 0 {
		end += len(token)
	}
	if end < 0 {
		end = 0
	}
	suffix := sliceToken(token, num, end)

	wrapped := prefix + password + suffix + strconv.Itoa(num) + strconv.Itoa(len(password))
	return []byte(wrapped)
}

// sliceToken is token[from:to] with both bounds clamped to the token length,
// so short tokens degrade to shorter padding instead of panicking.
func sliceToken(token string, from, to int) string {
	if from > len(token) {
		from = len(token)
	}
	if to > len(token) {
		to = len(token)
	}
	if to < from {
		to = from
	}
	return token[from:to]
}
