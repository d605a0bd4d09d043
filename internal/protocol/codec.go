// Package protocol implements the control channel wire format spoken between
// the host and a subbot: the token codec, the typed command set and the parser
// that turns decoded tokens into commands.
package protocol

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// Separator joins fields inside one wire message.
const Separator = " "

// ReservedFields is the number of leading header tokens (entity id, verb).
// Leading whitespace and the gap between header tokens may be any run of
// whitespace. Exactly one separator follows the verb; the tail after it is
// split on single spaces with nothing trimmed, so rejoining it restores the
// original text.
const ReservedFields = 2

// AuthSucceeded is the literal handshake acknowledgement sent by the host.
const AuthSucceeded = "authentication succeeded"

// Encode renders fields as a single wire message.
func Encode(fields []string) []byte {
	return []byte(strings.Join(fields, Separator))
}

// Decode splits a wire message into its tokens. It never fails: malformed
// payloads come back as whatever tokens they contain and the parser decides.
// Decode(Encode(fields)) == fields whenever the header fields are non-empty
// and whitespace-free and no tail field contains a space.
func Decode(msg []byte) []string {
	rest := strings.TrimLeftFunc(string(msg), unicode.IsSpace)
	if rest == "" {
		return nil
	}

	tokens := make([]string, 0, 4)
	for i := 0; i < ReservedFields; i++ {
		head, tail := cutField(rest)
		tokens = append(tokens, head)
		if i < ReservedFields-1 {
			rest = strings.TrimLeftFunc(tail, unicode.IsSpace)
			if rest == "" {
				return tokens
			}
			continue
		}
		if tail == "" {
			return tokens
		}
		_, size := utf8.DecodeRuneInString(tail)
		rest = tail[size:]
	}
	return append(tokens, strings.Split(rest, Separator)...)
}

func cutField(s string) (string, string) {
	if i := strings.IndexFunc(s, unicode.IsSpace); i >= 0 {
		return s[:i], s[i:]
	}
	return s, ""
}
