package command

import (
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// decodeStrategy is one step of the output decoding chain. ok is false when
// the bytes do not round-trip cleanly through the encoding.
type decodeStrategy struct {
	name   string
	decode func([]byte) (string, bool)
}

// Strategies are tried in order; the chain ends with a lossy Latin-1 decode
// that substitutes invalid bytes, so Decode always produces text.
var decodeStrategies = []decodeStrategy{
	{name: "utf-8", decode: decodeUTF8},
	{name: "cp1251", decode: charmapStrict(charmap.Windows1251)},
	{name: "latin1", decode: charmapStrict(charmap.ISO8859_1)},
	{name: "ascii", decode: decodeASCII},
}

// Decode converts raw command output into a string using the encoding
// fallback chain.
func Decode(raw []byte) string {
	if len(raw) == 0 {
		return ""
	}

	for _, s := range decodeStrategies {
		if out, ok := s.decode(raw); ok {
			return out
		}
	}

	out, _ := charmap.ISO8859_1.NewDecoder().Bytes(raw)

	return string(out)
}

func decodeUTF8(raw []byte) (string, bool) {
	if !utf8.Valid(raw) {
		return "", false
	}

	return string(raw), true
}

func decodeASCII(raw []byte) (string, bool) {
	for _, b := range raw {
		if b >= utf8.RuneSelf {
			return "", false
		}
	}

	return string(raw), true
}

func charmapStrict(cm *charmap.Charmap) func([]byte) (string, bool) {
	return func(raw []byte) (string, bool) {
		out, err := cm.NewDecoder().Bytes(raw)
		if err != nil {
			return "", false
		}

		// charmap decoders substitute unassigned bytes instead of failing;
		// a replacement rune means the encoding did not fit.
		s := string(out)
		if strings.ContainsRune(s, utf8.RuneError) {
			return "", false
		}

		return s, true
	}
}
