package pathcoder

import (
	"strings"
	"unicode/utf8"
)

const upperhex = "0123456789ABCDEF"

// encodeURI escapes every byte outside the encodeURI safe set. Existing
// well-formed %XX escapes are kept, so the function is idempotent. A path
// holding an escaped unreserved character such as "%41" is therefore not
// canonical: it decodes to the character itself.
func encodeURI(path string) string {
	var b strings.Builder
	b.Grow(len(path))

	for i := 0; i < len(path); i++ {
		c := path[i]
		switch {
		case c == '%' && i+2 < len(path) && isHexDigit(path[i+1]) && isHexDigit(path[i+2]):
			b.WriteString(path[i : i+3])
			i += 2
		case isURISafe(c):
			b.WriteByte(c)
		default:
			b.WriteByte('%')
			b.WriteByte(upperhex[c>>4])
			b.WriteByte(upperhex[c&15])
		}
	}
	return b.String()
}

// decodeURI reverses encodeURI. Escapes of the reserved characters
// ; / ? : @ & = + $ , # are left escaped, so "%3F" never turns into a
// search separator. Malformed input is returned unchanged.
func decodeURI(hash string) string {
	if strings.IndexByte(hash, '%') == -1 {
		return hash
	}

	var b strings.Builder
	b.Grow(len(hash))

	for i := 0; i < len(hash); i++ {
		c := hash[i]
		if c != '%' {
			b.WriteByte(c)
			continue
		}
		if i+2 >= len(hash) || !isHexDigit(hash[i+1]) || !isHexDigit(hash[i+2]) {
			return hash
		}
		d := unhex(hash[i+1])<<4 | unhex(hash[i+2])
		if isURIReserved(d) {
			b.WriteString(hash[i : i+3])
		} else {
			b.WriteByte(d)
		}
		i += 2
	}

	decoded := b.String()
	if !utf8.ValidString(decoded) {
		return hash
	}
	return decoded
}

func isURIReserved(c byte) bool {
	switch c {
	case ';', '/', '?', ':', '@', '&', '=', '+', '$', ',', '#':
		return true
	}
	return false
}

func unhex(c byte) byte {
	switch {
	case '0' <= c && c <= '9':
		return c - '0'
	case 'a' <= c && c <= 'f':
		return c - 'a' + 10
	default:
		return c - 'A' + 10
	}
}

func isURISafe(c byte) bool {
	if 'a' <= c && c <= 'z' || 'A' <= c && c <= 'Z' || '0' <= c && c <= '9' {
		return true
	}
	switch c {
	case '-', '_', '.', '!', '~', '*', '\'', '(', ')',
		';', ',', '/', '?', ':', '@', '&', '=', '+', '$', '#':
		return true
	}
	return false
}
