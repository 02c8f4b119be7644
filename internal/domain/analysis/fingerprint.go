package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
)

var sep = []byte{0}

// Fingerprint returns the cache key for a request: the operation name
// joined with a SHA-256 over operation, language, normalized code, and
// the auxiliary question. The operation appears in both the prefix and
// the hash input, so keys never collide across operations. The "." join
// keeps keys inside the NATS KV character set.
func Fingerprint(r Request) string {
	h := sha256.New()
	h.Write([]byte(r.Operation))
	h.Write(sep)
	h.Write([]byte(strings.ToLower(strings.TrimSpace(r.Language))))
	h.Write(sep)
	h.Write([]byte(NormalizeCode(r.Code)))
	h.Write(sep)
	h.Write([]byte(strings.TrimSpace(r.Question)))
	return string(r.Operation) + "." + hex.EncodeToString(h.Sum(nil))
}

// NormalizeCode canonicalizes a snippet so semantically identical
// submissions share a fingerprint: CRLF becomes LF, trailing whitespace
// is stripped per line, and leading/trailing blank lines are dropped.
// Indentation is preserved; it is significant in several languages.
func NormalizeCode(code string) string {
	code = strings.ReplaceAll(code, "\r\n", "\n")
	lines := strings.Split(code, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimRight(l, " \t")
	}
	start, end := 0, len(lines)
	for start < end && lines[start] == "" {
		start++
	}
	for end > start && lines[end-1] == "" {
		end--
	}
	return strings.Join(lines[start:end], "\n")
}
