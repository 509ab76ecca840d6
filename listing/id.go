package listing

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// titleKeyLen is how much of the folded title feeds the id.
const titleKeyLen = 80

// ASCIIFold lowercases s, strips diacritics, drops punctuation and
// collapses whitespace. "Étude  Rénovation!" -> "etude renovation".
func ASCIIFold(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	folded, _, err := transform.String(t, s)
	if err != nil {
		folded = s
	}
	var b strings.Builder
	space := false
	for _, r := range strings.ToLower(folded) {
		switch {
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)):
			if space && b.Len() > 0 {
				b.WriteByte(' ')
			}
			space = false
			b.WriteRune(r)
		default:
			space = true
		}
	}
	return b.String()
}

// DeriveID returns the stable id of a listing without a site identifier:
// "rfp-" followed by 16 hex digits of SHA-256 over the folded title prefix
// and the posted date.
func DeriveID(title string, posted *time.Time) string {
	key := ASCIIFold(title)
	if len(key) > titleKeyLen {
		key = key[:titleKeyLen]
	}
	date := ""
	if posted != nil {
		date = posted.UTC().Format("2006-01-02")
	}
	sum := sha256.Sum256([]byte(key + "|" + date))
	return "rfp-" + hex.EncodeToString(sum[:])[:16]
}
