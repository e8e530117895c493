// Package blocklist manages blocked email domains used to keep spam
// and throwaway registrations off the platform.
package blocklist

import (
	"errors"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// ErrInvalidDomain indicates an unusable domain string.
var ErrInvalidDomain = errors.New("blocklist: invalid domain")

// BlockedDomain is keyed by the normalized domain string; existence is
// the payload.
type BlockedDomain struct {
	Domain    string    `json:"domain"`
	BlockedBy string    `json:"blockedBy"`
	CreatedAt time.Time `json:"createdAt"`
}

// Normalize canonicalizes a domain for keying: trimmed, lowercased,
// NFC-normalized so visually identical unicode spellings collide.
func Normalize(domain string) (string, error) {
	domain = strings.ToLower(strings.TrimSpace(domain))
	domain = strings.TrimPrefix(domain, "@")
	domain = norm.NFC.String(domain)
	if domain == "" || !strings.Contains(domain, ".") || strings.ContainsAny(domain, " @/") {
		return "", ErrInvalidDomain
	}
	return domain, nil
}

// DomainOfEmail extracts the normalized domain of an address.
func DomainOfEmail(email string) (string, error) {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return "", ErrInvalidDomain
	}
	return Normalize(email[at+1:])
}
