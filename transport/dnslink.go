package transport

import (
	"fmt"
	"net"
	"strings"
)

// DNSResolver defines the interface for DNS lookups.
// This allows tests to mock DNS resolution.
type DNSResolver interface {
	// LookupTXT looks up TXT records for the given name.
	LookupTXT(name string) ([]string, error)
}

// defaultDNSResolver wraps the standard net package DNS functions.
type defaultDNSResolver struct{}

func (d *defaultDNSResolver) LookupTXT(name string) ([]string, error) {
	return net.LookupTXT(name)
}

// DefaultDNSResolver is the production DNS resolver using the net package.
var DefaultDNSResolver DNSResolver = &defaultDNSResolver{}

const (
	// DNSLinkScheme prefixes channel links published in DNS.
	DNSLinkScheme = "dns:"

	dnsLinkLabel  = "_msgstore."
	dnsLinkPrefix = "channel="
)

// ResolveChannelLink expands a "dns:<domain>" link by reading the
// _msgstore.<domain> TXT record with the "channel=" prefix. Any other
// non-empty link is returned unchanged.
func ResolveChannelLink(link string, resolver DNSResolver) (string, error) {
	link = strings.TrimSpace(link)
	if link == "" {
		return "", ErrInvalidLink
	}
	if !strings.HasPrefix(strings.ToLower(link), DNSLinkScheme) {
		return link, nil
	}

	domain := strings.TrimSuffix(strings.TrimSpace(link[len(DNSLinkScheme):]), ".")
	if domain == "" {
		return "", fmt.Errorf("%w: empty domain in %q", ErrInvalidLink, link)
	}
	if resolver == nil {
		resolver = DefaultDNSResolver
	}

	name := dnsLinkLabel + domain
	txts, err := resolver.LookupTXT(name)
	if err != nil {
		return "", fmt.Errorf("%w: TXT lookup for %s: %w", ErrDNSLookupFailed, name, err)
	}

	// Find the first TXT record with the "channel=" prefix.
	for _, txt := range txts {
		txt = strings.TrimSpace(txt)
		if strings.HasPrefix(txt, dnsLinkPrefix) {
			target := strings.TrimSpace(strings.TrimPrefix(txt, dnsLinkPrefix))
			if target == "" || strings.HasPrefix(strings.ToLower(target), DNSLinkScheme) {
				return "", fmt.Errorf("%w: bad channel in TXT record for %s", ErrInvalidLink, name)
			}
			return target, nil
		}
	}

	return "", fmt.Errorf("%w: no channel= TXT record for %s", ErrDNSLookupFailed, name)
}
