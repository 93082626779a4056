// Package enrich looks up the organization behind a lead's e-mail domain.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"
	"unicode/utf8"

	"golang.org/x/net/html"

	"github.com/trigonal/intake/internal/domain"
)

// freeMail domains say nothing about the organization
var freeMail = map[string]bool{
	"gmail.com": true, "googlemail.com": true, "yahoo.com": true,
	"hotmail.com": true, "outlook.com": true, "live.com": true,
	"icloud.com": true, "proton.me": true, "protonmail.com": true,
}

var (
	// ErrSkipped is returned when the address has no organization domain
	ErrSkipped = errors.New("no organization domain")
	// ErrBlockedAddress is returned when the domain resolves to a non-public address
	ErrBlockedAddress = errors.New("refusing to fetch non-public address")
)

// Enricher fetches an organization's home page
type Enricher struct {
	client *http.Client
	urlFor func(host string) string
}

// New creates an Enricher with the given request timeout. Its client skips
// proxies and only dials public unicast addresses, redirects included.
func New(timeout time.Duration) *Enricher {
	dialer := &net.Dialer{
		Timeout: timeout,
		Control: func(network, address string, _ syscall.RawConn) error {
			return checkPublic(address)
		},
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &Enricher{
		client: &http.Client{Timeout: timeout, Transport: transport},
		urlFor: func(host string) string { return "https://" + host + "/" },
	}
}

// Lookup returns the title and description of the site at the e-mail's domain
func (e *Enricher) Lookup(ctx context.Context, email string) (*domain.OrgContext, error) {
	host := emailDomain(email)
	if host == "" || freeMail[host] {
		return nil, ErrSkipped
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.urlFor(host), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", "intake/1.0 (lead-enrichment)")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, resp.Status)
	}

	// Read body with size limit (1MB)
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	title, desc := extractMeta(string(body))
	return &domain.OrgContext{
		Domain:      host,
		Title:       title,
		Description: desc,
	}, nil
}

func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(email[at+1:]))
}

// extractMeta returns the document title and meta description
func extractMeta(htmlContent string) (title, description string) {
	doc, err := html.Parse(strings.NewReader(htmlContent))
	if err != nil {
		return "", ""
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if title == "" && n.FirstChild != nil {
					title = collapse(n.FirstChild.Data)
				}
			case "meta":
				if description == "" && isDescription(n) {
					description = collapse(attr(n, "content"))
				}
			case "body", "script", "style":
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	return title, clip(description, 300)
}

// clip shortens s to at most max bytes without splitting a rune
func clip(s string, max int) string {
	if len(s) <= max {
		return s
	}
	cut := max - 3
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

// checkPublic rejects dial targets that are not public unicast addresses
func checkPublic(address string) error {
	ap, err := netip.ParseAddrPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip := ap.Addr().Unmap()
	if !ip.IsGlobalUnicast() || ip.IsPrivate() || ip.IsLoopback() || ip.IsLinkLocalUnicast() {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

func isDescription(n *html.Node) bool {
	name := strings.ToLower(attr(n, "name"))
	prop := strings.ToLower(attr(n, "property"))
	return name == "description" || prop == "og:description"
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
