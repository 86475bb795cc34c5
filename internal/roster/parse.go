package roster

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"ieee-registration-bot/internal/domain"
)

// ErrIncompleteProfile is returned when a profile page lacks a name or email.
var ErrIncompleteProfile = errors.New("profile page has no name or email")

// ListPage is what one page of the prospective member grid yields.
type ListPage struct {
	// ProfileURLs are the absolute links of every member on the page, in
	// document order.
	ProfileURLs []string
	// NextURL is the absolute "next" pagination link, empty on the last page.
	NextURL string
	// RowIDs maps the display name on each row's checkbox to the roster's
	// internal member id.
	RowIDs map[string]string
}

// ParseListPage reads a rendered roster grid. Relative links resolve against
// base.
func ParseListPage(r io.Reader, base *url.URL) (*ListPage, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse roster page: %w", err)
	}

	page := &ListPage{RowIDs: make(map[string]string)}
	walk(doc, func(n *html.Node) {
		switch {
		case n.DataAtom == atom.A && hasClass(n, "member-modal") && hasAncestor(n, atom.Table):
			if href := attr(n, "href"); href != "" {
				page.ProfileURLs = append(page.ProfileURLs, resolve(base, href))
			}
		case n.DataAtom == atom.A && page.NextURL == "" && strings.EqualFold(strings.TrimSpace(textContent(n)), "next"):
			if parent := findAncestor(n, atom.Span); parent != nil && hasClass(parent, "paginationRight") {
				if href := attr(n, "href"); href != "" {
					page.NextURL = resolve(base, href)
				}
			}
		case n.DataAtom == atom.Input:
			if title := attr(n, "title"); title != "" {
				if _, seen := page.RowIDs[title]; !seen {
					page.RowIDs[title] = attr(n, "value")
				}
			}
		}
	})
	return page, nil
}

// ParseProfile extracts the applicant from a member profile page:
// the name from span.fn and the address from the a.email mailto link.
func ParseProfile(r io.Reader) (domain.Applicant, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return domain.Applicant{}, fmt.Errorf("failed to parse profile page: %w", err)
	}

	var name, email string
	walk(doc, func(n *html.Node) {
		switch {
		case name == "" && n.DataAtom == atom.Span && hasClass(n, "fn"):
			name = strings.Join(strings.Fields(textContent(n)), " ")
		case email == "" && n.DataAtom == atom.A && hasClass(n, "email"):
			email = mailtoAddress(attr(n, "href"))
		}
	})
	if name == "" || email == "" {
		return domain.Applicant{}, ErrIncompleteProfile
	}
	return domain.Applicant{Name: name, Email: email}, nil
}

func mailtoAddress(href string) string {
	href = strings.TrimSpace(href)
	if len(href) >= 7 && strings.EqualFold(href[:7], "mailto:") {
		href = href[7:]
	}
	if i := strings.IndexByte(href, '?'); i >= 0 {
		href = href[:i]
	}
	if unescaped, err := url.PathUnescape(href); err == nil {
		href = unescaped
	}
	return strings.TrimSpace(href)
}

func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil || base == nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

func walk(n *html.Node, fn func(*html.Node)) {
	if n.Type == html.ElementNode {
		fn(n)
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func findAncestor(n *html.Node, a atom.Atom) *html.Node {
	for p := n.Parent; p != nil; p = p.Parent {
		if p.DataAtom == a {
			return p
		}
	}
	return nil
}

func hasAncestor(n *html.Node, a atom.Atom) bool {
	return findAncestor(n, a) != nil
}

func textContent(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return b.String()
}
