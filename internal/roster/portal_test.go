package roster

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ieee-registration-bot/internal/config"
	"ieee-registration-bot/internal/domain"
)

const (
	listURL    = "https://portal.example.edu/engage/roster/prospective"
	approveURL = "https://portal.example.edu/engage/roster/approvemember/"
	denyURL    = "https://portal.example.edu/engage/roster/denymember/"
)

func listPageHTML(next string, rows ...[3]string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="svgGrid"></div><table>`)
	for _, r := range rows {
		// name, profile path, row id
		fmt.Fprintf(&b, `<tr><td><input type="checkbox" title="%s" value="%s"></td><td><a class="member-modal" href="%s">%s</a></td></tr>`, r[0], r[2], r[1], r[0])
	}
	b.WriteString(`</table>`)
	if next != "" {
		fmt.Fprintf(&b, `<span class="paginationRight"><a href="%s">next</a></span>`, next)
	}
	b.WriteString(`</body></html>`)
	return b.String()
}

func profileHTML(name, email string) string {
	return fmt.Sprintf(`<html><body><div class="userCard-section"><span class="fn"> %s </span><a class="email" href="mailto:%s">%s</a></div></body></html>`, name, email, email)
}

type fakeBrowser struct {
	pages   map[string]string
	loads   []string
	scripts []string
	closed  bool
	evalErr error
}

func (f *fakeBrowser) Load(_ context.Context, rawURL, selector string, _ time.Duration) (string, error) {
	f.loads = append(f.loads, rawURL)
	doc, ok := f.pages[rawURL]
	if !ok || !strings.Contains(doc, strings.TrimPrefix(selector, ".")) {
		return "", fmt.Errorf("timeout waiting for %s", selector)
	}
	return doc, nil
}

func (f *fakeBrowser) Eval(_ context.Context, script string) error {
	f.scripts = append(f.scripts, script)
	return f.evalErr
}

func (f *fakeBrowser) Close() { f.closed = true }

func twoPagePortal(t *testing.T) (*Portal, *fakeBrowser) {
	t.Helper()
	fake := &fakeBrowser{pages: map[string]string{
		listURL: listPageHTML("?page=2",
			[3]string{"Alice Smith", "/engage/profile/1", "101"},
			[3]string{"Bob Jones", "/engage/profile/2", "102"},
		),
		listURL + "?page=2": listPageHTML("",
			[3]string{"Carol White", "/engage/profile/3", "103"},
		),
		"https://portal.example.edu/engage/profile/1": profileHTML("Alice Smith", "alice@clemson.edu"),
		"https://portal.example.edu/engage/profile/2": profileHTML("Bob Jones", "bob@g.clemson.edu"),
		"https://portal.example.edu/engage/profile/3": profileHTML("Carol White", "carol@clemson.edu"),
	}}
	cfg := config.RosterConfig{
		ProspectiveMemberURL: listURL,
		ApproveURL:           approveURL,
		DenyURL:              denyURL,
		ListTimeout:          time.Second,
		ProfileTimeout:       time.Second,
	}
	return NewPortal(cfg, func(context.Context) (Browser, error) { return fake, nil }), fake
}

func TestPortal_FetchApplicants_FollowsPagination(t *testing.T) {
	portal, fake := twoPagePortal(t)

	applicants, err := portal.FetchApplicants(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []domain.Applicant{
		{Name: "Alice Smith", Email: "alice@clemson.edu"},
		{Name: "Bob Jones", Email: "bob@g.clemson.edu"},
		{Name: "Carol White", Email: "carol@clemson.edu"},
	}, applicants)
	assert.True(t, fake.closed)
}

func TestPortal_FetchApplicants_ListTimeout(t *testing.T) {
	portal, fake := twoPagePortal(t)
	fake.pages[listURL] = "<html><body>still loading</body></html>"

	_, err := portal.FetchApplicants(context.Background())
	assert.Error(t, err)
}

func TestPortal_FetchApplicants_BrowserStartFailure(t *testing.T) {
	portal := NewPortal(config.RosterConfig{ProspectiveMemberURL: listURL}, func(context.Context) (Browser, error) {
		return nil, errors.New("chrome not installed")
	})

	_, err := portal.FetchApplicants(context.Background())
	assert.ErrorContains(t, err, "chrome not installed")
}

func TestPortal_Accept_OnSecondPage(t *testing.T) {
	portal, fake := twoPagePortal(t)

	found, err := portal.Accept(context.Background(), domain.Applicant{Name: "Carol White", Email: "carol@clemson.edu"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"ApproveMember('" + approveURL + "103');"}, fake.scripts)
}

func TestPortal_Reject(t *testing.T) {
	portal, fake := twoPagePortal(t)

	found, err := portal.Reject(context.Background(), domain.Applicant{Name: "Alice Smith"})
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []string{"DenyMember('" + denyURL + "101');"}, fake.scripts)
	assert.Equal(t, []string{listURL}, fake.loads, "stops paging once the row is found")
}

func TestPortal_Accept_NotListed(t *testing.T) {
	portal, fake := twoPagePortal(t)

	found, err := portal.Accept(context.Background(), domain.Applicant{Name: "Dave Gone"})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Empty(t, fake.scripts)
}

func TestPortal_Accept_ScriptFailure(t *testing.T) {
	portal, fake := twoPagePortal(t)
	fake.evalErr = errors.New("ApproveMember is not defined")

	found, err := portal.Accept(context.Background(), domain.Applicant{Name: "Bob Jones"})
	assert.Error(t, err)
	assert.True(t, found)
}

func TestPortal_PaginationLoopStops(t *testing.T) {
	portal, fake := twoPagePortal(t)
	fake.pages[listURL] = listPageHTML(listURL)

	applicants, err := portal.FetchApplicants(context.Background())
	require.NoError(t, err)
	assert.Empty(t, applicants)
	assert.Equal(t, []string{listURL}, fake.loads)
}

func TestParseListPage(t *testing.T) {
	base, _ := url.Parse(listURL)
	doc := `<html><body>
		<a class="member-modal" href="/outside">not in table</a>
		<table><tr><td><a class="member-modal big" href="profile/9">Zed</a><input title="Zed" value="909"></td></tr></table>
		<span class="paginationLeft"><a href="?page=0">next</a></span>
		<span class="paginationRight"><a href="?page=3"> Next </a></span>
	</body></html>`

	page, err := ParseListPage(strings.NewReader(doc), base)
	require.NoError(t, err)
	assert.Equal(t, []string{"https://portal.example.edu/engage/roster/profile/9"}, page.ProfileURLs)
	assert.Equal(t, listURL+"?page=3", page.NextURL)
	assert.Equal(t, map[string]string{"Zed": "909"}, page.RowIDs)
}

func TestParseProfile(t *testing.T) {
	applicant, err := ParseProfile(strings.NewReader(
		`<div><span class="fn">Mary   Ann  Lee</span><a class="email" href="MAILTO:mlee@clemson.edu?subject=hi">x</a></div>`))
	require.NoError(t, err)
	assert.Equal(t, domain.Applicant{Name: "Mary Ann Lee", Email: "mlee@clemson.edu"}, applicant)

	_, err = ParseProfile(strings.NewReader(`<div><span class="fn">No Email</span></div>`))
	assert.ErrorIs(t, err, ErrIncompleteProfile)
}

func TestJSString(t *testing.T) {
	assert.Equal(t, `'a\'b\\c'`, jsString(`a'b\c`))
}
