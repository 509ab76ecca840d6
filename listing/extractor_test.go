package listing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"

	"github.com/hazyhaar/rfpwatch/browser"
	"github.com/hazyhaar/rfpwatch/browser/browsertest"
	"github.com/hazyhaar/rfpwatch/rfp"
)

// direct runs fn on the page with no session logic.
type direct struct{ p browser.Page }

func (d direct) Do(ctx context.Context, fn func(browser.Page) error) error { return fn(d.p) }

const tablePage = `<html><body><table>
<thead><tr><th>Title</th><th>Dates</th></tr></thead>
<tbody>
<tr><td><a href="/opp/1">State University Website Redesign</a></td><td class="agency">State University</td><td class="dates">Posted: 10/01/2024 Due: 10/15/2024</td></tr>
<tr><td><a href="/opp/2">City Logo Refresh</a></td><td class="dates">Posted: 10/02/2024</td></tr>
<tr><td>No link here</td><td class="dates">Posted: 10/03/2024</td></tr>
</tbody></table></body></html>`

const listPage = `<html><body><ul class="listings">
<li data-id="SITE-77"><a href="https://portal.test/opp/77"><span class="title">Library Portal Upgrade</span></a><span class="date">Published 2024-09-30</span></li>
<li><a href="#">Broken entry</a></li>
</ul></body></html>`

const cardPage = `<html><body>
<div class="opportunity"><h3>College Intranet Refresh</h3><a href="detail?id=5">View</a><p class="meta">Opens Sept 5, 2024. Deadline: Sept 30, 2024</p></div>
</body></html>`

func parse(t *testing.T, html string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		t.Fatal(err)
	}
	return doc
}

func TestExtractPage_Table(t *testing.T) {
	e := New(Config{})
	base, _ := url.Parse("https://portal.test/listings")

	got, strategy := e.ExtractPage(parse(t, tablePage), base)
	if strategy != "table" {
		t.Fatalf("strategy = %q, want table", strategy)
	}
	want := []rfp.Listing{
		{
			ID:         DeriveID("State University Website Redesign", day(2024, 10, 1)),
			Title:      "State University Website Redesign",
			Agency:     "State University",
			PostedDate: day(2024, 10, 1),
			DueDate:    day(2024, 10, 15),
			DetailURL:  "https://portal.test/opp/1",
			Source:     rfp.SourceListing,
		},
		{
			ID:         DeriveID("City Logo Refresh", day(2024, 10, 2)),
			Title:      "City Logo Refresh",
			PostedDate: day(2024, 10, 2),
			DetailURL:  "https://portal.test/opp/2",
			Source:     rfp.SourceListing,
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("listings mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractPage_ListFallback(t *testing.T) {
	e := New(Config{})
	got, strategy := e.ExtractPage(parse(t, listPage), nil)
	if strategy != "list" {
		t.Fatalf("strategy = %q, want list", strategy)
	}
	if len(got) != 1 {
		t.Fatalf("got %d listings, want 1", len(got))
	}
	if got[0].ID != "SITE-77" || got[0].Title != "Library Portal Upgrade" {
		t.Fatalf("listing = %+v", got[0])
	}
	if got[0].DueDate != nil {
		t.Fatalf("due = %v, want absent", got[0].DueDate)
	}
}

func TestExtractPage_CardFallback(t *testing.T) {
	e := New(Config{})
	base, _ := url.Parse("https://portal.test/browse/")
	got, strategy := e.ExtractPage(parse(t, cardPage), base)
	if strategy != "card" || len(got) != 1 {
		t.Fatalf("strategy = %q, records = %d", strategy, len(got))
	}
	l := got[0]
	if l.DetailURL != "https://portal.test/browse/detail?id=5" {
		t.Errorf("detail url = %s", l.DetailURL)
	}
	if !sameDay(l.PostedDate, day(2024, 9, 5)) || !sameDay(l.DueDate, day(2024, 9, 30)) {
		t.Errorf("dates = %v / %v", l.PostedDate, l.DueDate)
	}
}

func TestExtractPage_NoMatch(t *testing.T) {
	e := New(Config{})
	got, strategy := e.ExtractPage(parse(t, `<html><body><p>Nothing open</p></body></html>`), nil)
	if len(got) != 0 || strategy != "" {
		t.Fatalf("got %d records from %q", len(got), strategy)
	}
}

func pagedSite(pages int) map[string]string {
	routes := make(map[string]string, pages)
	for i := 1; i <= pages; i++ {
		var b strings.Builder
		b.WriteString("<html><body><table><tbody>")
		for j := 0; j < 3; j++ {
			fmt.Fprintf(&b, `<tr><td><a href="/opp/%d-%d">Opportunity %d-%d</a></td><td class="dates">Posted: 2024-10-%02d</td></tr>`, i, j, i, j, i)
		}
		b.WriteString("</tbody></table>")
		if i < pages {
			fmt.Fprintf(&b, `<div class="pagination"><a rel="next" href="/listings?page=%d">Next</a></div>`, i+1)
		}
		b.WriteString("</body></html>")
		routes[fmt.Sprintf("https://portal.test/listings?page=%d", i)] = b.String()
	}
	return routes
}

func TestExtractAll_FollowsPagination(t *testing.T) {
	page := browsertest.New(pagedSite(4))
	e := New(Config{})

	got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(got) != 12 {
		t.Fatalf("got %d listings, want 12", len(got))
	}
	if got[0].Title != "Opportunity 1-0" || got[11].Title != "Opportunity 4-2" {
		t.Fatalf("order: first=%q last=%q", got[0].Title, got[11].Title)
	}
	if n := len(page.Navigations()); n != 4 {
		t.Fatalf("navigations = %d, want 4", n)
	}
}

func TestExtractAll_MaxPages(t *testing.T) {
	page := browsertest.New(pagedSite(5))
	e := New(Config{MaxPages: 2})

	got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Fatalf("got %d listings, want 6", len(got))
	}
}

func TestExtractAll_CycleGuard(t *testing.T) {
	routes := pagedSite(2)
	// Page 2 links back to page 1.
	routes["https://portal.test/listings?page=2"] = strings.Replace(
		routes["https://portal.test/listings?page=2"], "</table>",
		`</table><a rel="next" href="/listings?page=1">Next</a>`, 1)
	page := browsertest.New(routes)
	e := New(Config{})

	got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Fatalf("got %d listings, want 6", len(got))
	}
	if n := len(page.Navigations()); n != 2 {
		t.Fatalf("navigations = %d, want 2", n)
	}
}

func TestExtractAll_ClickNextWithoutHref(t *testing.T) {
	routes := pagedSite(2)
	first := strings.Replace(routes["https://portal.test/listings?page=1"],
		`<div class="pagination"><a rel="next" href="/listings?page=2">Next</a></div>`,
		`<button class="next-btn">Next</button>`, 1)
	page := browsertest.New(map[string]string{"https://portal.test/listings?page=1": first})
	page.OnClick = func(p *browsertest.FakePage, sel string) (bool, error) {
		if sel == "button.next-btn" {
			p.Show("https://portal.test/listings?page=1", routes["https://portal.test/listings?page=2"])
		}
		return true, nil
	}
	e := New(Config{NextSelectors: []string{"button.next-btn"}})

	got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 6 {
		t.Fatalf("got %d listings, want 6", len(got))
	}
}

func TestExtractAll_FirstPageFailureIsFatal(t *testing.T) {
	page := browsertest.New(nil)
	e := New(Config{})

	_, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if rfp.KindOf(err) != rfp.KindNavigation || !rfp.IsFatal(err) {
		t.Fatalf("err = %v, want fatal navigation error", err)
	}
}

func TestExtractAll_LaterPageFailureKeepsCollected(t *testing.T) {
	page := browsertest.New(pagedSite(3))
	page.FailNavigate = func(u string, _ int) error {
		if strings.HasSuffix(u, "page=2") {
			return errors.New("net::ERR_TIMED_OUT")
		}
		return nil
	}
	e := New(Config{})

	got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
	if err != nil {
		t.Fatalf("ExtractAll: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("got %d listings, want 3", len(got))
	}
}

func TestExtractAll_RerunYieldsSameIDs(t *testing.T) {
	e := New(Config{})
	ids := func() map[string]bool {
		page := browsertest.New(pagedSite(3))
		got, err := e.ExtractAll(context.Background(), direct{page}, "https://portal.test/listings?page=1")
		if err != nil {
			t.Fatal(err)
		}
		m := make(map[string]bool, len(got))
		for _, l := range got {
			m[l.ID] = true
		}
		return m
	}
	first, second := ids(), ids()
	if diff := cmp.Diff(first, second); diff != "" {
		t.Fatalf("ids changed between runs:\n%s", diff)
	}
}

func TestMerge(t *testing.T) {
	page := []rfp.Listing{{ID: "a", Title: "from page", Source: rfp.SourceListing}}
	feed := []rfp.Listing{
		{ID: "a", Title: "from feed", Source: rfp.SourceRSS},
		{ID: "b", Title: "feed only", Source: rfp.SourceRSS},
	}
	got := Merge(page, feed)
	if len(got) != 2 || got[0].Title != "from page" || got[1].ID != "b" {
		t.Fatalf("Merge = %+v", got)
	}
}
