package util

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeLocation(t *testing.T) {
	assert.Equal(t, "Paris, France", NormalizeLocation("Location:  Paris, France, paris"))
	assert.Equal(t, "", NormalizeLocation("  "))
}

func TestHTMLToText(t *testing.T) {
	in := `<div><p>We are hiring a <b>Data Analyst</b>.</p><ul><li>Python</li><li>SQL</li></ul><script>x()</script></div>`
	assert.Equal(t, "We are hiring a Data Analyst.\nPython\nSQL", HTMLToText(in))
	assert.Equal(t, "plain text", HTMLToText("  plain   text "))
}

func TestFindLocation(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(`<html><body><div class="location"> Lyon ,  France </div></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Lyon, France", FindLocation(doc))

	doc, err = goquery.NewDocumentFromReader(strings.NewReader(`<html><body><p>Team: Data</p><p>Location: Remote - EU</p></body></html>`))
	require.NoError(t, err)
	assert.Equal(t, "Remote - EU", FindLocation(doc))
}

func TestCanonicalURL(t *testing.T) {
	assert.Equal(t,
		"https://boards.greenhouse.io/acme/jobs/1?gh_src=x",
		CanonicalURL("HTTPS://Boards.Greenhouse.io/acme/jobs/1?utm_source=li&gh_src=x#apply"))
	assert.Equal(t,
		"https://www.linkedin.com/jobs/view/42?currentJobId=42",
		CanonicalURL("https://www.linkedin.com/jobs/view/42?currentJobId=42&trk=eml&refId=abc"))
}

func TestHostLimiter(t *testing.T) {
	hl := NewHostLimiter(1000, 1)
	ctx := context.Background()
	require.NoError(t, hl.WaitURL(ctx, "https://a.example/x"))
	require.NoError(t, hl.WaitURL(ctx, "::bad"))

	slow := NewHostLimiter(0.001, 1)
	require.NoError(t, slow.WaitURL(ctx, "https://b.example/1"))
	cctx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	assert.Error(t, slow.WaitURL(cctx, "https://b.example/2"), "second hit on the same host must wait")
	assert.NoError(t, slow.WaitURL(ctx, "https://c.example/1"), "other hosts have their own bucket")

	var nilLimiter *HostLimiter
	assert.NoError(t, nilLimiter.WaitURL(ctx, "https://a.example"))
}
