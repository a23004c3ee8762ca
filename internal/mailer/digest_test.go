package mailer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRenderDigest(t *testing.T) {
	text, html, err := RenderDigest(DigestData{
		Greeting: "Hello Alice,",
		Intro:    "Here are the upcoming birthdays:",
		Calendar: "🎂 Family calendar",
		Rows: []DigestRow{
			{Name: "Bob", Date: "June 15", Summary: "🎂 Bob (42 years)"},
			{Name: "Carol", Date: "June 17", Summary: "🎂 Carol (7 years)"},
		},
		Outro:    "See you soon!",
		SiteName: "toolbox",
	})
	require.NoError(t, err)

	assert.Contains(t, text, "Hello Alice,")
	assert.Contains(t, text, "June 15  🎂 Bob (42 years)")
	assert.Contains(t, text, "June 17  🎂 Carol (7 years)")
	assert.Contains(t, text, "toolbox")

	assert.Contains(t, html, "<td><strong>June 15</strong></td><td>🎂 Bob (42 years)</td>")
	assert.Contains(t, html, "See you soon!")
}

func TestRenderDigestEscapesHTML(t *testing.T) {
	_, html, err := RenderDigest(DigestData{
		Greeting: "Hello <script>alert(1)</script>,",
		SiteName: "toolbox",
	})
	require.NoError(t, err)

	assert.NotContains(t, html, "<script>")
	assert.Contains(t, html, "&lt;script&gt;")
}
