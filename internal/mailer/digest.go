package mailer

import (
	"bytes"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
)

// DigestRow is one upcoming birthday line in the reminder email.
type DigestRow struct {
	Name    string
	Date    string
	Summary string
}

// DigestData feeds the reminder templates. All strings arrive already
// localized.
type DigestData struct {
	Greeting string
	Intro    string
	Calendar string
	Rows     []DigestRow
	Outro    string
	SiteName string
}

const digestText = `{{.Greeting}}

{{.Intro}}

{{range .Rows}}  * {{.Date}}  {{.Summary}}
{{end}}
{{.Outro}}

--
{{.SiteName}}
`

const digestHTML = `<!DOCTYPE html>
<html>
<body style="font-family: sans-serif; color: #333;">
<p>{{.Greeting}}</p>
<p>{{.Intro}}</p>
<table cellpadding="6" cellspacing="0" border="0">
{{range .Rows}}<tr><td><strong>{{.Date}}</strong></td><td>{{.Summary}}</td></tr>
{{end}}</table>
<p>{{.Outro}}</p>
<hr>
<p><small>{{.SiteName}}</small></p>
</body>
</html>
`

var (
	digestTextTmpl = texttemplate.Must(texttemplate.New("digest").Parse(digestText))
	digestHTMLTmpl = htmltemplate.Must(htmltemplate.New("digest").Parse(digestHTML))
)

// RenderDigest produces the plaintext and HTML bodies of a reminder email.
func RenderDigest(data DigestData) (string, string, error) {
	var text bytes.Buffer
	if err := digestTextTmpl.Execute(&text, data); err != nil {
		return "", "", err
	}

	var html bytes.Buffer
	if err := digestHTMLTmpl.Execute(&html, data); err != nil {
		return "", "", err
	}

	return strings.TrimRight(text.String(), "\n") + "\n", html.String(), nil
}
