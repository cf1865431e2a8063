package dispatcher

import (
	"bytes"
	"html/template"
	"net/url"
	"strings"

	"github.com/jaytaylor/html2text"
	"github.com/pkg/errors"

	emailtemplate "github.com/reviewloop/reviewloop/services/template"
)

var envelope = template.Must(template.New("envelope").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"><title>{{.Subject}}</title></head>
<body style="margin:0;padding:0;background:#f4f4f5;font-family:Helvetica,Arial,sans-serif;">
<table role="presentation" width="100%" cellpadding="0" cellspacing="0">
<tr><td align="center" style="padding:32px 16px;">
<table role="presentation" width="560" cellpadding="0" cellspacing="0" style="background:#ffffff;border-radius:8px;">
<tr><td style="padding:32px;">
<h1 style="margin:0 0 16px;font-size:22px;color:#18181b;">{{.Heading}}</h1>
{{range .Paragraphs}}<p style="margin:0 0 16px;font-size:16px;line-height:24px;color:#3f3f46;">{{.}}</p>
{{end}}<p style="margin:24px 0 0;"><a href="{{.Link}}" style="display:inline-block;padding:12px 24px;background:#2563eb;color:#ffffff;border-radius:6px;text-decoration:none;font-weight:bold;">{{.ButtonText}}</a></p>
</td></tr>
</table>
<p style="font-size:12px;color:#a1a1aa;">Sent on behalf of {{.BusinessName}}</p>
</td></tr>
</table>
</body>
</html>
`))

type envelopeData struct {
	Subject      string
	Heading      string
	Paragraphs   []string
	ButtonText   string
	Link         string
	BusinessName string
}

// trackingURL points at the redirect endpoint; the token is the only parameter
func trackingURL(publicURL, token string) string {
	return strings.TrimRight(publicURL, "/") + "/r?" + url.Values{"t": {token}}.Encode()
}

func paragraphs(body string) []string {
	var result []string
	for _, paragraph := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n\n") {
		if trimmed := strings.TrimSpace(paragraph); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// render returns the HTML envelope and its plain-text alternative
func render(compiled emailtemplate.Template, link, businessName string) (string, string, error) {
	var buffer bytes.Buffer
	err := envelope.Execute(&buffer, envelopeData{
		Subject:      compiled.Subject,
		Heading:      compiled.Heading,
		Paragraphs:   paragraphs(compiled.Body),
		ButtonText:   compiled.ButtonText,
		Link:         link,
		BusinessName: businessName,
	})
	if err != nil {
		return "", "", errors.Wrap(err, "render envelope")
	}

	html := buffer.String()
	text, err := html2text.FromString(html, html2text.Options{OmitLinks: false})
	if err != nil {
		return "", "", errors.Wrap(err, "render plain text")
	}
	return html, text, nil
}
