package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/emersion/go-message/mail"
)

const DefaultSubject = "📝 Warm Outreach - Your Action Needed"

var bodyTmpl = template.Must(template.New("body").Parse(`<html>
<body>
<p>Hi {{.Email}},</p>
<p>Please help us by rating your relationship strength with the following leads:</p>
<ol>{{range .Leads}}<li>{{.}}</li>{{end}}</ol>
<p>👉 <a href="{{.FormLink}}">Click here to open your form</a></p>
<p>Thank you!</p>
</body>
</html>
`))

// FormLink is the deep link a stakeholder opens to see their pending leads.
// The form layer reads the identity back from the email query parameter.
func FormLink(baseURL, identity string) string {
	return strings.TrimRight(baseURL, "/") + "/?email=" + url.QueryEscape(identity)
}

type Composer struct {
	BaseURL string
	From    string
	Subject string
}

type Message struct {
	To       string
	Subject  string
	FormLink string
	HTML     string
	Text     string
	Raw      []byte
}

func (c Composer) Compose(to string, leads []string, now time.Time) (Message, error) {
	m := Message{
		To:       to,
		Subject:  c.Subject,
		FormLink: FormLink(c.BaseURL, to),
	}
	if m.Subject == "" {
		m.Subject = DefaultSubject
	}

	var body bytes.Buffer
	if err := bodyTmpl.Execute(&body, map[string]any{
		"Email":    to,
		"Leads":    leads,
		"FormLink": template.URL(m.FormLink),
	}); err != nil {
		return m, fmt.Errorf("render body: %w", err)
	}
	m.HTML = body.String()

	text, err := plainText(m.HTML)
	if err != nil {
		return m, err
	}
	m.Text = text

	raw, err := c.build(m, now)
	if err != nil {
		return m, err
	}
	m.Raw = raw
	return m, nil
}

func (c Composer) build(m Message, now time.Time) ([]byte, error) {
	var h mail.Header
	h.SetDate(now)
	h.SetAddressList("From", []*mail.Address{{Address: c.From}})
	h.SetAddressList("To", []*mail.Address{{Address: m.To}})
	h.SetSubject(m.Subject)
	if err := h.GenerateMessageID(); err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	mw, err := mail.CreateWriter(&buf, h)
	if err != nil {
		return nil, fmt.Errorf("mime writer: %w", err)
	}
	alt, err := mw.CreateInline()
	if err != nil {
		return nil, err
	}
	for _, part := range []struct{ ctype, body string }{
		{"text/plain", m.Text},
		{"text/html", m.HTML},
	} {
		var ph mail.InlineHeader
		ph.SetContentType(part.ctype, map[string]string{"charset": "utf-8"})
		ph.Set("Content-Transfer-Encoding", "quoted-printable")
		w, err := alt.CreatePart(ph)
		if err != nil {
			return nil, err
		}
		if _, err := io.WriteString(w, part.body); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
	}
	if err := alt.Close(); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// plainText derives the text/plain alternative from the rendered HTML body.
func plainText(htmlBody string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(htmlBody))
	if err != nil {
		return "", fmt.Errorf("parse body: %w", err)
	}
	var b strings.Builder
	doc.Find("body").Children().Each(func(_ int, s *goquery.Selection) {
		switch goquery.NodeName(s) {
		case "ol", "ul":
			s.Find("li").Each(func(i int, li *goquery.Selection) {
				fmt.Fprintf(&b, "%d. %s\n", i+1, strings.TrimSpace(li.Text()))
			})
		default:
			line := strings.Join(strings.Fields(s.Text()), " ")
			if href, ok := s.Find("a[href]").Attr("href"); ok {
				line += ": " + href
			}
			b.WriteString(line + "\n")
		}
		b.WriteString("\n")
	})
	return strings.TrimSpace(b.String()) + "\n", nil
}
