package letter

import (
	"fmt"
	"html/template"
	"strings"

	"github.com/letter4ceo/morning-letter/pkg/domain"
)

// emailTmpl is the self-contained email document. Every optional field is
// guarded so a letter without a curator note, thumbnails or summaries still
// renders.
const emailTmpl = `<!DOCTYPE html>
<html lang="ko">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Title}}</title>
</head>
<body style="margin:0;padding:0;background-color:#f5f5f0;font-family:'Apple SD Gothic Neo','Noto Sans KR',sans-serif;">
<div style="max-width:600px;margin:0 auto;padding:24px 16px;">
  <div style="background:#ffffff;border-radius:8px;padding:32px 24px;">
    <h1 style="font-size:22px;margin:0 0 8px;color:#1a1a1a;">{{.Title}}</h1>
    {{if .PublishedDate}}<p style="font-size:13px;color:#999;margin:0 0 24px;">{{.PublishedDate}}</p>{{end}}
    <div style="font-size:15px;line-height:1.8;color:#333;">{{.Body}}</div>
    {{if .CuratorNote}}
    <div style="margin-top:24px;padding:16px;background:#f8f8f4;border-left:3px solid #d4a762;font-size:14px;line-height:1.7;color:#555;">
      {{.CuratorNote}}
    </div>
    {{end}}
    {{if .Items}}
    <h2 style="font-size:17px;margin:32px 0 16px;color:#1a1a1a;">Today's News</h2>
    {{range .Items}}
    <div style="margin-bottom:20px;padding-bottom:20px;border-bottom:1px solid #eee;">
      {{if .ThumbnailURL}}<img src="{{.ThumbnailURL}}" alt="" style="width:100%;border-radius:4px;margin-bottom:8px;">{{end}}
      <a href="{{.SourceURL}}" style="font-size:15px;font-weight:bold;color:#1a1a1a;text-decoration:none;">{{.Title}}</a>
      {{if .SourceName}}<span style="font-size:12px;color:#999;margin-left:6px;">{{.SourceName}}</span>{{end}}
      {{if .Summary}}<p style="font-size:13px;line-height:1.6;color:#666;margin:6px 0 0;">{{.Summary}}</p>{{end}}
    </div>
    {{end}}
    {{end}}
  </div>
  <div style="text-align:center;padding:20px 0;font-size:12px;color:#aaa;">
    <p style="margin:0 0 4px;">Morning Letter</p>
    {{if .UnsubscribeURL}}<a href="{{.UnsubscribeURL}}" style="color:#aaa;">unsubscribe</a>{{end}}
  </div>
</div>
</body>
</html>`

var emailTemplate = template.Must(template.New("email").Parse(emailTmpl))

// emailView is the data bound into the email template
type emailView struct {
	Title          string
	PublishedDate  string
	Body           template.HTML
	CuratorNote    string
	Items          []emailItemView
	UnsubscribeURL string
}

type emailItemView struct {
	Title        string
	SourceURL    string
	SourceName   string
	ThumbnailURL string
	Summary      string
}

// RenderEmail produces the full HTML email for a letter and its selected items
func RenderEmail(n *domain.Newsletter, items []*domain.NewsItem, unsubscribeURL string) (string, error) {
	view := emailView{
		Title:          n.Title,
		PublishedDate:  n.PublishedDate,
		Body:           template.HTML(n.LetterBody), //nolint:gosec // body is authored content
		CuratorNote:    n.CuratorNote,
		UnsubscribeURL: unsubscribeURL,
	}
	for _, item := range items {
		summary := item.AISummary
		if summary == "" {
			summary = item.OriginalSummary
		}
		view.Items = append(view.Items, emailItemView{
			Title:        item.Title,
			SourceURL:    item.SourceURL,
			SourceName:   item.SourceName,
			ThumbnailURL: item.ThumbnailURL,
			Summary:      summary,
		})
	}

	var b strings.Builder
	if err := emailTemplate.Execute(&b, view); err != nil {
		return "", fmt.Errorf("render email: %w", err)
	}
	return b.String(), nil
}
