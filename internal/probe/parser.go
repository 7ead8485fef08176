package probe

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// PageSummary is the structural summary extracted from a fetched page
type PageSummary struct {
	Title            string   `json:"title"`
	MetaDescription  string   `json:"meta_description"`
	FormCount        int      `json:"form_count"`
	InputCount       int      `json:"input_count"`
	HasPasswordField bool     `json:"has_password_field"`
	ExternalLinks    int      `json:"external_links"`
	Signals          []string `json:"signals"`
}

// Signal markers surfaced to analysts. They describe page content only and
// never feed the automated verdict.
const (
	signalPasswordForm   = "PAGE_PASSWORD_FORM"
	signalCPFMention     = "PAGE_CPF_MENTION"
	signalPixMention     = "PAGE_PIX_MENTION"
	signalBenefitMention = "PAGE_BENEFIT_MENTION"
)

// Summarize parses HTML and extracts the structural facts an analyst needs
// to triage a suspected phishing page. Malformed HTML is tolerated; the
// tokenizer-based parser never fails on real-world markup.
func Summarize(body []byte) *PageSummary {
	summary := &PageSummary{Signals: []string{}}

	doc, err := html.Parse(bytes.NewReader(body))
	if err != nil {
		// html.Parse only errors on reader failure; a byte reader cannot.
		return summary
	}

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "title":
				if n.FirstChild != nil && summary.Title == "" {
					summary.Title = strings.TrimSpace(n.FirstChild.Data)
				}
			case "meta":
				if attr(n, "name") == "description" && summary.MetaDescription == "" {
					summary.MetaDescription = strings.TrimSpace(attr(n, "content"))
				}
			case "form":
				summary.FormCount++
			case "input":
				summary.InputCount++
				if strings.EqualFold(attr(n, "type"), "password") {
					summary.HasPasswordField = true
				}
			case "a":
				href := attr(n, "href")
				if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
					summary.ExternalLinks++
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child)
		}
	}
	walk(doc)

	text := strings.ToLower(string(body))
	if summary.HasPasswordField {
		summary.Signals = append(summary.Signals, signalPasswordForm)
	}
	if strings.Contains(text, "cpf") {
		summary.Signals = append(summary.Signals, signalCPFMention)
	}
	if strings.Contains(text, "pix") {
		summary.Signals = append(summary.Signals, signalPixMention)
	}
	if strings.Contains(text, "valores a receber") || strings.Contains(text, "saque") {
		summary.Signals = append(summary.Signals, signalBenefitMention)
	}
	return summary
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
