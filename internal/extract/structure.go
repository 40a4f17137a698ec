package extract

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
)

// Signals records which structural markers are present in a piece of content
type Signals struct {
	Headings   bool `json:"headings"`
	Lists      bool `json:"lists"`
	CodeFences bool `json:"code_fences"`
	Links      bool `json:"links"`
	Emphasis   bool `json:"emphasis"`
}

// Count returns how many distinct signals are present
func (s Signals) Count() int {
	n := 0
	for _, present := range []bool{s.Headings, s.Lists, s.CodeFences, s.Links, s.Emphasis} {
		if present {
			n++
		}
	}
	return n
}

// Names lists the present signals, in a fixed order
func (s Signals) Names() []string {
	var names []string
	if s.Headings {
		names = append(names, "headings")
	}
	if s.Lists {
		names = append(names, "lists")
	}
	if s.CodeFences {
		names = append(names, "code")
	}
	if s.Links {
		names = append(names, "links")
	}
	if s.Emphasis {
		names = append(names, "emphasis")
	}
	return names
}

// Merge ORs two signal sets
func (s Signals) Merge(other Signals) Signals {
	return Signals{
		Headings:   s.Headings || other.Headings,
		Lists:      s.Lists || other.Lists,
		CodeFences: s.CodeFences || other.CodeFences,
		Links:      s.Links || other.Links,
		Emphasis:   s.Emphasis || other.Emphasis,
	}
}

var (
	mdHeading   = regexp.MustCompile(`(?m)^\s{0,3}#{1,6}\s+\S`)
	mdSetext    = regexp.MustCompile(`(?m)^\S.*\n(=+|-+)\s*$`)
	mdList      = regexp.MustCompile(`(?m)^\s*([-*+]|\d+[.)])\s+\S`)
	mdFence     = regexp.MustCompile("(?m)^\\s{0,3}(```|~~~)")
	mdLink      = regexp.MustCompile(`\[[^\]]+\]\([^)\s]+\)|<https?://[^>]+>|https?://\S+`)
	mdEmphasis  = regexp.MustCompile(`\*\*[^*\n]+\*\*|__[^_\n]+__|(^|[^*\w])\*[^*\s][^*\n]*\*`)
	htmlSniffer = regexp.MustCompile(`(?i)<(html|body|div|p|h[1-6]|ul|ol|li|a\s|pre|strong|em)[\s>]`)
)

// DetectStructure inspects content for structural signals. HTML content is
// parsed; everything else is treated as Markdown/plain text.
func DetectStructure(content string) Signals {
	if strings.TrimSpace(content) == "" {
		return Signals{}
	}
	if LooksLikeHTML(content) {
		if s, err := detectHTML(content); err == nil {
			return s
		}
	}
	return detectMarkdown(content)
}

// LooksLikeHTML reports whether content contains common HTML block tags
func LooksLikeHTML(content string) bool {
	return htmlSniffer.MatchString(content)
}

func detectMarkdown(content string) Signals {
	return Signals{
		Headings:   mdHeading.MatchString(content) || mdSetext.MatchString(content),
		Lists:      mdList.MatchString(content),
		CodeFences: mdFence.MatchString(content),
		Links:      mdLink.MatchString(content),
		Emphasis:   mdEmphasis.MatchString(content),
	}
}

func detectHTML(content string) (Signals, error) {
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return Signals{}, err
	}

	var s Signals
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "h1", "h2", "h3", "h4", "h5", "h6":
				s.Headings = true
			case "ul", "ol", "li":
				s.Lists = true
			case "pre", "code":
				s.CodeFences = true
			case "a":
				for _, attr := range n.Attr {
					if attr.Key == "href" && strings.TrimSpace(attr.Val) != "" {
						s.Links = true
					}
				}
			case "strong", "em", "b", "i", "mark":
				s.Emphasis = true
			case "script", "style", "noscript":
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return s, nil
}

// VisibleText returns the text of content with HTML markup stripped.
// Non-HTML content is returned unchanged.
func VisibleText(content string) string {
	if !LooksLikeHTML(content) {
		return content
	}
	doc, err := html.Parse(strings.NewReader(content))
	if err != nil {
		return content
	}

	var buf strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe":
				return
			}
		}
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(doc)
	return strings.TrimSpace(buf.String())
}
