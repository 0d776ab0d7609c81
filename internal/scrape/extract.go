package scrape

import (
	"bytes"
	"mime"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rotisserie/eris"
	"golang.org/x/text/encoding/htmlindex"
)

// chromeSelector matches page furniture that carries no company description.
const chromeSelector = "script, style, noscript, template, nav, footer, header, aside, form, " +
	"img, picture, table, figure, iframe, svg, button, select"

var metaCharsetRe = regexp.MustCompile(`(?i)<meta[^>]+charset\s*=\s*["']?([a-z0-9_\-:.]+)`)

// DecodeBody converts body to UTF-8 using the charset from the Content-Type
// header or, failing that, a <meta charset> tag in the first 1KB.
func DecodeBody(contentType string, body []byte) ([]byte, error) {
	label := ""
	if _, params, err := mime.ParseMediaType(contentType); err == nil {
		label = params["charset"]
	}
	if label == "" {
		head := body
		if len(head) > 1024 {
			head = head[:1024]
		}
		if m := metaCharsetRe.FindSubmatch(head); len(m) > 1 {
			label = string(m[1])
		}
	}

	label = strings.ToLower(strings.TrimSpace(label))
	if label == "" || label == "utf-8" || label == "utf8" {
		return body, nil
	}

	enc, err := htmlindex.Get(label)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: unsupported charset %q", label)
	}
	out, err := enc.NewDecoder().Bytes(body)
	if err != nil {
		return nil, eris.Wrapf(err, "scrape: decode %s", label)
	}
	return out, nil
}

// ExtractText parses HTML and returns the page title and the visible main
// text with page chrome removed and whitespace collapsed.
func ExtractText(html []byte) (title, text string, err error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return "", "", eris.Wrap(err, "scrape: parse html")
	}

	title = collapseSpace(doc.Find("title").First().Text())

	doc.Find(chromeSelector).Remove()
	doc.Find("ul, ol").Each(func(_ int, list *goquery.Selection) {
		if linkOnly(list) {
			list.Remove()
		}
	})

	if main := doc.Find("main").First(); main.Length() > 0 {
		if text = visibleText(main); text != "" {
			return title, text, nil
		}
	}
	if body := doc.Find("body"); body.Length() > 0 {
		return title, visibleText(body), nil
	}
	return title, visibleText(doc.Selection), nil
}

var inlineTags = map[string]bool{
	"a": true, "abbr": true, "b": true, "bdi": true, "cite": true, "code": true,
	"em": true, "i": true, "kbd": true, "mark": true, "q": true, "s": true,
	"small": true, "span": true, "strong": true, "sub": true, "sup": true,
	"time": true, "u": true,
}

// visibleText concatenates text nodes under sel, separating block elements
// with a space.
func visibleText(sel *goquery.Selection) string {
	var b strings.Builder
	writeText(&b, sel)
	return collapseSpace(b.String())
}

func writeText(b *strings.Builder, sel *goquery.Selection) {
	sel.Contents().Each(func(_ int, c *goquery.Selection) {
		switch name := goquery.NodeName(c); name {
		case "#text":
			b.WriteString(c.Text())
		case "#comment":
		default:
			block := !inlineTags[name]
			if block {
				b.WriteByte(' ')
			}
			writeText(b, c)
			if block {
				b.WriteByte(' ')
			}
		}
	})
}

// linkOnly reports whether every item in a list is just a link, as in menus
// and link farms.
func linkOnly(list *goquery.Selection) bool {
	items := list.Find("li")
	if items.Length() == 0 {
		return false
	}
	only := true
	items.EachWithBreak(func(_ int, li *goquery.Selection) bool {
		all := collapseSpace(li.Text())
		links := collapseSpace(li.Find("a").Text())
		if all == "" || all != links {
			only = false
		}
		return only
	})
	return only
}

func collapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
