package patentsite

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/phrazzld/patentgate/internal/domain"
	"golang.org/x/net/html"
)

// resultInfo is what the search result page yields.
type resultInfo struct {
	PDFURL     string
	UnlockForm url.Values
}

// parseResultPage finds the first .pdf link and the hidden inputs of the
// securepdf form. Relative links are resolved against pageURL.
func parseResultPage(page, pageURL string) (resultInfo, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return resultInfo{}, fmt.Errorf("%w: unparseable result page: %v", domain.ErrTransientExternal, err)
	}
	base, err := url.Parse(pageURL)
	if err != nil {
		return resultInfo{}, fmt.Errorf("%w: bad search url: %v", domain.ErrTransientExternal, err)
	}

	info := resultInfo{UnlockForm: url.Values{}}
	var walk func(n *html.Node, inUnlockForm bool)
	walk = func(n *html.Node, inUnlockForm bool) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "a":
				href := attr(n, "href")
				if info.PDFURL == "" && strings.HasSuffix(strings.ToLower(href), ".pdf") {
					if ref, err := url.Parse(href); err == nil {
						info.PDFURL = base.ResolveReference(ref).String()
					}
				}
			case "form":
				if strings.Contains(strings.ToLower(attr(n, "action")), "securepdf") {
					inUnlockForm = true
				}
			case "input":
				if inUnlockForm && strings.EqualFold(attr(n, "type"), "hidden") {
					if name := attr(n, "name"); name != "" {
						info.UnlockForm.Set(name, attr(n, "value"))
					}
				}
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, inUnlockForm)
		}
	}
	walk(doc, false)

	if info.PDFURL == "" {
		return resultInfo{}, fmt.Errorf("%w: no pdf link on result page", domain.ErrTransientExternal)
	}
	return info, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if strings.EqualFold(a.Key, key) {
			return a.Val
		}
	}
	return ""
}
