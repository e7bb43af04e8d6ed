package resolver

import (
	"regexp"
	"strings"
)

// DefaultProductPrefix is the path every canonical product URL starts with.
const DefaultProductPrefix = "https://www.walmart.com/ip/"

// rd must be a whole query key, not the tail of one such as bird=.
var redirectParam = regexp.MustCompile(`(?:^|[?&])rd=([^&]+)`)

var escapes = strings.NewReplacer("%3A", ":", "%2F", "/")

// Resolver turns search-result tracking links into canonical product URLs.
type Resolver struct {
	productPrefix string
}

func New(productPrefix string) *Resolver {
	if productPrefix == "" {
		productPrefix = DefaultProductPrefix
	}
	return &Resolver{productPrefix: productPrefix}
}

// Resolve decodes the destination embedded under rd= in trackingURL. When
// rd appears more than once the first product destination wins.
// It reports false when the parameter is missing or the destination is not
// a product page of the configured retailer.
func (r *Resolver) Resolve(trackingURL string) (string, bool) {
	for _, m := range redirectParam.FindAllStringSubmatch(trackingURL, -1) {
		target := escapes.Replace(m[1])
		if strings.HasPrefix(target, r.productPrefix) && len(target) > len(r.productPrefix) {
			return target, true
		}
	}
	return "", false
}

// ResolveAll maps each tracking URL through Resolve and drops the ones that
// do not resolve. Order is preserved.
func (r *Resolver) ResolveAll(trackingURLs []string) []string {
	urls := make([]string, 0, len(trackingURLs))
	for _, u := range trackingURLs {
		if resolved, ok := r.Resolve(u); ok {
			urls = append(urls, resolved)
		}
	}
	return urls
}
