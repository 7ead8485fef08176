package normalize

import (
	"net/url"
	"strings"
)

// Result carries the canonical URL string and the isolated host
type Result struct {
	NormalizedURL string
	Domain        string
}

// Normalize turns raw user input into a canonical URL plus host. The scheme
// defaults to http when missing, the host is lower-cased, and query string,
// fragment and credentials are dropped. Input that is not URL-shaped degrades
// to the trimmed raw text with an empty domain; the rest of the pipeline
// tolerates that. The function is pure and idempotent.
func Normalize(rawInput string) Result {
	raw := strings.TrimSpace(rawInput)
	if raw == "" {
		return Result{NormalizedURL: "", Domain: ""}
	}

	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		u, err = url.Parse("http://" + raw)
		if err != nil || u.Host == "" {
			// Not a URL: classify the raw text as-is.
			return Result{NormalizedURL: raw, Domain: ""}
		}
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	if port := u.Port(); port != "" {
		host = host + ":" + port
	}

	normalized := scheme + "://" + host + u.EscapedPath()
	return Result{NormalizedURL: normalized, Domain: strings.ToLower(u.Hostname())}
}
