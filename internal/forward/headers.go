package forward

import (
	"net/http"
	"strings"
)

// SignatureHeader carries the upstream webhook signature.
const SignatureHeader = "X-Line-Signature"

// userAgent identifies the relay to destinations.
const userAgent = "hookline-relay/1.0"

// upstreamHeaderPrefix marks platform headers that are copied through to
// destinations.
const upstreamHeaderPrefix = "x-line-"

// strippedHeaders is hop and proxy metadata that must never reach a
// destination. Matched case-insensitively against the outgoing set.
var strippedHeaders = map[string]struct{}{
	"host":                    {},
	"referer":                 {},
	"origin":                  {},
	"cookie":                  {},
	"forwarded":               {},
	"x-forwarded-for":         {},
	"x-forwarded-host":        {},
	"x-forwarded-proto":       {},
	"x-forwarded-port":        {},
	"x-real-ip":               {},
	"true-client-ip":          {},
	"cdn-loop":                {},
	"cf-connecting-ip":        {},
	"cf-ipcountry":            {},
	"cf-ray":                  {},
	"cf-visitor":              {},
	"x-vercel-forwarded-for":  {},
	"x-vercel-id":             {},
	"x-vercel-deployment-url": {},
}

// BuildHeaders assembles the outgoing header set for one destination from the
// inbound request headers. Rules apply in order: fixed defaults, the upstream
// signature when the destination wants it, a copy of the platform's own
// headers, and finally a sweep that strips proxy and host metadata. The
// inbound set is never modified.
func BuildHeaders(inbound http.Header, signature string, includeSignature bool) http.Header {
	out := http.Header{}
	out.Set("Content-Type", "application/json")
	out.Set("Accept", "application/json")
	out.Set("User-Agent", userAgent)
	out.Set("Cache-Control", "no-cache")

	if includeSignature && strings.TrimSpace(signature) != "" {
		out.Set(SignatureHeader, signature)
	}

	for name, values := range inbound {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, upstreamHeaderPrefix) {
			continue
		}
		// The signature is governed by includeSignature, not the copy rule.
		if strings.EqualFold(name, SignatureHeader) {
			continue
		}
		if strings.Contains(lower, "forwarded") || strings.Contains(lower, "host") || strings.Contains(lower, "proxy") {
			continue
		}
		for _, v := range values {
			out.Add(name, v)
		}
	}

	for name := range out {
		if _, ok := strippedHeaders[strings.ToLower(name)]; ok {
			out.Del(name)
		}
	}
	return out
}
