package utils

import "strings"

// OriginPolicy is the browser origin allow-list shared by the HTTP API and
// the websocket upgrade. An empty list or a "*" entry allows every origin.
type OriginPolicy struct {
	any     bool
	allowed map[string]struct{}
}

func NewOriginPolicy(origins []string) OriginPolicy {
	p := OriginPolicy{allowed: make(map[string]struct{}, len(origins))}
	for _, o := range origins {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		switch o {
		case "":
		case "*":
			p.any = true
		default:
			p.allowed[strings.ToLower(o)] = struct{}{}
		}
	}
	if len(p.allowed) == 0 {
		p.any = true
	}
	return p
}

func (p OriginPolicy) AllowsAny() bool {
	return p.any
}

// Allows matches origin case-insensitively, ignoring a trailing slash.
func (p OriginPolicy) Allows(origin string) bool {
	if p.any {
		return true
	}
	_, ok := p.allowed[strings.ToLower(strings.TrimRight(origin, "/"))]
	return ok
}
