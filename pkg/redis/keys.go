package redis

import "strings"

// Key joins a prefix and key parts with ':'. Empty parts are skipped.
//
//	Key("schedkit", "busy", "org-1") == "schedkit:busy:org-1"
func Key(prefix string, parts ...string) string {
	segs := make([]string, 0, len(parts)+1)
	if prefix != "" {
		segs = append(segs, prefix)
	}
	for _, p := range parts {
		if p != "" {
			segs = append(segs, p)
		}
	}
	return strings.Join(segs, ":")
}
