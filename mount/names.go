package mount

import "github.com/RocGit/appifi/forest"

type link struct {
	name   string
	target string
}

// linkNames names one symlink per entry. Entries sharing a base name are
// prefixed with their uuid so every name in a digest directory is unique.
func linkNames(entries []forest.Entry) []link {
	seen := make(map[string]int, len(entries))
	for _, e := range entries {
		seen[e.Name]++
	}
	out := make([]link, 0, len(entries))
	for _, e := range entries {
		name := e.Name
		if seen[name] > 1 {
			name = e.UUID.String() + "_" + name
		}
		out = append(out, link{name: name, target: e.Path})
	}
	return out
}
