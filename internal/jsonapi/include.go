package jsonapi

import "strings"

// Path is one requested relation path, rooted at the primary resource type.
// A dotted include such as "author.publisher" parses to ["author",
// "publisher"].
type Path []string

func (p Path) String() string {
	return strings.Join(p, ".")
}

// ParseInclude parses an include query parameter into deduplicated relation
// paths. Blank values, blank list entries, and blank path segments are
// dropped, so a malformed parameter degrades to "fewer includes" instead of
// an error.
func ParseInclude(param string) []Path {
	param = strings.TrimSpace(param)
	if param == "" {
		return nil
	}

	seen := make(map[string]bool)
	var paths []Path
	for _, item := range strings.Split(param, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}

		var path Path
		for _, segment := range strings.Split(item, ".") {
			segment = strings.TrimSpace(segment)
			if segment == "" {
				path = nil
				break
			}
			path = append(path, segment)
		}
		if len(path) == 0 || seen[path.String()] {
			continue
		}
		seen[path.String()] = true
		paths = append(paths, path)
	}
	return paths
}
