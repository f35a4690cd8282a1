package main

import "path"

// matchAny reports whether name matches any of patterns (stdlib path.Match
// semantics: * matches within one path segment). An empty pattern list
// matches everything, so subcommands default to "every path" when the user
// gives none.
func matchAny(patterns []string, name string) (bool, error) {
	if len(patterns) == 0 {
		return true, nil
	}
	for _, pat := range patterns {
		ok, err := path.Match(pat, name)
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
	}
	return false, nil
}

// filterPaths returns the subset of all matching any of patterns, in their
// original relative order (spec §5's list ordering guarantee is preserved
// since this is a stable filter).
func filterPaths(all []string, patterns []string) ([]string, error) {
	var out []string
	for _, p := range all {
		ok, err := matchAny(patterns, p)
		if err != nil {
			return nil, err
		}
		if ok {
			out = append(out, p)
		}
	}
	return out, nil
}
