package cache

import (
	"fmt"
	"os"
)

// Decision is the result of a staleness check for one key.
type Decision struct {
	// Skip is true when the cached outputs are fully trustworthy.
	Skip bool
	// Reason explains a rebuild; empty when Skip is true.
	Reason string
	// Entry is the matched entry when Skip is true.
	Entry Entry
}

// Check decides whether the work behind key can be skipped.
//
// A key is skipped only when all three hold: an entry exists for the current
// input hash, every declared output still exists with its recorded content
// hash, and the entry's parameter hash matches the current configuration.
// force bypasses the lookup entirely (the caller still records afterwards).
func (s *Store) Check(key, paramHash string, force bool) Decision {
	if force {
		return Decision{Reason: "forced rebuild"}
	}

	entry, ok := s.Lookup(key)
	if !ok {
		return Decision{Reason: "no cache entry"}
	}
	if entry.ParamHash != paramHash {
		return Decision{Reason: fmt.Sprintf("parameters changed (%s -> %s)", shorten(entry.ParamHash), shorten(paramHash))}
	}
	if len(entry.Outputs) == 0 {
		return Decision{Reason: "entry declares no outputs"}
	}

	for path, recorded := range entry.Outputs {
		if _, err := os.Stat(path); err != nil {
			return Decision{Reason: "missing output " + path}
		}
		current, err := HashFile(path)
		if err != nil {
			return Decision{Reason: "unreadable output " + path}
		}
		if current != recorded {
			return Decision{Reason: "modified output " + path}
		}
	}

	return Decision{Skip: true, Entry: entry}
}

func shorten(h string) string {
	if len(h) > 12 {
		return h[:12]
	}
	return h
}
