package bridge

import (
	"sort"

	"github.com/media-bridge/backend/internal/source"
)

// identitySet is an immutable snapshot of the session identities seen in
// one enumeration. It is never mutated after creation; each reconcile pass
// replaces the previous snapshot wholesale.
type identitySet map[string]struct{}

func identitiesOf(handles []source.Handle) identitySet {
	set := make(identitySet, len(handles))
	for _, h := range handles {
		set[h.ID()] = struct{}{}
	}
	return set
}

// diffIdentities classifies the transition between two snapshots. added
// holds identities in cur but not prev; removed holds identities in prev
// but not cur. Identities present in both appear in neither. Both results
// are sorted so reactions are deterministic.
func diffIdentities(prev, cur identitySet) (added, removed []string) {
	for id := range cur {
		if _, ok := prev[id]; !ok {
			added = append(added, id)
		}
	}
	for id := range prev {
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	sort.Strings(added)
	sort.Strings(removed)
	return added, removed
}
