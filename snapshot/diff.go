package snapshot

import (
	"github.com/rbaliyan/exmdb/propval"
)

// Changes lists the folders that differ between two snapshots, by folder
// id, in the order they appear in the snapshot that holds them.
type Changes struct {
	Added    []uint64
	Removed  []uint64
	Modified []uint64
}

// Empty reports whether there are no changes.
func (c Changes) Empty() bool {
	return len(c.Added) == 0 && len(c.Removed) == 0 && len(c.Modified) == 0
}

// Diff compares two snapshots of the same path. A folder is modified when
// a property present in either row differs. Rows without a folder id are
// ignored.
func Diff(before, after *Snapshot) Changes {
	old := index(before)
	cur := index(after)

	var c Changes
	for _, row := range after.Rows {
		id := row.Uint64(propval.TagFolderID)
		if id == 0 {
			continue
		}
		prev, ok := old[id]
		switch {
		case !ok:
			c.Added = append(c.Added, id)
		case !sameRow(prev, row):
			c.Modified = append(c.Modified, id)
		}
	}
	for _, row := range before.Rows {
		id := row.Uint64(propval.TagFolderID)
		if id == 0 {
			continue
		}
		if _, ok := cur[id]; !ok {
			c.Removed = append(c.Removed, id)
		}
	}
	return c
}

func index(s *Snapshot) map[uint64]propval.Row {
	m := make(map[uint64]propval.Row, len(s.Rows))
	for _, row := range s.Rows {
		if id := row.Uint64(propval.TagFolderID); id != 0 {
			m[id] = row
		}
	}
	return m
}

func sameRow(a, b propval.Row) bool {
	if len(a) != len(b) {
		return false
	}
	for _, tp := range a {
		other, ok := b.Find(tp.Tag)
		if !ok || !propval.Equal(tp, other) {
			return false
		}
	}
	return true
}
