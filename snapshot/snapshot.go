// Package snapshot records folder hierarchies listed from a store server so
// they can be kept, compared and archived.
//
// A Snapshot is the result of one exmdb.ListFolders call together with
// where and when it was taken. Stores (memory, postgres, mongo) index
// snapshots by id and by store path; archives (s3, gcs) keep them as JSON
// objects.
package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/google/uuid"
	"github.com/rbaliyan/exmdb"
	"github.com/rbaliyan/exmdb/propval"
)

// Snapshot is a listed folder hierarchy.
type Snapshot struct {
	ID      string        `json:"id"`
	Addr    string        `json:"addr"`
	Prefix  string        `json:"prefix"`
	Path    string        `json:"path"`
	TakenAt time.Time     `json:"taken_at"`
	Rows    []propval.Row `json:"rows"`
}

type takeOptions struct {
	columns  []propval.Tag
	depth    bool
	username string
	now      func() time.Time
}

// TakeOption configures Take.
type TakeOption func(*takeOptions)

// WithColumns selects the properties recorded for each folder. The folder
// id is always recorded.
func WithColumns(tags ...propval.Tag) TakeOption {
	return func(o *takeOptions) {
		o.columns = tags
	}
}

// WithDepth controls whether the whole subtree (the default) or only the
// direct children are recorded.
func WithDepth(depth bool) TakeOption {
	return func(o *takeOptions) {
		o.depth = depth
	}
}

// WithUsername records only folders visible to the given user.
func WithUsername(username string) TakeOption {
	return func(o *takeOptions) {
		o.username = username
	}
}

// WithClock replaces time.Now for the TakenAt stamp.
func WithClock(now func() time.Time) TakeOption {
	return func(o *takeOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// Take lists folderPath on c and returns the result as a new snapshot.
func Take(ctx context.Context, c *exmdb.Client, folderPath string, opts ...TakeOption) (*Snapshot, error) {
	o := &takeOptions{columns: exmdb.DefaultFolderTags, depth: true, now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	resp, err := exmdb.ListFolders(ctx, c, folderPath,
		exmdb.WithProptags(withFolderID(o.columns)...),
		exmdb.WithDepth(o.depth),
		exmdb.WithUsername(o.username),
	)
	if err != nil {
		return nil, err
	}
	return &Snapshot{
		ID:      uuid.New().String(),
		Addr:    c.Addr(),
		Prefix:  c.Prefix(),
		Path:    path.Clean("/" + folderPath),
		TakenAt: o.now().UTC(),
		Rows:    resp.Rows,
	}, nil
}

func withFolderID(tags []propval.Tag) []propval.Tag {
	for _, t := range tags {
		if t == propval.TagFolderID {
			return tags
		}
	}
	return append([]propval.Tag{propval.TagFolderID}, tags...)
}

// Len returns the number of folders in the snapshot.
func (s *Snapshot) Len() int { return len(s.Rows) }

// Folder returns the row of the folder with the given id.
func (s *Snapshot) Folder(id uint64) (propval.Row, bool) {
	for _, row := range s.Rows {
		if row.Uint64(propval.TagFolderID) == id {
			return row, true
		}
	}
	return nil, false
}

// Marshal encodes s as JSON.
func Marshal(s *Snapshot) ([]byte, error) {
	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("snapshot: marshal: %w", err)
	}
	return data, nil
}

// Unmarshal decodes a snapshot encoded by Marshal. Property values are
// decoded with the wire codec, so a corrupt value is an error.
func Unmarshal(data []byte) (*Snapshot, error) {
	var s Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("snapshot: unmarshal: %w", err)
	}
	return &s, nil
}

// Read decodes a snapshot from r.
func Read(r io.Reader) (*Snapshot, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: read: %w", err)
	}
	return Unmarshal(data)
}

// ValidID reports whether id is a well-formed snapshot id.
func ValidID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}
