package exmdb

import (
	"context"
	"strings"

	"github.com/rbaliyan/exmdb/wire"
)

// PathCache stores resolved folder ids by cache key. ResolvePath only
// trusts a cached id as the parent of a lookup and deletes entries that
// turn out to be stale. Implementations must be safe for concurrent use.
// See cache/memory and cache/redis.
type PathCache interface {
	Get(ctx context.Context, key string) (uint64, bool, error)
	Set(ctx context.Context, key string, folderID uint64) error
	Delete(ctx context.Context, key string) error
}

// SplitPath splits a slash-separated folder path into its names. Empty
// segments are dropped, so "/", "" and "//" all denote the root.
func SplitPath(path string) []string {
	parts := strings.Split(path, "/")
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

// cleanPath returns path in canonical "/a/b" form.
func cleanPath(path string) string {
	return "/" + strings.Join(SplitPath(path), "/")
}

// JoinPath appends name to a parent path.
func JoinPath(parent, name string) string {
	parent = cleanPath(parent)
	if parent == "/" {
		return "/" + name
	}
	return parent + "/" + name
}

// cacheKey scopes a path to the server, store and store kind. Names are
// matched case-insensitively by the server, so the key is folded.
func (c *Client) cacheKey(path string) string {
	kind := "public"
	if c.opts.private {
		kind = "private"
	}
	return c.Addr() + "|" + kind + "|" + c.prefix + "|" + strings.ToLower(cleanPath(path))
}

// ResolvePath returns the folder id of path. "/" is the IPM subtree of the
// store; every further segment is looked up by display name under its
// parent. A missing segment yields a *QueryError wrapping ErrNotFound, and
// a segment containing a NUL byte one wrapping ErrInvalidArgument.
//
// With a PathCache the parent of path may come from the cache, but the
// last segment is always looked up on the server. A cached parent that no
// longer holds the segment is evicted and the path walked again from the
// root.
func ResolvePath(ctx context.Context, c *Client, path string) (uint64, error) {
	const op = "resolve"
	path = cleanPath(path)
	names := SplitPath(path)
	for _, name := range names {
		if err := wire.CheckString(name); err != nil {
			return 0, invalidArgument(op, path, "folder name %q: %v", name, err)
		}
	}
	if len(names) == 0 {
		return rootFolder(c.opts.private), nil
	}

	if len(names) > 1 {
		parentPath := "/" + strings.Join(names[:len(names)-1], "/")
		if parentID, ok := c.cachedFolder(ctx, parentPath); ok {
			resp, err := Send(ctx, c, GetFolderByNameRequest{ParentID: parentID, Name: names[len(names)-1]})
			if err != nil {
				return 0, err
			}
			if resp.FolderID != 0 {
				c.cacheFolder(ctx, path, resp.FolderID)
				return resp.FolderID, nil
			}
			c.evictFolder(ctx, parentPath)
		}
	}

	id := rootFolder(c.opts.private)
	for i, name := range names {
		resp, err := Send(ctx, c, GetFolderByNameRequest{ParentID: id, Name: name})
		if err != nil {
			return 0, err
		}
		if resp.FolderID == 0 {
			return 0, queryError(op, path, ErrNotFound)
		}
		id = resp.FolderID
		c.cacheFolder(ctx, "/"+strings.Join(names[:i+1], "/"), id)
	}
	return id, nil
}

func (c *Client) cachedFolder(ctx context.Context, path string) (uint64, bool) {
	if c.opts.pathCache == nil {
		return 0, false
	}
	id, ok, err := c.opts.pathCache.Get(ctx, c.cacheKey(path))
	if err != nil {
		c.logger.Warn("path cache lookup failed", "path", path, "error", err)
		return 0, false
	}
	return id, ok
}

func (c *Client) cacheFolder(ctx context.Context, path string, id uint64) {
	if c.opts.pathCache == nil {
		return
	}
	if err := c.opts.pathCache.Set(ctx, c.cacheKey(path), id); err != nil {
		c.logger.Warn("path cache store failed", "path", path, "error", err)
	}
}

func (c *Client) evictFolder(ctx context.Context, path string) {
	if err := c.opts.pathCache.Delete(ctx, c.cacheKey(path)); err != nil {
		c.logger.Warn("path cache delete failed", "path", path, "error", err)
	}
}
