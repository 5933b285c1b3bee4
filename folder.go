package exmdb

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
	"go.opentelemetry.io/otel/attribute"
)

// DefaultFolderTags are the columns ListFolders requests when no
// WithProptags option is given.
var DefaultFolderTags = []propval.Tag{
	propval.TagFolderID,
	propval.TagParentFolderID,
	propval.TagDisplayName,
	propval.TagContainerClass,
	propval.TagComment,
}

type listOptions struct {
	proptags []propval.Tag
	depth    bool
	username *string
}

// ListOption configures ListFolders.
type ListOption func(*listOptions)

// WithProptags selects the columns returned for each folder.
func WithProptags(tags ...propval.Tag) ListOption {
	return func(o *listOptions) {
		if len(tags) > 0 {
			o.proptags = tags
		}
	}
}

// WithDepth controls whether the whole subtree (the default) or only the
// direct children of the path are listed.
func WithDepth(depth bool) ListOption {
	return func(o *listOptions) {
		o.depth = depth
	}
}

// WithUsername lists only folders visible to the given user.
func WithUsername(username string) ListOption {
	return func(o *listOptions) {
		if username != "" {
			o.username = &username
		}
	}
}

// ListFolders returns the folders below path, one row per folder, in the
// order the server's hierarchy table returns them. A path that does not
// resolve yields a *QueryError wrapping ErrNotFound.
func ListFolders(ctx context.Context, c *Client, path string, opts ...ListOption) (resp QueryTableResponse, err error) {
	o := &listOptions{proptags: DefaultFolderTags, depth: true}
	for _, opt := range opts {
		opt(o)
	}
	if o.username != nil {
		if err := wire.CheckString(*o.username); err != nil {
			return QueryTableResponse{}, invalidArgument("list folders", cleanPath(path), "username: %v", err)
		}
	}

	ctx, end := c.otel.startSpan(ctx, "exmdb.ListFolders", attribute.String("exmdb.path", path))
	start := time.Now()
	defer func() {
		c.otel.recordList(ctx, time.Since(start), len(resp.Rows), err)
		end(err)
	}()

	folderID, err := ResolvePath(ctx, c, path)
	if err != nil {
		return QueryTableResponse{}, err
	}

	var flags TableFlags
	if o.depth {
		flags |= TableFlagDepth
	}
	table, err := Send(ctx, c, LoadHierarchyTableRequest{
		FolderID: folderID,
		Username: o.username,
		Flags:    flags,
	})
	if err != nil {
		return QueryTableResponse{}, err
	}

	rowNeeded := int32(math.MaxInt32)
	if table.RowCount < math.MaxInt32 {
		rowNeeded = int32(table.RowCount)
	}
	resp, err = Send(ctx, c, QueryTableRequest{
		Username:  o.username,
		Codepage:  c.opts.codepage,
		TableID:   table.TableID,
		Proptags:  o.proptags,
		Start:     0,
		RowNeeded: rowNeeded,
	})

	if _, unloadErr := Send(ctx, c, UnloadTableRequest{TableID: table.TableID}); unloadErr != nil && err == nil {
		return QueryTableResponse{}, unloadErr
	}
	if err != nil {
		return QueryTableResponse{}, err
	}
	return resp, nil
}

type createOptions struct {
	extra propval.Row
	now   func() time.Time
}

// CreateOption configures CreatePublicFolder.
type CreateOption func(*createOptions)

// WithProperties adds properties to the created folder. They are sent after
// the standard folder properties, so a tag given here overrides the
// default for that tag on servers that keep the last value.
func WithProperties(props ...propval.TaggedPropval) CreateOption {
	return func(o *createOptions) {
		o.extra = append(o.extra, props...)
	}
}

// WithCreationTime sets the clock used for the creation and modification
// timestamps.
func WithCreationTime(now func() time.Time) CreateOption {
	return func(o *createOptions) {
		if now != nil {
			o.now = now
		}
	}
}

// CreatePublicFolder creates a folder named name under parentPath in the
// public store the client is connected to.
//
// It returns a *QueryError wrapping ErrInvalidArgument when name or
// containerClass is empty, name contains "/", a string argument contains a
// NUL byte, or the client is bound to a private store,
// ErrNotFound when parentPath does not resolve, and ErrAlreadyExists when
// the parent already has a folder of that name.
func CreatePublicFolder(ctx context.Context, c *Client, parentPath, containerClass, name, comment string, opts ...CreateOption) (resp CreateFolderResponse, err error) {
	const op = "create folder"
	target := JoinPath(parentPath, name)

	o := &createOptions{now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	switch {
	case name == "":
		return CreateFolderResponse{}, invalidArgument(op, target, "folder name is required")
	case strings.Contains(name, "/"):
		return CreateFolderResponse{}, invalidArgument(op, target, "folder name %q contains the path separator", name)
	case wire.CheckString(name) != nil, wire.CheckString(containerClass) != nil, wire.CheckString(comment) != nil:
		return CreateFolderResponse{}, invalidArgument(op, target, "name, container class and comment must not contain NUL bytes")
	case containerClass == "":
		return CreateFolderResponse{}, invalidArgument(op, target, "container class is required")
	case c.opts.private:
		return CreateFolderResponse{}, invalidArgument(op, target, "client is bound to a private store")
	}

	ctx, end := c.otel.startSpan(ctx, "exmdb.CreatePublicFolder",
		attribute.String("exmdb.path", target),
		attribute.String("exmdb.container_class", containerClass),
	)
	start := time.Now()
	defer func() {
		c.otel.recordCreate(ctx, time.Since(start), containerClass, err)
		end(err)
	}()

	parentID, err := ResolvePath(ctx, c, parentPath)
	if err != nil {
		return CreateFolderResponse{}, err
	}

	existing, err := Send(ctx, c, GetFolderByNameRequest{ParentID: parentID, Name: name})
	if err != nil {
		return CreateFolderResponse{}, err
	}
	if existing.FolderID != 0 {
		return CreateFolderResponse{}, queryError(op, target, ErrAlreadyExists)
	}

	cn, err := Send(ctx, c, AllocateCNRequest{})
	if err != nil {
		return CreateFolderResponse{}, err
	}

	now := propval.FromTime(o.now())
	props := propval.Row{
		{Tag: propval.TagParentFolderID, Value: propval.I8(parentID)},
		{Tag: propval.TagFolderType, Value: propval.Long(FolderGeneric)},
		{Tag: propval.TagDisplayName, Value: propval.Unicode(name)},
		{Tag: propval.TagContainerClass, Value: propval.Unicode(containerClass)},
		{Tag: propval.TagComment, Value: propval.Unicode(comment)},
		{Tag: propval.TagCreationTime, Value: now},
		{Tag: propval.TagLastModificationTime, Value: now},
		{Tag: propval.TagChangeNumber, Value: propval.I8(cn.ChangeNumber)},
	}
	if c.opts.storeGUID != nil {
		xid := makeXID(*c.opts.storeGUID, cn.ChangeNumber)
		props = append(props,
			propval.TaggedPropval{Tag: propval.TagChangeKey, Value: propval.Binary(xid)},
			propval.TaggedPropval{Tag: propval.TagPredecessorChangeList, Value: propval.Binary(makePCL(xid))},
		)
	}
	for _, extra := range o.extra {
		if _, err := propval.New(extra.Tag, extra.Value); err != nil {
			return CreateFolderResponse{}, invalidArgument(op, target, "property %s: %v", extra.Tag, err)
		}
	}
	props = append(props, o.extra...)

	resp, err = Send(ctx, c, CreateFolderByPropertiesRequest{
		Codepage:   c.opts.codepage,
		Properties: props,
	})
	if err != nil {
		return CreateFolderResponse{}, err
	}
	if resp.FolderID == 0 {
		// The server refuses duplicates that appeared after the lookup.
		return CreateFolderResponse{}, queryError(op, target, ErrAlreadyExists)
	}

	c.logger.Info("folder created", "path", target, "folder_id", resp.FolderID, "container_class", containerClass)

	if c.events != nil {
		if pubErr := publish(ctx, c, "FolderCreated", c.events.FolderCreated, FolderCreatedEvent{
			Addr:           c.Addr(),
			Prefix:         c.prefix,
			ParentPath:     cleanPath(parentPath),
			Name:           name,
			ContainerClass: containerClass,
			FolderID:       resp.FolderID,
			CreatedAt:      o.now().UTC(),
		}); pubErr != nil {
			return resp, pubErr
		}
	}
	return resp, nil
}
