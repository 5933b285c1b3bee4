// Package exmdbtest provides an in-memory EXMDB store server for tests.
//
// A Server models one public or private store with a folder hierarchy and
// answers the calls the exmdb package issues. It can be used in-process via
// Dialer or Transport, or over a real socket via Serve.
//
//	srv := exmdbtest.New(exmdbtest.WithPrefix("/var/lib/gromox/domain/1"))
//	srv.AddPath("/Projects/Budget", "IPF.Note")
//	c, err := exmdb.Connect(ctx, "localhost", 5000, "/var/lib/gromox/domain/1", false,
//	    exmdb.WithDialer(srv.Dialer()))
package exmdbtest

import (
	"context"
	"crypto/tls"
	"errors"
	"strings"
	"sync"

	"github.com/rbaliyan/exmdb"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
)

// ErrInjected is the default error returned by BreakOn.
var ErrInjected = errors.New("exmdbtest: injected transport failure")

type folder struct {
	id       uint64
	parentID uint64
	props    map[propval.Tag]propval.TaggedPropval
	children []uint64
}

func (f *folder) name() string {
	if tp, ok := f.props[propval.TagDisplayName]; ok {
		s, _ := tp.Text()
		return s
	}
	return ""
}

// Server is an in-memory store. All methods are safe for concurrent use.
type Server struct {
	mu sync.Mutex

	prefix  string
	private bool

	folders map[uint64]*folder
	rootID  uint64
	ipmID   uint64
	nextGC  uint64
	nextCN  uint64

	tables    map[uint32][]uint64
	nextTable uint32

	connectCode wire.ResponseCode
	codes       map[exmdb.CallID]wire.ResponseCode
	breaks      map[exmdb.CallID]error
	payloads    map[exmdb.CallID][]byte

	calls []exmdb.CallID
}

// Option configures a Server.
type Option func(*Server)

// WithPrefix makes the server accept only the given store prefix. By
// default any prefix is accepted.
func WithPrefix(prefix string) Option {
	return func(s *Server) {
		s.prefix = prefix
	}
}

// WithPrivate makes the server a private store. Handshakes whose private
// flag does not match are refused with misconfig_mode.
func WithPrivate(private bool) Option {
	return func(s *Server) {
		s.private = private
	}
}

// New returns a server holding only the store root and IPM subtree.
func New(opts ...Option) *Server {
	s := &Server{
		folders:   make(map[uint64]*folder),
		nextGC:    0x100,
		nextCN:    0x1000,
		tables:    make(map[uint32][]uint64),
		nextTable: 1,
		codes:     make(map[exmdb.CallID]wire.ResponseCode),
		breaks:    make(map[exmdb.CallID]error),
		payloads:  make(map[exmdb.CallID][]byte),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.rootID = exmdb.MakeEID(1, exmdb.PublicFIDRoot)
	ipmGC := uint64(exmdb.PublicFIDIPMSubtree)
	if s.private {
		s.rootID = exmdb.MakeEID(1, exmdb.PrivateFIDRoot)
		ipmGC = exmdb.PrivateFIDIPMSubtree
	}
	s.ipmID = exmdb.MakeEID(1, ipmGC)
	s.folders[s.rootID] = &folder{id: s.rootID, props: map[propval.Tag]propval.TaggedPropval{
		propval.TagDisplayName: propval.MustNew(propval.TagDisplayName, propval.Unicode("Root Container")),
	}}
	s.folders[s.ipmID] = &folder{id: s.ipmID, parentID: s.rootID, props: map[propval.Tag]propval.TaggedPropval{
		propval.TagDisplayName: propval.MustNew(propval.TagDisplayName, propval.Unicode("IPM_SUBTREE")),
	}}
	s.folders[s.rootID].children = []uint64{s.ipmID}
	return s
}

// RootID returns the id of the IPM subtree, the folder "/" resolves to.
func (s *Server) RootID() uint64 { return s.ipmID }

// AddFolder creates a folder under parentID and returns its id. It panics
// if the parent does not exist.
func (s *Server) AddFolder(parentID uint64, name, containerClass string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	props := propval.Row{
		propval.MustNew(propval.TagDisplayName, propval.Unicode(name)),
	}
	if containerClass != "" {
		props = append(props, propval.MustNew(propval.TagContainerClass, propval.Unicode(containerClass)))
	}
	id, ok := s.createLocked(parentID, props)
	if !ok {
		panic("exmdbtest: cannot add folder " + name)
	}
	return id
}

// AddPath creates every missing folder along path and returns the id of the
// last one. Intermediate folders get containerClass too.
func (s *Server) AddPath(path, containerClass string) uint64 {
	id := s.RootID()
	for _, name := range exmdb.SplitPath(path) {
		if child, ok := s.child(id, name); ok {
			id = child
			continue
		}
		id = s.AddFolder(id, name, containerClass)
	}
	return id
}

// Lookup resolves path the way the client does.
func (s *Server) Lookup(path string) (uint64, bool) {
	id := s.RootID()
	for _, name := range exmdb.SplitPath(path) {
		child, ok := s.child(id, name)
		if !ok {
			return 0, false
		}
		id = child
	}
	return id, true
}

// Property returns a stored property of a folder.
func (s *Server) Property(folderID uint64, tag propval.Tag) (propval.TaggedPropval, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.folders[folderID]
	if !ok {
		return propval.TaggedPropval{}, false
	}
	tp, ok := f.props[tag]
	return tp, ok
}

// RefuseConnect makes every later handshake fail with code.
func (s *Server) RefuseConnect(code wire.ResponseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connectCode = code
}

// FailOn makes every later call of the given kind answer with code.
func (s *Server) FailOn(call exmdb.CallID, code wire.ResponseCode) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.codes[call] = code
}

// BreakOn makes every later call of the given kind fail at the transport
// level with err, or ErrInjected when err is nil.
func (s *Server) BreakOn(call exmdb.CallID, err error) {
	if err == nil {
		err = ErrInjected
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.breaks[call] = err
}

// RespondWith makes every later call of the given kind answer success with
// the raw payload.
func (s *Server) RespondWith(call exmdb.CallID, payload []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payloads[call] = payload
}

// Calls returns the calls received so far, handshakes included.
func (s *Server) Calls() []exmdb.CallID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]exmdb.CallID(nil), s.calls...)
}

// OpenTables returns the number of loaded, not yet unloaded tables.
func (s *Server) OpenTables() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tables)
}

// Dialer returns an exmdb.Dialer that connects in-process.
func (s *Server) Dialer() exmdb.Dialer {
	return func(ctx context.Context, _ string, _ *tls.Config) (exmdb.Transport, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return s.Transport(), nil
	}
}

// Transport returns a new in-process connection.
func (s *Server) Transport() *Conn {
	return &Conn{srv: s}
}

func (s *Server) child(parentID uint64, name string) (uint64, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.childLocked(parentID, name)
}

func (s *Server) childLocked(parentID uint64, name string) (uint64, bool) {
	p, ok := s.folders[parentID]
	if !ok {
		return 0, false
	}
	for _, id := range p.children {
		if strings.EqualFold(s.folders[id].name(), name) {
			return id, true
		}
	}
	return 0, false
}

// createLocked adds a folder under parentID. It fails when the parent is
// missing, the name is empty or already used under the parent.
func (s *Server) createLocked(parentID uint64, props propval.Row) (uint64, bool) {
	parent, ok := s.folders[parentID]
	if !ok {
		return 0, false
	}
	name := props.Text(propval.TagDisplayName)
	if name == "" {
		return 0, false
	}
	if _, exists := s.childLocked(parentID, name); exists {
		return 0, false
	}

	id := exmdb.MakeEID(1, s.nextGC)
	s.nextGC++
	f := &folder{id: id, parentID: parentID, props: make(map[propval.Tag]propval.TaggedPropval, len(props))}
	for _, tp := range props {
		f.props[tp.Tag] = tp
	}
	delete(f.props, propval.TagParentFolderID)
	s.folders[id] = f
	parent.children = append(parent.children, id)
	return id, true
}

// walk appends the descendants of id in pre-order.
func (s *Server) walk(id uint64, depth bool, out []uint64) []uint64 {
	for _, child := range s.folders[id].children {
		out = append(out, child)
		if depth {
			out = s.walk(child, depth, out)
		}
	}
	return out
}

func (s *Server) row(id uint64, tags []propval.Tag) propval.Row {
	f := s.folders[id]
	row := make(propval.Row, 0, len(tags))
	for _, tag := range tags {
		switch tag {
		case propval.TagFolderID:
			row = append(row, propval.MustNew(tag, propval.I8(f.id)))
		case propval.TagParentFolderID:
			row = append(row, propval.MustNew(tag, propval.I8(f.parentID)))
		case propval.TagSubfolders:
			row = append(row, propval.MustNew(tag, propval.Bool(len(f.children) > 0)))
		case propval.TagFolderChildCount:
			row = append(row, propval.MustNew(tag, propval.Long(len(f.children))))
		default:
			if tp, ok := f.props[tag]; ok {
				row = append(row, tp)
			}
		}
	}
	return row
}
