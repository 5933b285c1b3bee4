package exmdbtest

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rbaliyan/exmdb"
	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
)

// Conn is one client connection to a Server. It implements
// exmdb.Transport.
type Conn struct {
	srv *Server

	mu        sync.Mutex
	connected bool
	closed    bool
}

var _ exmdb.Transport = (*Conn)(nil)

// RoundTrip handles one request body.
func (c *Conn) RoundTrip(ctx context.Context, body []byte) (wire.ResponseCode, []byte, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return 0, nil, net.ErrClosed
	}
	return c.handle(body)
}

// Close closes the connection. Later round trips fail with net.ErrClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

func (c *Conn) handle(body []byte) (wire.ResponseCode, []byte, error) {
	s := c.srv
	r := wire.NewPuller(body)
	raw, err := r.Uint8()
	if err != nil {
		return wire.CodePullError, nil, nil
	}
	call := exmdb.CallID(raw)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)

	if err := s.breaks[call]; err != nil {
		return 0, nil, err
	}

	if call == exmdb.CallConnect {
		code := c.connect(r)
		if code == wire.CodeSuccess {
			c.connected = true
		}
		return code, nil, nil
	}
	if !c.connected {
		return wire.CodeConnectIncomplete, nil, nil
	}

	dir, err := r.String()
	if err != nil {
		return wire.CodePullError, nil, nil
	}
	if s.prefix != "" && dir != s.prefix {
		return wire.CodeMisconfigPrefix, nil, nil
	}
	if code, ok := s.codes[call]; ok {
		return code, nil, nil
	}
	if payload, ok := s.payloads[call]; ok {
		return wire.CodeSuccess, payload, nil
	}

	out := wire.NewPusher(64)
	code := s.dispatch(call, r, out)
	if code != wire.CodeSuccess {
		return code, nil, nil
	}
	return code, out.Bytes(), nil
}

func (c *Conn) connect(r *wire.Puller) wire.ResponseCode {
	s := c.srv
	prefix, err := r.String()
	if err != nil {
		return wire.CodePullError
	}
	if _, err := r.String(); err != nil {
		return wire.CodePullError
	}
	private, err := r.Bool()
	if err != nil || r.Done() != nil {
		return wire.CodePullError
	}
	if s.connectCode != wire.CodeSuccess {
		return s.connectCode
	}
	if s.prefix != "" && prefix != s.prefix {
		return wire.CodeMisconfigPrefix
	}
	if private != s.private {
		return wire.CodeMisconfigMode
	}
	return wire.CodeSuccess
}

var errPull = errors.New("pull")

// dispatch runs one call against the store. It is called with s.mu held.
func (s *Server) dispatch(call exmdb.CallID, r *wire.Puller, out *wire.Pusher) wire.ResponseCode {
	var err error
	switch call {
	case exmdb.CallPingStore:
	case exmdb.CallGetFolderByName:
		err = s.getFolderByName(r, out)
	case exmdb.CallCreateFolderByProperties:
		err = s.createFolderByProperties(r, out)
	case exmdb.CallLoadHierarchyTable:
		err = s.loadHierarchyTable(r, out)
	case exmdb.CallQueryTable:
		err = s.queryTable(r, out)
	case exmdb.CallUnloadTable:
		err = s.unloadTable(r)
	case exmdb.CallAllocateCN:
		out.Uint64(exmdb.MakeEID(1, s.nextCN))
		s.nextCN++
	default:
		return wire.CodeDispatchError
	}
	if err == nil {
		err = r.Done()
	}
	if err != nil {
		return wire.CodePullError
	}
	return wire.CodeSuccess
}

func (s *Server) getFolderByName(r *wire.Puller, out *wire.Pusher) error {
	parentID, err := r.Uint64()
	if err != nil {
		return err
	}
	name, err := r.String()
	if err != nil {
		return err
	}
	id, _ := s.childLocked(parentID, name)
	out.Uint64(id)
	return nil
}

func (s *Server) createFolderByProperties(r *wire.Puller, out *wire.Pusher) error {
	if _, err := r.Uint32(); err != nil {
		return err
	}
	props, err := propval.PullRow(r)
	if err != nil {
		return err
	}
	parent, ok := props.Find(propval.TagParentFolderID)
	if !ok {
		out.Uint64(0)
		return nil
	}
	parentID, err := parent.Uint64()
	if err != nil {
		return err
	}
	id, _ := s.createLocked(parentID, props)
	out.Uint64(id)
	return nil
}

func (s *Server) loadHierarchyTable(r *wire.Puller, out *wire.Pusher) error {
	folderID, err := r.Uint64()
	if err != nil {
		return err
	}
	if _, err := r.OptionalString(); err != nil {
		return err
	}
	flags, err := r.Uint8()
	if err != nil {
		return err
	}
	restricted, err := r.Uint8()
	if err != nil {
		return err
	}
	if restricted != 0 {
		return errPull
	}

	var ids []uint64
	if _, ok := s.folders[folderID]; ok {
		ids = s.walk(folderID, exmdb.TableFlags(flags)&exmdb.TableFlagDepth != 0, nil)
	}
	tableID := s.nextTable
	s.nextTable++
	s.tables[tableID] = ids
	out.Uint32(tableID)
	out.Uint32(uint32(len(ids)))
	return nil
}

func (s *Server) queryTable(r *wire.Puller, out *wire.Pusher) error {
	if _, err := r.OptionalString(); err != nil {
		return err
	}
	if _, err := r.Uint32(); err != nil {
		return err
	}
	tableID, err := r.Uint32()
	if err != nil {
		return err
	}
	tags, err := propval.PullTags(r)
	if err != nil {
		return err
	}
	start, err := r.Uint32()
	if err != nil {
		return err
	}
	needed, err := r.Int32()
	if err != nil {
		return err
	}

	ids := s.tables[tableID]
	var rows []propval.Row
	switch {
	case needed >= 0:
		for i := int64(start); i < int64(len(ids)) && i < int64(start)+int64(needed); i++ {
			rows = append(rows, s.row(ids[i], tags))
		}
	default:
		for i := int64(start); i >= 0 && i < int64(len(ids)) && i > int64(start)+int64(needed); i-- {
			rows = append(rows, s.row(ids[i], tags))
		}
	}
	return propval.PushRowSet(out, rows)
}

func (s *Server) unloadTable(r *wire.Puller) error {
	tableID, err := r.Uint32()
	if err != nil {
		return err
	}
	delete(s.tables, tableID)
	return nil
}

// Serve accepts connections on l until it is closed. Each connection is
// handled on its own goroutine.
func (s *Server) Serve(l net.Listener) error {
	var wg sync.WaitGroup
	defer wg.Wait()
	for {
		nc, err := l.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.serveConn(nc)
		}()
	}
}

func (s *Server) serveConn(nc net.Conn) {
	defer nc.Close()
	c := s.Transport()
	limits := wire.DefaultLimits()
	for {
		body, err := wire.ReadRequest(nc, limits)
		if err != nil {
			return
		}
		code, payload, err := c.RoundTrip(context.Background(), body)
		if err != nil {
			// Injected transport failures drop the connection.
			return
		}
		if _, err := nc.Write(wire.EncodeResponse(code, payload)); err != nil {
			return
		}
	}
}

var _ io.Closer = (*Conn)(nil)
