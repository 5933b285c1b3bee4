package exmdb

import (
	"fmt"

	"github.com/rbaliyan/exmdb/propval"
	"github.com/rbaliyan/exmdb/wire"
)

// CallID identifies a store operation on the wire.
type CallID uint8

// Modeled store operations.
const (
	CallConnect                  CallID = 0x00
	CallPingStore                CallID = 0x02
	CallGetFolderByName          CallID = 0x13
	CallCreateFolderByProperties CallID = 0x15
	CallLoadHierarchyTable       CallID = 0x26
	CallUnloadTable              CallID = 0x2B
	CallQueryTable               CallID = 0x2D
	CallAllocateCN               CallID = 0x5C
)

var callNames = map[CallID]string{
	CallConnect:                  "connect",
	CallPingStore:                "ping_store",
	CallGetFolderByName:          "get_folder_by_name",
	CallCreateFolderByProperties: "create_folder_by_properties",
	CallLoadHierarchyTable:       "load_hierarchy_table",
	CallUnloadTable:              "unload_table",
	CallQueryTable:               "query_table",
	CallAllocateCN:               "allocate_cn",
}

func (c CallID) String() string {
	if name, ok := callNames[c]; ok {
		return name
	}
	return fmt.Sprintf("call(0x%02x)", uint8(c))
}

// Request is a store operation whose response decodes to R. The set of
// requests is closed; each type in this package fixes its response type, so
// Send returns the matching response without a runtime type switch.
type Request[R any] interface {
	Call() CallID
	push(p *wire.Pusher) error
	pull(r *wire.Puller) (R, error)
}

// TableFlags select hierarchy table behavior.
type TableFlags uint8

const (
	// TableFlagDepth includes all descendants, not only direct children.
	TableFlagDepth TableFlags = 0x04
	// TableFlagSoftDelete lists soft-deleted folders instead of live ones.
	TableFlagSoftDelete TableFlags = 0x02
)

// Empty is the response of operations that return no payload.
type Empty struct{}

// FolderIDResponse carries a folder id; zero means no such folder.
type FolderIDResponse struct {
	FolderID uint64
}

// CreateFolderResponse carries the id of a created folder. Zero means the
// server refused to create it.
type CreateFolderResponse struct {
	FolderID uint64
}

// LoadTableResponse identifies a server-side table.
type LoadTableResponse struct {
	TableID  uint32
	RowCount uint32
}

// QueryTableResponse holds table rows in server order.
type QueryTableResponse struct {
	Rows []propval.Row
}

// ChangeNumberResponse carries a newly allocated change number.
type ChangeNumberResponse struct {
	ChangeNumber uint64
}

// PingStoreRequest checks that the store is reachable and loaded.
type PingStoreRequest struct{}

func (PingStoreRequest) Call() CallID                     { return CallPingStore }
func (PingStoreRequest) push(*wire.Pusher) error          { return nil }
func (PingStoreRequest) pull(*wire.Puller) (Empty, error) { return Empty{}, nil }

// GetFolderByNameRequest looks up a direct child of ParentID by display
// name. The server compares names case-insensitively.
type GetFolderByNameRequest struct {
	ParentID uint64
	Name     string
}

func (GetFolderByNameRequest) Call() CallID { return CallGetFolderByName }

func (q GetFolderByNameRequest) push(p *wire.Pusher) error {
	p.Uint64(q.ParentID)
	p.String(q.Name)
	return nil
}

func (GetFolderByNameRequest) pull(r *wire.Puller) (FolderIDResponse, error) {
	id, err := r.Uint64()
	return FolderIDResponse{FolderID: id}, err
}

// CreateFolderByPropertiesRequest creates a folder described entirely by
// its properties; the parent is given by PR_PARENT_FOLDER_ID.
type CreateFolderByPropertiesRequest struct {
	Codepage   uint32
	Properties propval.Row
}

func (CreateFolderByPropertiesRequest) Call() CallID { return CallCreateFolderByProperties }

func (q CreateFolderByPropertiesRequest) push(p *wire.Pusher) error {
	p.Uint32(q.Codepage)
	return propval.PushRow(p, q.Properties)
}

func (CreateFolderByPropertiesRequest) pull(r *wire.Puller) (CreateFolderResponse, error) {
	id, err := r.Uint64()
	return CreateFolderResponse{FolderID: id}, err
}

// LoadHierarchyTableRequest opens a table over the subfolders of FolderID.
// Username, when set, restricts the table to folders that user may see.
type LoadHierarchyTableRequest struct {
	FolderID uint64
	Username *string
	Flags    TableFlags
}

func (LoadHierarchyTableRequest) Call() CallID { return CallLoadHierarchyTable }

func (q LoadHierarchyTableRequest) push(p *wire.Pusher) error {
	p.Uint64(q.FolderID)
	p.OptionalString(q.Username)
	p.Uint8(uint8(q.Flags))
	// No restriction.
	p.Uint8(0)
	return nil
}

func (LoadHierarchyTableRequest) pull(r *wire.Puller) (LoadTableResponse, error) {
	var resp LoadTableResponse
	var err error
	if resp.TableID, err = r.Uint32(); err != nil {
		return resp, err
	}
	resp.RowCount, err = r.Uint32()
	return resp, err
}

// QueryTableRequest reads rows from a loaded table. RowNeeded of -1 or
// less reads backwards; use a count at least as large as the table to read
// every row.
type QueryTableRequest struct {
	Username  *string
	Codepage  uint32
	TableID   uint32
	Proptags  []propval.Tag
	Start     uint32
	RowNeeded int32
}

func (QueryTableRequest) Call() CallID { return CallQueryTable }

func (q QueryTableRequest) push(p *wire.Pusher) error {
	p.OptionalString(q.Username)
	p.Uint32(q.Codepage)
	p.Uint32(q.TableID)
	if err := propval.PushTags(p, q.Proptags); err != nil {
		return err
	}
	p.Uint32(q.Start)
	p.Int32(q.RowNeeded)
	return nil
}

func (QueryTableRequest) pull(r *wire.Puller) (QueryTableResponse, error) {
	rows, err := propval.PullRowSet(r)
	return QueryTableResponse{Rows: rows}, err
}

// UnloadTableRequest releases a table opened by LoadHierarchyTableRequest.
type UnloadTableRequest struct {
	TableID uint32
}

func (UnloadTableRequest) Call() CallID { return CallUnloadTable }

func (q UnloadTableRequest) push(p *wire.Pusher) error {
	p.Uint32(q.TableID)
	return nil
}

func (UnloadTableRequest) pull(*wire.Puller) (Empty, error) { return Empty{}, nil }

// AllocateCNRequest reserves a change number for a new object.
type AllocateCNRequest struct{}

func (AllocateCNRequest) Call() CallID            { return CallAllocateCN }
func (AllocateCNRequest) push(*wire.Pusher) error { return nil }

func (AllocateCNRequest) pull(r *wire.Puller) (ChangeNumberResponse, error) {
	cn, err := r.Uint64()
	return ChangeNumberResponse{ChangeNumber: cn}, err
}

// Compile-time checks that each request fixes its response type.
var (
	_ Request[Empty]                = PingStoreRequest{}
	_ Request[FolderIDResponse]     = GetFolderByNameRequest{}
	_ Request[CreateFolderResponse] = CreateFolderByPropertiesRequest{}
	_ Request[LoadTableResponse]    = LoadHierarchyTableRequest{}
	_ Request[QueryTableResponse]   = QueryTableRequest{}
	_ Request[Empty]                = UnloadTableRequest{}
	_ Request[ChangeNumberResponse] = AllocateCNRequest{}
)
