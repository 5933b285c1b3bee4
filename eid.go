package exmdb

import "encoding/binary"

// Well-known folder global counters.
const (
	PublicFIDRoot       = 0x01
	PublicFIDIPMSubtree = 0x02
	PublicFIDNonIPM     = 0x03

	PrivateFIDRoot       = 0x01
	PrivateFIDIPMSubtree = 0x09
	PrivateFIDInbox      = 0x0D
)

// FolderGeneric is the PR_FOLDER_TYPE of an ordinary folder.
const FolderGeneric = 1

// MakeEID builds a folder or message id from a replica id and a 48-bit
// global counter. The counter is stored big-endian in the upper six bytes
// of the little-endian id.
func MakeEID(replid uint16, gc uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint16(b[0:2], replid)
	for i := 0; i < 6; i++ {
		b[2+i] = byte(gc >> (8 * (5 - i)))
	}
	return binary.LittleEndian.Uint64(b[:])
}

// GCValue returns the 48-bit global counter of id.
func GCValue(id uint64) uint64 {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], id)
	var gc uint64
	for i := 0; i < 6; i++ {
		gc = gc<<8 | uint64(b[2+i])
	}
	return gc
}

// ReplID returns the replica id of id.
func ReplID(id uint64) uint16 {
	return uint16(id)
}

// rootFolder returns the id path resolution starts from.
func rootFolder(private bool) uint64 {
	if private {
		return MakeEID(1, PrivateFIDIPMSubtree)
	}
	return MakeEID(1, PublicFIDIPMSubtree)
}

// makeXID builds the 22-byte change key for a change number in the store
// identified by guid.
func makeXID(guid [16]byte, cn uint64) []byte {
	xid := make([]byte, 22)
	copy(xid, guid[:])
	gc := GCValue(cn)
	for i := 0; i < 6; i++ {
		xid[16+i] = byte(gc >> (8 * (5 - i)))
	}
	return xid
}

// makePCL wraps a single XID in a predecessor change list.
func makePCL(xid []byte) []byte {
	pcl := make([]byte, 0, len(xid)+1)
	pcl = append(pcl, byte(len(xid)))
	return append(pcl, xid...)
}
