package types

// NFSv3 procedure numbers (RFC 1813 Section 3.3). All 22 procedures,
// 0 through 21 inclusive.
const (
	NFSProcNull        uint32 = 0
	NFSProcGetAttr     uint32 = 1
	NFSProcSetAttr     uint32 = 2
	NFSProcLookup      uint32 = 3
	NFSProcAccess      uint32 = 4
	NFSProcReadLink    uint32 = 5
	NFSProcRead        uint32 = 6
	NFSProcWrite       uint32 = 7
	NFSProcCreate      uint32 = 8
	NFSProcMkdir       uint32 = 9
	NFSProcSymlink     uint32 = 10
	NFSProcMknod       uint32 = 11
	NFSProcRemove      uint32 = 12
	NFSProcRmdir       uint32 = 13
	NFSProcRename      uint32 = 14
	NFSProcLink        uint32 = 15
	NFSProcReadDir     uint32 = 16
	NFSProcReadDirPlus uint32 = 17
	NFSProcFsStat      uint32 = 18
	NFSProcFsInfo      uint32 = 19
	NFSProcPathConf    uint32 = 20
	NFSProcCommit      uint32 = 21
)

// RPC program/version numbers registered with the portmapper.
const (
	ProgramNFS   uint32 = 100003
	NFSVersion3  uint32 = 3
	ProgramMount uint32 = 100005
	MountVersion3 uint32 = 3
)
