package remotefs

import (
	"os"
	"time"

	"github.com/pkg/sftp"
)

// EntryType is the single-character classification of a directory entry,
// as shown in the first column of ls -l. The zero value means "absent".
type EntryType string

const (
	TypeFile        EntryType = "-"
	TypeDirectory   EntryType = "d"
	TypeSymlink     EntryType = "l"
	TypeBlockDevice EntryType = "b"
	TypeCharDevice  EntryType = "c"
	TypeFIFO        EntryType = "p"
	TypeSocket      EntryType = "s"
)

// Rights holds compact permission strings such as "rw" or "rx".
type Rights struct {
	User  string `json:"user"`
	Group string `json:"group"`
	Other string `json:"other"`
}

// Entry describes one directory entry.
type Entry struct {
	Type       EntryType `json:"type"`
	Path       string    `json:"path"`
	Name       string    `json:"name"`
	Size       uint64    `json:"size"`
	ModifyTime int64     `json:"modify_time"` // ms since epoch
	AccessTime int64     `json:"access_time"` // ms since epoch
	Rights     Rights    `json:"rights"`
	Owner      uint32    `json:"owner"`
	Group      uint32    `json:"group"`
}

// Stat holds the attributes of a remote file.
type Stat struct {
	Mode              uint32 `json:"mode"`
	UID               uint32 `json:"uid"`
	GID               uint32 `json:"gid"`
	Size              uint64 `json:"size"`
	AccessTime        int64  `json:"access_time"`
	ModifyTime        int64  `json:"modify_time"`
	IsDirectory       bool   `json:"is_directory"`
	IsFile            bool   `json:"is_file"`
	IsBlockDevice     bool   `json:"is_block_device"`
	IsCharacterDevice bool   `json:"is_character_device"`
	IsSymbolicLink    bool   `json:"is_symbolic_link"`
	IsFIFO            bool   `json:"is_fifo"`
	IsSocket          bool   `json:"is_socket"`
}

// POSIX file type and permission bits.
const (
	modeTypeMask uint32 = 0o170000
	modeSocket   uint32 = 0o140000
	modeSymlink  uint32 = 0o120000
	modeRegular  uint32 = 0o100000
	modeBlock    uint32 = 0o060000
	modeDir      uint32 = 0o040000
	modeChar     uint32 = 0o020000
	modeFIFO     uint32 = 0o010000

	modeOwnerRead uint32 = 0o400
)

// attrs is the raw attribute set behind an os.FileInfo.
type attrs struct {
	mode         uint32
	uid, gid     uint32
	size         uint64
	atime, mtime int64 // seconds
}

func attrsOf(fi os.FileInfo) attrs {
	if st, ok := fi.Sys().(*sftp.FileStat); ok {
		return attrs{
			mode:  st.Mode,
			uid:   st.UID,
			gid:   st.GID,
			size:  st.Size,
			atime: int64(st.Atime),
			mtime: int64(st.Mtime),
		}
	}
	mtime := fi.ModTime().Unix()
	return attrs{
		mode:  posixMode(fi.Mode()),
		size:  uint64(max(fi.Size(), 0)),
		atime: mtime,
		mtime: mtime,
	}
}

// posixMode converts Go mode bits into the POSIX layout used on the wire.
func posixMode(m os.FileMode) uint32 {
	mode := uint32(m.Perm())
	switch {
	case m&os.ModeDir != 0:
		mode |= modeDir
	case m&os.ModeSymlink != 0:
		mode |= modeSymlink
	case m&os.ModeNamedPipe != 0:
		mode |= modeFIFO
	case m&os.ModeSocket != 0:
		mode |= modeSocket
	case m&os.ModeCharDevice != 0:
		mode |= modeChar
	case m&os.ModeDevice != 0:
		mode |= modeBlock
	default:
		mode |= modeRegular
	}
	if m&os.ModeSetuid != 0 {
		mode |= 0o4000
	}
	if m&os.ModeSetgid != 0 {
		mode |= 0o2000
	}
	if m&os.ModeSticky != 0 {
		mode |= 0o1000
	}
	return mode
}

func typeOf(mode uint32) EntryType {
	switch mode & modeTypeMask {
	case modeDir:
		return TypeDirectory
	case modeSymlink:
		return TypeSymlink
	case modeBlock:
		return TypeBlockDevice
	case modeChar:
		return TypeCharDevice
	case modeFIFO:
		return TypeFIFO
	case modeSocket:
		return TypeSocket
	}
	return TypeFile
}

// rights renders one rwx triad without dashes.
func rights(triad uint32) string {
	b := make([]byte, 0, 3)
	if triad&4 != 0 {
		b = append(b, 'r')
	}
	if triad&2 != 0 {
		b = append(b, 'w')
	}
	if triad&1 != 0 {
		b = append(b, 'x')
	}
	return string(b)
}

func newEntry(path, name string, a attrs) Entry {
	return Entry{
		Type:       typeOf(a.mode),
		Path:       path,
		Name:       name,
		Size:       a.size,
		ModifyTime: a.mtime * 1000,
		AccessTime: a.atime * 1000,
		Rights: Rights{
			User:  rights(a.mode >> 6 & 7),
			Group: rights(a.mode >> 3 & 7),
			Other: rights(a.mode & 7),
		},
		Owner: a.uid,
		Group: a.gid,
	}
}

func newStat(a attrs) Stat {
	t := a.mode & modeTypeMask
	return Stat{
		Mode:              a.mode,
		UID:               a.uid,
		GID:               a.gid,
		Size:              a.size,
		AccessTime:        a.atime * 1000,
		ModifyTime:        a.mtime * 1000,
		IsDirectory:       t == modeDir,
		IsFile:            t == modeRegular,
		IsBlockDevice:     t == modeBlock,
		IsCharacterDevice: t == modeChar,
		IsSymbolicLink:    t == modeSymlink,
		IsFIFO:            t == modeFIFO,
		IsSocket:          t == modeSocket,
	}
}

// ModifiedAt returns ModifyTime as a time.Time.
func (e Entry) ModifiedAt() time.Time {
	return time.UnixMilli(e.ModifyTime)
}
