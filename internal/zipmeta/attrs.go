package zipmeta

import "os"

// HostSystem identifies the producer's filesystem family, encoded in the
// high byte of version_madeby. Collapses the historical
// FAT/Unix/NTFS/VFAT/MacOSX creator byte values into four families.
type HostSystem byte

const (
	MSDOS HostSystem = iota
	Unix
	WindowsNTFS
	OSXDarwin
)

// hostByte mirrors the PKWARE "version made by" high byte values
// (FAT=0, Unix=3, NTFS=11, VFAT=14, MacOSX=19); WindowsNTFS maps to NTFS.
func (h HostSystem) hostByte() byte {
	switch h {
	case Unix:
		return 3
	case WindowsNTFS:
		return 11
	case OSXDarwin:
		return 19
	default:
		return 0
	}
}

// HostSystemFromByte decodes the version_madeby high byte into a
// HostSystem, collapsing FAT/VFAT variants into MSDOS.
func HostSystemFromByte(b byte) HostSystem {
	switch b {
	case 3:
		return Unix
	case 11:
		return WindowsNTFS
	case 14:
		return MSDOS
	case 19:
		return OSXDarwin
	default:
		return MSDOS
	}
}

// Unix mode bits. These aren't part of the PKWARE format proper but are
// the values every tool has converged on.
const (
	sIFMT   = 0xf000
	sIFSOCK = 0xc000
	sIFLNK  = 0xa000
	sIFREG  = 0x8000
	sIFBLK  = 0x6000
	sIFDIR  = 0x4000
	sIFCHR  = 0x2000
	sIFIFO  = 0x1000
	sISUID  = 0x800
	sISGID  = 0x400
	sISVTX  = 0x200
)

const (
	msdosDir      = 0x10
	msdosReadOnly = 0x01
	msdosArchive  = 0x20
)

// ExternalAttrsToFileMode translates an entry's external attributes into an
// os.FileMode, given the host system that produced them.
func ExternalAttrsToFileMode(host HostSystem, externalAttrs uint32) os.FileMode {
	switch host {
	case Unix, OSXDarwin:
		return unixModeToFileMode(externalAttrs >> 16)
	default:
		return msdosModeToFileMode(externalAttrs)
	}
}

// FileModeToExternalAttrs translates an os.FileMode into external
// attributes for the given host system. Unix/OSX hosts get the POSIX mode
// in the high 16 bits; all hosts additionally get the MSDOS directory/
// read-only bits set for cross-tool compatibility.
func FileModeToExternalAttrs(host HostSystem, mode os.FileMode) uint32 {
	var attrs uint32
	switch host {
	case Unix, OSXDarwin:
		attrs = fileModeToUnixMode(mode) << 16
	}
	if mode&os.ModeDir != 0 {
		attrs |= msdosDir
	}
	if mode&0200 == 0 {
		attrs |= msdosReadOnly
	}
	return attrs
}

func msdosModeToFileMode(m uint32) (mode os.FileMode) {
	if m&msdosDir != 0 {
		mode = os.ModeDir | 0777
	} else {
		mode = 0666
	}
	if m&msdosReadOnly != 0 {
		mode &^= 0222
	}
	return mode
}

func fileModeToUnixMode(mode os.FileMode) uint32 {
	var m uint32
	switch mode & os.ModeType {
	default:
		m = sIFREG
	case os.ModeDir:
		m = sIFDIR
	case os.ModeSymlink:
		m = sIFLNK
	case os.ModeNamedPipe:
		m = sIFIFO
	case os.ModeSocket:
		m = sIFSOCK
	case os.ModeDevice:
		if mode&os.ModeCharDevice != 0 {
			m = sIFCHR
		} else {
			m = sIFBLK
		}
	}
	if mode&os.ModeSetuid != 0 {
		m |= sISUID
	}
	if mode&os.ModeSetgid != 0 {
		m |= sISGID
	}
	if mode&os.ModeSticky != 0 {
		m |= sISVTX
	}
	return m | uint32(mode&0777)
}

func unixModeToFileMode(m uint32) os.FileMode {
	mode := os.FileMode(m & 0777)
	switch m & sIFMT {
	case sIFBLK:
		mode |= os.ModeDevice
	case sIFCHR:
		mode |= os.ModeDevice | os.ModeCharDevice
	case sIFDIR:
		mode |= os.ModeDir
	case sIFIFO:
		mode |= os.ModeNamedPipe
	case sIFLNK:
		mode |= os.ModeSymlink
	case sIFREG:
		// nothing to do
	case sIFSOCK:
		mode |= os.ModeSocket
	}
	if m&sISGID != 0 {
		mode |= os.ModeSetgid
	}
	if m&sISUID != 0 {
		mode |= os.ModeSetuid
	}
	if m&sISVTX != 0 {
		mode |= os.ModeSticky
	}
	return mode
}

// HostByte returns the version_madeby high byte for host.
func HostByte(host HostSystem) byte { return host.hostByte() }

// IsDirectory reports whether an entry is a directory:
// its translated POSIX mode has S_IFDIR, or its filename ends in a slash.
func IsDirectory(host HostSystem, externalAttrs uint32, name string) bool {
	if ExternalAttrsToFileMode(host, externalAttrs)&os.ModeDir != 0 {
		return true
	}
	if n := len(name); n > 0 && (name[n-1] == '/' || name[n-1] == '\\') {
		return true
	}
	return false
}
