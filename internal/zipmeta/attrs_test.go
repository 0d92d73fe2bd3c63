package zipmeta

import (
	"os"
	"testing"
)

func TestUnixModeRoundTrip(t *testing.T) {
	modes := []os.FileMode{
		0644,
		0755 | os.ModeDir,
		0777 | os.ModeSymlink,
		0755 | os.ModeSetuid,
		0755 | os.ModeSetgid,
		0644 | os.ModeSticky,
	}
	for _, m := range modes {
		attrs := FileModeToExternalAttrs(Unix, m)
		got := ExternalAttrsToFileMode(Unix, attrs)
		if got&(os.ModeType|os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky) !=
			m&(os.ModeType|os.ModePerm|os.ModeSetuid|os.ModeSetgid|os.ModeSticky) {
			t.Errorf("Unix round trip %v -> attrs %#x -> %v", m, attrs, got)
		}
	}
}

func TestMSDOSModeReadOnlyDir(t *testing.T) {
	attrs := FileModeToExternalAttrs(MSDOS, os.ModeDir|0555)
	mode := ExternalAttrsToFileMode(MSDOS, attrs)
	if mode&os.ModeDir == 0 {
		t.Error("expected directory bit")
	}
	if mode&0222 != 0 {
		t.Error("expected read-only mode to clear write bits")
	}
}

func TestIsDirectory(t *testing.T) {
	if !IsDirectory(Unix, 0, "dir/") {
		t.Error("trailing slash should be a directory")
	}
	if IsDirectory(Unix, FileModeToExternalAttrs(Unix, 0644), "file.txt") {
		t.Error("regular file should not be a directory")
	}
	dirAttrs := FileModeToExternalAttrs(Unix, os.ModeDir|0755)
	if !IsDirectory(Unix, dirAttrs, "dir") {
		t.Error("S_IFDIR attrs should be a directory even without trailing slash")
	}
}

func TestHostSystemByteRoundTrip(t *testing.T) {
	for _, h := range []HostSystem{MSDOS, Unix, WindowsNTFS, OSXDarwin} {
		if got := HostSystemFromByte(HostByte(h)); got != h {
			t.Errorf("HostSystemFromByte(HostByte(%v)) = %v", h, got)
		}
	}
}
