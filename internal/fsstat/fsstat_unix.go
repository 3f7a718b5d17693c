//go:build linux || darwin || freebsd || netbsd || openbsd || dragonfly

package fsstat

import (
	"os"
	"time"

	"golang.org/x/sys/unix"
)

func fromFileInfo(path string, fi os.FileInfo) Info {
	info := Info{FileInfo: fi, Changed: fi.ModTime(), Accessed: fi.ModTime()}
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return info
	}
	info.Changed = time.Unix(st.Ctim.Unix())
	info.Accessed = time.Unix(st.Atim.Unix())
	return info
}
