//go:build !(linux || darwin || freebsd || netbsd || openbsd || dragonfly)

package fsstat

import "os"

func fromFileInfo(_ string, fi os.FileInfo) Info {
	return Info{FileInfo: fi, Changed: fi.ModTime(), Accessed: fi.ModTime()}
}
