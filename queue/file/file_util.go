package file

import "os"

// exists reports whether path names a regular file.
func exists(path string) bool {
	info, err := os.Lstat(path)
	if err != nil {
		return false
	}
	return !info.IsDir()
}
