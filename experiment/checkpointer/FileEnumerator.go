package checkpointer

import (
	"fmt"
	"path/filepath"
)

// fileEnumerator enumerates filenames
type fileEnumerator struct {
	i         int
	dir       string
	name      string
	extension string
}

// filename returns the name of the next consecutive enumerated file
func (f *fileEnumerator) filename() string {
	f.i++
	return filepath.Join(f.dir, fmt.Sprintf("%v-%04d%v", f.name, f.i,
		f.extension))
}

// FilenameEnumerator returns a function which returns filenames in dir
// with a counter suffix, so that successive calls return
// dir/name-0001.ext, dir/name-0002.ext, and so on. The extension
// includes its dot.
func FilenameEnumerator(dir, name, extension string) func() string {
	enum := fileEnumerator{dir: dir, name: name, extension: extension}

	return enum.filename
}

// Fixed returns a function which always returns the same filename, so
// that each checkpoint overwrites the last
func Fixed(filename string) func() string {
	return func() string { return filename }
}
