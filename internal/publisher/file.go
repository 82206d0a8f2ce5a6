package publisher

import (
	"context"
	"fmt"
	"os"
)

// File appends (or overwrites, per config) the rendered post to a path on disk.
type File struct {
	path   string
	append bool
}

// NewFile returns a File publisher writing to path. When append is false,
// each publish truncates the file to just the new post.
func NewFile(path string, appendMode bool) *File {
	return &File{path: path, append: appendMode}
}

func (f *File) Name() string { return "file" }

func (f *File) Publish(_ context.Context, renderedPost string) error {
	flags := os.O_CREATE | os.O_WRONLY
	if f.append {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}

	out, err := os.OpenFile(f.path, flags, 0o644)
	if err != nil {
		return publishErr(f.Name(), fmt.Errorf("open %s: %w", f.path, err))
	}
	defer out.Close()

	if _, err := fmt.Fprintln(out, renderedPost); err != nil {
		return publishErr(f.Name(), fmt.Errorf("write %s: %w", f.path, err))
	}
	return nil
}
