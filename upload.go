package dvcfs

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
)

// Upload pairs a logical destination path with a content source and an
// overwrite policy. The policy decides, per staging attempt, whether
// the working-copy destination should be overwritten — it exists so
// identical-content or already-staged files are not redundantly
// rewritten.
type Upload interface {
	// Path is the logical destination inside the repository.
	Path() string
	// Open returns the content source. Sources are reopenable except
	// ReaderUpload, which is single-use.
	Open() (io.ReadCloser, error)
	// ShouldCopy reports whether the destination at the given absolute
	// working-copy path should be overwritten with the source.
	ShouldCopy(dst string) bool
}

// PathUpload uploads a local file to a logical path. When the source
// already is the working-copy destination (a file staged in place by a
// write handle), the copy is skipped.
type PathUpload struct {
	Src  string
	Dest string
}

func (u *PathUpload) Path() string {
	return u.Dest
}

func (u *PathUpload) Open() (io.ReadCloser, error) {
	return os.Open(u.Src)
}

func (u *PathUpload) ShouldCopy(dst string) bool {
	src, err := filepath.Abs(u.Src)
	if err != nil {
		return true
	}
	return src != dst
}

// BytesUpload uploads in-memory content to a logical path.
type BytesUpload struct {
	Dest string
	Data []byte
}

func (u *BytesUpload) Path() string {
	return u.Dest
}

func (u *BytesUpload) Open() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(u.Data)), nil
}

func (u *BytesUpload) ShouldCopy(string) bool {
	return true
}

// StringUpload uploads a string to a logical path.
func StringUpload(dest, content string) *BytesUpload {
	return &BytesUpload{Dest: dest, Data: []byte(content)}
}

// ReaderUpload uploads from a reader. Single-use: the source can be
// opened exactly once.
type ReaderUpload struct {
	Dest   string
	R      io.Reader
	opened bool
}

func (u *ReaderUpload) Path() string {
	return u.Dest
}

func (u *ReaderUpload) Open() (io.ReadCloser, error) {
	if u.opened {
		return nil, errors.New("dvcfs: reader upload already consumed")
	}
	u.opened = true
	if rc, ok := u.R.(io.ReadCloser); ok {
		return rc, nil
	}
	return io.NopCloser(u.R), nil
}

func (u *ReaderUpload) ShouldCopy(string) bool {
	return true
}

// UnlessUnchanged wraps an upload so staging is skipped when the
// destination already holds byte-identical content, compared by BLAKE3
// digest. Not usable with single-use sources.
func UnlessUnchanged(u Upload) Upload {
	return &unchangedFilter{Upload: u}
}

type unchangedFilter struct {
	Upload
}

func (f *unchangedFilter) ShouldCopy(dst string) bool {
	if !f.Upload.ShouldCopy(dst) {
		return false
	}
	existing, err := HashFile(dst)
	if err != nil {
		return true
	}
	src, err := f.Upload.Open()
	if err != nil {
		return true
	}
	defer func() { _ = src.Close() }()

	incoming, _, err := HashReader(src)
	if err != nil {
		return true
	}
	return incoming != existing
}
