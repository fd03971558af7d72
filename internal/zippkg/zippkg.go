// Package zippkg is the zip collaborator the reader core depends on: it
// locates named parts inside an XLSX package, serves their bytes, and
// extracts them to a temp directory for seekable re-reads.
package zippkg

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// Archive opens an XLSX package (a zip file) and serves its parts by
// in-package path.
type Archive struct {
	rc    *zip.ReadCloser
	byName map[string]*zip.File
}

// Open opens the zip file at path.
func Open(path string) (*Archive, error) {
	rc, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("zippkg: open %s: %w", path, err)
	}
	a := &Archive{rc: rc, byName: make(map[string]*zip.File, len(rc.File))}
	for _, f := range rc.File {
		a.byName[f.Name] = f
	}
	return a, nil
}

// Close closes the underlying zip file.
func (a *Archive) Close() error {
	return a.rc.Close()
}

// Locate reports whether name exists in the archive.
func (a *Archive) Locate(name string) bool {
	_, ok := a.byName[name]
	return ok
}

// BytesOf returns the full decompressed contents of name.
func (a *Archive) BytesOf(name string) ([]byte, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("zippkg: %s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("zippkg: open %s: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("zippkg: read %s: %w", name, err)
	}
	return data, nil
}

// Open returns a stream for name, for pull-parsing without loading the
// whole part into memory.
func (a *Archive) Open(name string) (io.ReadCloser, error) {
	f, ok := a.byName[name]
	if !ok {
		return nil, fmt.Errorf("zippkg: %s not found in archive", name)
	}
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("zippkg: open %s: %w", name, err)
	}
	return rc, nil
}

// Extract decompresses name into destDir under a flat file name (name
// with every '/' and '\' replaced by '_'), and returns the path written. It is used to give seekable, re-openable
// access to worksheet parts that the row iterator rewinds.
func (a *Archive) Extract(name, destDir string) (string, error) {
	f, ok := a.byName[name]
	if !ok {
		return "", fmt.Errorf("zippkg: %s not found in archive", name)
	}
	src, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("zippkg: open %s: %w", name, err)
	}
	defer src.Close()

	dest := filepath.Join(destDir, sanitizeName(name))
	out, err := os.Create(dest)
	if err != nil {
		return "", fmt.Errorf("zippkg: create %s: %w", dest, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		return "", fmt.Errorf("zippkg: extract %s: %w", name, err)
	}
	return dest, nil
}

func sanitizeName(name string) string {
	out := make([]rune, 0, len(name))
	for _, r := range name {
		if r == '/' || r == '\\' {
			out = append(out, '_')
			continue
		}
		out = append(out, r)
	}
	return string(out)
}
