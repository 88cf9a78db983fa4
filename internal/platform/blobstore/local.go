package blobstore

import (
	"context"
	"fmt"
	"io"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// LocalBlobStore writes blobs under a directory that the HTTP server exposes
// at publicPath.
type LocalBlobStore struct {
	dir        string
	publicPath string
}

func NewLocalBlobStore(dir, publicPath string) (*LocalBlobStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating upload dir %s: %w", dir, err)
	}
	return &LocalBlobStore{
		dir:        dir,
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}, nil
}

func (s *LocalBlobStore) Upload(_ context.Context, meta BlobMetadata, content io.Reader) (*BlobMetadata, error) {
	meta, data, err := prepare(meta, content)
	if err != nil {
		return nil, err
	}

	name := StoredName(meta)
	meta.URL = s.publicPath + "/" + name

	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o640); err != nil {
		return nil, fmt.Errorf("writing blob: %w", err)
	}
	return &meta, nil
}

// Download locates the file by its ID prefix. Only the metadata that can be
// recovered from the file system is returned.
func (s *LocalBlobStore) Download(_ context.Context, id string) (io.ReadCloser, *BlobMetadata, error) {
	if id == "" || strings.ContainsAny(id, `/\.*?[`) {
		return nil, nil, ErrBlobNotFound
	}

	matches, err := filepath.Glob(filepath.Join(s.dir, id+"_*"))
	if err != nil {
		return nil, nil, fmt.Errorf("locating blob: %w", err)
	}
	if len(matches) == 0 {
		return nil, nil, ErrBlobNotFound
	}

	f, err := os.Open(matches[0])
	if err != nil {
		return nil, nil, fmt.Errorf("opening blob: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("stat blob: %w", err)
	}

	name := filepath.Base(matches[0])
	meta := &BlobMetadata{
		ID:          id,
		FileName:    strings.TrimPrefix(name, id+"_"),
		ContentType: mime.TypeByExtension(filepath.Ext(name)),
		Size:        info.Size(),
		URL:         s.publicPath + "/" + name,
		CreatedAt:   info.ModTime().UTC(),
	}
	return f, meta, nil
}

// Dir is the directory served at PublicPath.
func (s *LocalBlobStore) Dir() string { return s.dir }

func (s *LocalBlobStore) PublicPath() string { return s.publicPath }
