// Package localfs provides a filesystem implementation of the filestore.FileStore interface.
package localfs

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/code19m/errx"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/rise-and-shine/fileupload/filestore"
)

const (
	defaultDirPerm  os.FileMode = 0o755
	defaultFilePerm os.FileMode = 0o644

	tempPrefix = ".upload-"
)

// Store implements filestore.FileStore on top of an afero filesystem.
type Store struct {
	fs       afero.Fs
	dirPerm  os.FileMode
	filePerm os.FileMode
}

// New creates a store rooted at cfg.Root on the host filesystem, creating the
// root directory if needed.
func New(cfg Config) (*Store, error) {
	if cfg.Root == "" {
		return nil, errx.New("localfs: root directory is required", errx.WithCode(filestore.CodeInvalidPath))
	}

	s := &Store{dirPerm: defaultDirPerm, filePerm: defaultFilePerm}
	if cfg.DirPerm != 0 {
		s.dirPerm = os.FileMode(cfg.DirPerm)
	}
	if cfg.FilePerm != 0 {
		s.filePerm = os.FileMode(cfg.FilePerm)
	}

	osFs := afero.NewOsFs()
	if err := osFs.MkdirAll(cfg.Root, s.dirPerm); err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"root": cfg.Root}))
	}
	s.fs = afero.NewBasePathFs(osFs, cfg.Root)
	return s, nil
}

// NewWithFs creates a store over an arbitrary afero filesystem, e.g. afero.NewMemMapFs in tests.
func NewWithFs(fs afero.Fs) *Store {
	return &Store{fs: fs, dirPerm: defaultDirPerm, filePerm: defaultFilePerm}
}

// Write stores reader at path. Exclusive writes create the destination with
// O_EXCL so that two racing writers cannot both succeed; a failed copy removes
// the partial file. Non-exclusive writes go through a temporary file that is
// renamed over the destination, so readers never observe a half-written file.
func (s *Store) Write(
	ctx context.Context,
	path string,
	reader io.Reader,
	opts filestore.WriteOptions,
) (*filestore.FileInfo, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}
	if err = ctx.Err(); err != nil {
		return nil, errx.Wrap(err)
	}

	if err = s.fs.MkdirAll(filepath.Dir(p), s.dirPerm); err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}

	var size int64
	if opts.Exclusive {
		size, err = s.writeExclusive(ctx, p, reader)
	} else {
		size, err = s.writeReplace(ctx, p, reader)
	}
	if err != nil {
		return nil, err
	}

	stat, err := s.fs.Stat(p)
	if err != nil {
		return nil, errx.Wrap(err)
	}

	contentType := opts.ContentType
	if contentType == "" {
		contentType = s.detect(p)
	}

	return &filestore.FileInfo{
		Path:         path,
		Size:         size,
		ContentType:  contentType,
		LastModified: stat.ModTime(),
	}, nil
}

func (s *Store) writeExclusive(ctx context.Context, p string, reader io.Reader) (int64, error) {
	f, err := s.fs.OpenFile(p, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if errors.Is(err, os.ErrExist) {
		return 0, errx.New(
			"file already exists",
			errx.WithCode(filestore.CodeFileExists),
			errx.WithType(errx.T_Conflict),
			errx.WithDetails(errx.D{"path": p}),
		)
	}
	if err != nil {
		return 0, errx.Wrap(err)
	}

	n, err := copyAndClose(ctx, f, reader)
	if err != nil {
		_ = s.fs.Remove(p)
		return 0, err
	}
	return n, nil
}

func (s *Store) writeReplace(ctx context.Context, p string, reader io.Reader) (int64, error) {
	tmp := filepath.Join(filepath.Dir(p), tempPrefix+uuid.NewString()+".tmp")

	f, err := s.fs.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_EXCL, s.filePerm)
	if err != nil {
		return 0, errx.Wrap(err)
	}

	n, err := copyAndClose(ctx, f, reader)
	if err != nil {
		_ = s.fs.Remove(tmp)
		return 0, err
	}

	if err = s.fs.Rename(tmp, p); err != nil {
		_ = s.fs.Remove(tmp)
		return 0, errx.Wrap(err, errx.WithDetails(errx.D{"path": p}))
	}
	return n, nil
}

// Get retrieves a file and its metadata from the specified path.
func (s *Store) Get(_ context.Context, path string) (*filestore.File, error) {
	p, err := cleanPath(path)
	if err != nil {
		return nil, err
	}

	f, err := s.fs.Open(p)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, errx.Wrap(err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, errx.Wrap(err)
	}

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		_ = f.Close()
		return nil, errx.Wrap(err)
	}
	if _, err = f.Seek(0, io.SeekStart); err != nil {
		_ = f.Close()
		return nil, errx.Wrap(err)
	}

	return &filestore.File{
		Content: f,
		Info: filestore.FileInfo{
			Path:         path,
			Size:         stat.Size(),
			ContentType:  mt.String(),
			LastModified: stat.ModTime(),
		},
	}, nil
}

// Delete removes a file at the specified path. A missing file is not an error.
func (s *Store) Delete(_ context.Context, path string) error {
	p, err := cleanPath(path)
	if err != nil {
		return err
	}

	err = s.fs.Remove(p)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	return nil
}

// Exists checks if a file exists at the specified path.
func (s *Store) Exists(_ context.Context, path string) (bool, error) {
	p, err := cleanPath(path)
	if err != nil {
		return false, err
	}

	ok, err := afero.Exists(s.fs, p)
	if err != nil {
		return false, errx.Wrap(err)
	}
	return ok, nil
}

func (s *Store) detect(p string) string {
	f, err := s.fs.Open(p)
	if err != nil {
		return filestore.ContentTypeOctetStream
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return filestore.ContentTypeOctetStream
	}
	return mt.String()
}

// cleanPath turns a slash-separated store path into a relative OS path that
// cannot climb above the store root.
func cleanPath(path string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimSpace(path)))
	if cleaned == "." || cleaned == "" || filepath.IsAbs(cleaned) ||
		cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", errx.New(
			"invalid file path",
			errx.WithCode(filestore.CodeInvalidPath),
			errx.WithType(errx.T_Validation),
			errx.WithDetails(errx.D{"path": path}),
		)
	}
	return cleaned, nil
}

func notFound(path string) error {
	return errx.New(
		"file not found",
		errx.WithCode(filestore.CodeFileNotFound),
		errx.WithType(errx.T_NotFound),
		errx.WithDetails(errx.D{"path": path}),
	)
}

func copyAndClose(ctx context.Context, f afero.File, reader io.Reader) (int64, error) {
	n, err := io.Copy(f, &ctxReader{ctx: ctx, r: reader})
	closeErr := f.Close()
	if err != nil {
		return 0, errx.Wrap(err)
	}
	if closeErr != nil {
		return 0, errx.Wrap(closeErr)
	}
	return n, nil
}

// ctxReader stops a copy once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}
