package upload

import (
	"bytes"
	"io"
	"mime/multipart"
	"os"

	"github.com/code19m/errx"
)

// Opener returns a fresh reader over an upload's bytes each time it is called.
type Opener func() (io.ReadCloser, error)

// RawUpload is an incoming file as handed over by the transport layer.
// It lives for a single save attempt.
type RawUpload struct {
	// Name is the client-side filename.
	Name string
	// Type is the MIME type declared by the client.
	Type string
	// Size is the byte size reported by the transport.
	Size int64
	// TmpPath is where the transport spooled the file, if it did.
	TmpPath string
	// Content opens the upload bytes; when nil, TmpPath is opened instead.
	Content Opener
	// Err is the transport status of this file.
	Err TransportError
}

// Open returns a reader over the upload bytes.
func (u *RawUpload) Open() (io.ReadCloser, error) {
	switch {
	case u.Content != nil:
		rc, err := u.Content()
		if err != nil {
			return nil, errx.Wrap(err, errx.WithCode(CodeContentUnavailable))
		}
		return rc, nil
	case u.TmpPath != "":
		f, err := os.Open(u.TmpPath)
		if err != nil {
			return nil, errx.Wrap(err, errx.WithCode(CodeContentUnavailable))
		}
		return f, nil
	default:
		return nil, errx.New("upload has no content", errx.WithCode(CodeContentUnavailable))
	}
}

// FromMultipart adapts a multipart form file, as returned by net/http or fiber.
func FromMultipart(fh *multipart.FileHeader) *RawUpload {
	if fh == nil {
		return &RawUpload{Err: TransportNoFile}
	}
	return &RawUpload{
		Name: fh.Filename,
		Type: fh.Header.Get("Content-Type"),
		Size: fh.Size,
		Content: func() (io.ReadCloser, error) {
			return fh.Open()
		},
	}
}

// FromFile adapts a file already spooled to disk.
func FromFile(path, name, declaredType string) (*RawUpload, error) {
	stat, err := os.Stat(path)
	if err != nil {
		return nil, errx.Wrap(err, errx.WithDetails(errx.D{"path": path}))
	}
	return &RawUpload{
		Name:    name,
		Type:    declaredType,
		Size:    stat.Size(),
		TmpPath: path,
	}, nil
}

// FromBytes adapts an in-memory file.
func FromBytes(name, declaredType string, data []byte) *RawUpload {
	return &RawUpload{
		Name: name,
		Type: declaredType,
		Size: int64(len(data)),
		Content: func() (io.ReadCloser, error) {
			return io.NopCloser(bytes.NewReader(data)), nil
		},
	}
}

// HasUpload reports whether a file was actually submitted. A zero-byte file
// with a filename counts as an upload; only an explicit TransportNoFile or a
// missing filename does not.
func HasUpload(u *RawUpload) bool {
	return u != nil && u.Err != TransportNoFile && u.Name != ""
}

// asRaw extracts an upload from a record payload value.
func asRaw(v any) *RawUpload {
	switch u := v.(type) {
	case *RawUpload:
		return u
	case RawUpload:
		return &u
	case *multipart.FileHeader:
		return FromMultipart(u)
	default:
		return nil
	}
}
