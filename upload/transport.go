package upload

import "strconv"

// TransportError is the per-file status reported by the transport layer.
type TransportError int

const (
	TransportOK TransportError = iota
	// TransportNoFile means the form field was submitted without a file.
	TransportNoFile
	// TransportPartialUpload means the body was truncated.
	TransportPartialUpload
	// TransportSizeExceeded means the transport's own size limit was hit.
	TransportSizeExceeded
	// TransportNoTempDir means there was nowhere to spool the upload.
	TransportNoTempDir
	// TransportWriteFailed means the spooled copy could not be written.
	TransportWriteFailed
)

func (e TransportError) String() string {
	switch e {
	case TransportOK:
		return "ok"
	case TransportNoFile:
		return "no_file"
	case TransportPartialUpload:
		return "partial_upload"
	case TransportSizeExceeded:
		return "size_exceeded"
	case TransportNoTempDir:
		return "no_temp_dir"
	case TransportWriteFailed:
		return "write_failed"
	default:
		return "unknown(" + strconv.Itoa(int(e)) + ")"
	}
}

// Message is the user-facing explanation of the status.
func (e TransportError) Message() string {
	switch e {
	case TransportOK:
		return "The file was uploaded successfully"
	case TransportNoFile:
		return "No file was uploaded"
	case TransportPartialUpload:
		return "The file was only partially uploaded"
	case TransportSizeExceeded:
		return "The file exceeds the maximum upload size"
	case TransportNoTempDir:
		return "Missing a temporary folder for the upload"
	case TransportWriteFailed:
		return "Failed to write the uploaded file"
	default:
		return "Unknown upload error"
	}
}
