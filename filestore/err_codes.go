package filestore

// Error codes for filestore operations.
const (
	// CodeFileNotFound is returned when a file does not exist at the specified path.
	CodeFileNotFound = "FILE_NOT_FOUND"

	// CodeFileExists is returned by exclusive writes when the path is taken.
	CodeFileExists = "FILE_EXISTS"

	// CodeInvalidPath is returned for paths that escape the store root or are empty.
	CodeInvalidPath = "INVALID_PATH"

	// CodeUnsupportedContentType is returned when the file's content type is not supported.
	CodeUnsupportedContentType = "UNSUPPORTED_CONTENT_TYPE"

	// CodeFileTooLarge is returned when the file exceeds the maximum allowed size.
	CodeFileTooLarge = "FILE_TOO_LARGE"

	// CodeFileTooSmall is returned when the file is below the minimum allowed size.
	CodeFileTooSmall = "FILE_TOO_SMALL"
)
