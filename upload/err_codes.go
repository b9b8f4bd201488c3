package upload

// Error codes for upload operations.
const (
	// CodeInvalidConfig is returned when an upload configuration cannot be built.
	CodeInvalidConfig = "UPLOAD_CONFIG_INVALID"

	// CodeValidationFailed is returned by Outcome.Err when an upload was rejected.
	CodeValidationFailed = "UPLOAD_VALIDATION_FAILED"

	// CodeTransportFailed is returned when the transport reported a failed transfer.
	CodeTransportFailed = "UPLOAD_TRANSPORT_FAILED"

	// CodeContentUnavailable is returned when upload content cannot be read for inspection.
	CodeContentUnavailable = "UPLOAD_CONTENT_UNAVAILABLE"

	// CodeNameExhausted is returned when no free destination name could be found.
	CodeNameExhausted = "UPLOAD_NAME_EXHAUSTED"

	// CodeStorageWrite is returned by BeforeSave when the file could not be stored.
	CodeStorageWrite = "UPLOAD_STORAGE_WRITE"

	// CodeStorageDelete marks best-effort delete failures in logs.
	CodeStorageDelete = "UPLOAD_STORAGE_DELETE"

	// CodeVariantFailed marks best-effort image variant failures in logs.
	CodeVariantFailed = "UPLOAD_VARIANT_FAILED"
)

// Field-level messages reported by BeforeValidate.
const (
	MsgNoFile     = "No File"
	MsgSelectFile = "Select file to upload"
)
