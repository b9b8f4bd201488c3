package filestore

import "github.com/gabriel-vasile/mimetype"

// Common MIME content types for file operations.
const (
	// Images.
	ContentTypeJPEG  = "image/jpeg"
	ContentTypePJPEG = "image/pjpeg"
	ContentTypePNG   = "image/png"
	ContentTypeXPNG  = "image/x-png"
	ContentTypeGIF   = "image/gif"
	ContentTypeWebP  = "image/webp"
	ContentTypeSVG   = "image/svg+xml"
	ContentTypeBMP   = "image/bmp"

	// Documents.
	ContentTypePDF  = "application/pdf"
	ContentTypeRTF  = "application/rtf"
	ContentTypeText = "text/plain"
	ContentTypeCSV  = "text/csv"
	ContentTypeJSON = "application/json"
	ContentTypeXML  = "application/xml"

	// Microsoft Office.
	ContentTypeDOC  = "application/msword"
	ContentTypeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	ContentTypeXLS  = "application/vnd.ms-excel"
	ContentTypeXLSX = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

	// Archives.
	ContentTypeZIP  = "application/zip"
	ContentTypeGZIP = "application/gzip"

	// Other.
	ContentTypeOctetStream = "application/octet-stream"
)

// ImageTypesByExt maps lower-case image extensions to the MIME types browsers
// are known to declare for them.
func ImageTypesByExt() map[string][]string {
	return map[string][]string{
		"jpg":  {ContentTypeJPEG, ContentTypePJPEG},
		"jpeg": {ContentTypeJPEG, ContentTypePJPEG},
		"gif":  {ContentTypeGIF},
		"png":  {ContentTypePNG, ContentTypeXPNG},
		"webp": {ContentTypeWebP},
		"bmp":  {ContentTypeBMP},
	}
}

// DocumentTypesByExt maps lower-case document extensions to their MIME types.
func DocumentTypesByExt() map[string][]string {
	return map[string][]string{
		"pdf":  {ContentTypePDF},
		"rtf":  {ContentTypeRTF},
		"txt":  {ContentTypeText},
		"csv":  {ContentTypeCSV, ContentTypeText},
		"doc":  {ContentTypeDOC},
		"docx": {ContentTypeDOCX},
		"xls":  {ContentTypeXLS},
		"xlsx": {ContentTypeXLSX},
	}
}

// DetectContentType sniffs the MIME type of data. It never returns an empty
// string; unknown content is application/octet-stream.
func DetectContentType(data []byte) string {
	return mimetype.Detect(data).String()
}
