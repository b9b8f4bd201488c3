package val

import (
	"regexp"

	"github.com/go-playground/validator/v10"
)

var (
	extRe  = regexp.MustCompile(`^[a-z0-9][a-z0-9_+-]*$`)
	mimeRe = regexp.MustCompile(`^[a-z0-9][a-z0-9!#$&^_.+-]*/[a-z0-9][a-z0-9!#$&^_.+-]*$`)
)

// IsFileExt reports whether ext is a lower-case file extension without the leading dot.
func IsFileExt(ext string) bool {
	return extRe.MatchString(ext)
}

// IsMIMEType reports whether s looks like a lower-case type/subtype media type.
func IsMIMEType(s string) bool {
	return mimeRe.MatchString(s)
}

func registerCustomValidations(v *validator.Validate) {
	_ = v.RegisterValidation("file_ext", func(fl validator.FieldLevel) bool {
		return IsFileExt(fl.Field().String())
	})
	_ = v.RegisterValidation("mime_type", func(fl validator.FieldLevel) bool {
		return IsMIMEType(fl.Field().String())
	})
}
