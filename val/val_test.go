package val_test

import (
	"testing"

	"github.com/code19m/errx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rise-and-shine/fileupload/val"
)

type sample struct {
	Dir   string              `yaml:"dir" validate:"required"`
	Types map[string][]string `yaml:"types" validate:"dive,keys,file_ext,endkeys,dive,mime_type"`
	Mode  string              `yaml:"mode" validate:"omitempty,oneof=a b"`
}

func TestValidateSchema(t *testing.T) {
	t.Run("valid", func(t *testing.T) {
		err := val.ValidateSchema(sample{
			Dir:   "files",
			Types: map[string][]string{"pdf": {"application/pdf"}},
		})
		assert.NoError(t, err)
	})

	t.Run("missing required", func(t *testing.T) {
		err := val.ValidateSchema(sample{})
		require.Error(t, err)

		e := errx.AsErrorX(err)
		assert.Equal(t, val.CodeValidationFailed, e.Code())
		assert.Equal(t, errx.T_Validation, e.Type())
		assert.Equal(t, "This field is required", e.Fields()["dir"])
	})

	t.Run("bad mime", func(t *testing.T) {
		err := val.ValidateSchema(sample{
			Dir:   "files",
			Types: map[string][]string{"pdf": {"PDF"}},
		})
		require.Error(t, err)
		assert.Len(t, errx.AsErrorX(err).Fields(), 1)
	})

	t.Run("oneof", func(t *testing.T) {
		err := val.ValidateSchema(sample{Dir: "files", Mode: "c"})
		require.Error(t, err)
		assert.Equal(t, "Must be one of: a, b", errx.AsErrorX(err).Fields()["mode"])
	})
}

func TestCustomMatchers(t *testing.T) {
	assert.True(t, val.IsFileExt("pdf"))
	assert.True(t, val.IsFileExt("tar-gz"))
	assert.False(t, val.IsFileExt(".pdf"))
	assert.False(t, val.IsFileExt("PDF"))

	assert.True(t, val.IsMIMEType("application/pdf"))
	assert.True(t, val.IsMIMEType("image/svg+xml"))
	assert.False(t, val.IsMIMEType("application"))
	assert.False(t, val.IsMIMEType("Image/PNG"))
}
