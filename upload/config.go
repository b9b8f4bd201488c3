package upload

import (
	"maps"
	"strings"
	"time"

	"github.com/code19m/errx"
	"github.com/samber/lo"

	"github.com/rise-and-shine/fileupload/filestore"
	"github.com/rise-and-shine/fileupload/hasher"
	"github.com/rise-and-shine/fileupload/val"
)

const (
	defaultDir          = "files"
	defaultSourceField  = "file"
	defaultWriteTimeout = 30 * time.Second
)

// NameTransform derives the stored filename from the sanitised original name.
type NameTransform func(name string) string

// Fields names the record fields that receive the stored file's metadata.
type Fields struct {
	Name string `yaml:"name" validate:"required,nefield=Type,nefield=Size"`
	Type string `yaml:"type" validate:"required,nefield=Size"`
	Size string `yaml:"size" validate:"required"`
}

// Config is the upload configuration of one entity type.
type Config struct {
	// Alias names the entity type, e.g. "Document".
	Alias string `yaml:"alias" validate:"required"`

	// Dir is the storage directory, relative to the file store root.
	Dir string `yaml:"dir" validate:"required"`

	// Fields maps name/type/size to record field names.
	Fields Fields `yaml:"fields"`

	// SourceField is the record field carrying the raw upload.
	SourceField string `yaml:"source_field" validate:"required"`

	// AllowedTypes maps a lower-case extension to the MIME types accepted for it.
	// An empty map accepts every type.
	AllowedTypes map[string][]string `yaml:"allowed_types" validate:"dive,keys,file_ext,endkeys,dive,mime_type"`

	// Required rejects records that carry no file.
	Required bool `yaml:"required"`

	// Unique never overwrites: colliding names get a numeric suffix.
	Unique bool `yaml:"unique"`

	// Transform rewrites the filename before storing; nil keeps it.
	Transform NameTransform `yaml:"-"`

	// MinSize and MaxSize are inclusive byte bounds; zero means unbounded.
	MinSize int64 `yaml:"min_size" validate:"gte=0"`
	MaxSize int64 `yaml:"max_size" validate:"gte=0"`

	// VerifyContent additionally sniffs the bytes and requires the detected
	// type to be allowed for the extension.
	VerifyContent bool `yaml:"verify_content"`

	// WriteTimeout bounds a single storage write; zero disables the bound.
	WriteTimeout time.Duration `yaml:"write_timeout" validate:"gte=0"`

	// DiscardOnEmpty clears the whole record payload when the source field is
	// present but holds no file, instead of only dropping the source field.
	DiscardOnEmpty bool `yaml:"discard_on_empty"`

	// Variants maps a label to a maximum pixel width. Stored images get one
	// downscaled copy per label under Dir/.variants/<label>/.
	Variants map[string]int `yaml:"variants" validate:"dive,keys,file_ext,endkeys,gt=0"`
}

// Option overrides one setting of the default configuration.
type Option func(*Config)

// Defaults returns the process-wide default configuration: common image
// types only, unique names, no size bounds and no transform.
func Defaults() Config {
	return Config{
		Dir:          defaultDir,
		Fields:       Fields{Name: "name", Type: "type", Size: "size"},
		SourceField:  defaultSourceField,
		AllowedTypes: filestore.ImageTypesByExt(),
		Unique:       true,
		WriteTimeout: defaultWriteTimeout,
	}
}

// Configure builds the configuration for alias by applying opts onto Defaults.
// Each option replaces a whole setting; nothing is deep-merged.
func Configure(alias string, opts ...Option) (Config, error) {
	cfg := Defaults()
	cfg.Alias = alias
	for _, opt := range opts {
		opt(&cfg)
	}

	cfg.AllowedTypes = normalizeAllowedTypes(cfg.AllowedTypes)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	if err := val.ValidateSchema(c); err != nil {
		return errx.New(
			"invalid upload configuration",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithFields(errx.AsErrorX(err).Fields()),
			errx.WithDetails(errx.D{"alias": c.Alias}),
		)
	}

	fields := errx.M{}
	if lo.Contains([]string{c.Fields.Name, c.Fields.Type, c.Fields.Size}, c.SourceField) {
		fields["source_field"] = "Must differ from the name, type and size fields"
	}
	if c.MaxSize > 0 && c.MinSize > c.MaxSize {
		fields["min_size"] = "Must not exceed max_size"
	}
	if len(fields) > 0 {
		return errx.New(
			"invalid upload configuration",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithFields(fields),
			errx.WithDetails(errx.D{"alias": c.Alias}),
		)
	}
	return nil
}

// normalizeAllowedTypes lower-cases extensions and media types and strips
// leading dots from extensions, so ".PDF" and "pdf" configure the same entry.
func normalizeAllowedTypes(in map[string][]string) map[string][]string {
	out := make(map[string][]string, len(in))
	for ext, types := range in {
		key := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(ext)), ".")
		lowered := lo.Map(types, func(t string, _ int) string {
			return strings.ToLower(strings.TrimSpace(t))
		})
		out[key] = lo.Uniq(append(out[key], lowered...))
	}
	return out
}

// WithDir sets the storage directory.
func WithDir(dir string) Option {
	return func(c *Config) { c.Dir = dir }
}

// WithFields sets the record field mapping.
func WithFields(name, typ, size string) Option {
	return func(c *Config) { c.Fields = Fields{Name: name, Type: typ, Size: size} }
}

// WithSourceField sets the record field that carries the raw upload.
func WithSourceField(field string) Option {
	return func(c *Config) { c.SourceField = field }
}

// WithAllowedTypes replaces the allowed extension to MIME table.
// Passing nil or an empty map lifts the type restriction.
func WithAllowedTypes(types map[string][]string) Option {
	return func(c *Config) { c.AllowedTypes = maps.Clone(types) }
}

// WithRequired sets whether a file must be present.
func WithRequired(required bool) Option {
	return func(c *Config) { c.Required = required }
}

// WithUnique sets whether existing files are protected from overwrite.
func WithUnique(unique bool) Option {
	return func(c *Config) { c.Unique = unique }
}

// WithTransform sets the filename transform; nil keeps names unchanged.
func WithTransform(t NameTransform) Option {
	return func(c *Config) { c.Transform = t }
}

// WithSizeBounds sets the inclusive size bounds in bytes; zero leaves a side unbounded.
func WithSizeBounds(minSize, maxSize int64) Option {
	return func(c *Config) {
		c.MinSize = minSize
		c.MaxSize = maxSize
	}
}

// WithVerifyContent enables content sniffing in CheckType.
func WithVerifyContent(verify bool) Option {
	return func(c *Config) { c.VerifyContent = verify }
}

// WithWriteTimeout bounds each storage write.
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Config) { c.WriteTimeout = d }
}

// WithVariants sets the image variants rendered after each stored image.
func WithVariants(widths map[string]int) Option {
	return func(c *Config) { c.Variants = maps.Clone(widths) }
}

// WithDiscardOnEmpty restores the legacy behaviour of clearing the whole
// payload when the source field holds no file.
func WithDiscardOnEmpty(discard bool) Option {
	return func(c *Config) { c.DiscardOnEmpty = discard }
}

// Settings is the YAML form of an entity's upload configuration.
// Unset fields keep their defaults.
type Settings struct {
	Dir         string  `yaml:"dir"`
	Fields      *Fields `yaml:"fields"`
	SourceField string  `yaml:"source_field"`

	// AllowedTypes left out keeps the default image table; an explicit empty
	// mapping accepts every type.
	AllowedTypes map[string][]string `yaml:"allowed_types"`

	Required *bool `yaml:"required"`
	Unique   *bool `yaml:"unique"`

	// Transform names a hasher transform, e.g. "sha1".
	Transform string `yaml:"transform" validate:"omitempty,oneof=none md5 sha1 sha256 sha3 blake2b"`

	MinSize        int64 `yaml:"min_size"`
	MaxSize        int64 `yaml:"max_size"`
	VerifyContent  bool  `yaml:"verify_content"`
	DiscardOnEmpty bool  `yaml:"discard_on_empty"`

	// WriteTimeout left out keeps the default; an explicit 0 disables the bound.
	WriteTimeout *time.Duration `yaml:"write_timeout"`

	Variants map[string]int `yaml:"variants"`
}

// FromSettings resolves s into a Config for alias. The transform name is
// looked up here, once, so no string dispatch happens per upload.
func FromSettings(alias string, s Settings) (Config, error) {
	transform, err := hasher.ByName(s.Transform)
	if err != nil {
		return Config{}, errx.New(
			"invalid upload configuration",
			errx.WithCode(CodeInvalidConfig),
			errx.WithType(errx.T_Validation),
			errx.WithFields(errx.M{"transform": "Must be one of: " + strings.Join(hasher.Names(), ", ")}),
			errx.WithDetails(errx.D{"alias": alias}),
		)
	}

	opts := []Option{
		WithSizeBounds(s.MinSize, s.MaxSize),
		WithVerifyContent(s.VerifyContent),
		WithDiscardOnEmpty(s.DiscardOnEmpty),
	}
	if transform != nil {
		opts = append(opts, WithTransform(NameTransform(transform)))
	}
	if s.Dir != "" {
		opts = append(opts, WithDir(s.Dir))
	}
	if s.Fields != nil {
		opts = append(opts, WithFields(s.Fields.Name, s.Fields.Type, s.Fields.Size))
	}
	if s.SourceField != "" {
		opts = append(opts, WithSourceField(s.SourceField))
	}
	if s.AllowedTypes != nil {
		opts = append(opts, WithAllowedTypes(s.AllowedTypes))
	}
	if s.Required != nil {
		opts = append(opts, WithRequired(*s.Required))
	}
	if s.Unique != nil {
		opts = append(opts, WithUnique(*s.Unique))
	}
	if s.WriteTimeout != nil {
		opts = append(opts, WithWriteTimeout(*s.WriteTimeout))
	}
	if len(s.Variants) > 0 {
		opts = append(opts, WithVariants(s.Variants))
	}

	return Configure(alias, opts...)
}
