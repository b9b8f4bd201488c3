package upload

import (
	"bytes"
	"context"
	"path"
	"strings"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"go.opentelemetry.io/otel/attribute"

	"github.com/rise-and-shine/fileupload/filestore"
	"github.com/rise-and-shine/fileupload/imagevariant"
	"github.com/rise-and-shine/fileupload/meta"
	"github.com/rise-and-shine/fileupload/observability/logger"
	"github.com/rise-and-shine/fileupload/observability/tracing"
)

// maxWriteRaces bounds how often BeforeSave re-resolves a name after losing
// an exclusive-create race to a concurrent upload.
const maxWriteRaces = 10

// Metric names, relative to the "upload.<alias>." prefix.
const (
	MetricValidateOK       = "validate.ok"
	MetricValidateRejected = "validate.rejected"
	MetricSaveOK           = "save.ok"
	MetricSaveFailed       = "save.failed"
	MetricSaveBytes        = "save.bytes"
	MetricDeleteOK         = "delete.ok"
	MetricDeleteFailed     = "delete.failed"
	MetricVariantFailed    = "variant.failed"
)

// Hooks are the entity lifecycle entry points a host calls around its own
// validation, persistence and deletion.
type Hooks interface {
	// BeforeValidate reports field errors; a non-ok outcome means re-prompt.
	BeforeValidate(ctx context.Context, rec *Record) Outcome
	// BeforeSave stores the upload; a non-nil error means do not persist rec.
	BeforeSave(ctx context.Context, rec *Record) error
	// BeforeDelete removes the stored file; it always lets the delete proceed.
	BeforeDelete(ctx context.Context, rec *Record) bool
}

var _ Hooks = (*Coordinator)(nil)

// Coordinator runs the upload lifecycle of one entity type.
// It holds no per-record state and is safe for concurrent use.
type Coordinator struct {
	policy  *Policy
	store   filestore.FileStore
	reader  RecordReader
	log     logger.Logger
	metrics metrics.Registry
}

// CoordinatorOption customises a Coordinator.
type CoordinatorOption func(*Coordinator)

// WithLogger sets the logger; the default is the global logger named "upload".
func WithLogger(l logger.Logger) CoordinatorOption {
	return func(c *Coordinator) { c.log = l }
}

// WithMetrics registers the coordinator's counters in r under "upload.<alias>.".
func WithMetrics(r metrics.Registry) CoordinatorOption {
	return func(c *Coordinator) { c.metrics = r }
}

// WithRecordReader sets the reader BeforeDelete uses to load the persisted name.
func WithRecordReader(r RecordReader) CoordinatorOption {
	return func(c *Coordinator) { c.reader = r }
}

// NewCoordinator returns the coordinator for cfg, storing files in store.
// cfg must come from Configure or FromSettings.
func NewCoordinator(cfg Config, store filestore.FileStore, opts ...CoordinatorOption) (*Coordinator, error) {
	if store == nil {
		return nil, errx.New(
			"file store is required",
			errx.WithCode(CodeInvalidConfig),
			errx.WithDetails(errx.D{"alias": cfg.Alias}),
		)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	c := &Coordinator{
		policy: NewPolicy(cfg, store),
		store:  store,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.log == nil {
		c.log = logger.Named("upload")
	}
	if c.metrics == nil {
		c.metrics = metrics.NewRegistry()
	}
	c.metrics = metrics.NewPrefixedChildRegistry(c.metrics, "upload."+cfg.Alias+".")

	return c, nil
}

// Alias returns the entity type the coordinator serves.
func (c *Coordinator) Alias() string {
	return c.policy.cfg.Alias
}

// Policy returns the coordinator's upload policy.
func (c *Coordinator) Policy() *Policy {
	return c.policy
}

// BeforeValidate checks the upload carried in the source field.
//
// A record without the source field fails with "No File" when the upload is
// required. A source field holding no file fails with "Select file to upload"
// when required. A submitted file must pass the transport, type and size
// checks; the first failing check's message becomes the field error.
func (c *Coordinator) BeforeValidate(ctx context.Context, rec *Record) Outcome {
	ctx = c.scope(ctx, rec)
	ctx, span := tracing.Start(ctx, "upload.validate", c.spanAttrs(rec)...)

	outcome := c.validate(ctx, rec)
	span.SetAttributes(attribute.Bool("upload.valid", outcome.OK()))
	tracing.End(span, nil)
	if outcome.OK() {
		c.count(MetricValidateOK, 1)
	} else {
		c.count(MetricValidateRejected, 1)
		c.log.WithContext(ctx).With("fields", outcome.fields).Debug("upload rejected")
	}
	return outcome
}

func (c *Coordinator) validate(ctx context.Context, rec *Record) Outcome {
	cfg := c.policy.cfg

	v, present := rec.Data[cfg.SourceField]
	if !present {
		if cfg.Required {
			return Invalid(cfg.SourceField, MsgNoFile)
		}
		return Valid()
	}

	u := asRaw(v)
	if !HasUpload(u) {
		if cfg.Required {
			return Invalid(cfg.SourceField, MsgSelectFile)
		}
		return Valid()
	}

	err := c.policy.Check(ctx, u)
	if err == nil {
		return Valid()
	}

	fields := errx.AsErrorX(err).Fields()
	if msg, ok := fields[cfg.SourceField]; ok {
		return Invalid(cfg.SourceField, msg)
	}
	return Invalid(cfg.SourceField, err.Error())
}

// BeforeSave stores the upload and rewrites the record's file fields.
//
// Without the source field the record is left untouched. A source field
// holding no file is dropped from the payload (or, with DiscardOnEmpty, the
// whole payload is cleared). A submitted file is written to the store; on
// success the name, type and size fields are set and the source field is
// removed, on failure a CodeStorageWrite error tells the host not to persist.
func (c *Coordinator) BeforeSave(ctx context.Context, rec *Record) error {
	cfg := c.policy.cfg

	v, present := rec.Data[cfg.SourceField]
	if !present {
		return nil
	}

	u := asRaw(v)
	if !HasUpload(u) {
		if cfg.DiscardOnEmpty {
			clear(rec.Data)
		} else {
			delete(rec.Data, cfg.SourceField)
		}
		return nil
	}

	ctx = c.scope(ctx, rec)
	ctx, span := tracing.Start(ctx, "upload.save", c.spanAttrs(rec)...)
	log := c.log.WithContext(ctx)

	ref, err := c.write(ctx, u)
	if err != nil {
		c.count(MetricSaveFailed, 1)
		saveErr := errx.New(
			"failed to store uploaded file",
			errx.WithCode(CodeStorageWrite),
			errx.WithType(errx.T_Internal),
			errx.WithDetails(errx.D{
				"alias": cfg.Alias,
				"file":  u.Name,
				"cause": err.Error(),
			}),
		)
		log.Errorx(saveErr)
		tracing.End(span, saveErr)
		return saveErr
	}
	span.SetAttributes(
		attribute.String("upload.stored_as", c.policy.Destination(ref.Name)),
		attribute.Int64("upload.size", ref.Size),
	)
	tracing.End(span, nil)

	rec.Data[cfg.Fields.Name] = ref.Name
	rec.Data[cfg.Fields.Type] = ref.Type
	rec.Data[cfg.Fields.Size] = ref.Size
	delete(rec.Data, cfg.SourceField)

	c.count(MetricSaveOK, 1)
	c.count(MetricSaveBytes, ref.Size)
	log.With("stored_as", c.policy.Destination(ref.Name), "size", ref.Size).Info("upload stored")

	c.writeVariants(ctx, u, ref.Name, log)
	return nil
}

// writeVariants renders and stores the configured image variants. Failures
// are logged; the original is already stored and stays authoritative.
func (c *Coordinator) writeVariants(ctx context.Context, u *RawUpload, name string, log logger.Logger) {
	widths := c.policy.cfg.Variants
	if len(widths) == 0 || !imagevariant.Supported(name) {
		return
	}

	fail := func(err error) {
		c.count(MetricVariantFailed, 1)
		log.Warnx(errx.Wrap(err, errx.WithCode(CodeVariantFailed), errx.WithDetails(errx.D{"name": name})))
	}

	rc, err := u.Open()
	if err != nil {
		fail(err)
		return
	}
	defer rc.Close()

	variants, err := imagevariant.Render(rc, name, widths)
	if err != nil {
		fail(err)
		return
	}

	for _, v := range variants {
		dest := c.policy.VariantDestination(v.Label, name)
		_, err = c.store.Write(ctx, dest, bytes.NewReader(v.Data), filestore.WriteOptions{ContentType: u.Type})
		if err != nil {
			fail(err)
		}
	}
}

func (c *Coordinator) write(ctx context.Context, u *RawUpload) (FileRef, error) {
	cfg := c.policy.cfg

	if cfg.WriteTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.WriteTimeout)
		defer cancel()
	}

	var lastErr error
	for range maxWriteRaces {
		name, err := c.policy.ResolveFilename(ctx, u)
		if err != nil {
			return FileRef{}, err
		}

		info, err := c.writeOnce(ctx, u, name)
		if err == nil {
			return FileRef{Name: name, Type: storedType(u, info), Size: u.Size}, nil
		}
		if !errx.IsCodeIn(err, filestore.CodeFileExists) {
			return FileRef{}, err
		}
		lastErr = err
	}
	return FileRef{}, lastErr
}

func (c *Coordinator) writeOnce(ctx context.Context, u *RawUpload, name string) (*filestore.FileInfo, error) {
	rc, err := u.Open()
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	return c.store.Write(ctx, c.policy.Destination(name), rc, filestore.WriteOptions{
		ContentType: u.Type,
		Exclusive:   c.policy.cfg.Unique,
	})
}

// storedType is the declared type, else the type the store detected, else
// application/octet-stream. The persisted type field is never empty.
func storedType(u *RawUpload, info *filestore.FileInfo) string {
	if t := strings.TrimSpace(u.Type); t != "" {
		return t
	}
	if info != nil && info.ContentType != "" {
		return info.ContentType
	}
	return filestore.ContentTypeOctetStream
}

// BeforeDelete removes the stored file of rec and always returns true.
//
// The filename is re-read through the RecordReader when one is set, falling
// back to the in-memory payload. A missing file or a failing store is logged
// and ignored: cleanup is best effort and never blocks the record delete.
func (c *Coordinator) BeforeDelete(ctx context.Context, rec *Record) bool {
	ctx = c.scope(ctx, rec)
	ctx, span := tracing.Start(ctx, "upload.delete", c.spanAttrs(rec)...)
	log := c.log.WithContext(ctx)

	name := c.persistedName(ctx, rec, log)
	if name == "" {
		log.Debug("no stored file to delete")
		tracing.End(span, nil)
		return true
	}

	dest := c.policy.Destination(name)
	span.SetAttributes(attribute.String("upload.stored_as", dest))
	if err := c.store.Delete(ctx, dest); err != nil {
		c.count(MetricDeleteFailed, 1)
		delErr := errx.New(
			"failed to delete stored file",
			errx.WithCode(CodeStorageDelete),
			errx.WithDetails(errx.D{"path": dest, "cause": err.Error()}),
		)
		log.Warnx(delErr)
		tracing.End(span, delErr)
		return true
	}

	for label := range c.policy.cfg.Variants {
		variant := c.policy.VariantDestination(label, name)
		if err := c.store.Delete(ctx, variant); err != nil {
			log.Warnx(errx.Wrap(err, errx.WithCode(CodeStorageDelete), errx.WithDetails(errx.D{"path": variant})))
		}
	}

	c.count(MetricDeleteOK, 1)
	log.With("path", dest).Info("stored file deleted")
	tracing.End(span, nil)
	return true
}

func (c *Coordinator) persistedName(ctx context.Context, rec *Record, log logger.Logger) string {
	fields := c.policy.cfg.Fields

	if c.reader != nil && rec.ID != "" {
		data, err := c.reader.ReadRecord(ctx, c.Alias(), rec.ID)
		if err == nil {
			if ref, ok := refFromData(fields, data); ok {
				return path.Base(ref.Name)
			}
			return ""
		}
		log.Warnx(errx.Wrap(err, errx.WithDetails(errx.D{"alias": c.Alias(), "id": rec.ID})))
	}

	if ref, ok := refFromData(fields, rec.Data); ok {
		return path.Base(ref.Name)
	}
	return ""
}

// FileRef reads the stored file metadata back from a record payload.
func (c *Coordinator) FileRef(rec *Record) (FileRef, bool) {
	return refFromData(c.policy.cfg.Fields, rec.Data)
}

func (c *Coordinator) scope(ctx context.Context, rec *Record) context.Context {
	data := map[meta.ContextKey]string{
		meta.EntityAlias: c.Alias(),
		meta.EntityID:    rec.ID,
	}
	if u := asRaw(rec.Data[c.policy.cfg.SourceField]); u != nil {
		data[meta.UploadName] = u.Name
	}
	return meta.InjectMetaToContext(ctx, data)
}

func (c *Coordinator) spanAttrs(rec *Record) []attribute.KeyValue {
	return []attribute.KeyValue{
		attribute.String("upload.alias", c.Alias()),
		attribute.String("upload.record_id", rec.ID),
	}
}

func (c *Coordinator) count(name string, n int64) {
	metrics.GetOrRegisterCounter(name, c.metrics).Inc(n)
}
