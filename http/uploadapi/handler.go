// Package uploadapi exposes upload coordinators over HTTP. Each entity alias
// registered in the upload.Registry gets list, create, replace, fetch and
// delete routes backed by a records.Memory store.
package uploadapi

import (
	"mime/multipart"

	"github.com/code19m/errx"
	"github.com/gofiber/fiber/v2"
	"github.com/samber/lo"

	"github.com/rise-and-shine/fileupload/filestore"
	"github.com/rise-and-shine/fileupload/observability/logger"
	"github.com/rise-and-shine/fileupload/pagination"
	"github.com/rise-and-shine/fileupload/records"
	"github.com/rise-and-shine/fileupload/sorter"
	"github.com/rise-and-shine/fileupload/upload"
)

// Error codes returned by the handler.
const (
	CodeUnknownAlias = "UNKNOWN_ENTITY_ALIAS"
	CodeInvalidForm  = "INVALID_MULTIPART_FORM"
	CodeNoStoredFile = "NO_STORED_FILE"
	CodeInvalidQuery = "INVALID_QUERY"

	codeRecordPersist = "RECORD_PERSIST_FAILED"
)

// Handler serves the upload routes.
type Handler struct {
	registry *upload.Registry
	records  *records.Memory
	store    filestore.FileStore
	log      logger.Logger
}

// NewHandler returns a handler over the coordinators of registry. store must
// be the store the coordinators write to; it is read by the content route.
func NewHandler(registry *upload.Registry, recs *records.Memory, store filestore.FileStore, log logger.Logger) *Handler {
	return &Handler{
		registry: registry,
		records:  recs,
		store:    store,
		log:      log.Named("uploadapi"),
	}
}

// Register mounts the routes on r.
func (h *Handler) Register(r fiber.Router) {
	g := r.Group("/uploads")
	g.Get("/", h.aliases)
	g.Get("/:alias", h.list)
	g.Post("/:alias", h.create)
	g.Get("/:alias/:id", h.get)
	g.Get("/:alias/:id/content", h.content)
	g.Put("/:alias/:id", h.replace)
	g.Delete("/:alias/:id", h.delete)
}

func (h *Handler) aliases(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"aliases": h.registry.Aliases()})
}

// listQuery is the query of the list route, e.g. ?page_number=2&sort=size:desc.
type listQuery struct {
	pagination.Request
	Sort string `query:"sort"`
}

func (h *Handler) list(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	var q listQuery
	if err = c.QueryParser(&q); err != nil {
		return errx.Wrap(err, errx.WithCode(CodeInvalidQuery), errx.WithType(errx.T_Validation))
	}
	q.Normalize()

	fields := coord.Policy().Config().Fields
	entries := h.records.List(coord.Alias())
	sorter.Sort(entries, sorter.MakeFromStr(q.Sort, fields.Name, fields.Type, fields.Size),
		func(e records.Entry, name string) any { return e.Data[name] },
	)

	return c.JSON(pagination.Paginate(entries, q.Request))
}

func (h *Handler) create(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	rec, err := recordFromForm(c, coord, "", nil)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if err = coord.BeforeValidate(ctx, rec).Err(); err != nil {
		return err
	}
	if err = coord.BeforeSave(ctx, rec); err != nil {
		return err
	}

	rec.ID = h.records.Insert(coord.Alias(), rec.Data)

	return c.Status(fiber.StatusCreated).JSON(recordResponse(rec))
}

func (h *Handler) replace(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	current, err := h.records.Get(coord.Alias(), id)
	if err != nil {
		return err
	}
	previous, hadFile := coord.FileRef(upload.NewRecord(id, current))

	rec, err := recordFromForm(c, coord, id, current)
	if err != nil {
		return err
	}

	ctx := c.UserContext()
	if err = coord.BeforeValidate(ctx, rec).Err(); err != nil {
		return err
	}
	if err = coord.BeforeSave(ctx, rec); err != nil {
		return err
	}
	if err = h.records.Replace(coord.Alias(), id, rec.Data); err != nil {
		return errx.Wrap(err, errx.WithCode(codeRecordPersist))
	}

	// the old file is orphaned once the record points at a new one
	if next, ok := coord.FileRef(rec); hadFile && ok && next.Name != previous.Name {
		coord.BeforeDelete(ctx, upload.NewRecord("", map[string]any{
			coord.Policy().Config().Fields.Name: previous.Name,
		}))
		h.log.WithContext(ctx).With("previous", previous.Name, "current", next.Name).Debug("stored file replaced")
	}

	return c.JSON(recordResponse(rec))
}

func (h *Handler) get(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	data, err := h.records.Get(coord.Alias(), id)
	if err != nil {
		return err
	}
	return c.JSON(recordResponse(upload.NewRecord(id, data)))
}

func (h *Handler) content(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	data, err := h.records.Get(coord.Alias(), id)
	if err != nil {
		return err
	}

	ref, ok := coord.FileRef(upload.NewRecord(id, data))
	if !ok {
		return errx.New(
			"record has no stored file",
			errx.WithCode(CodeNoStoredFile),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"alias": coord.Alias(), "id": id}),
		)
	}

	file, err := h.store.Get(c.UserContext(), coord.Policy().Destination(ref.Name))
	if err != nil {
		return err
	}

	contentType := file.Info.ContentType
	if contentType == "" {
		contentType = filestore.ContentTypeOctetStream
	}
	c.Attachment(ref.Name)
	c.Set(fiber.HeaderContentType, contentType)
	return c.SendStream(file.Content, int(file.Info.Size))
}

func (h *Handler) delete(c *fiber.Ctx) error {
	coord, err := h.coordinator(c)
	if err != nil {
		return err
	}

	id := c.Params("id")
	data, err := h.records.Get(coord.Alias(), id)
	if err != nil {
		return err
	}

	if coord.BeforeDelete(c.UserContext(), upload.NewRecord(id, data)) {
		if err = h.records.Delete(coord.Alias(), id); err != nil {
			return err
		}
	}
	return c.SendStatus(fiber.StatusNoContent)
}

func (h *Handler) coordinator(c *fiber.Ctx) (*upload.Coordinator, error) {
	alias := c.Params("alias")
	coord, ok := h.registry.Lookup(alias)
	if !ok {
		return nil, errx.New(
			"unknown entity alias",
			errx.WithCode(CodeUnknownAlias),
			errx.WithType(errx.T_NotFound),
			errx.WithDetails(errx.D{"alias": alias, "known": h.registry.Aliases()}),
		)
	}
	return coord, nil
}

// recordFromForm overlays the multipart form onto base. Plain values become
// string fields; only the file part of the source field is taken, as the raw
// upload. Other file parts are ignored. The stored file fields are owned by
// the coordinator and never taken from the form.
func recordFromForm(c *fiber.Ctx, coord *upload.Coordinator, id string, base map[string]any) (*upload.Record, error) {
	form, err := c.MultipartForm()
	if err != nil {
		return nil, errx.Wrap(err,
			errx.WithCode(CodeInvalidForm),
			errx.WithType(errx.T_Validation),
		)
	}

	fields := coord.Policy().Config().Fields
	reserved := []string{fields.Name, fields.Type, fields.Size}

	rec := upload.NewRecord(id, base)
	for k, vs := range form.Value {
		if len(vs) > 0 && !lo.Contains(reserved, k) {
			rec.Data[k] = vs[0]
		}
	}
	source := coord.Policy().Config().SourceField
	if files, ok := form.File[source]; ok {
		rec.Data[source] = firstFile(files)
	}
	return rec, nil
}

func firstFile(files []*multipart.FileHeader) *upload.RawUpload {
	if len(files) == 0 {
		return upload.FromMultipart(nil)
	}
	return upload.FromMultipart(files[0])
}

func recordResponse(rec *upload.Record) fiber.Map {
	return fiber.Map{"id": rec.ID, "data": rec.Data}
}
