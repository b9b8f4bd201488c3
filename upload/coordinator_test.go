package upload_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"mime/multipart"
	"sync"
	"testing"

	"github.com/code19m/errx"
	"github.com/rcrowley/go-metrics"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/rise-and-shine/fileupload/filestore"
	"github.com/rise-and-shine/fileupload/filestore/localfs"
	"github.com/rise-and-shine/fileupload/observability/logger"
	"github.com/rise-and-shine/fileupload/upload"
)

type harness struct {
	coord   *upload.Coordinator
	fs      afero.Fs
	metrics metrics.Registry
}

func newHarness(t *testing.T, opts ...upload.Option) *harness {
	t.Helper()
	fs := afero.NewMemMapFs()
	return newHarnessWithStore(t, localfs.NewWithFs(fs), fs, opts...)
}

func newHarnessWithStore(t *testing.T, store filestore.FileStore, fs afero.Fs, opts ...upload.Option) *harness {
	t.Helper()
	cfg, err := upload.Configure("Document", opts...)
	require.NoError(t, err)

	reg := metrics.NewRegistry()
	coord, err := upload.NewCoordinator(cfg, store,
		upload.WithLogger(logger.Nop()),
		upload.WithMetrics(reg),
	)
	require.NoError(t, err)
	return &harness{coord: coord, fs: fs, metrics: reg}
}

func (h *harness) count(name string) int64 {
	c, ok := h.metrics.Get("upload.Document." + name).(metrics.Counter)
	if !ok {
		return 0
	}
	return c.Count()
}

func pdfRecord(name string) *upload.Record {
	return upload.NewRecord("", map[string]any{
		"title": "quarterly",
		"file":  upload.FromBytes(name, "application/pdf", pdfBytes),
	})
}

func TestNewCoordinatorRequiresStore(t *testing.T) {
	cfg, err := upload.Configure("Document")
	require.NoError(t, err)

	_, err = upload.NewCoordinator(cfg, nil)
	require.Error(t, err)
	assert.True(t, errx.IsCodeIn(err, upload.CodeInvalidConfig))
}

func TestNewCoordinatorRejectsUnvalidatedConfig(t *testing.T) {
	_, err := upload.NewCoordinator(upload.Config{Alias: "Document"}, localfs.NewWithFs(afero.NewMemMapFs()))
	require.Error(t, err)
	assert.True(t, errx.IsCodeIn(err, upload.CodeInvalidConfig))
}

func TestUploadAndSave(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(pdfOnly()), upload.WithRequired(true))
	ctx := t.Context()
	rec := pdfRecord("a.pdf")

	outcome := h.coord.BeforeValidate(ctx, rec)
	require.True(t, outcome.OK(), outcome.Fields())
	require.NoError(t, outcome.Err())

	require.NoError(t, h.coord.BeforeSave(ctx, rec))

	assert.Equal(t, map[string]any{
		"title": "quarterly",
		"name":  "a.pdf",
		"type":  "application/pdf",
		"size":  int64(len(pdfBytes)),
	}, rec.Data)

	data, err := afero.ReadFile(h.fs, "files/a.pdf")
	require.NoError(t, err)
	assert.Equal(t, pdfBytes, data)

	assert.Equal(t, int64(1), h.count(upload.MetricValidateOK))
	assert.Equal(t, int64(1), h.count(upload.MetricSaveOK))
	assert.Equal(t, int64(len(pdfBytes)), h.count(upload.MetricSaveBytes))
}

func TestBeforeValidateRejectsType(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(pdfOnly()))
	rec := upload.NewRecord("", map[string]any{
		"file": upload.FromBytes("a.exe", "application/x-msdownload", []byte("MZ")),
	})

	outcome := h.coord.BeforeValidate(t.Context(), rec)
	require.False(t, outcome.OK())
	assert.Contains(t, outcome.Fields()["file"], ".exe")

	err := outcome.Err()
	assert.True(t, errx.IsCodeIn(err, upload.CodeValidationFailed))
	assert.Equal(t, errx.T_Validation, errx.AsErrorX(err).Type())
	assert.Equal(t, int64(1), h.count(upload.MetricValidateRejected))
}

func TestBeforeValidatePresence(t *testing.T) {
	tests := []struct {
		name     string
		required bool
		data     map[string]any
		wantMsg  string
	}{
		{
			name:     "required and field absent",
			required: true,
			data:     map[string]any{"title": "x"},
			wantMsg:  upload.MsgNoFile,
		},
		{
			name:     "required and no file selected",
			required: true,
			data:     map[string]any{"file": &upload.RawUpload{Err: upload.TransportNoFile}},
			wantMsg:  upload.MsgSelectFile,
		},
		{
			name:     "required and nil multipart header",
			required: true,
			data:     map[string]any{"file": (*multipart.FileHeader)(nil)},
			wantMsg:  upload.MsgSelectFile,
		},
		{
			name:     "required and empty filename",
			required: true,
			data:     map[string]any{"file": upload.RawUpload{}},
			wantMsg:  upload.MsgSelectFile,
		},
		{
			name: "optional and field absent",
			data: map[string]any{"title": "x"},
		},
		{
			name: "optional and no file selected",
			data: map[string]any{"file": &upload.RawUpload{Err: upload.TransportNoFile}},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t, upload.WithRequired(tc.required))
			outcome := h.coord.BeforeValidate(t.Context(), upload.NewRecord("", tc.data))

			if tc.wantMsg == "" {
				assert.True(t, outcome.OK())
				return
			}
			assert.Equal(t, map[string]string{"file": tc.wantMsg}, outcome.Fields())
		})
	}
}

func TestBeforeValidateTransportFailure(t *testing.T) {
	h := newHarness(t)
	rec := upload.NewRecord("", map[string]any{
		"file": &upload.RawUpload{Name: "a.jpg", Type: "image/jpeg", Err: upload.TransportPartialUpload},
	})

	outcome := h.coord.BeforeValidate(t.Context(), rec)
	assert.Equal(t, upload.TransportPartialUpload.Message(), outcome.Fields()["file"])
}

func TestEmptyAllowedTypesAcceptsAnything(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(nil))
	rec := upload.NewRecord("", map[string]any{
		"file": upload.FromBytes("tool.exe", "application/x-msdownload", []byte("MZ")),
	})

	require.True(t, h.coord.BeforeValidate(t.Context(), rec).OK())
	require.NoError(t, h.coord.BeforeSave(t.Context(), rec))
	assert.Equal(t, "tool.exe", rec.Data["name"])
}

func TestZeroByteUpload(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(nil))
	rec := upload.NewRecord("", map[string]any{
		"file": upload.FromBytes("empty.txt", "text/plain", nil),
	})

	require.True(t, h.coord.BeforeValidate(t.Context(), rec).OK())
	require.NoError(t, h.coord.BeforeSave(t.Context(), rec))

	assert.Equal(t, int64(0), rec.Data["size"])
	exists, err := afero.Exists(h.fs, "files/empty.txt")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestBeforeSaveWithoutSourceFieldIsNoop(t *testing.T) {
	h := newHarness(t)
	rec := upload.NewRecord("7", map[string]any{"title": "x", "name": "old.jpg"})

	require.NoError(t, h.coord.BeforeSave(t.Context(), rec))
	assert.Equal(t, map[string]any{"title": "x", "name": "old.jpg"}, rec.Data)
}

func TestBeforeSaveEmptyUpload(t *testing.T) {
	t.Run("drops source field", func(t *testing.T) {
		h := newHarness(t)
		rec := upload.NewRecord("7", map[string]any{
			"title": "x",
			"file":  &upload.RawUpload{Err: upload.TransportNoFile},
		})

		require.NoError(t, h.coord.BeforeSave(t.Context(), rec))
		assert.Equal(t, map[string]any{"title": "x"}, rec.Data)
	})

	t.Run("discard on empty clears payload", func(t *testing.T) {
		h := newHarness(t, upload.WithDiscardOnEmpty(true))
		rec := upload.NewRecord("7", map[string]any{
			"title": "x",
			"file":  &upload.RawUpload{Err: upload.TransportNoFile},
		})

		require.NoError(t, h.coord.BeforeSave(t.Context(), rec))
		assert.Empty(t, rec.Data)
	})
}

func TestBeforeSaveUniqueNames(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(pdfOnly()))
	ctx := t.Context()

	first := pdfRecord("a.pdf")
	second := pdfRecord("a.pdf")
	require.NoError(t, h.coord.BeforeSave(ctx, first))
	require.NoError(t, h.coord.BeforeSave(ctx, second))

	assert.Equal(t, "a.pdf", first.Data["name"])
	assert.Equal(t, "a-1.pdf", second.Data["name"])

	for _, p := range []string{"files/a.pdf", "files/a-1.pdf"} {
		exists, err := afero.Exists(h.fs, p)
		require.NoError(t, err)
		assert.True(t, exists, p)
	}
}

func TestBeforeSaveOverwrite(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(map[string][]string{"txt": {"text/plain"}}), upload.WithUnique(false))
	ctx := t.Context()

	first := upload.NewRecord("", map[string]any{"file": upload.FromBytes("a.txt", "text/plain", []byte("first"))})
	second := upload.NewRecord("", map[string]any{"file": upload.FromBytes("a.txt", "text/plain", []byte("second"))})
	require.NoError(t, h.coord.BeforeSave(ctx, first))
	require.NoError(t, h.coord.BeforeSave(ctx, second))

	assert.Equal(t, "a.txt", second.Data["name"])
	data, err := afero.ReadFile(h.fs, "files/a.txt")
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))
}

func TestBeforeSaveConcurrentSameName(t *testing.T) {
	store, err := localfs.New(localfs.Config{Root: t.TempDir()})
	require.NoError(t, err)
	h := newHarnessWithStore(t, store, nil, upload.WithAllowedTypes(pdfOnly()))

	const writers = 8
	records := make([]*upload.Record, writers)
	errs := make([]error, writers)

	var wg sync.WaitGroup
	for i := range writers {
		records[i] = pdfRecord("a.pdf")
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = h.coord.BeforeSave(t.Context(), records[i])
		}()
	}
	wg.Wait()

	for _, err := range errs {
		require.NoError(t, err)
	}
	names := lo.Map(records, func(r *upload.Record, _ int) any { return r.Data["name"] })
	assert.Len(t, lo.Uniq(names), writers, "every upload must get its own file: %v", names)
}

func TestBeforeSaveStorageFailure(t *testing.T) {
	store := &fakeStore{writeErr: errors.New("disk full")}
	h := newHarnessWithStore(t, store, nil, upload.WithAllowedTypes(pdfOnly()))
	rec := pdfRecord("a.pdf")

	err := h.coord.BeforeSave(t.Context(), rec)
	require.Error(t, err)
	assert.True(t, errx.IsCodeIn(err, upload.CodeStorageWrite))
	assert.Equal(t, errx.T_Internal, errx.AsErrorX(err).Type())

	// record left untouched so the host can report and abort
	assert.Contains(t, rec.Data, "file")
	assert.NotContains(t, rec.Data, "name")
	assert.Equal(t, int64(1), h.count(upload.MetricSaveFailed))
}

func TestBeforeSaveRetriesLostRace(t *testing.T) {
	store := &fakeStore{conflicts: 2}
	h := newHarnessWithStore(t, store, nil, upload.WithAllowedTypes(pdfOnly()))
	rec := pdfRecord("a.pdf")

	require.NoError(t, h.coord.BeforeSave(t.Context(), rec))
	assert.Equal(t, 3, store.writes)
	assert.Equal(t, "a.pdf", rec.Data["name"])
}

func TestBeforeSaveGivesUpAfterRepeatedRaces(t *testing.T) {
	store := &fakeStore{conflicts: 1000}
	h := newHarnessWithStore(t, store, nil, upload.WithAllowedTypes(pdfOnly()))

	err := h.coord.BeforeSave(t.Context(), pdfRecord("a.pdf"))
	assert.True(t, errx.IsCodeIn(err, upload.CodeStorageWrite))
}

func TestBeforeSaveFillsMissingType(t *testing.T) {
	tests := []struct {
		name     string
		store    func(fs afero.Fs) filestore.FileStore
		wantType string
	}{
		{
			name:     "type detected by the store",
			store:    func(fs afero.Fs) filestore.FileStore { return localfs.NewWithFs(fs) },
			wantType: "application/pdf",
		},
		{
			name:     "store reports no type",
			store:    func(afero.Fs) filestore.FileStore { return &fakeStore{} },
			wantType: filestore.ContentTypeOctetStream,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fs := afero.NewMemMapFs()
			h := newHarnessWithStore(t, tc.store(fs), fs, upload.WithAllowedTypes(nil))
			ctx := t.Context()
			rec := upload.NewRecord("", map[string]any{"file": upload.FromBytes("a.pdf", "", pdfBytes)})

			require.True(t, h.coord.BeforeValidate(ctx, rec).OK())
			require.NoError(t, h.coord.BeforeSave(ctx, rec))

			assert.Equal(t, "a.pdf", rec.Data["name"])
			assert.Equal(t, tc.wantType, rec.Data["type"])
			assert.Equal(t, int64(len(pdfBytes)), rec.Data["size"])
		})
	}
}

func TestBeforeDelete(t *testing.T) {
	h := newHarness(t, upload.WithAllowedTypes(pdfOnly()))
	ctx := t.Context()

	rec := pdfRecord("a.pdf")
	require.NoError(t, h.coord.BeforeSave(ctx, rec))

	assert.True(t, h.coord.BeforeDelete(ctx, rec))
	exists, err := afero.Exists(h.fs, "files/a.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Equal(t, int64(1), h.count(upload.MetricDeleteOK))

	// file already gone
	assert.True(t, h.coord.BeforeDelete(ctx, rec))

	// nothing stored at all
	assert.True(t, h.coord.BeforeDelete(ctx, upload.NewRecord("9", nil)))
}

func TestBeforeDeleteStorageFailureStillProceeds(t *testing.T) {
	store := &fakeStore{deleteErr: errors.New("permission denied")}
	h := newHarnessWithStore(t, store, nil)
	rec := upload.NewRecord("1", map[string]any{"name": "a.jpg"})

	assert.True(t, h.coord.BeforeDelete(t.Context(), rec))
	assert.Equal(t, int64(1), h.count(upload.MetricDeleteFailed))
}

func TestBeforeDeleteFailureRecordedOnSpan(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder)))
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	store := &fakeStore{deleteErr: errors.New("permission denied")}
	h := newHarnessWithStore(t, store, nil)

	assert.True(t, h.coord.BeforeDelete(t.Context(), upload.NewRecord("1", map[string]any{"name": "a.jpg"})))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "upload.delete", spans[0].Name())
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Contains(t, spans[0].Attributes(), attribute.String("error.code", upload.CodeStorageDelete))
}

func TestBeforeDeleteReadsPersistedName(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, afero.WriteFile(fs, "files/stored.pdf", pdfBytes, 0o644))

	cfg, err := upload.Configure("Document")
	require.NoError(t, err)

	var gotAlias, gotID string
	reader := upload.RecordReaderFunc(func(_ context.Context, alias, id string) (map[string]any, error) {
		gotAlias, gotID = alias, id
		return map[string]any{"name": "../stored.pdf"}, nil
	})
	coord, err := upload.NewCoordinator(cfg, localfs.NewWithFs(fs),
		upload.WithLogger(logger.Nop()),
		upload.WithRecordReader(reader),
	)
	require.NoError(t, err)

	// the in-memory payload is stale; the persisted name wins
	rec := upload.NewRecord("42", map[string]any{"name": "other.pdf"})
	assert.True(t, coord.BeforeDelete(t.Context(), rec))

	assert.Equal(t, "Document", gotAlias)
	assert.Equal(t, "42", gotID)
	exists, err := afero.Exists(fs, "files/stored.pdf")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestImageVariants(t *testing.T) {
	h := newHarness(t, upload.WithVariants(map[string]int{"small": 40}))
	ctx := t.Context()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 200, 100))))
	rec := upload.NewRecord("", map[string]any{
		"file": upload.FromBytes("photo.png", "image/png", buf.Bytes()),
	})

	require.True(t, h.coord.BeforeValidate(ctx, rec).OK())
	require.NoError(t, h.coord.BeforeSave(ctx, rec))

	data, err := afero.ReadFile(h.fs, "files/.variants/small/photo.png")
	require.NoError(t, err)
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 40, cfg.Width)
	assert.Equal(t, 20, cfg.Height)

	assert.True(t, h.coord.BeforeDelete(ctx, rec))
	for _, p := range []string{"files/photo.png", "files/.variants/small/photo.png"} {
		exists, existsErr := afero.Exists(h.fs, p)
		require.NoError(t, existsErr)
		assert.False(t, exists, p)
	}
}

func TestImageVariantFailureKeepsOriginal(t *testing.T) {
	h := newHarness(t, upload.WithVariants(map[string]int{"small": 40}))

	rec := upload.NewRecord("", map[string]any{
		"file": upload.FromBytes("broken.png", "image/png", []byte("not a png")),
	})
	require.NoError(t, h.coord.BeforeSave(t.Context(), rec))

	assert.Equal(t, "broken.png", rec.Data["name"])
	assert.Equal(t, int64(1), h.count(upload.MetricVariantFailed))
}

func TestFileRef(t *testing.T) {
	h := newHarness(t)

	ref, ok := h.coord.FileRef(upload.NewRecord("1", map[string]any{
		"name": "a.pdf",
		"type": "application/pdf",
		"size": "1024",
	}))
	require.True(t, ok)
	assert.Equal(t, upload.FileRef{Name: "a.pdf", Type: "application/pdf", Size: 1024}, ref)

	_, ok = h.coord.FileRef(upload.NewRecord("1", nil))
	assert.False(t, ok)
}

// fakeStore is an in-memory FileStore whose failures are scripted.
type fakeStore struct {
	mu        sync.Mutex
	writes    int
	conflicts int
	writeErr  error
	deleteErr error
}

func (s *fakeStore) Write(_ context.Context, path string, r io.Reader, _ filestore.WriteOptions) (*filestore.FileInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.writes++
	if s.writeErr != nil {
		return nil, s.writeErr
	}
	if s.conflicts > 0 {
		s.conflicts--
		return nil, errx.New(fmt.Sprintf("%s exists", path), errx.WithCode(filestore.CodeFileExists))
	}
	n, err := io.Copy(io.Discard, r)
	if err != nil {
		return nil, err
	}
	return &filestore.FileInfo{Path: path, Size: n}, nil
}

func (s *fakeStore) Get(context.Context, string) (*filestore.File, error) {
	return nil, errx.New("not found", errx.WithCode(filestore.CodeFileNotFound))
}

func (s *fakeStore) Delete(context.Context, string) error {
	return s.deleteErr
}

func (s *fakeStore) Exists(context.Context, string) (bool, error) {
	return false, nil
}
