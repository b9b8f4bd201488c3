package upload

import (
	"context"
	"fmt"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"unicode"

	"github.com/code19m/errx"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/samber/lo"

	"github.com/rise-and-shine/fileupload/filestore"
)

const (
	// maxNameAttempts bounds the suffix search in ResolveFilename.
	maxNameAttempts = 1000

	variantsDir = ".variants"
)

// Policy decides whether an upload is acceptable for one entity type and
// where it is stored.
type Policy struct {
	cfg   Config
	store filestore.FileStore
}

// NewPolicy returns the policy of cfg. The store is consulted only by
// ResolveFilename to detect name collisions.
func NewPolicy(cfg Config, store filestore.FileStore) *Policy {
	return &Policy{cfg: cfg, store: store}
}

// Config returns the configuration the policy enforces.
func (p *Policy) Config() Config {
	return p.cfg
}

// Check runs the transport, type and size checks in that order and returns
// the first failure.
func (p *Policy) Check(ctx context.Context, u *RawUpload) error {
	if err := p.CheckTransportError(u); err != nil {
		return err
	}
	if err := p.CheckType(ctx, u); err != nil {
		return err
	}
	return p.CheckSize(u)
}

// CheckTransportError fails unless the transport delivered the whole file.
func (p *Policy) CheckTransportError(u *RawUpload) error {
	if u.Err == TransportOK {
		return nil
	}
	return p.reject(CodeTransportFailed, u.Err.Message(), errx.D{"transport_error": u.Err.String()})
}

// CheckType accepts any upload when no types are configured. Otherwise the
// lower-cased extension must be configured and list the declared MIME type.
// With VerifyContent the sniffed type must be listed as well.
func (p *Policy) CheckType(ctx context.Context, u *RawUpload) error {
	if len(p.cfg.AllowedTypes) == 0 {
		return nil
	}

	ext := extension(u.Name)
	allowed, ok := p.cfg.AllowedTypes[ext]
	if !ok {
		return p.reject(
			filestore.CodeUnsupportedContentType,
			fmt.Sprintf("Invalid file type: %s files are not allowed", displayExt(ext)),
			errx.D{"extension": ext, "allowed": p.allowedExtensions()},
		)
	}

	declared := strings.ToLower(strings.TrimSpace(u.Type))
	if !lo.Contains(allowed, declared) {
		return p.reject(
			filestore.CodeUnsupportedContentType,
			fmt.Sprintf("Invalid file type: %s does not match a %s file", declared, displayExt(ext)),
			errx.D{"extension": ext, "declared_type": declared, "allowed": allowed},
		)
	}

	if p.cfg.VerifyContent {
		return p.verifyContent(ctx, u, ext, allowed)
	}
	return nil
}

func (p *Policy) verifyContent(ctx context.Context, u *RawUpload, ext string, allowed []string) error {
	if err := ctx.Err(); err != nil {
		return errx.Wrap(err)
	}

	rc, err := u.Open()
	if err != nil {
		return p.reject(CodeContentUnavailable, "The uploaded file could not be read", errx.D{"cause": err.Error()})
	}
	defer rc.Close()

	detected, err := mimetype.DetectReader(rc)
	if err != nil {
		return p.reject(CodeContentUnavailable, "The uploaded file could not be read", errx.D{"cause": err.Error()})
	}

	// mimetype reports the most specific type; its ancestors count too, so an
	// allowed "text/plain" accepts detected "text/csv".
	for mt := detected; mt != nil; mt = mt.Parent() {
		if lo.ContainsBy(allowed, mt.Is) {
			return nil
		}
	}
	return p.reject(
		filestore.CodeUnsupportedContentType,
		fmt.Sprintf("Invalid file type: content is %s, not a %s file", detected.String(), displayExt(ext)),
		errx.D{"extension": ext, "detected_type": detected.String(), "allowed": allowed},
	)
}

// CheckSize enforces the inclusive bounds MinSize <= size <= MaxSize.
// A zero bound is not enforced.
func (p *Policy) CheckSize(u *RawUpload) error {
	if p.cfg.MaxSize > 0 && u.Size > p.cfg.MaxSize {
		return p.reject(
			filestore.CodeFileTooLarge,
			fmt.Sprintf("File is too large: %s exceeds the %s limit", sizeText(u.Size), sizeText(p.cfg.MaxSize)),
			errx.D{"size": u.Size, "max_size": p.cfg.MaxSize},
		)
	}
	if p.cfg.MinSize > 0 && u.Size < p.cfg.MinSize {
		return p.reject(
			filestore.CodeFileTooSmall,
			fmt.Sprintf("File is too small: %s is below the %s minimum", sizeText(u.Size), sizeText(p.cfg.MinSize)),
			errx.D{"size": u.Size, "min_size": p.cfg.MinSize},
		)
	}
	return nil
}

// ResolveFilename returns the name the upload is stored under inside Dir.
//
// The client name is reduced to a safe base name and passed through the
// configured transform. Without Unique the result may name an existing file,
// which the write then replaces. With Unique, "-1", "-2", ... is appended to
// the stem until the store reports the destination free. The store's
// exclusive write is what finally guarantees no overwrite.
func (p *Policy) ResolveFilename(ctx context.Context, u *RawUpload) (string, error) {
	name := sanitizeFilename(u.Name)
	if p.cfg.Transform != nil {
		name = sanitizeFilename(p.cfg.Transform(name))
	}
	if !p.cfg.Unique {
		return name, nil
	}

	ext := filepath.Ext(name)
	stem := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		exists, err := p.store.Exists(ctx, p.Destination(candidate))
		if err != nil {
			return "", errx.Wrap(err)
		}
		if !exists {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d%s", stem, i, ext)
	}

	return "", errx.New(
		"no free file name found",
		errx.WithCode(CodeNameExhausted),
		errx.WithType(errx.T_Conflict),
		errx.WithDetails(errx.D{"name": name, "dir": p.cfg.Dir, "attempts": maxNameAttempts}),
	)
}

// Destination returns the store path of a stored filename.
func (p *Policy) Destination(name string) string {
	return path.Join(p.cfg.Dir, name)
}

// VariantDestination returns the store path of the variant label of a stored
// filename. Sanitised names never start with a dot, so variants cannot
// collide with originals.
func (p *Policy) VariantDestination(label, name string) string {
	return path.Join(p.cfg.Dir, variantsDir, label, name)
}

// reject builds a validation error whose single field error is keyed by the
// source field, ready to be merged into an Outcome.
func (p *Policy) reject(code, message string, details errx.D) error {
	details["alias"] = p.cfg.Alias
	return errx.New(
		message,
		errx.WithCode(code),
		errx.WithType(errx.T_Validation),
		errx.WithFields(errx.M{p.cfg.SourceField: message}),
		errx.WithDetails(details),
	)
}

func (p *Policy) allowedExtensions() []string {
	exts := lo.Keys(p.cfg.AllowedTypes)
	slices.Sort(exts)
	return exts
}

func extension(name string) string {
	return strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
}

func displayExt(ext string) string {
	if ext == "" {
		return "extensionless"
	}
	return "." + ext
}

func sizeText(n int64) string {
	if n < 0 {
		n = 0
	}
	return humanize.IBytes(uint64(n))
}

// sanitizeFilename drops any directory part of name and replaces characters
// outside letters, digits, '.', '-' and '_' with '_'. Leading dots are
// removed so the result is never hidden or a parent reference.
func sanitizeFilename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))

	cleaned := strings.Map(func(r rune) rune {
		switch {
		case unicode.IsLetter(r), unicode.IsDigit(r), r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)

	cleaned = strings.TrimLeft(cleaned, ".")
	if cleaned == "" || cleaned == "_" {
		return "file"
	}
	return cleaned
}
