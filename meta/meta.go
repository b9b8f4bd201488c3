// Package meta carries request and entity metadata through context so that
// loggers can enrich entries without threading extra parameters.
package meta

import "context"

// ContextKey is a type for keys used in context values for metadata.
type ContextKey string

const (
	// TraceID represents a unique identifier for tracing requests across services.
	TraceID ContextKey = "trace_id"

	// RequestUserID identifies the user making the request.
	RequestUserID ContextKey = "request_user_id"

	// IPAddress is the client IP address of the request.
	IPAddress ContextKey = "ip_address"

	// UserAgent is the client user agent of the request.
	UserAgent ContextKey = "user_agent"

	// EntityAlias names the entity type whose upload is being processed.
	EntityAlias ContextKey = "entity_alias"

	// EntityID identifies the record instance whose upload is being processed.
	EntityID ContextKey = "entity_id"

	// UploadName is the original client-side filename of the upload in flight.
	UploadName ContextKey = "upload_name"

	// ServiceName identifies the name of current running service.
	ServiceName ContextKey = "service_name"

	// ServiceVersion indicates the version of the service.
	ServiceVersion ContextKey = "service_version"
)

// InjectMetaToContext adds metadata from the provided map to the context.
// It only adds values that are not empty strings and returns a new context
// with the added values.
func InjectMetaToContext(ctx context.Context, data map[ContextKey]string) context.Context {
	for k, v := range data {
		if v != "" {
			ctx = context.WithValue(ctx, k, v) //nolint:fatcontext // allow due to finite number of keys
		}
	}
	return ctx
}

// ExtractMetaFromContext extracts all metadata from the provided context.
// Only non-empty string values are included in the returned map.
func ExtractMetaFromContext(ctx context.Context) map[ContextKey]string {
	data := make(map[ContextKey]string)
	for _, k := range []ContextKey{
		TraceID,
		RequestUserID,
		IPAddress,
		UserAgent,
		EntityAlias,
		EntityID,
		UploadName,
		ServiceName,
		ServiceVersion,
	} {
		if v, ok := ctx.Value(k).(string); ok && v != "" {
			data[k] = v
		}
	}
	return data
}
