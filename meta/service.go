package meta

import (
	"context"
	"sync"
)

var (
	serviceName    string    //nolint:gochecknoglobals // for minimizing dependency injection across codebase
	serviceVersion string    //nolint:gochecknoglobals // for minimizing dependency injection across codebase
	once           sync.Once //nolint:gochecknoglobals // ensures SetServiceInfo is called once
)

// SetServiceInfo sets the global service name and version.
// Subsequent calls are ignored.
func SetServiceInfo(name, version string) {
	once.Do(func() {
		serviceName = name
		serviceVersion = version
	})
}

// ServiceContext returns ctx carrying the service name and version set by SetServiceInfo.
func ServiceContext(ctx context.Context) context.Context {
	return InjectMetaToContext(ctx, map[ContextKey]string{
		ServiceName:    serviceName,
		ServiceVersion: serviceVersion,
	})
}
