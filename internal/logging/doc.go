// Package logging provides structured logging for Shimmer.
//
// This package wraps Go's log/slog to provide JSON-formatted logs with
// persistent context attributes. The filesystem, retry, temp-directory and
// single-instance packages all take an optional [*Logger]; a nil logger is
// replaced by [NopLogger] through [OrNop].
//
// # Thread Safety
//
// All types in this package are safe for concurrent use. Child loggers
// created via With* methods share the underlying writer safely.
//
// # Basic Usage
//
//	logger, err := logging.NewLogger("/var/log/shimmer", "INFO")
//	if err != nil {
//	    return err
//	}
//	defer logger.Close()
//
//	logger.Info("directory removed", "path", dir)
//
// # Context Propagation
//
//	deleteLogger := logger.WithComponent("fsutil").WithOperation("delete")
//	deleteLogger.WithPath(dir).Warn("retrying locked file", "attempt", 2)
//
// Output:
//
//	{"time":"...","level":"WARN","msg":"retrying locked file","component":"fsutil","operation":"delete","path":"...","attempt":2}
//
// # Configuration
//
// The CLI configures logging from the config file:
//
//	logging:
//	  level: info
//	  dir: ""   # empty writes to stderr
package logging
