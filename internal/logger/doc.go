// Package logger provides structured logging functionality for the ytsig project.
//
// Features:
//   - Multiple log levels (TRACE, DEBUG, INFO, WARN, ERROR)
//   - Component-based filtering
//   - Multiple output formats (text, JSON, color)
//   - Thread-safe operations
//   - Configuration from YTSIG_LOG_* environment variables
//
// Usage:
//
//	log := logger.WithComponent(logger.ComponentCipher)
//	log.Debug("decoded tokens", map[string]any{
//		"count": 4,
//	})
//
//	logger.SetGlobalLogger(logger.New(&logger.Config{
//		Level:      logger.DEBUG,
//		Format:     logger.FormatJSON,
//		Output:     os.Stderr,
//		Components: map[logger.Component]bool{logger.ComponentCipher: true},
//	}))
//
// Components:
//   - ComponentApp: command line front end
//   - ComponentCipher: routine extraction, evaluation and token decoding
//   - ComponentFormats: format resolution
//   - ComponentPlayer: player bundle and watch page retrieval
//
// Only ComponentApp is enabled by default, so the resolution packages do not
// write anything unless a caller opts in.
package logger
