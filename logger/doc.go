// Package logger provides structured logging capabilities.
//
// Loggers are built with zap from the server mode and level. Every
// execution gets a child logger carrying its request id and language.
//
// Usage:
//
//	base, err := logger.New("development", "debug")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	reqLog := logger.ForRequest(base, requestID, "python")
//	reqLog.Info("execution finished", zap.String(logger.FieldStatus, "success"))
package logger
