// Package logging wraps log/slog with Luminis's JSON handler setup and an
// optional fan-out to a log file alongside stdout.
//
// Example usage:
//
//	logger := logging.NewLogger()
//	logger.Info("luminis started")
//
//	logger, closer, err := logging.NewFileLogger("/var/log/luminis.log")
package logging
