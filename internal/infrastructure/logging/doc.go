// Package logging provides structured logging using uber/zap.
//
// Two modes are supported:
//   - Production: JSON output for machine parsing
//   - Development: colored console output, debug level by default
//
// Logs go to stderr unless configured otherwise, keeping stdout free for
// the interactive shell. The level is atomic: the shell's log_level command
// changes it for every component logger at once.
//
// Example Usage:
//
//	logger, err := logging.New(logging.Config{Development: true})
//	if err != nil {
//	    return err
//	}
//	defer logger.Sync()
//	logger.Named("driver").Info("driver started", zap.Duration("interval", interval))
//	_ = logger.SetLevel("warn")
package logging
