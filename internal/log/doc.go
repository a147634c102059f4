// Package log builds the application's slog loggers.
//
// Loggers created here wrap their handler in a SecureHandler that rewrites
// attributes before they are written:
//   - request headers that carry credentials (Cookie, Authorization, ...)
//     and values that look like tokens are replaced with MaskValue
//   - credentials in URL query strings are masked, so a source URL carrying
//     an access token can be logged safely
//   - reviewer names are masked and review bodies are truncated, so debug
//     logs of rejected records do not copy harvested personal data
//
// Even in verbose mode the rewriting applies.
//
// # Usage
//
//	logger := log.NewSecureLogger(os.Stderr, verbose)
//	logger.Debug("record rejected",
//	    "username", "Jane Doe", // written as ***REDACTED***
//	    "review", longText,     // truncated to MaxBodyRunes
//	)
package log
