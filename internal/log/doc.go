// Package log provides slog loggers whose output stays readable when log
// attributes carry probe payloads, built on top of the standard slog package.
//
// Harness inputs are long runs of filler bytes and may contain newlines or
// other control bytes, and buffer contents read back after an overflow
// are arbitrary. The PayloadHandler rewrites such values before they reach
// the underlying handler:
//   - Attributes whose key names a payload (input, payload, buffer, data,
//     argv, cmdline) have control and non-ASCII bytes escaped
//   - Any string attribute longer than MaxValueLen is cut and annotated
//     with the number of dropped bytes
//
// # Usage
//
//	logger := log.NewLogger(os.Stderr, true) // verbose=true
//
//	logger.Debug("executing probe",
//	    "probe", "off_by_one_demo",
//	    "input", "12345678\n", // logged as "12345678\\n"
//	)
//
//	slog.SetDefault(logger)
package log
