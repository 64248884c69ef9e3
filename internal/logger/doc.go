// Package logger wraps zap for the generator:
//   - a global sugared logger writing console-encoded lines to stderr,
//   - context helpers (ToContext/FromContext/WithName/WithKV),
//   - level parsing for the --log-level flag and the config file.
//
// Pipeline stages take a context and log through it, so every line emitted
// for a build target carries that target's fields.
package logger
