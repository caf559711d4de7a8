// Package logger provides a small wrapper around zap offering a global
// sugared logger with a console encoder, context helpers
// (ToContext/FromContext/WithName/WithKV/WithFields), level parsing and
// configuration, and leveled convenience functions (Infof, ErrorKV, etc.).
//
// Services accept a context and log through it, so every binary in this
// project gets scoped, structured logging with no per-package setup.
package logger
