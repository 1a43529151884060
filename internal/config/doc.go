// Package config handles configuration loading, parsing, and validation
// from defaults, an optional config file and environment variables. The
// loaded Config is built once at startup and passed to the components that
// need it; nothing reads settings at request time.
package config
