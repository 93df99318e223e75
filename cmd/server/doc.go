// Package main is the entry point for the coderun execution server.
//
// The coderun server accepts single-file programs in C, C++, Java, Python and
// JavaScript, screens them with a pattern-based risk filter, compiles them if
// needed and runs them under per-stage wall-clock limits in a throwaway
// workspace. Results are served over a REST API or as a Model Context Protocol
// tool on stdio or streamable HTTP, selected by server.transport.
//
// The application uses Uber's fx framework for dependency injection and lifecycle
// management, with zap for structured logging and viper for configuration.
package main
