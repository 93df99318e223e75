// Package language provides the per-language adapters used by the engine.
//
// An Adapter knows how to materialize source code into a workspace file, whether
// a compile stage is needed, and the argv for the compile and run stages.
// Three variants exist: native (C, C++), JVM (Java) and interpreted (Python,
// JavaScript). Commands are built from configured templates that are split
// into arguments with shlex before placeholders are substituted, so no value
// can ever introduce extra arguments or shell syntax.
//
// Usage:
//
//	registry, err := language.NewRegistry(cfg)
//	adapter, err := registry.Get("java")
//	path, err := adapter.Materialize(manager, ws, code)
//	args := adapter.CompileCommand(path)
package language
