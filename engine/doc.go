// Package engine orchestrates one execution request end to end.
//
// A request moves through a fixed state machine:
//
//	Received -> Filtering -> (Rejected | Preparing) -> Compiling? ->
//	(CompileFailed | Running) -> (RunFailed | TimedOut | Succeeded)
//
// Every terminal state, plus InvalidRequest and InternalError, maps to exactly
// one Result constructor. A workspace is created only after the risk filter
// allows the code and is always released before the Result is returned.
//
// Usage:
//
//	eng := engine.New(logger, cfg, filter, registry, workspaces, runner, collector)
//	result := eng.Execute(ctx, engine.Request{Code: "print('hi')", Language: "python"})
//	fmt.Println(result.Output)
package engine
