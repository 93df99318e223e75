// Package riskfilter rejects source code that matches a per-language
// deny-list of patterns associated with sandbox escape.
//
// The filter is a coarse, signature-based screen that runs before any file
// is written or process started. It is trivially bypassable (string
// concatenation, reflection, alternate APIs reaching the same capability)
// and is not a security boundary: isolation must come from the process or
// container boundary the engine runs inside.
//
// JavaScript programs cannot load the fs module, including for
// require('fs').readFileSync(0). Standard input must be read through
// process.stdin or the readline module.
//
// Usage:
//
//	filter, err := riskfilter.New(riskfilter.DefaultRules())
//	verdict := filter.Check("import os", "python")
//	if !verdict.Allowed {
//	    fmt.Println("rejected by", verdict.MatchedPattern)
//	}
package riskfilter
