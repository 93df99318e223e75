package riskfilter

import (
	"fmt"
	"slices"

	"github.com/isdmx/coderun/config"
)

// Patterns shared by every language: shell-out, dynamic evaluation, forking.
var commonPatterns = []string{
	`system\s*\(`,
	`exec\s*\(`,
	`eval\s*\(`,
	`fork\s*\(`,
	`popen\s*\(`,
}

var nativePatterns = []string{
	`#\s*include\s*<unistd\.h>`,
	`#\s*include\s*<sys/(socket|ptrace|mman|wait)\.h>`,
	`#\s*include\s*<(dlfcn|spawn)\.h>`,
	`\bexec[lv]p?e?\s*\(`,
	`\bdlopen\s*\(`,
	`\bsyscall\s*\(`,
	`\bkill\s*\(`,
	`__asm__|\basm\s*\(`,
	`\b(unlink|rmdir)\s*\(`,
}

var languagePatterns = map[string][]string{
	"c":   nativePatterns,
	"cpp": nativePatterns,
	"java": {
		`Runtime\.getRuntime`,
		`ProcessBuilder`,
		`java\.lang\.reflect`,
		`\.getDeclaredMethod|\.getDeclaredField|\.setAccessible\s*\(`,
		`Class\.forName`,
		`java\.nio\.file`,
		`new\s+File(OutputStream|Writer|InputStream|Reader)?\s*\(`,
		`java\.net\.`,
		`URLClassLoader|defineClass`,
	},
	"python": {
		`import\s+(os|subprocess|shutil|ctypes|socket|importlib|pty|multiprocessing)\b`,
		`from\s+(os|subprocess|shutil|ctypes|socket|importlib|pty|multiprocessing)\b`,
		`__import__`,
		`__builtins__|__subclasses__|__globals__`,
	},
	"javascript": {
		`require\s*\(\s*['"](node:)?(child_process|fs|net|dgram|vm|cluster|worker_threads|http|https)['"]`,
		`from\s+['"](node:)?(child_process|fs|net|vm|worker_threads)['"]`,
		`process\.(binding|dlopen|kill)`,
		`new\s+Function\s*\(`,
		`import\s*\(`,
	},
}

// DefaultRules returns the built-in ordered deny-list for each language.
// Language-specific patterns are checked before the common ones.
func DefaultRules() map[string][]string {
	rules := make(map[string][]string, len(languagePatterns))
	for language, patterns := range languagePatterns {
		rules[language] = append(slices.Clone(patterns), commonPatterns...)
	}
	return rules
}

// NewFromConfig builds a Filter covering every configured language. Languages
// without built-in rules get the common patterns; configured deny_patterns
// are appended after the built-in ones.
func NewFromConfig(cfg *config.Config) (*Filter, error) {
	defaults := DefaultRules()
	rules := make(map[string][]string, len(cfg.Languages))
	for name, lang := range cfg.Languages {
		patterns, ok := defaults[name]
		if !ok {
			patterns = slices.Clone(commonPatterns)
		}
		rules[name] = append(patterns, lang.DenyPatterns...)
	}

	filter, err := New(rules)
	if err != nil {
		return nil, fmt.Errorf("failed to build risk filter: %w", err)
	}
	return filter, nil
}
