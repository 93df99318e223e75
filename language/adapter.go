package language

import (
	"fmt"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/isdmx/coderun/config"
	"github.com/isdmx/coderun/sandbox"
	"github.com/isdmx/coderun/workspace"
)

// FileWriter writes a file into a workspace and returns its path
type FileWriter interface {
	WriteFile(ws *workspace.Workspace, name string, data []byte) (string, error)
}

// Adapter is the per-language capability set used by the engine
type Adapter interface {
	sandbox.Toolchain

	// Materialize writes code into the workspace and returns the source path.
	Materialize(w FileWriter, ws *workspace.Workspace, code string) (string, error)
	// Environment returns KEY=VALUE pairs for both stages.
	Environment() []string
	// Image returns the container image used by container backends.
	Image() string
	// Programs returns the host executables the toolchain needs.
	Programs() []string
}

// base holds what every variant shares
type base struct {
	name       string
	sourceFile string
	compile    commandTemplate
	run        commandTemplate
	env        []string
	image      string
}

func newBase(name string, lang config.Language) (base, error) {
	compile, err := parseTemplate(lang.CompileCmd)
	if err != nil {
		return base{}, fmt.Errorf("language %s: %w", name, err)
	}
	run, err := parseTemplate(lang.RunCmd)
	if err != nil {
		return base{}, fmt.Errorf("language %s: %w", name, err)
	}
	if len(run) == 0 {
		return base{}, fmt.Errorf("language %s: run command is required", name)
	}
	if lang.SourceFile == "" || filepath.Base(lang.SourceFile) != lang.SourceFile {
		return base{}, fmt.Errorf("language %s: invalid source file %q", name, lang.SourceFile)
	}

	return base{
		name:       name,
		sourceFile: lang.SourceFile,
		compile:    compile,
		run:        run,
		env:        environment(lang.Environment),
		image:      lang.Image,
	}, nil
}

func (b base) Name() string { return b.name }

func (b base) Environment() []string { return b.env }

func (b base) Image() string { return b.image }

func (b base) Programs() []string {
	var programs []string
	for _, t := range []commandTemplate{b.compile, b.run} {
		if p := t.program(); p != "" {
			programs = append(programs, p)
		}
	}
	return programs
}

func (b base) write(w FileWriter, ws *workspace.Workspace, name, code string) (string, error) {
	path, err := w.WriteFile(ws, name, []byte(code))
	if err != nil {
		return "", fmt.Errorf("failed to materialize %s source: %w", b.name, err)
	}
	return path, nil
}

// environment renders the configured variables as sorted KEY=VALUE pairs.
// Keys are upper-cased because viper lower-cases map keys on load.
func environment(vars map[string]string) []string {
	env := make([]string, 0, len(vars))
	for key, value := range vars {
		env = append(env, strings.ToUpper(key)+"="+value)
	}
	sort.Strings(env)
	return env
}

// nativeAdapter compiles to a binary next to the source (C, C++)
type nativeAdapter struct {
	base
	binaryFile string
}

func (a *nativeAdapter) Materialize(w FileWriter, ws *workspace.Workspace, code string) (string, error) {
	return a.write(w, ws, a.sourceFile, code)
}

func (*nativeAdapter) NeedsCompilation() bool { return true }

func (a *nativeAdapter) vars(sourcePath string) map[string]string {
	dir := filepath.Dir(sourcePath)
	return map[string]string{
		PlaceholderSource: sourcePath,
		PlaceholderBinary: filepath.Join(dir, a.binaryFile),
		PlaceholderDir:    dir,
	}
}

func (a *nativeAdapter) CompileCommand(sourcePath string) []string {
	return a.compile.expand(a.vars(sourcePath))
}

func (a *nativeAdapter) RunCommand(sourcePath string) []string {
	return a.run.expand(a.vars(sourcePath))
}

// publicTypePattern finds the first public top-level-looking type declaration.
var publicTypePattern = regexp.MustCompile(
	`\bpublic\s+(?:(?:final|abstract|static|sealed|strictfp)\s+)*(?:class|interface|enum|record)\s+([A-Za-z_$][A-Za-z0-9_$]*)`)

// EntryPoint returns the class name the source file must be named after:
// the first public type declaration, or defaultName if there is none.
// Multiple or nested public types are not disambiguated.
func EntryPoint(code, defaultName string) string {
	if m := publicTypePattern.FindStringSubmatch(code); m != nil {
		return m[1]
	}
	return defaultName
}

// jvmAdapter names the source file after the entry-point class (Java)
type jvmAdapter struct {
	base
	defaultClass string
}

func (a *jvmAdapter) Materialize(w FileWriter, ws *workspace.Workspace, code string) (string, error) {
	className := EntryPoint(code, a.defaultClass)
	return a.write(w, ws, className+filepath.Ext(a.sourceFile), code)
}

func (*jvmAdapter) NeedsCompilation() bool { return true }

func (a *jvmAdapter) vars(sourcePath string) map[string]string {
	file := filepath.Base(sourcePath)
	return map[string]string{
		PlaceholderSource: sourcePath,
		PlaceholderDir:    filepath.Dir(sourcePath),
		PlaceholderClass:  strings.TrimSuffix(file, filepath.Ext(file)),
	}
}

func (a *jvmAdapter) CompileCommand(sourcePath string) []string {
	return a.compile.expand(a.vars(sourcePath))
}

func (a *jvmAdapter) RunCommand(sourcePath string) []string {
	return a.run.expand(a.vars(sourcePath))
}

// interpretedAdapter runs the source directly (Python, JavaScript)
type interpretedAdapter struct {
	base
}

func (a *interpretedAdapter) Materialize(w FileWriter, ws *workspace.Workspace, code string) (string, error) {
	return a.write(w, ws, a.sourceFile, code)
}

func (*interpretedAdapter) NeedsCompilation() bool { return false }

func (*interpretedAdapter) CompileCommand(string) []string { return nil }

func (a *interpretedAdapter) RunCommand(sourcePath string) []string {
	return a.run.expand(map[string]string{
		PlaceholderSource: sourcePath,
		PlaceholderDir:    filepath.Dir(sourcePath),
	})
}

// NewAdapter builds the adapter variant selected by lang.Kind
func NewAdapter(name string, lang config.Language) (Adapter, error) {
	b, err := newBase(name, lang)
	if err != nil {
		return nil, err
	}

	switch lang.Kind {
	case config.KindNative:
		if len(b.compile) == 0 {
			return nil, fmt.Errorf("language %s: compile command is required", name)
		}
		binary := lang.BinaryFile
		if binary == "" {
			binary = "program"
		}
		return &nativeAdapter{base: b, binaryFile: binary}, nil
	case config.KindJVM:
		if len(b.compile) == 0 {
			return nil, fmt.Errorf("language %s: compile command is required", name)
		}
		defaultClass := strings.TrimSuffix(lang.SourceFile, filepath.Ext(lang.SourceFile))
		return &jvmAdapter{base: b, defaultClass: defaultClass}, nil
	case config.KindInterpreted:
		return &interpretedAdapter{base: b}, nil
	default:
		return nil, fmt.Errorf("language %s: unknown kind %q", name, lang.Kind)
	}
}
