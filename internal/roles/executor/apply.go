package executor

import (
	"fmt"
	"log"
	"strings"

	"github.com/haricheung/assignment-helper/internal/tools"
	"github.com/haricheung/assignment-helper/internal/types"
)

// DefaultFilename is used when a Generate_File action names no usable file.
const DefaultFilename = "output.txt"

// FileWriteError reports a Generate_File action that could not be written.
type FileWriteError struct {
	Path string
	Err  error
}

func (e *FileWriteError) Error() string {
	return fmt.Sprintf("executor: write %s: %v", e.Path, e.Err)
}

func (e *FileWriteError) Unwrap() error { return e.Err }

// Outcome describes what Apply did with one Executor reply.
type Outcome struct {
	Action  types.Action
	Path    string // sanitized path relative to the work directory; empty unless a file was written
	AbsPath string
	Message string
}

// Written reports whether a file was produced.
func (o Outcome) Written() bool { return o.AbsPath != "" }

// SanitizeFilename removes every "..", trims surrounding whitespace and strips
// leading "/" so the name can only address a location under the work directory.
//
// Expectations:
//   - "../../etc/passwd" becomes "etc/passwd"
//   - "  /README.md " becomes "README.md"
//   - Nested relative paths ("docs/api.md") are kept
//   - Returns DefaultFilename when nothing usable is left
func SanitizeFilename(name string) string {
	name = strings.ReplaceAll(name, "..", "")
	name = strings.TrimSpace(name)
	name = strings.TrimLeft(name, "/")
	if name == "" {
		return DefaultFilename
	}
	return name
}

// Apply parses raw and performs its action under workDir.
//
// Expectations:
//   - Returns *types.ParseFailure without touching the filesystem when raw is invalid
//   - Otherwise behaves as ApplyAction
func Apply(raw, workDir string) (Outcome, error) {
	action, err := ParseResult(raw)
	if err != nil {
		return Outcome{}, err
	}
	return ApplyAction(action, workDir)
}

// ApplyAction dispatches an already parsed action.
//
// Expectations:
//   - GenerateFile writes Content to SanitizeFilename(Filename) under workDir, creating parent directories
//   - GenerateFile overwrites an existing file silently
//   - GenerateFile never writes outside workDir
//   - Returns *FileWriteError when the file cannot be written; the Outcome still carries the action
//   - NoOp and Unknown have no side effect; Unknown surfaces the literal action string in Message
func ApplyAction(action types.Action, workDir string) (Outcome, error) {
	out := Outcome{Action: action}
	switch a := action.(type) {
	case types.GenerateFile:
		rel := SanitizeFilename(a.Filename)
		root, err := tools.WorkDir(workDir)
		if err != nil {
			return out, &FileWriteError{Path: rel, Err: err}
		}
		path, err := tools.ResolveUnder(root, rel)
		if err != nil {
			return out, &FileWriteError{Path: rel, Err: err}
		}
		if err := tools.WriteFile(path, a.Content); err != nil {
			return out, &FileWriteError{Path: rel, Err: err}
		}
		log.Printf("[EXECUTOR] wrote %s (%d bytes)", path, len(a.Content))
		out.Path = rel
		out.AbsPath = path
		out.Message = "Generated " + rel
	case types.NoOp:
		out.Message = "No action taken"
	case types.Unknown:
		log.Printf("[EXECUTOR] unsupported action %q", a.Action)
		out.Message = fmt.Sprintf("Unknown action %q", a.Action)
	}
	return out, nil
}

// Preview describes what ApplyAction would do without touching the filesystem.
//
// Expectations:
//   - GenerateFile reports the sanitized relative Path and leaves AbsPath empty
//   - NoOp and Unknown get the same Message as ApplyAction
func Preview(action types.Action) Outcome {
	out := Outcome{Action: action}
	switch a := action.(type) {
	case types.GenerateFile:
		out.Path = SanitizeFilename(a.Filename)
		out.Message = "Would generate " + out.Path
	case types.NoOp:
		out.Message = "No action taken"
	case types.Unknown:
		out.Message = fmt.Sprintf("Unknown action %q", a.Action)
	}
	return out
}
