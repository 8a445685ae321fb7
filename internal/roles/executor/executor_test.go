package executor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/haricheung/assignment-helper/internal/llm"
	"github.com/haricheung/assignment-helper/internal/types"
)

// ── BuildPrompt ──────────────────────────────────────────────────────────────

func TestBuildPrompt_Shape(t *testing.T) {
	// Returns exactly two messages: system then user
	msgs := BuildPrompt("Write README", "Build a CLI todo app", "")
	if len(msgs) != 2 || msgs[0].Role != llm.RoleSystem || msgs[1].Role != llm.RoleUser {
		t.Fatalf("unexpected messages: %+v", msgs)
	}
}

func TestBuildPrompt_RestrictsActions(t *testing.T) {
	// The system message restricts the action to Generate_File or NoOp
	sys := BuildPrompt("t", "b", "")[0].Content
	if !strings.Contains(sys, "Generate_File, NoOp") {
		t.Errorf("action set missing from system prompt: %q", sys)
	}
	if !strings.Contains(sys, "`filename`") || !strings.Contains(sys, "`content`") {
		t.Errorf("filename/content instructions missing: %q", sys)
	}
}

func TestBuildPrompt_EmbedsInputs(t *testing.T) {
	// The user message embeds taskDesc and brief verbatim
	user := BuildPrompt("Write README", "Build a CLI todo app", "use Go")[1].Content
	for _, want := range []string{"Task: Write README", `"""Build a CLI todo app"""`, "use Go"} {
		if !strings.Contains(user, want) {
			t.Errorf("user prompt missing %q", want)
		}
	}
}

func TestBuildPrompt_EmptyContextIsNA(t *testing.T) {
	// Renders an empty or blank extra context as "N/A"
	for _, extra := range []string{"", "  \n"} {
		user := BuildPrompt("t", "b", extra)[1].Content
		if !strings.HasSuffix(strings.TrimSpace(user), "N/A") {
			t.Errorf("extra=%q: expected N/A, got %q", extra, user)
		}
	}
}

// ── ParseResult ──────────────────────────────────────────────────────────────

func TestParseResult_Variants(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want types.Action
	}{
		{"generate file", `{"action":"Generate_File","filename":"README.md","content":"# Todo"}`,
			types.GenerateFile{Filename: "README.md", Content: "# Todo"}},
		{"generate file without keys", `{"action":"Generate_File"}`, types.GenerateFile{}},
		{"noop", `{"action":"NoOp"}`, types.NoOp{}},
		{"missing action", `{"filename":"x.txt"}`, types.NoOp{}},
		{"null action", `{"action":null}`, types.Unknown{Action: "null"}},
		{"think tag in content", `{"action":"Generate_File","filename":"NOTES.md","content":"Models wrap thoughts in <think> tags."}`,
			types.GenerateFile{Filename: "NOTES.md", Content: "Models wrap thoughts in <think> tags."}},
		{"unknown", `{"action":"Frobnicate"}`, types.Unknown{Action: "Frobnicate"}},
		{"case differs", `{"action":"generate_file"}`, types.Unknown{Action: "generate_file"}},
		{"fenced", "```json\n{\"action\":\"NoOp\"}\n```", types.NoOp{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseResult(tt.raw)
			if err != nil {
				t.Fatalf("ParseResult: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestParseResult_Failures(t *testing.T) {
	// Returns *types.ParseFailure (stage executor) for invalid JSON or non-string fields
	for _, raw := range []string{
		`I'd write a README`,
		`{"action":"NoOp"`,
		`{"action":42}`,
		`{"action":"Generate_File","filename":["a"]}`,
		`[{"action":"NoOp"}]`,
	} {
		_, err := ParseResult(raw)
		var pf *types.ParseFailure
		if !errors.As(err, &pf) {
			t.Errorf("ParseResult(%q): expected ParseFailure, got %v", raw, err)
			continue
		}
		if pf.Stage != types.PhaseExecutor || pf.Raw != raw {
			t.Errorf("ParseResult(%q): stage=%q raw=%q", raw, pf.Stage, pf.Raw)
		}
	}
}

// ── SanitizeFilename ─────────────────────────────────────────────────────────

func TestSanitizeFilename(t *testing.T) {
	tests := map[string]string{
		"../../etc/passwd": "etc/passwd",
		"  /README.md ":    "README.md",
		"docs/api.md":      "docs/api.md",
		"":                 DefaultFilename,
		" .. ":             DefaultFilename,
		"///":              DefaultFilename,
	}
	for in, want := range tests {
		if got := SanitizeFilename(in); got != want {
			t.Errorf("SanitizeFilename(%q) = %q, want %q", in, got, want)
		}
	}
}

// ── Apply ────────────────────────────────────────────────────────────────────

func TestApply_GenerateFileWritesUnderWorkDir(t *testing.T) {
	dir := t.TempDir()
	out, err := Apply(`{"action":"Generate_File","filename":"README.md","content":"# Todo\n"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.Written() || out.Path != "README.md" {
		t.Errorf("unexpected outcome: %+v", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "README.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "# Todo\n" {
		t.Errorf("content: got %q", data)
	}
}

func TestApply_ContentMentioningThinkTag(t *testing.T) {
	dir := t.TempDir()
	content := "Reasoning models wrap thoughts in <think> tags."
	out, err := Apply(`{"action":"Generate_File","filename":"NOTES.md","content":"`+content+`"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if !out.Written() {
		t.Fatalf("expected a write: %+v", out)
	}
	data, err := os.ReadFile(filepath.Join(dir, "NOTES.md"))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != content {
		t.Errorf("content: got %q, want %q", data, content)
	}
}

func TestApply_TraversalIsSanitized(t *testing.T) {
	// GenerateFile never writes outside workDir
	dir := t.TempDir()
	out, err := Apply(`{"action":"Generate_File","filename":"../../etc/passwd","content":"x"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	want := filepath.Join(dir, "etc", "passwd")
	if out.AbsPath != want {
		t.Errorf("AbsPath: got %q, want %q", out.AbsPath, want)
	}
	if !strings.HasPrefix(out.AbsPath, dir+string(filepath.Separator)) {
		t.Errorf("file landed outside work dir: %q", out.AbsPath)
	}
	if _, err := os.Stat(want); err != nil {
		t.Errorf("expected file at %s: %v", want, err)
	}
}

func TestApply_DefaultsFilenameAndContent(t *testing.T) {
	dir := t.TempDir()
	out, err := Apply(`{"action":"Generate_File"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Path != DefaultFilename {
		t.Errorf("Path: got %q", out.Path)
	}
	info, err := os.Stat(filepath.Join(dir, DefaultFilename))
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Size() != 0 {
		t.Errorf("expected empty file, got %d bytes", info.Size())
	}
}

func TestApply_OverwritesSilently(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.md")
	if err := os.WriteFile(path, []byte("old"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Apply(`{"action":"Generate_File","filename":"notes.md","content":"new"}`, dir); err != nil {
		t.Fatalf("Apply: %v", err)
	}
	data, _ := os.ReadFile(path)
	if string(data) != "new" {
		t.Errorf("got %q, want new", data)
	}
}

func TestApply_CreatesParentDirectories(t *testing.T) {
	dir := t.TempDir()
	out, err := Apply(`{"action":"Generate_File","filename":"docs/design/system.md","content":"x"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if _, err := os.Stat(out.AbsPath); err != nil {
		t.Errorf("expected nested file: %v", err)
	}
}

func TestApply_NoOpWritesNothing(t *testing.T) {
	dir := t.TempDir()
	out, err := Apply(`{"action":"NoOp"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Written() {
		t.Errorf("NoOp should not write: %+v", out)
	}
	assertEmptyDir(t, dir)
}

func TestApply_UnknownSurfacedWithoutWrite(t *testing.T) {
	// NoOp and Unknown have no side effect; Unknown surfaces the literal action string in Message
	dir := t.TempDir()
	out, err := Apply(`{"action":"Frobnicate","filename":"x.txt","content":"y"}`, dir)
	if err != nil {
		t.Fatalf("Apply: %v", err)
	}
	if out.Action.Name() != "Frobnicate" || !strings.Contains(out.Message, "Frobnicate") {
		t.Errorf("unknown action not surfaced: %+v", out)
	}
	assertEmptyDir(t, dir)
}

func TestApply_ParseFailureTouchesNothing(t *testing.T) {
	dir := t.TempDir()
	_, err := Apply(`{"action":"Generate_File",`, dir)
	var pf *types.ParseFailure
	if !errors.As(err, &pf) {
		t.Fatalf("expected ParseFailure, got %v", err)
	}
	assertEmptyDir(t, dir)
}

func TestApply_WriteFailureIsFileWriteError(t *testing.T) {
	// Returns *FileWriteError when the file cannot be written; the Outcome still carries the action
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, "README.md"), 0o755); err != nil {
		t.Fatal(err)
	}
	out, err := Apply(`{"action":"Generate_File","filename":"README.md","content":"x"}`, dir)
	var fwErr *FileWriteError
	if !errors.As(err, &fwErr) {
		t.Fatalf("expected *FileWriteError, got %v", err)
	}
	if fwErr.Path != "README.md" {
		t.Errorf("Path: got %q", fwErr.Path)
	}
	if out.Action == nil || out.Written() {
		t.Errorf("unexpected outcome: %+v", out)
	}
}

func assertEmptyDir(t *testing.T, dir string) {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("expected empty work dir, found %d entries", len(entries))
	}
}

// ── Executor.Draft ───────────────────────────────────────────────────────────

type fakeChatter struct {
	reply string
	err   error
	got   []llm.Message
}

func (f *fakeChatter) Chat(_ context.Context, msgs []llm.Message, _ int) (string, llm.Usage, error) {
	f.got = msgs
	return f.reply, llm.Usage{}, f.err
}

func TestDraft_PassesTaskAndBrief(t *testing.T) {
	fc := &fakeChatter{reply: `{"action":"NoOp"}`}
	raw, err := New(fc, 100).Draft(context.Background(), "Write README", "Build a CLI todo app", "")
	if err != nil {
		t.Fatalf("Draft: %v", err)
	}
	if raw != `{"action":"NoOp"}` {
		t.Errorf("raw: got %q", raw)
	}
	if !strings.Contains(fc.got[1].Content, "Write README") {
		t.Errorf("task not sent: %q", fc.got[1].Content)
	}
}

func TestDraft_WrapsGatewayError(t *testing.T) {
	_, err := New(&fakeChatter{err: &llm.UpstreamError{Op: "http status", StatusCode: 500}}, 1).
		Draft(context.Background(), "t", "b", "")
	var upErr *llm.UpstreamError
	if !errors.As(err, &upErr) {
		t.Fatalf("expected *llm.UpstreamError, got %v", err)
	}
}

// ── Preview ──────────────────────────────────────────────────────────────────

func TestPreview_DoesNotWrite(t *testing.T) {
	// GenerateFile reports the sanitized relative Path and leaves AbsPath empty
	out := Preview(types.GenerateFile{Filename: "../README.md", Content: "x"})
	if out.Path != "README.md" || out.Written() {
		t.Errorf("unexpected preview: %+v", out)
	}
	if got := Preview(types.Unknown{Action: "Frobnicate"}).Message; !strings.Contains(got, "Frobnicate") {
		t.Errorf("unknown action not surfaced: %q", got)
	}
}
