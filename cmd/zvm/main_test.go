package main

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/kolkov/zvm/internal/opcode"
	"github.com/kolkov/zvm/internal/zasm"
)

func storyFile(t *testing.T, emit func(a *zasm.Assembler)) string {
	t.Helper()
	a := zasm.New()
	emit(a)
	path := filepath.Join(t.TempDir(), "story.z3")
	if err := os.WriteFile(path, a.Bytes(), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func hello(a *zasm.Assembler) {
	a.Inst(opcode.Print).Text("Hello")
	a.Inst(opcode.NewLine)
	a.Inst(opcode.Quit)
}

func runArgs(args ...string) (int, string, string) {
	var stdout, stderr bytes.Buffer
	code := run(append([]string{"-log-level", "quiet"}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

// captureStderr runs fn with os.Stderr redirected and returns what was
// written there.
func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	saved := os.Stderr
	os.Stderr = w
	defer func() { os.Stderr = saved }()

	done := make(chan string)
	go func() {
		data, _ := io.ReadAll(r)
		done <- string(data)
	}()
	fn()
	w.Close()
	return <-done
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name string
		argv []string
		want options
	}{
		{"story only", []string{"a.z3"}, options{args: []string{"a.z3"}}},
		{"trace all", []string{"-t", "a.z3"}, options{trace: true, args: []string{"a.z3"}}},
		{"pattern", []string{"-T", "^call", "a.z3"}, options{trace: true, pattern: "^call", args: []string{"a.z3"}}},
		{"joined pattern", []string{"-Tprint", "a.z3"}, options{trace: true, pattern: "print", args: []string{"a.z3"}}},
		{"joined config", []string{"-czvm.toml", "a.z3"}, options{configFile: "zvm.toml", args: []string{"a.z3"}}},
		{"joined config named ch", []string{"-cchapter.toml", "a.z3"}, options{configFile: "chapter.toml", args: []string{"a.z3"}}},
		{"joined config named heck", []string{"-checkout.toml", "a.z3"}, options{configFile: "heckout.toml", args: []string{"a.z3"}}},
		{"charset", []string{"-charset", "latin1", "a.z3"}, options{charset: "latin1", args: []string{"a.z3"}}},
		{"max steps", []string{"-max-steps", "100", "a.z3"}, options{maxSteps: 100, args: []string{"a.z3"}}},
		{"end of flags", []string{"-d", "--", "-story.z3"}, options{disasm: true, args: []string{"-story.z3"}}},
		{"check", []string{"-check", "a.z3", "b.z3"}, options{check: true, args: []string{"a.z3", "b.z3"}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseArgs(tt.argv)
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(*got, tt.want) {
				t.Errorf("parseArgs = %+v, want %+v", *got, tt.want)
			}
		})
	}
}

func TestParseArgsErrors(t *testing.T) {
	tests := []struct {
		argv []string
		want string
	}{
		{[]string{"-x"}, "flag provided but not defined: -x"},
		{[]string{"-charset"}, "flag needs an argument: -charset"},
		{[]string{"-max-steps", "many"}, "invalid step limit: many"},
	}
	for _, tt := range tests {
		_, err := parseArgs(tt.argv)
		if err == nil || err.Error() != tt.want {
			t.Errorf("parseArgs(%q) err = %v, want %q", tt.argv, err, tt.want)
		}
	}
}

func TestNoStory(t *testing.T) {
	code, _, stderr := runArgs()
	if code != 2 {
		t.Errorf("exit = %d, want 2", code)
	}
	if !strings.HasPrefix(stderr, "usage: zvm") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestHelpAndVersion(t *testing.T) {
	code, stdout, _ := runArgs("-h")
	if code != 0 || !strings.Contains(stdout, "-trace-format") {
		t.Errorf("-h: exit %d, output %q", code, stdout)
	}
	code, stdout, _ = runArgs("-version")
	if code != 0 || !strings.HasPrefix(stdout, "zvm version") {
		t.Errorf("-version: exit %d, output %q", code, stdout)
	}
}

func TestRunStory(t *testing.T) {
	path := storyFile(t, hello)
	code, stdout, stderr := runArgs(path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if stdout != "Hello\n" {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestRunCharset(t *testing.T) {
	path := storyFile(t, func(a *zasm.Assembler) {
		a.Inst(opcode.PrintChar, zasm.Small(155))
		a.Inst(opcode.Quit)
	})
	code, stdout, _ := runArgs("-charset", "latin1", path)
	if code != 0 || stdout != "\xe4" {
		t.Errorf("exit %d, stdout %q", code, stdout)
	}
}

func TestRunError(t *testing.T) {
	path := storyFile(t, func(a *zasm.Assembler) {
		a.Inst(opcode.Print).Text("partial")
		a.Inst(opcode.Restart)
	})
	code, stdout, stderr := runArgs(path)
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	if stdout != "partial" {
		t.Errorf("stdout = %q, want partial output", stdout)
	}
	if !strings.HasPrefix(stderr, "zvm: runtime error in restart") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestMissingStory(t *testing.T) {
	code, _, stderr := runArgs(filepath.Join(t.TempDir(), "none.z3"))
	if code != 1 || !strings.HasPrefix(stderr, "zvm: load error") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestTooManyArguments(t *testing.T) {
	path := storyFile(t, hello)
	code, _, stderr := runArgs(path, path)
	if code != 1 || !strings.Contains(stderr, "too many arguments") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestDisassembleFlag(t *testing.T) {
	path := storyFile(t, hello)
	code, stdout, _ := runArgs("-d", path)
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	want := "00400: print \"Hello\"\n"
	if !strings.HasPrefix(stdout, want) || !strings.HasSuffix(stdout, "quit\n") {
		t.Errorf("stdout = %q", stdout)
	}
}

func TestInfoFlag(t *testing.T) {
	path := storyFile(t, hello)
	code, stdout, _ := runArgs("-info", path)
	if code != 0 || !strings.HasPrefix(stdout, "version 3") {
		t.Errorf("exit %d, stdout %q", code, stdout)
	}
}

func TestVerifyFlag(t *testing.T) {
	path := storyFile(t, hello)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	data[zasm.GlobalsAddr] ^= 1
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	if code, _, _ := runArgs(path); code != 0 {
		t.Errorf("unverified run exit = %d", code)
	}
	code, _, stderr := runArgs("-verify", path)
	if code != 1 || !strings.Contains(stderr, "checksum mismatch") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}

func TestCheckFlag(t *testing.T) {
	good := storyFile(t, hello)
	bad := filepath.Join(t.TempDir(), "bad.z3")
	data, err := os.ReadFile(good)
	if err != nil {
		t.Fatal(err)
	}
	data[len(data)-1] ^= 0xff
	if err := os.WriteFile(bad, data, 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runArgs("-check", good, bad)
	if code != 1 {
		t.Errorf("exit = %d, want 1", code)
	}
	lines := strings.Split(strings.TrimSpace(stdout), "\n")
	if len(lines) != 2 {
		t.Fatalf("stdout = %q", stdout)
	}
	if !strings.HasPrefix(lines[0], good+": ok") {
		t.Errorf("good line = %q", lines[0])
	}
	if !strings.HasPrefix(lines[1], bad+": FAIL") {
		t.Errorf("bad line = %q", lines[1])
	}

	if code, _, _ := runArgs("-check", good); code != 0 {
		t.Errorf("all good: exit = %d", code)
	}
}

func TestNoTraceByDefault(t *testing.T) {
	path := storyFile(t, hello)
	var code int
	var stdout string
	written := captureStderr(t, func() {
		code, stdout, _ = runArgs(path)
	})
	if code != 0 || stdout != "Hello\n" {
		t.Fatalf("exit %d, stdout %q", code, stdout)
	}
	if written != "" {
		t.Errorf("stderr received %q, want nothing", written)
	}
}

func TestTraceToStderr(t *testing.T) {
	path := storyFile(t, hello)
	var code int
	written := captureStderr(t, func() {
		code, _, _ = runArgs("-t", path)
	})
	if code != 0 {
		t.Fatalf("exit = %d", code)
	}
	if n := strings.Count(written, "\n"); n != 3 {
		t.Errorf("trace has %d lines, want 3:\n%s", n, written)
	}
}

func TestTraceFlags(t *testing.T) {
	path := storyFile(t, hello)
	out := filepath.Join(t.TempDir(), "trace.txt")
	code, stdout, stderr := runArgs("-T", "^(print|quit)$", "-trace-out", out, path)
	if code != 0 {
		t.Fatalf("exit = %d, stderr %q", code, stderr)
	}
	if stdout != "Hello\n" {
		t.Errorf("stdout = %q", stdout)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if n := strings.Count(string(data), "\n"); n != 2 {
		t.Errorf("trace has %d lines, want 2:\n%s", n, data)
	}
}

func TestConfigFile(t *testing.T) {
	path := storyFile(t, func(a *zasm.Assembler) {
		a.Inst(opcode.PrintChar, zasm.Small(155))
		a.Inst(opcode.Quit)
	})
	cfg := filepath.Join(t.TempDir(), "zvm.toml")
	if err := os.WriteFile(cfg, []byte("charset = \"latin1\"\nlog_level = \"quiet\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	code, stdout, _ := runArgs("-c", cfg, path)
	if code != 0 || stdout != "\xe4" {
		t.Errorf("exit %d, stdout %q", code, stdout)
	}

	// Flags override the file.
	code, stdout, _ = runArgs("-c", cfg, "-charset", "utf-8", path)
	if code != 0 || stdout != "ä" {
		t.Errorf("exit %d, stdout %q", code, stdout)
	}

	if err := os.WriteFile(cfg, []byte("charset = \"klingon\"\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	code, _, stderr := runArgs("-c", cfg, path)
	if code != 1 || !strings.Contains(stderr, "config error") {
		t.Errorf("exit %d, stderr %q", code, stderr)
	}
}
