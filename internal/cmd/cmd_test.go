package cmd

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	shimerrors "github.com/iamnilay3/Shimmer/internal/errors"
	"github.com/iamnilay3/Shimmer/internal/instance"
	"github.com/iamnilay3/Shimmer/internal/testutil"
)

const helloSHA256 = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

// executeCommand runs a cobra command with args and returns captured output
func executeCommand(root *cobra.Command, args ...string) (output string, err error) {
	viper.Reset()
	resetFlags(root)

	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err = root.Execute()
	return buf.String(), err
}

// resetFlags restores every flag to its default so values do not leak
// between executions of the shared command tree.
func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

// setupTestEnvironment isolates configuration and returns the temp root and
// lock directory commands will use.
func setupTestEnvironment(t *testing.T) (tempRoot, lockDir string) {
	t.Helper()

	home := t.TempDir()
	tempRoot = t.TempDir()
	lockDir = t.TempDir()

	t.Setenv("HOME", home)
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(home, ".config"))
	t.Setenv("SHIMMER_PATHS_TEMP_ROOT", tempRoot)
	t.Setenv("SHIMMER_PATHS_LOCK_DIR", lockDir)
	t.Setenv("SHIMMER_LOGGING_LEVEL", "error")
	t.Cleanup(viper.Reset)

	return tempRoot, lockDir
}

func lines(s string) []string {
	return strings.Split(strings.TrimRight(s, "\n"), "\n")
}

func TestRootCommand(t *testing.T) {
	if rootCmd.Use != "shimmer" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "shimmer")
	}

	// Compare by Name(), not Use which includes args
	expectedCmds := []string{"mkdir", "rmdir", "ls", "cp", "hash", "exclusive", "holder", "config"}
	cmdMap := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		cmdMap[cmd.Name()] = true
	}

	for _, expected := range expectedCmds {
		if !cmdMap[expected] {
			t.Errorf("expected subcommand %q not found", expected)
		}
	}
}

func TestMkdirAndRmdir(t *testing.T) {
	setupTestEnvironment(t)
	base := t.TempDir()
	target := filepath.Join(base, "a", "b", "c")

	output, err := executeCommand(rootCmd, "mkdir", target)
	if err != nil {
		t.Fatalf("mkdir failed: %v\n%s", err, output)
	}
	if strings.TrimSpace(output) != target {
		t.Errorf("mkdir output = %q, want %q", output, target)
	}
	if info, err := os.Stat(target); err != nil || !info.IsDir() {
		t.Fatalf("expected directory at %s: %v", target, err)
	}

	// Idempotent
	if _, err := executeCommand(rootCmd, "mkdir", target); err != nil {
		t.Fatalf("second mkdir failed: %v", err)
	}

	testutil.WriteTree(t, target, map[string]string{"f.txt": "x"})
	top := filepath.Join(base, "a")
	if _, err := executeCommand(rootCmd, "rmdir", top); err != nil {
		t.Fatalf("rmdir failed: %v", err)
	}
	if _, err := os.Stat(top); !os.IsNotExist(err) {
		t.Errorf("expected %s to be removed, stat err = %v", top, err)
	}

	_, err = executeCommand(rootCmd, "rmdir", top)
	if !errors.Is(err, shimerrors.ErrNotFound) {
		t.Errorf("rmdir on missing path error = %v, want ErrNotFound", err)
	}
}

func TestLs(t *testing.T) {
	setupTestEnvironment(t)
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.txt":     "a",
		"sub/b.txt": "b",
		"sub/c.log": "c",
	})

	output, err := executeCommand(rootCmd, "ls", root)
	if err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	want := []string{
		filepath.Join(root, "sub", "b.txt"),
		filepath.Join(root, "sub", "c.log"),
		filepath.Join(root, "a.txt"),
	}
	if got := lines(output); strings.Join(got, "|") != strings.Join(want, "|") {
		t.Errorf("ls = %v, want %v", got, want)
	}

	output, err = executeCommand(rootCmd, "ls", root, "--match", "**.log")
	if err != nil {
		t.Fatalf("ls --match failed: %v", err)
	}
	if got := strings.TrimSpace(output); got != filepath.Join(root, "sub", "c.log") {
		t.Errorf("ls --match = %q", got)
	}

	// Flags must not leak into the next run
	output, err = executeCommand(rootCmd, "ls", root)
	if err != nil {
		t.Fatalf("ls failed: %v", err)
	}
	if got := len(lines(output)); got != 3 {
		t.Errorf("ls after --match listed %d files, want 3", got)
	}
}

func TestCp(t *testing.T) {
	setupTestEnvironment(t)
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"src.txt": "payload"})

	dst := filepath.Join(root, "nested", "dir", "dst.txt")
	if _, err := executeCommand(rootCmd, "cp", filepath.Join(root, "src.txt"), dst); err != nil {
		t.Fatalf("cp failed: %v", err)
	}
	data, err := os.ReadFile(dst)
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != "payload" {
		t.Errorf("copied content = %q", data)
	}
}

func TestHash(t *testing.T) {
	setupTestEnvironment(t)
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{
		"a.txt":         "hello",
		"sub/b.txt":     "hello",
		"sub/deep/c.md": "hello",
	})

	tests := []struct {
		name string
		args []string
	}{
		{"default degree", nil},
		{"serial", []string{"--parallel", "1"}},
		{"wide", []string{"--parallel", "8"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			output, err := executeCommand(rootCmd, append([]string{"hash", root}, tt.args...)...)
			if err != nil {
				t.Fatalf("hash failed: %v", err)
			}
			want := []string{
				helloSHA256 + "  a.txt",
				helloSHA256 + "  sub/b.txt",
				helloSHA256 + "  sub/deep/c.md",
			}
			if got := lines(output); strings.Join(got, "|") != strings.Join(want, "|") {
				t.Errorf("hash output = %v, want %v", got, want)
			}
		})
	}
}

func TestHash_Errors(t *testing.T) {
	setupTestEnvironment(t)
	root := t.TempDir()
	testutil.WriteTree(t, root, map[string]string{"a.txt": "hello"})

	_, err := executeCommand(rootCmd, "hash", root, "--parallel", "0")
	if !errors.Is(err, shimerrors.ErrInvalidInput) {
		t.Errorf("--parallel 0 error = %v, want ErrInvalidInput", err)
	}

	_, err = executeCommand(rootCmd, "hash", root, "--algo", "md4")
	if !errors.Is(err, shimerrors.ErrBatchFailed) {
		t.Errorf("unknown algorithm error = %v, want ErrBatchFailed", err)
	}
	if !errors.Is(err, shimerrors.ErrInvalidInput) {
		t.Errorf("unknown algorithm error = %v, want ErrInvalidInput cause", err)
	}

	_, err = executeCommand(rootCmd, "hash", filepath.Join(root, "missing"))
	if !errors.Is(err, shimerrors.ErrNotFound) {
		t.Errorf("missing root error = %v, want ErrNotFound", err)
	}
}

func TestExclusive(t *testing.T) {
	testutil.SkipIfNoShell(t)
	tempRoot, _ := setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "exclusive", "--key", "cmd-test", "--", "sh", "-c", "echo $"+ScratchDirEnv+"; touch marker")
	if err != nil {
		t.Fatalf("exclusive failed: %v\n%s", err, output)
	}

	scratch := strings.TrimSpace(output)
	if filepath.Dir(scratch) != tempRoot {
		t.Errorf("scratch dir %q is not directly under %q", scratch, tempRoot)
	}
	if _, err := os.Stat(scratch); !os.IsNotExist(err) {
		t.Errorf("scratch dir should be removed after the command, stat err = %v", err)
	}
	entries, err := os.ReadDir(tempRoot)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("temp root should be empty, found %d entries", len(entries))
	}
}

func TestExclusive_CommandFailure(t *testing.T) {
	testutil.SkipIfNoShell(t)
	tempRoot, _ := setupTestEnvironment(t)

	_, err := executeCommand(rootCmd, "exclusive", "--", "sh", "-c", "exit 3")
	if err == nil {
		t.Fatal("expected failure from child exit status")
	}

	entries, _ := os.ReadDir(tempRoot)
	if len(entries) != 0 {
		t.Errorf("scratch dir should be removed even when the command fails, found %d entries", len(entries))
	}
}

func TestExclusive_GuardHeld(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("lock directory only applies to Unix")
	}
	testutil.SkipIfNoShell(t)
	_, lockDir := setupTestEnvironment(t)

	guard, err := instance.Acquire(t.Context(), "busy", 0, instance.WithLockDir(lockDir))
	if err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	output, err := executeCommand(rootCmd, "holder", "--key", "busy")
	if err != nil {
		t.Fatalf("holder failed: %v", err)
	}
	if want := "held by pid " + strconv.Itoa(os.Getpid()); !strings.Contains(output, want) {
		t.Errorf("holder output = %q, want it to contain %q", output, want)
	}

	_, err = executeCommand(rootCmd, "exclusive", "--key", "busy", "--timeout", "50ms", "--", "sh", "-c", "true")
	if !errors.Is(err, shimerrors.ErrTimeout) {
		t.Errorf("exclusive while held error = %v, want ErrTimeout", err)
	}

	if err := guard.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	output, err = executeCommand(rootCmd, "holder", "--key", "busy")
	if err != nil {
		t.Fatalf("holder failed: %v", err)
	}
	if !strings.Contains(output, "no holder recorded") {
		t.Errorf("holder output after release = %q", output)
	}
}

func TestExclusive_MissingTempRoot(t *testing.T) {
	testutil.SkipIfNoShell(t)
	setupTestEnvironment(t)
	t.Setenv("SHIMMER_PATHS_TEMP_ROOT", filepath.Join(t.TempDir(), "gone"))

	_, err := executeCommand(rootCmd, "exclusive", "--", "sh", "-c", "true")
	if !errors.Is(err, shimerrors.ErrConfiguration) {
		t.Errorf("error = %v, want ErrConfiguration", err)
	}
}

func TestConfigCommands(t *testing.T) {
	setupTestEnvironment(t)

	output, err := executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show failed: %v", err)
	}
	for _, want := range []string{"No config file found", "temp_root:", "key: shimmer", "max_attempts: 3"} {
		if !strings.Contains(output, want) {
			t.Errorf("config show output missing %q:\n%s", want, output)
		}
	}

	output, err = executeCommand(rootCmd, "config", "init")
	if err != nil {
		t.Fatalf("config init failed: %v", err)
	}
	configFile := filepath.Join(os.Getenv("XDG_CONFIG_HOME"), "shimmer", "config.yaml")
	if !strings.Contains(output, configFile) {
		t.Errorf("config init output = %q, want path %s", output, configFile)
	}
	if _, err := os.Stat(configFile); err != nil {
		t.Fatalf("config file not created: %v", err)
	}

	if _, err := executeCommand(rootCmd, "config", "init"); err == nil {
		t.Error("second config init should fail")
	}

	output, err = executeCommand(rootCmd, "config", "show")
	if err != nil {
		t.Fatalf("config show with file failed: %v", err)
	}
	if !strings.Contains(output, "# Config file: "+configFile) {
		t.Errorf("config show should report the created file:\n%s", output)
	}

	output, err = executeCommand(rootCmd, "config", "path")
	if err != nil {
		t.Fatalf("config path failed: %v", err)
	}
	if !strings.Contains(output, "Active config: "+configFile) {
		t.Errorf("config path output = %q", output)
	}
}

func TestConfigShow_InvalidValue(t *testing.T) {
	setupTestEnvironment(t)
	t.Setenv("SHIMMER_PARALLEL_DEGREE", "0")

	if _, err := executeCommand(rootCmd, "config", "show"); err == nil {
		t.Error("config show should reject parallel.degree = 0")
	}
}
