package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"
)

// fakeRunner records every git invocation and fails the subcommands
// listed in failOn.
type fakeRunner struct {
	calls  []string
	failOn map[string]error
}

func (f *fakeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	key := args[0]
	f.calls = append(f.calls, strings.Join(args, " "))
	if err, ok := f.failOn[key]; ok {
		return "simulated " + key + " failure", err
	}
	return "", nil
}

func newPublisher(t *testing.T, run *fakeRunner, initialized bool) *Publisher {
	t.Helper()
	dir := t.TempDir()
	if initialized {
		if err := os.Mkdir(filepath.Join(dir, ".git"), 0o755); err != nil {
			t.Fatal(err)
		}
	}
	p := New(dir)
	p.Run = run
	return p
}

func TestPublishFreshRepo(t *testing.T) {
	probe := &probeRunner{}
	p := newPublisher(t, &fakeRunner{}, false)
	p.Run = probe

	if err := p.Publish(context.Background(), "git@example.com:repo.git"); err != nil {
		t.Fatal(err)
	}
	want := []string{
		"init",
		"add -A",
		"commit -m update",
		"branch -M main",
		"remote get-url origin",
		"remote add origin git@example.com:repo.git",
		"push -u origin main",
	}
	if len(probe.calls) != len(want) {
		t.Fatalf("calls = %v, want %v", probe.calls, want)
	}
	for i := range want {
		if probe.calls[i] != want[i] {
			t.Errorf("call %d = %q, want %q", i, probe.calls[i], want[i])
		}
	}
}

// probeRunner fails "remote get-url" only, the way a repo with no
// remote configured would.
type probeRunner struct {
	calls []string
}

func (f *probeRunner) Run(_ context.Context, _ string, args ...string) (string, error) {
	call := strings.Join(args, " ")
	f.calls = append(f.calls, call)
	if strings.HasPrefix(call, "remote get-url") {
		return "", errors.New("No such remote 'origin'")
	}
	return "", nil
}

func TestPublishExistingRepoSetsURL(t *testing.T) {
	run := &fakeRunner{}
	p := newPublisher(t, run, true)

	if err := p.Publish(context.Background(), "git@example.com:repo.git"); err != nil {
		t.Fatal(err)
	}
	for _, call := range run.calls {
		if call == "init" {
			t.Error("init must not run on an existing repository")
		}
		if strings.HasPrefix(call, "remote add") {
			t.Error("existing remote should be set-url'd, not re-added")
		}
	}
	found := false
	for _, call := range run.calls {
		if call == "remote set-url origin git@example.com:repo.git" {
			found = true
		}
	}
	if !found {
		t.Errorf("missing remote set-url call, got %v", run.calls)
	}
}

func TestPublishToleratesNothingToCommit(t *testing.T) {
	// second run against an unchanged tree: commit fails, push still runs
	run := &fakeRunner{failOn: map[string]error{
		"commit": errors.New("exit status 1"),
	}}
	p := newPublisher(t, run, true)

	if err := p.Publish(context.Background(), "git@example.com:repo.git"); err != nil {
		t.Fatalf("a no-op commit must not fail the publish: %v", err)
	}
	last := run.calls[len(run.calls)-1]
	if last != "push -u origin main" {
		t.Errorf("last call = %q, want the push", last)
	}
}

func TestPublishPropagatesPushFailure(t *testing.T) {
	pushErr := errors.New("remote rejected")
	run := &fakeRunner{failOn: map[string]error{"push": pushErr}}
	p := newPublisher(t, run, true)

	err := p.Publish(context.Background(), "git@example.com:repo.git")
	if err == nil {
		t.Fatal("expected the push failure to propagate")
	}
	if !errors.Is(err, pushErr) {
		t.Errorf("push error not wrapped: %v", err)
	}
	if ExitCode(err) != 1 {
		t.Errorf("exit code = %d, want 1 for a non-exec error", ExitCode(err))
	}
}

func TestPublishRequiresRemoteURL(t *testing.T) {
	p := newPublisher(t, &fakeRunner{}, true)
	if err := p.Publish(context.Background(), ""); err == nil {
		t.Fatal("expected an error for an empty remote URL")
	}
}

func TestPublishStopsOnAddFailure(t *testing.T) {
	run := &fakeRunner{failOn: map[string]error{"add": errors.New("exit status 128")}}
	p := newPublisher(t, run, true)

	if err := p.Publish(context.Background(), "git@example.com:repo.git"); err == nil {
		t.Fatal("expected the add failure to propagate")
	}
	for _, call := range run.calls {
		if strings.HasPrefix(call, "push") {
			t.Error("push must not run after a failed add")
		}
	}
}

func TestExitCode(t *testing.T) {
	if got := ExitCode(nil); got != 0 {
		t.Errorf("ExitCode(nil) = %d, want 0", got)
	}
	if got := ExitCode(errors.New("boom")); got != 1 {
		t.Errorf("ExitCode(generic) = %d, want 1", got)
	}

	// a real git exit status survives the %w wrapping
	err := exec.Command("sh", "-c", "exit 3").Run()
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		t.Skip("no shell available to produce an exit status")
	}
	wrapped := fmt.Errorf("git push: %w: output", err)
	if got := ExitCode(wrapped); got != 3 {
		t.Errorf("ExitCode(wrapped exit 3) = %d, want 3", got)
	}
}
