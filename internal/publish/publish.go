package publish

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"nifty-pivot-research/pkg/logger"
)

// Runner executes a git subcommand in a directory. Split out so tests
// can record the command sequence without touching a real repo.
type Runner interface {
	Run(ctx context.Context, dir string, args ...string) (string, error)
}

// GitRunner shells out to the system git binary, so auth, hooks and
// failure modes are exactly what git itself reports.
type GitRunner struct{}

func (GitRunner) Run(ctx context.Context, dir string, args ...string) (string, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	return strings.TrimSpace(string(out)), err
}

// Publisher pushes the working tree to a remote, idempotently.
type Publisher struct {
	Dir           string
	Branch        string
	Remote        string
	CommitMessage string
	Run           Runner
}

// New returns a publisher for dir with the canonical defaults.
func New(dir string) *Publisher {
	return &Publisher{
		Dir:           dir,
		Branch:        "main",
		Remote:        "origin",
		CommitMessage: "update",
		Run:           GitRunner{},
	}
}

// Publish stages and pushes everything to remoteURL. A commit that
// fails because there is nothing new to commit is logged and skipped;
// any other failure propagates. The returned error on the final push
// carries git's own exit status (see ExitCode).
func (p *Publisher) Publish(ctx context.Context, remoteURL string) error {
	if remoteURL == "" {
		return errors.New("remote URL required")
	}

	if !p.initialized() {
		if out, err := p.Run.Run(ctx, p.Dir, "init"); err != nil {
			return fmt.Errorf("git init: %v: %s", err, out)
		}
		logger.Info("initialized repository", zap.String("dir", p.Dir))
	}

	if out, err := p.Run.Run(ctx, p.Dir, "add", "-A"); err != nil {
		return fmt.Errorf("git add: %v: %s", err, out)
	}

	if out, err := p.Run.Run(ctx, p.Dir, "commit", "-m", p.CommitMessage); err != nil {
		// usually "nothing to commit"; the push below still runs
		logger.Info("commit skipped", zap.String("output", out))
	}

	if out, err := p.Run.Run(ctx, p.Dir, "branch", "-M", p.Branch); err != nil {
		return fmt.Errorf("git branch -M %s: %v: %s", p.Branch, err, out)
	}

	if _, err := p.Run.Run(ctx, p.Dir, "remote", "get-url", p.Remote); err != nil {
		if out, err := p.Run.Run(ctx, p.Dir, "remote", "add", p.Remote, remoteURL); err != nil {
			return fmt.Errorf("git remote add: %v: %s", err, out)
		}
	} else {
		if out, err := p.Run.Run(ctx, p.Dir, "remote", "set-url", p.Remote, remoteURL); err != nil {
			return fmt.Errorf("git remote set-url: %v: %s", err, out)
		}
	}

	out, err := p.Run.Run(ctx, p.Dir, "push", "-u", p.Remote, p.Branch)
	if err != nil {
		return fmt.Errorf("git push: %w: %s", err, out)
	}
	logger.Info("pushed", zap.String("remote", remoteURL), zap.String("branch", p.Branch))
	return nil
}

func (p *Publisher) initialized() bool {
	info, err := os.Stat(filepath.Join(p.Dir, ".git"))
	return err == nil && info.IsDir()
}

// ExitCode maps a Publish error to a process exit status, surfacing
// git's own code for the final push when available.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return 1
}
