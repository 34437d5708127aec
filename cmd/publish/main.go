package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"nifty-pivot-research/internal/publish"
	"nifty-pivot-research/pkg/logger"
)

// Publishes the working tree to a remote: init if needed, stage
// everything, commit (no-op commits are tolerated), force the main
// branch, point origin at the URL and push with upstream tracking.
// The exit code is the final push's exit status.
func main() {
	logger.Init()
	defer logger.Sync()

	dir := flag.String("dir", ".", "repository directory")
	message := flag.String("m", "update", "commit message")
	flag.Parse()

	remoteURL := flag.Arg(0)
	if remoteURL == "" {
		fmt.Fprintln(os.Stderr, "usage: publish [-dir .] [-m message] <remote-url>")
		os.Exit(2)
	}

	p := publish.New(*dir)
	p.CommitMessage = *message

	err := p.Publish(context.Background(), remoteURL)
	if err != nil {
		logger.Error("publish failed", zap.Error(err))
	}
	os.Exit(publish.ExitCode(err))
}
