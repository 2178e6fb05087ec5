// Package gitsource keeps a recipe manifest in sync with a Git repository.
//
// A Repository clones the configured branch and pulls new commits. A Poller
// pulls on an interval and reloads the manifest when a commit touches the
// manifest file. A commit whose manifest fails to load leaves the previous
// recipes active; the poller records it and waits for the next commit.
//
// Basic usage:
//
//	repo, err := gitsource.NewRepository(&cfg.Manifest.Git)
//	if err != nil {
//	    return err
//	}
//	if err := repo.Clone(ctx); err != nil {
//	    return err
//	}
//	// load repo.ManifestPath() ...
//	poller := gitsource.NewPoller(repo, cfg.Manifest.Git.PollInterval, manager.Reload, logger)
//	go poller.Run(ctx)
//
// Local paths work as repository URLs, which is how the tests run without
// a network.
package gitsource
