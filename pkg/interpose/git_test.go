package interpose

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"mercator-hq/interpose/pkg/config"
	"mercator-hq/interpose/pkg/manifest"
	"mercator-hq/interpose/pkg/state"
)

func commitManifest(t *testing.T, repo *gogit.Repository, dir, content string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, "recipes.yaml"), []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree() error = %v", err)
	}
	if _, err := wt.Add("recipes.yaml"); err != nil {
		t.Fatalf("Add() error = %v", err)
	}
	if _, err := wt.Commit("update recipes", &gogit.CommitOptions{
		Author: &object.Signature{Name: "Test User", Email: "test@example.com", When: time.Now()},
	}); err != nil {
		t.Fatalf("Commit() error = %v", err)
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestRuntime_GitManifestSource(t *testing.T) {
	source := t.TempDir()
	srcRepo, err := gogit.PlainInit(source, false)
	if err != nil {
		t.Fatalf("PlainInit() error = %v", err)
	}
	commitManifest(t, srcRepo, source, personManifest)

	rt := newTestRuntime(t, func(c *config.Config) {
		c.Manifest.Path = ""
		c.Manifest.Watch = true
		c.Manifest.Git.Repository = source
		c.Manifest.Git.Branch = "master"
		c.Manifest.Git.LocalPath = filepath.Join(t.TempDir(), "clone")
		c.Manifest.Git.PollInterval = 10 * time.Millisecond
	})
	if err := rt.LoadManifest(); err != nil {
		t.Fatalf("LoadManifest() error = %v", err)
	}
	if _, err := Create[personStub](rt, "person", state.NewBucket(nil)); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if _, ok := rt.GitStats(); ok {
		t.Error("GitStats() ok before Watch")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- rt.Watch(ctx) }()
	waitFor(t, "poller start", func() bool {
		_, ok := rt.GitStats()
		return ok
	})

	commitManifest(t, srcRepo, source, personManifest+`
  - name: plain
    contracts: [Person]
    features:
      - name: beanstore
`)
	waitFor(t, "recipe from new commit", func() bool {
		_, err := rt.Recipe("plain")
		return err == nil
	})

	commitManifest(t, srcRepo, source, "recipes: [")
	waitFor(t, "rejected commit", func() bool {
		s, _ := rt.GitStats()
		return s.FailedReloads > 0
	})
	if _, err := rt.Recipe("plain"); err != nil {
		t.Errorf("Recipe(plain) after rejected commit error = %v", err)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch() error = %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch() did not return after cancel")
	}
}

func TestRuntime_GitManifestSource_Errors(t *testing.T) {
	cfg := config.Default()
	cfg.Manifest.Git.Repository = filepath.Join(t.TempDir(), "missing")
	cfg.Manifest.Git.Branch = "master"
	cfg.Manifest.Git.LocalPath = filepath.Join(t.TempDir(), "clone")
	rt, err := New(cfg, WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	defer rt.Close(context.Background())

	if err := rt.LoadManifest(); err == nil {
		t.Error("LoadManifest() from missing repository error = nil")
	}
	if err := rt.Watch(context.Background()); !errors.Is(err, manifest.ErrNotLoaded) {
		t.Errorf("Watch() error = %v, want ErrNotLoaded", err)
	}
}
