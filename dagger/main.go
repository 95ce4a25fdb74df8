// bts-codec Dagger module for CI/CD pipeline
//
// Containerized test, lint, vulnerability scan, build and a channel
// self test of every coding scheme.

package main

import (
	"context"
	"dagger/bts-codec/internal/dagger"
)

type BtsCodec struct{}

// Base returns a Go container with the source code mounted
func (m *BtsCodec) Base(source *dagger.Directory) *dagger.Container {
	return dag.Container().
		From("golang:1.25").
		WithMountedDirectory("/src", source).
		WithWorkdir("/src")
}

// Test runs all Go tests
func (m *BtsCodec) Test(ctx context.Context, source *dagger.Directory) (string, error) {
	return m.Base(source).
		WithExec([]string{"go", "test", "./..."}).
		Stdout(ctx)
}

// Lint runs golangci-lint
func (m *BtsCodec) Lint(ctx context.Context, source *dagger.Directory) (string, error) {
	return m.Base(source).
		WithExec([]string{"go", "install", "github.com/golangci/golangci-lint/v2/cmd/golangci-lint@latest"}).
		WithExec([]string{"golangci-lint", "run", "./..."}).
		Stdout(ctx)
}

// Vuln runs govulncheck
func (m *BtsCodec) Vuln(ctx context.Context, source *dagger.Directory) (string, error) {
	return m.Base(source).
		WithExec([]string{"go", "install", "golang.org/x/vuln/cmd/govulncheck@latest"}).
		WithExec([]string{"govulncheck", "./..."}).
		Stdout(ctx)
}

// Build builds the bts-codec binary
func (m *BtsCodec) Build(source *dagger.Directory) *dagger.File {
	return m.Base(source).
		WithExec([]string{"go", "build", "-o", "bts-codec", "./cmd/bts-codec"}).
		File("/src/bts-codec")
}

// SelfTest pushes every scheme through a simulated channel and returns the
// YAML report
func (m *BtsCodec) SelfTest(
	ctx context.Context,
	source *dagger.Directory,
	// +optional
	// +default="12"
	snr string,
	// +optional
	// +default="20"
	blocks string,
) (string, error) {
	return m.Base(source).
		WithExec([]string{"go", "run", "./cmd/bts-codec", "selftest",
			"--snr", snr, "--blocks", blocks, "--format", "yaml"}).
		Stdout(ctx)
}

// CI runs the complete CI pipeline (test, lint, vuln check, self test)
func (m *BtsCodec) CI(ctx context.Context, source *dagger.Directory) (string, error) {
	// Run tests
	if _, err := m.Test(ctx, source); err != nil {
		return "", err
	}

	// Run linter
	if _, err := m.Lint(ctx, source); err != nil {
		return "", err
	}

	// Run vulnerability check
	if _, err := m.Vuln(ctx, source); err != nil {
		return "", err
	}

	// Clean channel self test
	if _, err := m.SelfTest(ctx, source, "30", "5"); err != nil {
		return "", err
	}

	return "CI pipeline completed successfully", nil
}
