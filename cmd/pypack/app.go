// SPDX-License-Identifier: MPL-2.0

package cmd

import (
	"context"
	"io"
	"os"

	"github.com/pypack/pypack/internal/config"
	"github.com/pypack/pypack/internal/pipeline"
)

type (
	// App wires CLI services and shared dependencies. Every command handler
	// receives the App and goes through its services, so tests can replace
	// the pipeline and the configuration sources.
	App struct {
		Config  ConfigProvider
		Builder BuildService
		stdout  io.Writer
		stderr  io.Writer
		opts    *rootOptions
	}

	// Dependencies are the injection points for NewApp. Nil fields get
	// production defaults.
	Dependencies struct {
		Config  ConfigProvider
		Builder BuildService
		Stdout  io.Writer
		Stderr  io.Writer
	}

	// ConfigProvider loads configuration using explicit options.
	ConfigProvider interface {
		Load(ctx context.Context, opts config.LoadOptions) (*config.Loaded, error)
	}

	// BuildService runs the packaging pipeline.
	BuildService interface {
		Build(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
		Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Analysis, error)
	}

	pipelineService struct{}
)

// NewApp returns an App with defaults for every nil dependency.
func NewApp(deps Dependencies) *App {
	app := &App{
		Config:  deps.Config,
		Builder: deps.Builder,
		stdout:  deps.Stdout,
		stderr:  deps.Stderr,
		opts:    &rootOptions{},
	}
	if app.Config == nil {
		app.Config = config.NewProvider()
	}
	if app.Builder == nil {
		app.Builder = pipelineService{}
	}
	if app.stdout == nil {
		app.stdout = os.Stdout
	}
	if app.stderr == nil {
		app.stderr = os.Stderr
	}
	return app
}

func (pipelineService) Build(ctx context.Context, req pipeline.Request) (*pipeline.Result, error) {
	return pipeline.Build(ctx, req)
}

func (pipelineService) Analyze(ctx context.Context, req pipeline.Request) (*pipeline.Analysis, error) {
	return pipeline.Analyze(ctx, req)
}
