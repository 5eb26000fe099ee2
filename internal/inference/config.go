package inference

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/autopeer-io/remotepilot/internal/inference/archive"
	"github.com/autopeer-io/remotepilot/internal/inference/predictor"
	"github.com/autopeer-io/remotepilot/internal/pkg/server"
	httpserver "github.com/autopeer-io/remotepilot/internal/pkg/server/http"
	"github.com/autopeer-io/remotepilot/pkg/log"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

// Config is the complete configuration of the inference process.
type Config struct {
	ServeOptions     *options.ServeOptions
	PredictorOptions *options.PredictorOptions
	HttpOptions      *options.HttpOptions
	S3Options        *options.S3Options
}

// Inference wires the session service with its side servers.
type Inference struct {
	service   *Service
	predictor predictor.Predictor
	archive   archive.Archiver
	http      *httpserver.Server
}

// NewInference builds the predictor, the optional archive and binds the
// session listener.
func (cfg *Config) NewInference() (*Inference, error) {
	p, err := predictor.New(cfg.PredictorOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create predictor: %w", err)
	}

	var arch archive.Archiver = archive.Discard{}
	if cfg.S3Options.Enabled() {
		store, err := archive.NewMinIOStore(cfg.S3Options)
		if err != nil {
			return nil, err
		}
		arch = archive.NewQueue(store, cfg.S3Options.QueueSize)
	}

	ln, err := net.Listen("tcp", cfg.ServeOptions.Addr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on %s: %w", cfg.ServeOptions.Addr, err)
	}

	device := NewDevice(p, cfg.PredictorOptions.Concurrency)
	inf := &Inference{
		service:   NewService(ln, device, arch, cfg.ServeOptions),
		predictor: p,
		archive:   arch,
	}
	if cfg.HttpOptions.Enabled() {
		inf.http = httpserver.NewServer(cfg.HttpOptions, nil)
	}

	return inf, nil
}

// Run serves until ctx is done.
func (i *Inference) Run(ctx context.Context) error {
	log.Info("Starting rpilot-inference", "addr", i.service.Addr().String(), "predictor", i.predictor.Name())

	defer func() {
		if c, ok := i.predictor.(io.Closer); ok {
			_ = c.Close()
		}
	}()

	servers := []server.Server{
		server.ServerFunc(i.service.Run),
		server.ServerFunc(i.archive.Start),
	}
	if i.http != nil {
		servers = append(servers, i.http)
	}

	err := server.NewManager(servers...).Start(ctx)
	log.Info("Inference service shutting down...")
	return err
}
