package predictor

import (
	"bytes"
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"

	"github.com/autopeer-io/remotepilot/pkg/options"
	"github.com/autopeer-io/remotepilot/pkg/wire"
)

type fakeModel struct {
	probs []float32
	delay time.Duration
	seen  [][]byte
}

func (m *fakeModel) Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error) {
	m.seen = append(m.seen, req.Image)
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, status.FromContextError(ctx.Err()).Err()
		}
	}
	if m.probs == nil {
		return nil, status.Error(codes.Internal, "model not loaded")
	}
	return &PredictResponse{Probabilities: m.probs}, nil
}

func startModelServer(t *testing.T, m *fakeModel, timeout time.Duration) *GRPC {
	t.Helper()

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer()
	RegisterModelServer(srv, m)
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	opts := options.NewGrpcOptions()
	opts.Addr = "passthrough:///bufnet"
	opts.Timeout = timeout

	g, err := NewGRPC(opts, grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
		return lis.DialContext(ctx)
	}))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = g.Close() })
	return g
}

func TestGRPCPredict(t *testing.T) {
	m := &fakeModel{probs: []float32{0.1, 0.2, 0.7}}
	g := startModelServer(t, m, time.Second)

	img := []byte{0xff, 0xd8, 0xff, 0xe0}
	got, err := g.Predict(context.Background(), img)
	if err != nil {
		t.Fatalf("Predict() error = %v", err)
	}
	if got.Class != wire.ClassRight {
		t.Errorf("Class = %v, want RIGHT", got.Class)
	}
	if len(m.seen) != 1 || !bytes.Equal(m.seen[0], img) {
		t.Errorf("model server received %v", m.seen)
	}
}

func TestGRPCPredictErrors(t *testing.T) {
	t.Run("server error", func(t *testing.T) {
		g := startModelServer(t, &fakeModel{}, time.Second)
		_, err := g.Predict(context.Background(), []byte{1})
		if status.Code(errors.Unwrap(err)) != codes.Internal {
			t.Errorf("error = %v, want Internal", err)
		}
	})

	t.Run("timeout", func(t *testing.T) {
		g := startModelServer(t, &fakeModel{probs: []float32{1, 0, 0}, delay: time.Second}, 20*time.Millisecond)
		_, err := g.Predict(context.Background(), []byte{1})
		if status.Code(errors.Unwrap(err)) != codes.DeadlineExceeded {
			t.Errorf("error = %v, want DeadlineExceeded", err)
		}
	})

	t.Run("bad probabilities", func(t *testing.T) {
		g := startModelServer(t, &fakeModel{probs: []float32{1, 0}}, time.Second)
		if _, err := g.Predict(context.Background(), []byte{1}); err == nil {
			t.Error("expected an error for two probabilities")
		}
	})
}
