package predictor

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/encoding"

	grpcmw "github.com/autopeer-io/remotepilot/internal/pkg/middleware/grpc"
	"github.com/autopeer-io/remotepilot/pkg/options"
)

// jsonCodec lets the model server be written in any language without
// generated stubs.
type jsonCodec struct{}

func (jsonCodec) Name() string { return "json" }

func (jsonCodec) Marshal(v any) ([]byte, error) { return json.Marshal(v) }

func (jsonCodec) Unmarshal(data []byte, v any) error { return json.Unmarshal(data, v) }

func init() {
	encoding.RegisterCodec(jsonCodec{})
}

// PredictRequest carries one encoded frame to the model server.
type PredictRequest struct {
	Image       []byte `json:"image"`
	ContentType string `json:"content_type"`
}

// PredictResponse carries the class probabilities, indexed forward, left, right.
type PredictResponse struct {
	Probabilities []float32 `json:"probabilities"`
}

// ModelServer is implemented by model servers speaking the JSON protocol.
type ModelServer interface {
	Predict(ctx context.Context, req *PredictRequest) (*PredictResponse, error)
}

// ModelServiceDesc describes remotepilot.model.v1.ModelService.
var ModelServiceDesc = grpc.ServiceDesc{
	ServiceName: "remotepilot.model.v1.ModelService",
	HandlerType: (*ModelServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "Predict",
			Handler:    predictHandler,
		},
	},
	Metadata: "remotepilot/model/v1/model.proto",
}

// RegisterModelServer registers srv on s. The server must be created with
// grpc.ForceServerCodec or rely on the registered "json" codec.
func RegisterModelServer(s grpc.ServiceRegistrar, srv ModelServer) {
	s.RegisterService(&ModelServiceDesc, srv)
}

func predictHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(PredictRequest)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ModelServer).Predict(ctx, in)
	}
	info := &grpc.UnaryServerInfo{
		Server:     srv,
		FullMethod: "/remotepilot.model.v1.ModelService/Predict",
	}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(ModelServer).Predict(ctx, req.(*PredictRequest))
	}
	return interceptor(ctx, in, info, handler)
}

// GRPC forwards frames to an external model server, e.g. the trained
// network served next to its framework.
type GRPC struct {
	conn   *grpc.ClientConn
	method string
}

// NewGRPC creates a client for the model server at opts.Addr. The connection
// is established lazily on the first call.
func NewGRPC(opts *options.GrpcOptions, dialOpts ...grpc.DialOption) (*GRPC, error) {
	base := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(grpcmw.WithTimeout(opts.Timeout)),
		grpc.WithDefaultCallOptions(grpc.CallContentSubtype(jsonCodec{}.Name())),
	}

	conn, err := grpc.NewClient(opts.Addr, append(base, dialOpts...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to create model server client: %w", err)
	}

	return &GRPC{conn: conn, method: opts.Method}, nil
}

func (g *GRPC) Name() string { return "grpc" }

func (g *GRPC) Predict(ctx context.Context, img []byte) (Prediction, error) {
	req := &PredictRequest{Image: img, ContentType: "image/jpeg"}
	resp := new(PredictResponse)

	if err := g.conn.Invoke(ctx, g.method, req, resp); err != nil {
		return Prediction{}, fmt.Errorf("model server: %w", err)
	}

	return FromProbabilities(resp.Probabilities)
}

// Close releases the connection.
func (g *GRPC) Close() error {
	return g.conn.Close()
}
