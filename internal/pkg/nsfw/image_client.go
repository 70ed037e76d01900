package nsfw

import (
	"context"
	"fmt"
	"time"

	"google.golang.org/grpc"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	// ImageServiceName is the gRPC service served by the Ray Serve detector.
	ImageServiceName = "nsfw.v1.NSFWImageDetector"
	predictMethod    = "/" + ImageServiceName + "/Predict"
)

// ImageClient is a gRPC client for NSFW image detection (Ray Serve backend).
// Predict takes the encoded image as google.protobuf.BytesValue and answers with a
// google.protobuf.Struct carrying the same fields as the HTTP API.
type ImageClient struct {
	config Config
	conn   *grpc.ClientConn
	health healthpb.HealthClient
}

// NewImageClient creates a new gRPC NSFW image detection client.
func NewImageClient(cfg Config, opts ...grpc.DialOption) (*ImageClient, error) {
	conn, err := Dial(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &ImageClient{
		config: cfg,
		conn:   conn,
		health: healthpb.NewHealthClient(conn),
	}, nil
}

// Close closes the gRPC connection.
func (c *ImageClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// Detect detects NSFW content from raw image bytes.
func (c *ImageClient) Detect(ctx context.Context, imageData []byte) (*DetectionResult, error) {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, predictMethod, wrapperspb.Bytes(imageData), resp); err != nil {
		return nil, fmt.Errorf("nsfw image Predict failed: %w", err)
	}

	fields := resp.GetFields()
	return &DetectionResult{
		IsNSFW:      fields["is_nsfw"].GetBoolValue(),
		NSFWScore:   fields["nsfw_score"].GetNumberValue(),
		NormalScore: fields["normal_score"].GetNumberValue(),
		Label:       fields["label"].GetStringValue(),
		Confidence:  fields["confidence"].GetNumberValue(),
		ProcessedAt: time.Now(),
	}, nil
}

// Ping asks the standard health service whether the detector is serving.
func (c *ImageClient) Ping(ctx context.Context) error {
	ctx, cancel := c.withTimeout(ctx)
	defer cancel()

	resp, err := c.health.Check(ctx, &healthpb.HealthCheckRequest{Service: ImageServiceName})
	if err != nil {
		return fmt.Errorf("nsfw image detector not reachable at %s: %w", c.config.Address, err)
	}
	if resp.GetStatus() != healthpb.HealthCheckResponse_SERVING {
		return fmt.Errorf("nsfw image detector at %s is %s", c.config.Address, resp.GetStatus())
	}
	return nil
}

func (c *ImageClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.config.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.config.Timeout)
}
