package vault

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Answerer is implemented by vault backends served over gRPC.
type Answerer interface {
	Answer(ctx context.Context, clientID, query string) (string, error)
}

// RegisterServer exposes an Answerer as the vault Ask method on s. Backend
// errors travel in the reply's error field rather than as a gRPC status.
func RegisterServer(s *grpc.Server, a Answerer) {
	s.RegisterService(&serviceDesc, a)
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: "deskmate.vault.v1.Vault",
	HandlerType: (*Answerer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Ask", Handler: askHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "deskmate/vault/v1/vault.proto",
}

func askHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := &structpb.Struct{}
	if err := dec(in); err != nil {
		return nil, err
	}
	handle := func(ctx context.Context, req any) (any, error) {
		fields := req.(*structpb.Struct).GetFields()
		answer, err := srv.(Answerer).Answer(ctx, fields["client_id"].GetStringValue(), fields["query"].GetStringValue())
		if err != nil {
			return structpb.NewStruct(map[string]any{"error": err.Error()})
		}
		return structpb.NewStruct(map[string]any{"response": answer})
	}
	if interceptor == nil {
		return handle(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: askMethod}
	return interceptor(ctx, in, info, handle)
}
