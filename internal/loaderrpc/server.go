package loaderrpc

import (
	"context"
	"fmt"

	"github.com/jhump/protoreflect/dynamic"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/rollang/loader/internal/errs"
	"github.com/rollang/loader/internal/loader"
)

// handler is the grpc.ServiceDesc's HandlerType target — one per
// registration, holding the *loader.Loader every method call goes
// through. It plays the role the teacher's FunxyGrpcHandler plays for a
// script-provided implementation, except the implementation here is fixed
// Go code instead of a Record/Map of script closures.
type handler struct {
	l *loader.Loader
}

type methodFunc func(h *handler, ctx context.Context, req *dynamic.Message) (*dynamic.Message, error)

var methods = map[string]methodFunc{
	"GetType":            (*handler).handleGetType,
	"GetFunction":        (*handler).handleGetFunction,
	"GetTypeById":        (*handler).handleGetTypeById,
	"GetFunctionById":    (*handler).handleGetFunctionById,
	"FindExportType":     (*handler).handleFindExportType,
	"FindExportFunction": (*handler).handleFindExportFunction,
	"AddNativeType":      (*handler).handleAddNativeType,
}

// Register builds a *grpc.ServiceDesc from Schema's Loader service —
// exactly the builtinGrpcRegister pattern (a hand-built ServiceDesc, no
// protoc-generated one) — and registers it against s, dispatching every
// unary call into l.
func Register(s *grpc.Server, l *loader.Loader) error {
	sd, err := ServiceDescriptor()
	if err != nil {
		return err
	}

	gsd := &grpc.ServiceDesc{
		ServiceName: ServiceName,
		HandlerType: (*any)(nil),
		Metadata:    protoFile,
	}

	for _, md := range sd.GetMethods() {
		name := md.GetName()
		fn, ok := methods[name]
		if !ok {
			return fmt.Errorf("loaderrpc: schema declares method %s with no Go handler", name)
		}
		inputType := md.GetInputType()
		gsd.Methods = append(gsd.Methods, grpc.MethodDesc{
			MethodName: name,
			Handler: func(srv any, ctx context.Context, dec func(any) error, _ grpc.UnaryServerInterceptor) (any, error) {
				h := srv.(*handler)
				req := dynamic.NewMessage(inputType)
				if err := dec(req); err != nil {
					return nil, err
				}
				resp, err := fn(h, ctx, req)
				if err != nil {
					return nil, toStatus(err)
				}
				return resp, nil
			},
		})
	}

	s.RegisterService(gsd, &handler{l: l})
	return nil
}

// toStatus maps a *errs.LoaderError to a grpc status with a matching
// code, so a loaderctl client can branch on codes.NotFound/InvalidArgument
// instead of parsing error strings.
func toStatus(err error) error {
	le, ok := err.(*errs.LoaderError)
	if !ok {
		return status.Error(codes.Internal, err.Error())
	}
	switch le.Kind {
	case errs.AssemblyNotFound, errs.LinkageFailure:
		return status.Error(codes.NotFound, le.Error())
	case errs.InvalidReference, errs.InvalidGenericArgs, errs.MalformedTemplate, errs.NativeTypeUnsuitable:
		return status.Error(codes.InvalidArgument, le.Error())
	case errs.LoadingLimitExceeded:
		return status.Error(codes.ResourceExhausted, le.Error())
	default:
		return status.Error(codes.Internal, le.Error())
	}
}

func (h *handler) handleGetType(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	args := loader.LoadingArguments{
		AssemblyName: getString(req, "assembly"),
		TemplateID:   int(getInt32(req, "template_id")),
	}
	sess := loader.NewCallSession("type", args)
	t, err := h.l.GetType(args)
	if err != nil {
		return nil, err
	}
	return EncodeTypeInfo(t, sess)
}

func (h *handler) handleGetFunction(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	args := loader.FunctionLoadingArguments{
		AssemblyName: getString(req, "assembly"),
		TemplateID:   int(getInt32(req, "template_id")),
	}
	sess := loader.NewCallSession("function", loader.LoadingArguments(args))
	f, err := h.l.GetFunction(args)
	if err != nil {
		return nil, err
	}
	return EncodeFunctionInfo(f, sess)
}

func (h *handler) handleGetTypeById(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := int(getInt32(req, "id"))
	t := h.l.GetTypeById(id)
	if t == nil {
		return nil, errs.New(errs.LinkageFailure, "no committed type with id %d", id)
	}
	sess := loader.NewCallSession("type", t.Args)
	return EncodeTypeInfo(t, sess)
}

func (h *handler) handleGetFunctionById(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := int(getInt32(req, "id"))
	f := h.l.GetFunctionById(id)
	if f == nil {
		return nil, errs.New(errs.LinkageFailure, "no committed function with id %d", id)
	}
	sess := loader.NewCallSession("function", loader.LoadingArguments(f.Args))
	return EncodeFunctionInfo(f, sess)
}

func (h *handler) handleFindExportType(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := h.l.FindExportType(getString(req, "assembly"), getString(req, "name"))
	resp, err := NewMessage("FindExportResponse")
	if err != nil {
		return nil, err
	}
	if err := setField(resp, "id", int32(id)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (h *handler) handleFindExportFunction(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	id := h.l.FindExportFunction(getString(req, "assembly"), getString(req, "name"))
	resp, err := NewMessage("FindExportResponse")
	if err != nil {
		return nil, err
	}
	if err := setField(resp, "id", int32(id)); err != nil {
		return nil, err
	}
	return resp, nil
}

func (h *handler) handleAddNativeType(ctx context.Context, req *dynamic.Message) (*dynamic.Message, error) {
	assemblyName := getString(req, "assembly")
	name := getString(req, "name")
	size := int(getInt32(req, "size"))
	alignment := int(getInt32(req, "alignment"))

	t, err := h.l.AddNativeType(assemblyName, name, size, alignment)
	if err != nil {
		return nil, err
	}
	sess := loader.NewCallSession("type", t.Args)
	return EncodeTypeInfo(t, sess)
}
