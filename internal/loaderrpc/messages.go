package loaderrpc

import (
	"fmt"

	"github.com/jhump/protoreflect/dynamic"

	"github.com/rollang/loader/internal/loader"
)

// NewMessage builds an empty dynamic message of the named schema type
// ("GetTypeRequest", "TypeInfo", ...), for building a request client-side
// or a response server-side.
func NewMessage(name string) (*dynamic.Message, error) {
	md, err := messageDescriptor(name)
	if err != nil {
		return nil, err
	}
	return dynamic.NewMessage(md), nil
}

// setField looks the field up by name on msg's own descriptor and sets it
// — the same FindFieldByName lookup builtins_grpc.go's
// objectToDynamicMessage uses, via the error-returning Try form since this
// helper has no Funxy Object/Record caller to report a panic to.
func setField(msg *dynamic.Message, name string, val any) error {
	fd := msg.GetMessageDescriptor().FindFieldByName(name)
	if fd == nil {
		return fmt.Errorf("loaderrpc: %s has no field %q", msg.GetMessageDescriptor().GetName(), name)
	}
	return msg.TrySetField(fd, val)
}

func getField(msg *dynamic.Message, name string) (any, error) {
	fd := msg.GetMessageDescriptor().FindFieldByName(name)
	if fd == nil {
		return nil, fmt.Errorf("loaderrpc: %s has no field %q", msg.GetMessageDescriptor().GetName(), name)
	}
	return msg.TryGetField(fd)
}

func getString(msg *dynamic.Message, name string) string {
	v, err := getField(msg, name)
	if err != nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func getInt32(msg *dynamic.Message, name string) int32 {
	v, err := getField(msg, name)
	if err != nil {
		return 0
	}
	n, _ := v.(int32)
	return n
}

// NewGetTypeRequest builds a GetTypeRequest message — exported for
// cmd/rollang-loaderctl, which has no other way to construct one without
// its own copy of the schema.
func NewGetTypeRequest(assemblyName string, templateID int32) (*dynamic.Message, error) {
	msg, err := NewMessage("GetTypeRequest")
	if err != nil {
		return nil, err
	}
	if err := setField(msg, "assembly", assemblyName); err != nil {
		return nil, err
	}
	if err := setField(msg, "template_id", templateID); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewGetFunctionRequest mirrors NewGetTypeRequest for GetFunctionRequest.
func NewGetFunctionRequest(assemblyName string, templateID int32) (*dynamic.Message, error) {
	msg, err := NewMessage("GetFunctionRequest")
	if err != nil {
		return nil, err
	}
	if err := setField(msg, "assembly", assemblyName); err != nil {
		return nil, err
	}
	if err := setField(msg, "template_id", templateID); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewGetByIdRequest builds a GetByIdRequest (shared by GetTypeById and
// GetFunctionById).
func NewGetByIdRequest(id int32) (*dynamic.Message, error) {
	msg, err := NewMessage("GetByIdRequest")
	if err != nil {
		return nil, err
	}
	if err := setField(msg, "id", id); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewFindExportRequest builds a FindExportRequest (shared by
// FindExportType and FindExportFunction).
func NewFindExportRequest(assemblyName, name string) (*dynamic.Message, error) {
	msg, err := NewMessage("FindExportRequest")
	if err != nil {
		return nil, err
	}
	if err := setField(msg, "assembly", assemblyName); err != nil {
		return nil, err
	}
	if err := setField(msg, "name", name); err != nil {
		return nil, err
	}
	return msg, nil
}

// NewAddNativeTypeRequest builds an AddNativeTypeRequest.
func NewAddNativeTypeRequest(assemblyName, name string, size, alignment int32) (*dynamic.Message, error) {
	msg, err := NewMessage("AddNativeTypeRequest")
	if err != nil {
		return nil, err
	}
	for field, val := range map[string]any{
		"assembly": assemblyName, "name": name, "size": size, "alignment": alignment,
	} {
		if err := setField(msg, field, val); err != nil {
			return nil, err
		}
	}
	return msg, nil
}

// TypeInfo is the Go-native decoding of a TypeInfo message, for callers
// (loaderctl, tests) that would rather not poke at dynamic.Message fields
// by name.
type TypeInfo struct {
	TypeId     int32
	Assembly   string
	TemplateID int32
	Storage    string
	Size       int32
	Alignment  int32
	CallID     string
	CallKind   string
}

// FunctionInfo mirrors TypeInfo for FunctionInfo messages.
type FunctionInfo struct {
	FunctionId int32
	Assembly   string
	TemplateID int32
	CallID     string
	CallKind   string
}

func encodeCallInfo(msg *dynamic.Message, field string, s loader.CallSession) error {
	callMsg, err := NewMessage("CallInfo")
	if err != nil {
		return err
	}
	if err := setField(callMsg, "id", s.ID.String()); err != nil {
		return err
	}
	if err := setField(callMsg, "kind", s.Kind); err != nil {
		return err
	}
	if err := setField(callMsg, "started_unix_nano", s.Started.UnixNano()); err != nil {
		return err
	}
	return setField(msg, field, callMsg)
}

// EncodeTypeInfo builds a TypeInfo message for t, stamped with the RPC
// call session that produced it.
func EncodeTypeInfo(t *loader.RuntimeType, s loader.CallSession) (*dynamic.Message, error) {
	msg, err := NewMessage("TypeInfo")
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"type_id":     int32(t.TypeId),
		"assembly":    t.Args.AssemblyName,
		"template_id": int32(t.Args.TemplateID),
		"storage":     t.Storage.String(),
		"size":        int32(t.Size),
		"alignment":   int32(t.Alignment),
	}
	for name, val := range fields {
		if err := setField(msg, name, val); err != nil {
			return nil, err
		}
	}
	if err := encodeCallInfo(msg, "call", s); err != nil {
		return nil, err
	}
	return msg, nil
}

// EncodeFunctionInfo mirrors EncodeTypeInfo for RuntimeFunction.
func EncodeFunctionInfo(f *loader.RuntimeFunction, s loader.CallSession) (*dynamic.Message, error) {
	msg, err := NewMessage("FunctionInfo")
	if err != nil {
		return nil, err
	}
	fields := map[string]any{
		"function_id": int32(f.FunctionId),
		"assembly":    f.Args.AssemblyName,
		"template_id": int32(f.Args.TemplateID),
	}
	for name, val := range fields {
		if err := setField(msg, name, val); err != nil {
			return nil, err
		}
	}
	if err := encodeCallInfo(msg, "call", s); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeTypeInfo reads a TypeInfo message back into a TypeInfo struct.
func DecodeTypeInfo(msg *dynamic.Message) TypeInfo {
	info := TypeInfo{
		TypeId:     getInt32(msg, "type_id"),
		Assembly:   getString(msg, "assembly"),
		TemplateID: getInt32(msg, "template_id"),
		Storage:    getString(msg, "storage"),
		Size:       getInt32(msg, "size"),
		Alignment:  getInt32(msg, "alignment"),
	}
	if call, err := getField(msg, "call"); err == nil {
		if callMsg, ok := call.(*dynamic.Message); ok && callMsg != nil {
			info.CallID = getString(callMsg, "id")
			info.CallKind = getString(callMsg, "kind")
		}
	}
	return info
}

// DecodeExportId reads the id field of a FindExportResponse message.
func DecodeExportId(msg *dynamic.Message) int32 {
	return getInt32(msg, "id")
}

// DecodeFunctionInfo mirrors DecodeTypeInfo for FunctionInfo messages.
func DecodeFunctionInfo(msg *dynamic.Message) FunctionInfo {
	info := FunctionInfo{
		FunctionId: getInt32(msg, "function_id"),
		Assembly:   getString(msg, "assembly"),
		TemplateID: getInt32(msg, "template_id"),
	}
	if call, err := getField(msg, "call"); err == nil {
		if callMsg, ok := call.(*dynamic.Message); ok && callMsg != nil {
			info.CallID = getString(callMsg, "id")
			info.CallKind = getString(callMsg, "kind")
		}
	}
	return info
}
