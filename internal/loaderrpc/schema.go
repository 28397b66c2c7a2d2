// Package loaderrpc exposes internal/loader's public entry points over
// gRPC for out-of-process callers, the way the teacher's lib/grpc exposed
// whatever service a script registered: no protoc-generated stubs, a
// hand-parsed .proto schema (via jhump/protoreflect's protoparse) walked
// into a *grpc.ServiceDesc whose handlers move dynamic.Message values
// instead of generated structs. The Loader service intentionally covers
// only the non-generic call shape (an assembly name plus a template id,
// no generic argument multilist) — the same demo-scope line
// internal/manifest draws for its JSON format, for the same reason: a
// resolved *RuntimeType argument has no wire representation here, so a
// generic GetType/GetFunction stays a same-process (Go API) operation.
package loaderrpc

import (
	"fmt"
	"strings"
	"sync"

	"github.com/jhump/protoreflect/desc"
	"github.com/jhump/protoreflect/desc/protoparse"
	"google.golang.org/protobuf/types/descriptorpb"
)

// ServiceName is the gRPC-registered name, also used in method paths
// ("/rollang.loaderrpc.Loader/GetType").
const ServiceName = "rollang.loaderrpc.Loader"

const protoFile = "loader.proto"

const protoSource = `
syntax = "proto3";
package rollang.loaderrpc;

message CallInfo {
  string id = 1;
  string kind = 2;
  int64 started_unix_nano = 3;
}

message GetTypeRequest {
  string assembly = 1;
  int32 template_id = 2;
}

message TypeInfo {
  int32 type_id = 1;
  string assembly = 2;
  int32 template_id = 3;
  string storage = 4;
  int32 size = 5;
  int32 alignment = 6;
  CallInfo call = 7;
}

message GetFunctionRequest {
  string assembly = 1;
  int32 template_id = 2;
}

message FunctionInfo {
  int32 function_id = 1;
  string assembly = 2;
  int32 template_id = 3;
  CallInfo call = 4;
}

message GetByIdRequest {
  int32 id = 1;
}

message FindExportRequest {
  string assembly = 1;
  string name = 2;
}

message FindExportResponse {
  int32 id = 1;
}

message AddNativeTypeRequest {
  string assembly = 1;
  string name = 2;
  int32 size = 3;
  int32 alignment = 4;
}

service Loader {
  rpc GetType(GetTypeRequest) returns (TypeInfo);
  rpc GetFunction(GetFunctionRequest) returns (FunctionInfo);
  rpc GetTypeById(GetByIdRequest) returns (TypeInfo);
  rpc GetFunctionById(GetByIdRequest) returns (FunctionInfo);
  rpc FindExportType(FindExportRequest) returns (FindExportResponse);
  rpc FindExportFunction(FindExportRequest) returns (FindExportResponse);
  rpc AddNativeType(AddNativeTypeRequest) returns (TypeInfo);
}
`

var (
	schemaOnce sync.Once
	schemaFile *desc.FileDescriptor
	schemaErr  error
)

// Schema parses the inline .proto source once and caches the result —
// mirrors the teacher's protoRegistry, just scoped to this one fixed file
// instead of whatever the script told grpcLoadProto to read off disk.
func Schema() (*desc.FileDescriptor, error) {
	schemaOnce.Do(func() {
		parser := protoparse.Parser{
			Accessor: protoparse.FileContentsFromMap(map[string]string{protoFile: protoSource}),
		}
		fds, err := parser.ParseFiles(protoFile)
		if err != nil {
			schemaErr = err
			return
		}
		schemaFile = fds[0]
	})
	return schemaFile, schemaErr
}

// ServiceDescriptor resolves the Loader service out of Schema().
func ServiceDescriptor() (*desc.ServiceDescriptor, error) {
	fd, err := Schema()
	if err != nil {
		return nil, err
	}
	sd := fd.FindService(ServiceName)
	if sd == nil {
		return nil, &MissingDescriptorError{Name: ServiceName}
	}
	return sd, nil
}

// messageDescriptor resolves one top-level message type from Schema().
func messageDescriptor(name string) (*desc.MessageDescriptor, error) {
	fd, err := Schema()
	if err != nil {
		return nil, err
	}
	md := fd.FindMessage("rollang.loaderrpc." + name)
	if md == nil {
		return nil, &MissingDescriptorError{Name: name}
	}
	return md, nil
}

// MissingDescriptorError reports a schema lookup failure: a symptom of
// protoSource and this package's Go code drifting apart.
type MissingDescriptorError struct{ Name string }

func (e *MissingDescriptorError) Error() string {
	return "loaderrpc: descriptor not found in schema: " + e.Name
}

// DescribeMessage renders a one-line-per-field summary of a schema message
// type's wire shape, naming each field's descriptorpb.FieldDescriptorProto_Type
// the way builtins_grpc.go's convertToProtoSingleValue switches on it —
// here for introspection (rollang-loaderctl's "describe" command) rather
// than value conversion.
func DescribeMessage(name string) (string, error) {
	md, err := messageDescriptor(name)
	if err != nil {
		return "", err
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%s:\n", md.GetFullyQualifiedName())
	for _, fd := range md.GetFields() {
		typeName := descriptorpb.FieldDescriptorProto_Type_name[int32(fd.GetType())]
		fmt.Fprintf(&b, "  %-20s %s (#%d)\n", fd.GetName(), strings.TrimPrefix(typeName, "TYPE_"), fd.GetNumber())
	}
	return b.String(), nil
}
