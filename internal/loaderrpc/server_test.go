package loaderrpc

import (
	"context"
	"net"
	"testing"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/test/bufconn"

	"github.com/rollang/loader/internal/assembly"
	"github.com/rollang/loader/internal/config"
	"github.com/rollang/loader/internal/loader"
)

func testAssembly() assembly.Assembly {
	return assembly.Assembly{
		Name: "Core",
		Types: []assembly.TypeTemplate{
			{Name: "Unit", Storage: assembly.Value, Base: assembly.NoRef, OnInitialize: assembly.NoRef, OnFinalize: assembly.NoRef},
		},
		ExportTypes: []assembly.ExportEntry{{ExportName: "Core.Unit", InternalID: 0}},
	}
}

// dialBufconn starts a Loader service backed by l on an in-memory
// bufconn listener and returns a connected client plus a cleanup func.
func dialBufconn(t *testing.T, l *loader.Loader) (*grpc.ClientConn, func()) {
	t.Helper()

	lis := bufconn.Listen(1024 * 1024)
	srv := grpc.NewServer()
	if err := Register(srv, l); err != nil {
		t.Fatal(err)
	}
	go func() { _ = srv.Serve(lis) }()

	conn, err := grpc.NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}),
		grpc.WithTransportCredentials(insecure.NewCredentials()),
	)
	if err != nil {
		t.Fatal(err)
	}
	return conn, func() {
		conn.Close()
		srv.Stop()
	}
}

func TestGetTypeOverBufconn(t *testing.T) {
	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), nil)

	conn, cleanup := dialBufconn(t, l)
	defer cleanup()

	req, err := NewGetTypeRequest("Core", int32(l.FindExportType("Core", "Core.Unit")))
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewMessage("TypeInfo")
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.Invoke(context.Background(), "/"+ServiceName+"/GetType", req, resp); err != nil {
		t.Fatal(err)
	}

	info := DecodeTypeInfo(resp)
	if info.Assembly != "Core" || info.Storage != "VALUE" {
		t.Errorf("got %+v", info)
	}
	if info.CallID == "" || info.CallKind != "type" {
		t.Errorf("expected an echoed call session, got %+v", info)
	}
}

func TestFindExportTypeOverBufconn(t *testing.T) {
	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), nil)

	conn, cleanup := dialBufconn(t, l)
	defer cleanup()

	req, err := NewFindExportRequest("Core", "Core.Unit")
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewMessage("FindExportResponse")
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.Invoke(context.Background(), "/"+ServiceName+"/FindExportType", req, resp); err != nil {
		t.Fatal(err)
	}
	if getInt32(resp, "id") < 0 {
		t.Errorf("expected a non-negative export id, got %+v", resp)
	}
}

func TestGetTypeByIdNotFoundOverBufconn(t *testing.T) {
	reg := assembly.NewRegistry([]assembly.Assembly{testAssembly()})
	l := loader.New(reg, config.DefaultConfig(), nil)

	conn, cleanup := dialBufconn(t, l)
	defer cleanup()

	req, err := NewGetByIdRequest(999)
	if err != nil {
		t.Fatal(err)
	}
	resp, err := NewMessage("TypeInfo")
	if err != nil {
		t.Fatal(err)
	}

	if err := conn.Invoke(context.Background(), "/"+ServiceName+"/GetTypeById", req, resp); err == nil {
		t.Fatal("expected an error for an uncommitted type id")
	}
}
