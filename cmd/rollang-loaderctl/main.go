// Command rollang-loaderctl is a thin terminal client for
// internal/loaderrpc's Loader service — the CLI counterpart to a script
// calling grpcInvoke directly, the way the teacher's cmd/funxy is the
// plain-os.Args-driven front end to internal/evaluator.
package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/jhump/protoreflect/dynamic"
	"github.com/mattn/go-isatty"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/rollang/loader/internal/loaderrpc"
)

var useColor = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

func usage() {
	fmt.Fprintf(os.Stderr, `Usage: %s <addr> <command> [args...]

Commands:
  get-type <assembly> <templateID>
  get-function <assembly> <templateID>
  get-type-by-id <id>
  get-function-by-id <id>
  find-export-type <assembly> <name>
  find-export-function <assembly> <name>
  add-native-type <assembly> <name> <size> <alignment>
  describe <message>
`, os.Args[0])
}

func main() {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "Internal error: %v\n", r)
			os.Exit(1)
		}
	}()

	if len(os.Args) < 3 {
		usage()
		os.Exit(1)
	}
	addr := os.Args[1]
	command := os.Args[2]
	args := os.Args[3:]

	// describe is pure schema introspection: it never dials addr.
	if command == "describe" {
		requireArgs(args, 1, "describe <message>")
		out, err := loaderrpc.DescribeMessage(args[0])
		must(err)
		fmt.Print(out)
		return
	}

	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		fail("connecting to %s: %s", addr, err)
	}
	defer conn.Close()

	ctx := context.Background()

	switch command {
	case "get-type":
		requireArgs(args, 2, "get-type <assembly> <templateID>")
		id := parseInt32(args[1])
		req, err := loaderrpc.NewGetTypeRequest(args[0], id)
		must(err)
		resp, err := loaderrpc.NewMessage("TypeInfo")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/GetType", req, resp))
		printTypeInfo(loaderrpc.DecodeTypeInfo(resp))

	case "get-function":
		requireArgs(args, 2, "get-function <assembly> <templateID>")
		id := parseInt32(args[1])
		req, err := loaderrpc.NewGetFunctionRequest(args[0], id)
		must(err)
		resp, err := loaderrpc.NewMessage("FunctionInfo")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/GetFunction", req, resp))
		printFunctionInfo(loaderrpc.DecodeFunctionInfo(resp))

	case "get-type-by-id":
		requireArgs(args, 1, "get-type-by-id <id>")
		req, err := loaderrpc.NewGetByIdRequest(parseInt32(args[0]))
		must(err)
		resp, err := loaderrpc.NewMessage("TypeInfo")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/GetTypeById", req, resp))
		printTypeInfo(loaderrpc.DecodeTypeInfo(resp))

	case "get-function-by-id":
		requireArgs(args, 1, "get-function-by-id <id>")
		req, err := loaderrpc.NewGetByIdRequest(parseInt32(args[0]))
		must(err)
		resp, err := loaderrpc.NewMessage("FunctionInfo")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/GetFunctionById", req, resp))
		printFunctionInfo(loaderrpc.DecodeFunctionInfo(resp))

	case "find-export-type":
		requireArgs(args, 2, "find-export-type <assembly> <name>")
		req, err := loaderrpc.NewFindExportRequest(args[0], args[1])
		must(err)
		resp, err := loaderrpc.NewMessage("FindExportResponse")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/FindExportType", req, resp))
		printExportId(resp)

	case "find-export-function":
		requireArgs(args, 2, "find-export-function <assembly> <name>")
		req, err := loaderrpc.NewFindExportRequest(args[0], args[1])
		must(err)
		resp, err := loaderrpc.NewMessage("FindExportResponse")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/FindExportFunction", req, resp))
		printExportId(resp)

	case "add-native-type":
		requireArgs(args, 4, "add-native-type <assembly> <name> <size> <alignment>")
		req, err := loaderrpc.NewAddNativeTypeRequest(args[0], args[1], parseInt32(args[2]), parseInt32(args[3]))
		must(err)
		resp, err := loaderrpc.NewMessage("TypeInfo")
		must(err)
		must(conn.Invoke(ctx, "/"+loaderrpc.ServiceName+"/AddNativeType", req, resp))
		printTypeInfo(loaderrpc.DecodeTypeInfo(resp))

	default:
		usage()
		os.Exit(1)
	}
}

func requireArgs(args []string, n int, usageLine string) {
	if len(args) < n {
		fmt.Fprintf(os.Stderr, "Usage: %s <addr> %s\n", os.Args[0], usageLine)
		os.Exit(1)
	}
}

func parseInt32(s string) int32 {
	n, err := strconv.ParseInt(s, 10, 32)
	if err != nil {
		fail("invalid integer %q: %s", s, err)
	}
	return int32(n)
}

func must(err error) {
	if err != nil {
		fail("%s", err)
	}
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}

func colorize(code, s string) string {
	if !useColor {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

func printTypeInfo(info loaderrpc.TypeInfo) {
	fmt.Printf("%s #%d  %s#%d  storage=%s  size=%s  align=%d  call=%s(%s)\n",
		colorize("1", "type"), info.TypeId, info.Assembly, info.TemplateID, info.Storage,
		humanize.Bytes(uint64(info.Size)), info.Alignment, info.CallKind, info.CallID)
}

func printFunctionInfo(info loaderrpc.FunctionInfo) {
	fmt.Printf("%s #%d  %s#%d  call=%s(%s)\n",
		colorize("1", "function"), info.FunctionId, info.Assembly, info.TemplateID, info.CallKind, info.CallID)
}

func printExportId(resp *dynamic.Message) {
	id := loaderrpc.DecodeExportId(resp)
	if id < 0 {
		fmt.Println(colorize("31", "not found"))
		return
	}
	fmt.Println(colorize("1", strconv.FormatInt(int64(id), 10)))
}
