// Command msgstore stores files in a message channel.
//
//	msgstore [-config path] [-env path] <command> [args]
//
// Commands:
//
//	put <file> [-name name]         upload a file and record it in the catalog
//	get <id> [-o path]              download a file by catalog id
//	ls [-n limit] [-sort key] [-dir asc|desc]
//	rm <id>                         delete a file's messages and catalog entry
//	keygen                          print a new random encryption key
//	init                            write the effective config to the data dir
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
)

const usage = `usage: msgstore [-config path] [-env path] <command> [args]

commands:
  put <file> [-name name]
  get <id> [-o path]
  ls [-n limit] [-sort date|size|name] [-dir asc|desc]
  rm <id>
  keygen
  init
`

// errUsage marks a command line error; run prints usage and exits 2.
var errUsage = errors.New("usage")

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("msgstore", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := fs.String("config", "", "config file (default <datadir>/config)")
	envPath := fs.String("env", ".env", "dotenv file loaded before the environment is read")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	cmd, rest := fs.Arg(0), fs.Args()[1:]
	err := dispatch(ctx, cmd, rest, globals{configPath: *configPath, envPath: *envPath}, stdout, stderr)
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errUsage):
		fmt.Fprintf(stderr, "msgstore: %v\n", err)
		fmt.Fprint(stderr, usage)
		return 2
	default:
		fmt.Fprintf(stderr, "msgstore: %v\n", err)
		return 1
	}
}

type globals struct {
	configPath string
	envPath    string
}

func dispatch(ctx context.Context, cmd string, args []string, g globals, stdout, stderr io.Writer) error {
	if cmd == "keygen" {
		return cmdKeygen(stdout)
	}

	cfg, err := loadConfig(g, cmd == "init")
	if err != nil {
		return err
	}
	if cmd == "init" {
		return cmdInit(cfg, g, stdout)
	}

	switch cmd {
	case "put", "get", "ls", "rm":
	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, cmd)
	}

	a, err := openApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	switch cmd {
	case "put":
		return a.put(ctx, args, stdout)
	case "get":
		return a.get(ctx, args, stdout)
	case "ls":
		return a.ls(ctx, args, stdout)
	default:
		return a.rm(ctx, args, stdout)
	}
}
