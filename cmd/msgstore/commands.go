package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/bitfsorg/libmsgstore-go/catalog"
	"github.com/bitfsorg/libmsgstore-go/config"
	"github.com/bitfsorg/libmsgstore-go/envelope"
	"github.com/bitfsorg/libmsgstore-go/transfer"
	"github.com/bitfsorg/libmsgstore-go/transport"
)

// uploadHandle is the cache handle for uploads. A put never shares the
// cache with a later get, since each command runs in its own process.
const uploadHandle transfer.Handle = 0

func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	return fs
}

func parseArgs(fs *flag.FlagSet, args []string, positional int) ([]string, error) {
	// Allow flags after the positional arguments: "put file -name x".
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, fmt.Errorf("%w: %s: %v", errUsage, fs.Name(), err)
		}
		if fs.NArg() == 0 {
			break
		}
		pos = append(pos, fs.Arg(0))
		args = fs.Args()[1:]
	}
	if len(pos) != positional {
		return nil, fmt.Errorf("%w: %s takes %d argument(s), got %d", errUsage, fs.Name(), positional, len(pos))
	}
	return pos, nil
}

func parseID(s string) (uint64, error) {
	id, err := strconv.ParseUint(s, 10, 63)
	if err != nil || id == 0 {
		return 0, fmt.Errorf("%w: invalid id %q", errUsage, s)
	}
	return id, nil
}

func (a *app) put(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("put")
	name := fs.String("name", "", "name recorded in the catalog (default file base name)")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	path := pos[0]
	if *name == "" {
		*name = filepath.Base(path)
	}

	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}

	addr, err := a.engine.Upload(ctx, uploadHandle, f, *name, nil)
	if err != nil {
		return err
	}

	id, err := a.catalog.Add(ctx, catalog.Record{
		Name:       *name,
		MsgIDs:     toInt64s(addr.IDs),
		Size:       info.Size(),
		StoredSize: addr.Size,
		Digest:     addr.Digest,
	})
	if err != nil {
		// The messages are orphaned without a catalog entry.
		if derr := a.engine.Delete(ctx, uploadHandle, addr.IDs); derr != nil {
			a.log.Warn().Err(derr).Msg("delete uncatalogued upload")
		}
		return err
	}

	fmt.Fprintf(stdout, "%d\t%s\t%d parts\n", id, *name, len(addr.IDs))
	return nil
}

func (a *app) get(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("get")
	out := fs.String("o", "", "output file (default stdout)")
	pos, err := parseArgs(fs, args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(pos[0])
	if err != nil {
		return err
	}

	rec, err := a.catalog.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("file %d: %w", id, err)
	}
	addr := &transfer.Address{
		IDs:    toMessageIDs(rec.MsgIDs),
		Size:   rec.StoredSize,
		Digest: rec.Digest,
	}
	data, err := a.engine.Download(ctx, transfer.Handle(id), addr, nil, 0)
	if err != nil {
		return fmt.Errorf("file %d: %w", id, err)
	}

	if *out == "" {
		_, err = stdout.Write(data)
		return err
	}
	return os.WriteFile(*out, data, 0600)
}

func (a *app) ls(ctx context.Context, args []string, stdout io.Writer) error {
	fs := newFlagSet("ls")
	limit := fs.Int("n", 50, "maximum number of entries (0 for all)")
	sortKey := fs.String("sort", "date", "sort key: date, size or name")
	dir := fs.String("dir", "desc", "sort direction: asc or desc")
	if _, err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	recs, err := a.catalog.List(ctx, *limit, catalog.ParseSortKey(*sortKey), catalog.ParseSortDir(*dir))
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tSIZE\tPARTS\tUPLOADED")
	for _, r := range recs {
		fmt.Fprintf(tw, "%d\t%s\t%d\t%d\t%s\n",
			r.ID, r.Name, r.Size, len(r.MsgIDs), r.UploadedAt.Local().Format(time.DateTime))
	}
	return tw.Flush()
}

func (a *app) rm(ctx context.Context, args []string, stdout io.Writer) error {
	pos, err := parseArgs(newFlagSet("rm"), args, 1)
	if err != nil {
		return err
	}
	id, err := parseID(pos[0])
	if err != nil {
		return err
	}

	rec, err := a.catalog.Get(ctx, id)
	if err != nil {
		return fmt.Errorf("file %d: %w", id, err)
	}
	if err := a.engine.Delete(ctx, transfer.Handle(id), toMessageIDs(rec.MsgIDs)); err != nil {
		return fmt.Errorf("file %d: %w", id, err)
	}
	if _, err := a.catalog.Delete(ctx, id); err != nil {
		return fmt.Errorf("file %d: %w", id, err)
	}

	fmt.Fprintf(stdout, "removed %d\t%s\n", id, rec.Name)
	return nil
}

func cmdKeygen(stdout io.Writer) error {
	key, err := envelope.GenerateKey()
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(stdout, key)
	return err
}

func cmdInit(cfg config.Config, g globals, stdout io.Writer) error {
	path := g.configPath
	if path == "" {
		path = config.ConfigPath(cfg.DataDir)
	}
	if err := config.SaveConfig(path, cfg); err != nil {
		return err
	}
	_, err := fmt.Fprintln(stdout, path)
	return err
}

func toInt64s(ids []transport.MessageID) []int64 {
	out := make([]int64, len(ids))
	for i, id := range ids {
		out[i] = int64(id)
	}
	return out
}

func toMessageIDs(ids []int64) []transport.MessageID {
	out := make([]transport.MessageID, len(ids))
	for i, id := range ids {
		out[i] = transport.MessageID(id)
	}
	return out
}
