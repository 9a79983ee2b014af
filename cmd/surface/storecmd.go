package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/banshee-data/surface.report/internal/surface/field"
	"github.com/banshee-data/surface.report/internal/surface/render"
	"github.com/banshee-data/surface.report/internal/surface/serialize"
	"github.com/banshee-data/surface.report/internal/surface/server"
	"github.com/banshee-data/surface.report/internal/surface/store"
)

var storeActions = map[string]string{
	"put":    "put <in.surf> [name]",
	"get":    "get <field-id> <out.surf>",
	"list":   "list",
	"delete": "delete <field-id>",
	"mask":   "mask [-above v] [-below v] <field-id> <name>",
	"stats":  "stats [-mask id] [-masking m] [-record] <field-id>",
}

func printStoreUsage(e *env) {
	fmt.Fprintln(e.out, "Usage: surface store [-db path] <action> [args]")
	for _, a := range []string{"put", "get", "list", "delete", "mask", "stats"} {
		fmt.Fprintf(e.out, "  %s\n", storeActions[a])
	}
}

func runStore(e *env, args []string) error {
	fs := newFlagSet("store", "[-db path] <action> [args]")
	dbPath := fs.String("db", e.cfg.GetDBPath(), "database file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		printStoreUsage(e)
		return errUsage
	}
	action, rest := fs.Arg(0), fs.Args()[1:]
	if _, ok := storeActions[action]; !ok {
		printStoreUsage(e)
		return fmt.Errorf("unknown store action %q", action)
	}

	db, err := store.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	switch action {
	case "put":
		return storePut(e, db, rest)
	case "get":
		return storeGet(e, db, rest)
	case "list":
		return storeList(e, db)
	case "delete":
		if len(rest) != 1 {
			printStoreUsage(e)
			return errUsage
		}
		if err := db.DeleteField(rest[0]); err != nil {
			return err
		}
		fmt.Fprintf(e.out, "deleted %s\n", rest[0])
		return nil
	case "mask":
		return storeMask(e, db, rest)
	default:
		return storeStats(e, db, rest)
	}
}

func storePut(e *env, db *store.DB, args []string) error {
	if len(args) < 1 || len(args) > 2 {
		printStoreUsage(e)
		return errUsage
	}
	f, err := serialize.ReadFile(args[0])
	if err != nil {
		return err
	}
	name := strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0]))
	if len(args) == 2 {
		name = args[1]
	}
	id, err := db.SaveField(name, f)
	if err != nil {
		return err
	}
	fmt.Fprintln(e.out, id)
	return nil
}

func storeGet(e *env, db *store.DB, args []string) error {
	if len(args) != 2 {
		printStoreUsage(e)
		return errUsage
	}
	f, err := db.LoadField(args[0])
	if err != nil {
		return err
	}
	return serialize.WriteFile(args[1], f)
}

func storeList(e *env, db *store.DB) error {
	infos, err := db.ListFields()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(e.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tPIXELS\tSIZE\tCREATED")
	for _, fi := range infos {
		fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%gx%g %s\t%s\n", fi.ID, fi.Name, fi.XRes, fi.YRes,
			fi.XReal, fi.YReal, fi.XYUnit, fi.Created.Format("2006-01-02 15:04:05"))
	}
	return tw.Flush()
}

func storeMask(e *env, db *store.DB, args []string) error {
	fs := newFlagSet("store mask", storeActions["mask"])
	th := addThresholdFlags(fs)
	if err := parseArgs(fs, args, 2); err != nil {
		return err
	}
	f, err := db.LoadField(fs.Arg(0))
	if err != nil {
		return err
	}
	*th.masking = "include"
	sel, err := th.selection(f)
	if err != nil {
		return err
	}
	id, err := db.SaveMask(fs.Arg(0), fs.Arg(1), sel.Mask)
	if err != nil {
		return err
	}
	fmt.Fprintf(e.out, "%s (%d pixels, %d grains)\n", id, sel.Mask.Count(nil, true), sel.Mask.GrainCount())
	return nil
}

func storeStats(e *env, db *store.DB, args []string) error {
	fs := newFlagSet("store stats", storeActions["stats"])
	maskID := fs.String("mask", "", "stored mask id")
	maskingName := fs.String("masking", "include", "include or exclude the mask")
	record := fs.Bool("record", false, "save the result in the database")
	if err := parseArgs(fs, args, 1); err != nil {
		return err
	}
	id := fs.Arg(0)
	f, err := db.LoadField(id)
	if err != nil {
		return err
	}
	sel := field.NoMask()
	if *maskID != "" {
		masking, err := field.ParseMasking(*maskingName)
		if err != nil {
			return err
		}
		m, err := db.LoadMask(*maskID)
		if err != nil {
			return err
		}
		sel = field.Select(m, masking)
	}
	st, ok := f.Statistics(nil, sel)
	if !ok {
		return fmt.Errorf("no pixels selected")
	}
	fmt.Fprintf(e.out, "n=%d min=%g max=%g mean=%g median=%g ra=%g rms=%g skew=%g kurtosis=%g\n",
		st.N, st.Min, st.Max, st.Mean, st.Median, st.Ra, st.RMS, st.Skew, st.Kurtosis)
	if *record {
		return db.RecordStats(id, *maskID, sel.Masking, st)
	}
	return nil
}

func runMigrate(e *env, args []string) error {
	fs := newFlagSet("migrate", "[-db path] <up|down|status|version|force|help> [args]")
	dbPath := fs.String("db", e.cfg.GetDBPath(), "database file")
	if err := fs.Parse(args); err != nil {
		return err
	}
	return store.RunMigrateCommand(fs.Args(), *dbPath, e.out)
}

func runServe(e *env, args []string) error {
	fs := newFlagSet("serve", "[flags]")
	dbPath := fs.String("db", e.cfg.GetDBPath(), "database file")
	listen := fs.String("listen", e.cfg.GetListenAddr(), "HTTP listen address")
	assets := fs.String("assets", "", "host serving the echarts scripts (default: the echarts CDN)")
	if err := parseArgs(fs, args, 0); err != nil {
		return err
	}

	db, err := store.NewDB(*dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	s := server.NewServer(db, e.opts)
	s.SetChartOptions(render.ChartOptions{AssetsHost: *assets, MaxPoints: e.cfg.GetChartMaxPoints()})
	mux := s.ServeMux()
	if err := db.AttachAdminRoutes(mux); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	fmt.Fprintf(e.out, "serving %s on %s\n", *dbPath, *listen)
	return server.ListenAndServe(ctx, *listen, server.LoggingMiddleware(mux))
}
