package main

import (
	"errors"
	"fmt"
	"io"
	"log"
	"os"

	"github.com/spf13/pflag"

	"github.com/tinytelemetry/hubtrail/internal/exchange"
	"github.com/tinytelemetry/hubtrail/internal/seqstore"
)

// runExport writes the store to FILE, or to stdout for "-".
func runExport(cfg appConfig, args []string, stdout, stderr io.Writer) error {
	var encoding, dataDir string
	flagSet := pflag.NewFlagSet("export", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&encoding, "encoding", string(exchange.EncodingRaw), "payload encoding: raw, base64 or json")
	flagSet.StringVar(&dataDir, "data-dir", "", "store directory (overrides data-dir from config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("export: expected exactly one FILE argument (use - for stdout)")
	}
	enc, err := exchange.ParseEncoding(encoding)
	if err != nil {
		return err
	}

	log.SetOutput(stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	store, err := openPersistentStore(cfg, dataDir, "export")
	if err != nil {
		return err
	}
	defer store.Close()

	target := flagSet.Arg(0)
	out, closeOut, err := openOutput(target, stdout)
	if err != nil {
		return fmt.Errorf("export: %w", err)
	}

	stats, err := exchange.Export(out, store, enc)
	if cerr := closeOut(); err == nil && cerr != nil {
		err = fmt.Errorf("export: close %s: %w", target, cerr)
	}
	if errors.Is(err, exchange.ErrUnframeable) {
		return fmt.Errorf("export: %w; rerun with --encoding base64", err)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "exported %d records to %s", stats.Records, target)
	if stats.Undecodable > 0 || stats.Unreadable > 0 {
		fmt.Fprintf(stderr, " (%d undecodable, %d unreadable skipped)", stats.Undecodable, stats.Unreadable)
	}
	fmt.Fprintln(stderr)
	return nil
}

// runImport appends the records of FILE, or stdin for "-", to the store.
func runImport(cfg appConfig, args []string, stdin io.Reader, stderr io.Writer) error {
	var encoding, dataDir string
	var verify bool
	flagSet := pflag.NewFlagSet("import", pflag.ContinueOnError)
	flagSet.SetOutput(stderr)
	flagSet.StringVar(&encoding, "encoding", string(exchange.EncodingRaw), "payload encoding: raw or base64")
	flagSet.BoolVar(&verify, "verify", false, "skip payloads that do not decode as events")
	flagSet.StringVar(&dataDir, "data-dir", "", "store directory (overrides data-dir from config)")
	if err := flagSet.Parse(args); err != nil {
		return err
	}
	if flagSet.NArg() != 1 {
		return fmt.Errorf("import: expected exactly one FILE argument (use - for stdin)")
	}
	enc, err := exchange.ParseEncoding(encoding)
	if err != nil {
		return err
	}
	if enc == exchange.EncodingJSON {
		return fmt.Errorf("import: json encoding is export-only")
	}

	log.SetOutput(stderr)
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	source := flagSet.Arg(0)
	in := stdin
	if source != "-" {
		f, err := os.Open(source)
		if err != nil {
			return fmt.Errorf("import: %w", err)
		}
		defer f.Close()
		in = f
	}

	store, err := openPersistentStore(cfg, dataDir, "import")
	if err != nil {
		return err
	}
	defer store.Close()

	stats, err := exchange.Import(in, store, exchange.ImportOptions{Encoding: enc, Verify: verify})
	if err != nil {
		return err
	}

	fmt.Fprintf(stderr, "imported %d records from %s", stats.Imported, source)
	if stats.Imported > 0 {
		fmt.Fprintf(stderr, " as seq %d..%d", stats.FirstSeq, stats.LastSeq)
	}
	if stats.Skipped > 0 || stats.Rejected > 0 {
		fmt.Fprintf(stderr, " (%d lines skipped, %d rejected)", stats.Skipped, stats.Rejected)
	}
	fmt.Fprintln(stderr)
	return nil
}

func openPersistentStore(cfg appConfig, override, op string) (*seqstore.Store, error) {
	dir := cfg.DataDir
	if override != "" {
		dir = override
	} else if cfg.Ephemeral {
		return nil, errors.New(op + ": configured store is ephemeral; pass --data-dir")
	}
	store, err := seqstore.Open(dir)
	if err != nil {
		return nil, fmt.Errorf("%s: open store at %s: %w", op, dir, err)
	}
	return store, nil
}

func openOutput(target string, stdout io.Writer) (io.Writer, func() error, error) {
	if target == "-" {
		return stdout, func() error { return nil }, nil
	}
	f, err := os.Create(target)
	if err != nil {
		return nil, nil, err
	}
	return f, f.Close, nil
}
