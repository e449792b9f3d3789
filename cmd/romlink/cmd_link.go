package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/odvcencio/romlink/pkg/config"
	"github.com/odvcencio/romlink/pkg/image"
	"github.com/odvcencio/romlink/pkg/link"
)

// indexSuffix is appended to the image path to name its index.
const indexSuffix = ".idx"

func newLinkCmd() *cobra.Command {
	var (
		out         string
		linkMap     string
		noCompress  bool
		strip       bool
		shared      bool
		keepUnknown bool
		noVerify    bool
	)
	cmd := &cobra.Command{
		Use:   "link [inputs...]",
		Short: "Link class units into an image",
		Long: `Link reads .class files (directories are searched recursively), resolves
superclasses and interfaces, builds field and method tables, compacts the
constant pools and writes an image, its index and a link map.

Inputs and options default to the nearest romlink.toml.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			flags := cmd.Flags()
			if flags.Changed("out") {
				cfg.Output.Image = out
			}
			if flags.Changed("link-map") {
				cfg.Output.LinkMap = linkMap
			}
			if noCompress {
				cfg.Output.Compress = false
			}
			if strip {
				cfg.Link.Relocatable = false
			}
			if shared {
				cfg.Link.SharedPool = true
			}
			if keepUnknown {
				cfg.Link.KeepUnknownAttributes = true
			}
			if noVerify {
				cfg.Link.VerifyMembers = false
			}
			inputs := cfg.InputPaths()
			if len(args) > 0 {
				inputs = args
			}
			return runLink(cmd, cfg, inputs)
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "image path")
	cmd.Flags().StringVar(&linkMap, "link-map", "", "link map path; empty disables")
	cmd.Flags().BoolVar(&noCompress, "no-compress", false, "store entries uncompressed")
	cmd.Flags().BoolVar(&strip, "strip", false, "drop attribute names (not relocatable)")
	cmd.Flags().BoolVar(&shared, "shared-pool", false, "move all constants into one shared pool")
	cmd.Flags().BoolVar(&keepUnknown, "keep-unknown-attributes", false, "keep uninterpreted attributes")
	cmd.Flags().BoolVar(&noVerify, "no-verify-members", false, "skip member reference checks")
	return cmd
}

func runLink(cmd *cobra.Command, cfg *config.Config, inputs []string) error {
	diag := &link.Collector{Next: link.NewLogDiagnostics("romlink")}
	l := link.New(link.OptionsFrom(cfg), diag)
	if err := l.Run(inputs); err != nil {
		return err
	}
	units := l.Units()
	if len(units) == 0 {
		return fmt.Errorf("no units linked (%s)", diag.Summary())
	}

	var buf bytes.Buffer
	emitted, err := l.Emit(&buf, cfg.Output.Compress)
	if err != nil {
		return err
	}
	imagePath := cfg.Resolve(cfg.Output.Image)
	if err := writeFile(imagePath, buf.Bytes()); err != nil {
		return err
	}
	var idx bytes.Buffer
	if _, err := image.WriteIndex(&idx, emitted.Index, emitted.Checksum); err != nil {
		return err
	}
	if err := writeFile(imagePath+indexSuffix, idx.Bytes()); err != nil {
		return err
	}
	if cfg.Output.LinkMap != "" {
		data, err := link.MarshalLinkMap(l.BuildLinkMap())
		if err != nil {
			return err
		}
		if err := writeFile(cfg.Resolve(cfg.Output.LinkMap), data); err != nil {
			return err
		}
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "linked %d unit(s) into %s (%s)\n", len(units), imagePath, emitted.Checksum)
	if p := l.SharedPool(); p != nil {
		fmt.Fprintf(w, "shared pool: %d slot(s)\n", p.Len())
	}
	for _, u := range l.Failed() {
		fmt.Fprintf(w, "skipped %s: %v\n", u.Class.Name, u.Err)
	}
	fmt.Fprintln(w, diag.Summary())
	return nil
}

func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
