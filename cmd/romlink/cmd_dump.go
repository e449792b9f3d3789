package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/romlink/pkg/classfile"
	"github.com/odvcencio/romlink/pkg/image"
	"github.com/odvcencio/romlink/pkg/link"
)

func newDumpCmd() *cobra.Command {
	var pool bool
	cmd := &cobra.Command{
		Use:   "dump <class-or-image>",
		Short: "Print the contents of a class unit or an image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			w := cmd.OutOrStdout()
			if !image.IsImage(data) {
				c, err := classfile.Parse(data, classfile.ReadOptions{})
				if err != nil {
					return err
				}
				dumpClass(w, c, pool)
				return nil
			}

			img, err := image.Read(data)
			if err != nil {
				return err
			}
			fmt.Fprintf(w, "image version %d, %d entr(ies), compressed=%v stripped=%v\n",
				img.Header.Version, img.Header.NumEntries, img.Header.Compressed(), img.Header.Stripped())
			fmt.Fprintf(w, "checksum %s\n", img.Checksum)
			for _, e := range img.Entries {
				fmt.Fprintf(w, "%-5s %8d %6d %s\n", e.Kind, e.Offset, len(e.Data), e.Name)
			}
			classes, shared, err := link.ReadImage(img)
			if err != nil {
				return err
			}
			if shared != nil && pool {
				fmt.Fprintln(w)
				fmt.Fprintf(w, "shared pool (%d slots)\n", shared.Len())
				dumpPool(w, shared)
			}
			for _, c := range classes {
				fmt.Fprintln(w)
				dumpClass(w, c, pool && shared == nil)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&pool, "pool", false, "list constant pools")
	return cmd
}

func dumpClass(w io.Writer, c *classfile.Class, pool bool) {
	fmt.Fprintf(w, "class %s", c.Name)
	if c.SuperName != "" {
		fmt.Fprintf(w, " extends %s", c.SuperName)
	}
	for i, name := range c.InterfaceNames {
		if i == 0 {
			fmt.Fprint(w, " implements ")
		} else {
			fmt.Fprint(w, ", ")
		}
		fmt.Fprint(w, name)
	}
	fmt.Fprintf(w, " (version %d.%d, access 0x%04x, %d pool slots)\n", c.MajorVersion, c.MinorVersion, uint16(c.Access), c.Pool.Len())
	if pool {
		dumpPool(w, c.Pool)
	}
	for _, f := range c.Fields {
		fmt.Fprintf(w, "  field  0x%04x %s:%s\n", uint16(f.Access), f.Name, f.Descriptor)
	}
	for _, m := range c.Methods {
		fmt.Fprintf(w, "  method 0x%04x %s%s\n", uint16(m.Access), m.Name, m.Descriptor)
		code := m.Code()
		if code == nil {
			continue
		}
		insns, err := code.Instructions()
		if err != nil {
			fmt.Fprintf(w, "    <bad code: %v>\n", err)
			continue
		}
		for _, in := range insns {
			if in.Ref == 0 {
				continue
			}
			fmt.Fprintf(w, "    %4d %s #%d\n", in.PC, in.Mnemonic(), in.Ref)
		}
	}
}

func dumpPool(w io.Writer, p *classfile.Pool) {
	for _, k := range p.Constants() {
		fmt.Fprintf(w, "  #%-4d %s\n", k.Index, k)
	}
}
