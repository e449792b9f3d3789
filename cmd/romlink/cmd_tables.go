package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odvcencio/romlink/pkg/layout"
	"github.com/odvcencio/romlink/pkg/link"
)

func newTablesCmd() *cobra.Command {
	var only string
	cmd := &cobra.Command{
		Use:   "tables <inputs...>",
		Short: "Print field and method tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			diag := &link.Collector{Next: link.NewLogDiagnostics("romlink")}
			l := link.New(link.Options{Relocatable: true}, diag)
			if err := l.LoadPaths(args); err != nil {
				return err
			}
			l.Resolve()
			l.BuildTables()

			w := cmd.OutOrStdout()
			for _, u := range l.Units() {
				c := u.Class
				if only != "" && c.Name != only {
					continue
				}
				header := c.Name
				if c.SuperName != "" {
					header += " extends " + c.SuperName
				}
				fmt.Fprintf(w, "%s (size %d)\n", header, layout.InstanceSize(c))
				for _, f := range c.FieldTable {
					fmt.Fprintf(w, "  field  %3d %s:%s (%s)\n", f.Offset, f.Name, f.Descriptor, f.Class.Name)
				}
				for i := range c.MethodTable {
					m := layout.MethodAt(c, i)
					fmt.Fprintf(w, "  method %3d %s%s (%s)\n", i, m.Name, m.Descriptor, m.Class.Name)
				}
			}
			if len(diag.Errors) > 0 {
				fmt.Fprintln(w, diag.Summary())
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&only, "class", "", "print only this class")
	return cmd
}
