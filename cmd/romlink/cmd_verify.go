package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/odvcencio/romlink/pkg/image"
	"github.com/odvcencio/romlink/pkg/link"
)

func newVerifyCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "verify <image>",
		Short: "Verify image and index integrity and decode every unit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read image: %w", err)
			}
			img, err := image.Read(data)
			if err != nil {
				return err
			}
			classes, shared, err := link.ReadImage(img)
			if err != nil {
				return err
			}

			indexed := 0
			idxData, err := os.ReadFile(args[0] + indexSuffix)
			switch {
			case errors.Is(err, os.ErrNotExist):
			case err != nil:
				return fmt.Errorf("read index: %w", err)
			default:
				if indexed, err = verifyIndex(data, idxData, img); err != nil {
					return err
				}
			}

			fmt.Fprintf(
				cmd.OutOrStdout(),
				"ok: verified %d class(es), %d indexed entr(ies), shared pool: %v\n",
				len(classes),
				indexed,
				shared != nil,
			)
			return nil
		},
	}
}

func verifyIndex(data, idxData []byte, img *image.Image) (int, error) {
	idx, err := image.ReadIndex(idxData)
	if err != nil {
		return 0, err
	}
	if idx.ImageChecksum != img.Checksum {
		return 0, fmt.Errorf("index belongs to image %s, not %s", idx.ImageChecksum, img.Checksum)
	}
	if idx.Len() != len(img.Entries) {
		return 0, fmt.Errorf("index has %d entries, image has %d", idx.Len(), len(img.Entries))
	}
	for _, at := range idx.Entries() {
		e, err := image.ReadEntryAt(data, at)
		if err != nil {
			return 0, err
		}
		full, ok := img.Find(at.Name)
		if !ok || !bytes.Equal(full.Data, e.Data) {
			return 0, fmt.Errorf("index entry %s does not match the image", at.Name)
		}
	}
	return idx.Len(), nil
}
