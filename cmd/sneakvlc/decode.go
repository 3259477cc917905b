package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rescp17/sneakvlc/pkg/descriptor"
	"github.com/rescp17/sneakvlc/pkg/failure"
)

func newDecodeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "decode <descriptor>",
		Short: "Check a descriptor and print its fields",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := descriptor.Decode(args[0])
			if err != nil {
				return errors.New(failure.Message(err))
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "hash:    %s\n", d.Hash)
			fmt.Fprintf(out, "ip:      %s\n", d.IP)
			fmt.Fprintf(out, "port:    %d\n", d.Port)
			fmt.Fprintf(out, "address: %s\n", d.Address())
			fmt.Fprintf(out, "encoded: %s\n", descriptor.Encode(d))
			return nil
		},
	}
}
