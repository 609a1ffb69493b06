package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/btmesh-go/mesh-go/internal/appconfig"
	"github.com/btmesh-go/mesh-go/pkg/model"
)

func newModelsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "models",
		Short: "List the model names usable in application definitions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return listModels(cmd.OutOrStdout(), appconfig.NewRegistry())
		},
	}
}

func listModels(w io.Writer, reg *model.Registry) error {
	fmt.Fprintf(w, "%-16s %-22s %s\n", "NAME", "MODEL", "CAPABILITIES")
	for _, name := range reg.Names() {
		id, err := reg.Identifier(name)
		if err != nil {
			return err
		}
		sub, pub, err := reg.Capabilities(name)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%-16s %-22s %s\n", name, id.String(), capabilities(sub, pub))
	}
	return nil
}

func capabilities(sub, pub bool) string {
	switch {
	case sub && pub:
		return "subscribe,publish"
	case sub:
		return "subscribe"
	case pub:
		return "publish"
	default:
		return "-"
	}
}
