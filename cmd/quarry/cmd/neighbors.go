package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/quarrylabs/quarry/internal/store"
	"github.com/quarrylabs/quarry/internal/symbol"
)

// neighborsOptions holds CLI flags for neighbors.
type neighborsOptions struct {
	depth  int
	fanout int
	dir    string
	format string
}

func newNeighborsCmd() *cobra.Command {
	var opts neighborsOptions

	cmd := &cobra.Command{
		Use:   "neighbors <symbol-id>",
		Short: "Walk the relation graph from a symbol",
		Long: `Walk the relation graph outward from a symbol and print the
reachable neighbors with their hop distances.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNeighbors(cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.depth, "depth", "d", 1, "Traversal depth (1-5)")
	cmd.Flags().IntVar(&opts.fanout, "fanout", 50, "Neighbors per node")
	cmd.Flags().StringVar(&opts.dir, "direction", "both", "Edge direction: out, in, both")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text, json")

	return cmd
}

func runNeighbors(cmd *cobra.Command, rawID string, opts neighborsOptions) error {
	id, err := symbol.ParseID(rawID)
	if err != nil {
		return err
	}

	var dir store.Direction
	switch opts.dir {
	case "out":
		dir = store.DirectionOut
	case "in":
		dir = store.DirectionIn
	case "both":
		dir = store.DirectionBoth
	default:
		return fmt.Errorf("unknown direction %q (supported: out, in, both)", opts.dir)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	cleanupLog := setupLogging(cfg, false)
	defer cleanupLog()

	_, facade, cleanup, err := openPipeline(cfg)
	if err != nil {
		return err
	}
	defer cleanup()

	ctx := cmd.Context()
	hops, err := facade.TraverseKHop(ctx, id, opts.depth, opts.fanout, dir)
	if err != nil {
		return err
	}

	ids := make([]symbol.ID, len(hops))
	distance := make(map[symbol.ID]int, len(hops))
	for i, h := range hops {
		ids[i] = h.ID
		distance[h.ID] = h.Distance
	}
	syms, err := facade.Hydrate(ctx, ids)
	if err != nil {
		return err
	}

	if opts.format == "json" {
		type neighbor struct {
			ID            string `json:"id"`
			QualifiedName string `json:"qualified_name"`
			Kind          string `json:"kind"`
			FilePath      string `json:"file_path"`
			HopDistance   int    `json:"hop_distance"`
		}
		out := make([]neighbor, 0, len(syms))
		for _, sym := range syms {
			out = append(out, neighbor{
				ID:            sym.ID.String(),
				QualifiedName: sym.QualifiedName,
				Kind:          string(sym.Kind),
				FilePath:      sym.FilePath,
				HopDistance:   distance[sym.ID],
			})
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	for _, sym := range syms {
		fmt.Fprintf(cmd.OutOrStdout(), "%d  %-10s %s  %s\n",
			distance[sym.ID], sym.Kind, sym.QualifiedName, sym.FilePath)
	}
	return nil
}
