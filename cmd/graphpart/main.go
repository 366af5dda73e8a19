package main

import (
	"context"
	"fmt"
	"os"
	"runtime"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/graphpart/graphpart/pkg/config"
	"github.com/graphpart/graphpart/pkg/edgelist"
	"github.com/graphpart/graphpart/pkg/logger"
	"github.com/graphpart/graphpart/pkg/storage"
	"github.com/graphpart/graphpart/pkg/xerrors"

	// Import storage backends to register them
	_ "github.com/graphpart/graphpart/pkg/storage/fs"
	_ "github.com/graphpart/graphpart/pkg/storage/s3"
)

var version = "0.1.0"

func main() {
	var configFile string
	var logLevel string
	cfg := config.Default()

	root := &cobra.Command{
		Use:   "graphpart",
		Short: "graphpart - partitioned shard storage for graph embedding training",
		Long: `graphpart manages the partitioned on-disk storage used by graph-embedding
training pipelines: entity and relation-type metadata plus edge shards keyed
by partition pair, readable in streamable chunks.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configFile)
			if err != nil {
				return err
			}
			*cfg = *loaded
			if logLevel != "" {
				cfg.Log.Level = logLevel
			}
			return logger.Init(logger.Config{
				Level:       cfg.Log.Level,
				Development: cfg.Log.Development,
				Encoding:    cfg.Log.Encoding,
			})
		},
	}
	root.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to YAML configuration file (optional)")
	root.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level override (debug, info, warn, error)")

	root.AddCommand(versionCmd())
	root.AddCommand(schemesCmd())
	root.AddCommand(statCmd(cfg))
	root.AddCommand(verifyCmd(cfg))
	root.AddCommand(metaCmd(cfg))

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("graphpart v%s\n", version)
			fmt.Printf("Go version: %s\n", runtime.Version())
			fmt.Printf("OS/Arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}

func schemesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schemes",
		Short: "List registered storage backend schemes",
		Run: func(cmd *cobra.Command, args []string) {
			for _, scheme := range storage.GetRegistry().Schemes() {
				if scheme == "" {
					scheme = "(none)"
				}
				fmt.Printf("  - %s\n", scheme)
			}
		},
	}
}

func statCmd(cfg *config.Config) *cobra.Command {
	var lhsP, rhsP int
	cmd := &cobra.Command{
		Use:   "stat",
		Short: "Show edge counts for a partition pair shard",
		RunE: func(cmd *cobra.Command, args []string) error {
			es, err := storage.NewEdgeStorage(cfg.EdgePath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			ok, err := es.HasEdges(ctx, lhsP, rhsP)
			if err != nil {
				return err
			}
			if !ok {
				return xerrors.Newf(xerrors.ErrorTypeNotFound,
					"no shard for partition pair (%d, %d)", lhsP, rhsP)
			}

			edges, err := storage.LoadEdges(ctx, es, lhsP, rhsP)
			if err != nil {
				return err
			}

			out := map[string]interface{}{
				"lhs_partition": lhsP,
				"rhs_partition": rhsP,
				"num_edges":     edges.Len(),
				"lhs_features":  len(edges.LHS.Features.Data),
				"rhs_features":  len(edges.RHS.Features.Data),
			}
			return printJSON(out)
		},
	}
	cmd.Flags().IntVar(&lhsP, "lhs", 0, "Left-hand partition index")
	cmd.Flags().IntVar(&rhsP, "rhs", 0, "Right-hand partition index")
	return cmd
}

func verifyCmd(cfg *config.Config) *cobra.Command {
	var lhsP, rhsP, numChunks int
	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Read a shard chunk by chunk and verify the chunks tile it",
		RunE: func(cmd *cobra.Command, args []string) error {
			es, err := storage.NewEdgeStorage(cfg.EdgePath)
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			whole, err := storage.LoadEdges(ctx, es, lhsP, rhsP)
			if err != nil {
				return err
			}

			var streamed []*edgelist.EdgeList
			total := 0
			for i := 0; i < numChunks; i++ {
				chunk, err := es.LoadChunkOfEdges(ctx, lhsP, rhsP, i, numChunks)
				if err != nil {
					return err
				}
				streamed = append(streamed, chunk)
				total += chunk.Len()
			}
			if total != whole.Len() {
				return xerrors.Newf(xerrors.ErrorTypeData,
					"chunks cover %d edges, shard has %d", total, whole.Len())
			}

			pos := 0
			for i, chunk := range streamed {
				for j, rel := range chunk.Rel {
					if rel != whole.Rel[pos] ||
						chunk.LHS.IDs[j] != whole.LHS.IDs[pos] ||
						chunk.RHS.IDs[j] != whole.RHS.IDs[pos] {
						return xerrors.Newf(xerrors.ErrorTypeData,
							"chunk %d disagrees with full read at edge %d", i, pos)
					}
					pos++
				}
			}

			logger.Info("shard verified",
				zap.Int("lhs_partition", lhsP),
				zap.Int("rhs_partition", rhsP),
				zap.Int("num_edges", total),
				zap.Int("num_chunks", numChunks))
			fmt.Printf("OK: %d edges in %d chunks\n", total, numChunks)
			return nil
		},
	}
	cmd.Flags().IntVar(&lhsP, "lhs", 0, "Left-hand partition index")
	cmd.Flags().IntVar(&rhsP, "rhs", 0, "Right-hand partition index")
	cmd.Flags().IntVar(&numChunks, "chunks", 2, "Number of chunks to stream")
	return cmd
}

func metaCmd(cfg *config.Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "meta",
		Short: "Inspect entity and relation-type metadata",
	}

	var entityName string
	var partition int
	entityCmd := &cobra.Command{
		Use:   "entity",
		Short: "Show the count and names of an entity partition",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.NewEntityStorage(cfg.EntityPath)
			if err != nil {
				return err
			}
			return printEntityMeta(cmd.Context(), st, entityName, partition)
		},
	}
	entityCmd.Flags().StringVar(&entityName, "name", "", "Entity-type name")
	entityCmd.Flags().IntVar(&partition, "partition", 0, "Partition index")
	_ = entityCmd.MarkFlagRequired("name")
	cmd.AddCommand(entityCmd)

	relCmd := &cobra.Command{
		Use:   "rel",
		Short: "Show the relation-type count and names",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := storage.NewRelationTypeStorage(cfg.RelationTypePath)
			if err != nil {
				return err
			}
			return printRelMeta(cmd.Context(), st)
		},
	}
	cmd.AddCommand(relCmd)

	return cmd
}

func printEntityMeta(ctx context.Context, st storage.EntityStorage, name string, partition int) error {
	out := map[string]interface{}{
		"entity":    name,
		"partition": partition,
	}

	count, err := st.LoadCount(ctx, name, partition)
	switch {
	case err == nil:
		out["count"] = count
	case xerrors.IsNotFound(err):
		out["count"] = nil
	default:
		return err
	}

	names, err := st.LoadNames(ctx, name, partition)
	switch {
	case err == nil:
		out["num_names"] = len(names)
	case xerrors.IsNotFound(err):
		out["num_names"] = nil
	default:
		return err
	}

	return printJSON(out)
}

func printRelMeta(ctx context.Context, st storage.RelationTypeStorage) error {
	out := map[string]interface{}{}

	count, err := st.LoadCount(ctx)
	switch {
	case err == nil:
		out["count"] = count
	case xerrors.IsNotFound(err):
		out["count"] = nil
	default:
		return err
	}

	names, err := st.LoadNames(ctx)
	switch {
	case err == nil:
		out["names"] = names
	case xerrors.IsNotFound(err):
		out["names"] = nil
	default:
		return err
	}

	return printJSON(out)
}

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}
