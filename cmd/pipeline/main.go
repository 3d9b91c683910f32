package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"ci-mapping/config"
	"ci-mapping/services"
	"ci-mapping/storage"
)

const (
	FlagStep      = "step"
	FlagCohort    = "cohort"
	FlagMinWeight = "min-weight"
	FlagNeo4j     = "neo4j"
	FlagGraph     = "graph"
)

func init() {
	runCmd.Flags().StringSlice(FlagStep, nil, "only run these steps (default: all)")

	cooccurrenceCmd.Flags().StringSlice(FlagCohort, nil, "cohort labels to include (default: COOCCURRENCE_COHORTS)")
	cooccurrenceCmd.Flags().Int(FlagMinWeight, -1, "keep edges with weight above this value (default: COOCCURRENCE_MIN_WEIGHT)")
	cooccurrenceCmd.Flags().Bool(FlagNeo4j, false, "export the edges to neo4j instead of printing them")
	cooccurrenceCmd.Flags().String(FlagGraph, "", "graph name for the neo4j export")

	rootCmd.AddCommand(&runCmd, &stepsCmd, &cooccurrenceCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

var rootCmd = cobra.Command{
	Use:          "pipeline",
	Short:        "collects MAG papers and classifies them into cohorts",
	Version:      "0.1.0",
	SilenceUsage: true,
}

var runCmd = cobra.Command{
	Use:   "run",
	Short: "runs the pipeline or a subset of its steps",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		steps, err := cmd.Flags().GetStringSlice(FlagStep)
		if err != nil {
			return fmt.Errorf("getting steps: %w", err)
		}
		return withEnv(func(env *env) error {
			flow, err := services.NewMAGFlow(env.cfg, env.store, env.logger, services.NewMetrics())
			if err != nil {
				return err
			}
			pipeline, err := flow.Pipeline()
			if err != nil {
				return err
			}
			return pipeline.Run(cmd.Context(), steps...)
		})
	},
}

var stepsCmd = cobra.Command{
	Use:   "steps",
	Short: "prints the step graph in execution order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		flow := &services.MAGFlow{Logger: zap.NewNop()}
		pipeline, err := flow.Pipeline()
		if err != nil {
			return err
		}
		for i, wave := range pipeline.Waves() {
			for _, name := range wave {
				step, _ := pipeline.Step(name)
				fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i, name, strings.Join(step.DependsOn, ","))
			}
		}
		return nil
	},
}

var cooccurrenceCmd = cobra.Command{
	Use:   "cooccurrence",
	Short: "computes the field-of-study cooccurrence graph of the selected cohorts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cohorts, err := cmd.Flags().GetStringSlice(FlagCohort)
		if err != nil {
			return fmt.Errorf("getting cohorts: %w", err)
		}
		minWeight, err := cmd.Flags().GetInt(FlagMinWeight)
		if err != nil {
			return fmt.Errorf("getting min weight: %w", err)
		}
		toNeo4j, err := cmd.Flags().GetBool(FlagNeo4j)
		if err != nil {
			return fmt.Errorf("getting neo4j flag: %w", err)
		}
		graphName, err := cmd.Flags().GetString(FlagGraph)
		if err != nil {
			return fmt.Errorf("getting graph name: %w", err)
		}

		return withEnv(func(env *env) error {
			if len(cohorts) == 0 {
				cohorts = env.cfg.CooccurrenceCohorts
			}
			if minWeight < 0 {
				minWeight = env.cfg.CooccurrenceMinWeight
			}
			edges, err := services.CooccurrenceEdges(env.store.DB, cohorts, minWeight)
			if err != nil {
				return fmt.Errorf("computing cooccurrence: %w", err)
			}

			if !toNeo4j {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(edges)
			}

			ctx := cmd.Context()
			graph, err := storage.OpenGraph(ctx, env.cfg, env.logger)
			if err != nil {
				return err
			}
			if graph == nil {
				return fmt.Errorf("NEO4J_URI is not set")
			}
			defer graph.Close(ctx)
			if graphName == "" {
				graphName = "cooccurrence_" + strings.Join(cohorts, "_")
			}
			if err := services.ExportCooccurrence(ctx, graph, graphName, edges); err != nil {
				return err
			}
			env.logger.Info("Kookkurrenz-Graph exportiert", zap.String("graph", graphName), zap.Int("edges", len(edges)))
			return nil
		})
	},
}

type env struct {
	cfg    *config.Config
	store  *storage.Store
	logger *zap.Logger
}

// withEnv lädt Konfiguration, Logger und Datenbank für ein Kommando.
func withEnv(fn func(*env) error) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("can't initialize zap logger: %w", err)
	}
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	store, err := storage.OpenPostgres(cfg, logger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		return fmt.Errorf("migrating: %w", err)
	}
	return withLogged(logger, fn(&env{cfg: cfg, store: store, logger: logger}))
}

func withLogged(logger *zap.Logger, err error) error {
	if err != nil {
		logger.Error("Kommando fehlgeschlagen", zap.Error(err))
	}
	return err
}
