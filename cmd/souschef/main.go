package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ksattari/souschef/config"
	"github.com/ksattari/souschef/internal/llm"
	"github.com/ksattari/souschef/internal/pipeline"
	"github.com/ksattari/souschef/internal/search"
	"github.com/ksattari/souschef/internal/server"
	"github.com/ksattari/souschef/internal/telemetry"
)

func main() {
	var root = &cobra.Command{Use: "souschef"}
	root.AddCommand(serveCMD(), recommendCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func serveCMD() *cobra.Command {
	var cfgPath string
	var serve = &cobra.Command{
		Use:   "serve",
		Short: "Run HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			return server.Run(cfg)
		},
	}
	serve.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	return serve
}

func recommendCMD() *cobra.Command {
	var cfgPath string
	var skill string
	var restrictions []string
	var recommend = &cobra.Command{
		Use:   "recommend [learning goal]",
		Short: "Run one recommendation from the command line",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadConfig(cfgPath)
			if err != nil {
				return err
			}
			tele := telemetry.NewTelemetry(cfg.Telemetry)

			provider, err := llm.NewProvider(cfg.LLM)
			if err != nil {
				return err
			}
			provider = llm.WithUsageRecording(provider, tele)

			searcher, err := search.NewSearcher(cfg.Search)
			if err != nil {
				return err
			}
			searcher = search.WithCallRecording(searcher, tele)

			orch := pipeline.NewOrchestrator(pipeline.OrchestratorParams{
				Planner:        pipeline.NewPlanner(provider, cfg.Pipeline.MaxQueries, cfg.Pipeline.QueryLengthCap),
				Retriever:      pipeline.NewRetriever(searcher, provider, cfg.Pipeline.MaxQueries),
				Selector:       pipeline.NewSelector(pipeline.DefaultScoringPolicy(), provider, cfg.Pipeline.TopK, cfg.Pipeline.TitleSimilarityCutoff),
				Enricher:       pipeline.NewEnricher(provider),
				Telemetry:      tele,
				MinAcceptable:  cfg.Pipeline.MinAcceptableCandidates,
				MaxRetries:     cfg.Pipeline.MaxRetries,
				RequestTimeout: cfg.General.RequestTimeout,
			})

			req := pipeline.Request{
				LearningGoal:        strings.Join(args, " "),
				SkillLevel:          pipeline.SkillLevel(skill),
				DietaryRestrictions: restrictions,
			}
			if err := req.Validate(); err != nil {
				return err
			}

			resp, err := orch.Run(context.Background(), req)
			if err != nil {
				return err
			}
			out, err := json.MarshalIndent(resp, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(out))
			return nil
		},
	}
	recommend.Flags().StringVarP(&cfgPath, "config", "c", "", "config file (default is .)")
	recommend.Flags().StringVarP(&skill, "skill", "s", "intermediate", "skill level (beginner, intermediate, advanced)")
	recommend.Flags().StringSliceVarP(&restrictions, "diet", "d", nil, "dietary restrictions")
	return recommend
}
