package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	app "github.com/okian/yecs/internal/app"
	"github.com/okian/yecs/internal/config"
	"github.com/okian/yecs/internal/domain/model"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const defaultEvaluateParallelism = 4

var (
	evaluateParallel int
	evaluateOffline  bool
)

var evaluateCmd = &cobra.Command{
	Use:   "evaluate [profile.json ...]",
	Short: "Score one or more profiles and print the assessments as JSON",
	Long: "Reads each profile file (or stdin when none is given), scores it with the configured " +
		"inference provider, and prints one assessment per profile in argument order.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := bootstrap()
		if err != nil {
			return err
		}
		if evaluateOffline {
			cfg.InferenceProvider = config.ProviderNone
		}
		return evaluate(cmd.Context(), cfg, args, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	evaluateCmd.Flags().IntVarP(&evaluateParallel, "parallel", "p", defaultEvaluateParallelism, "Profiles scored concurrently")
	evaluateCmd.Flags().BoolVar(&evaluateOffline, "offline", false, "Skip the inference provider and use the fallback evaluator")
	rootCmd.AddCommand(evaluateCmd)
}

func evaluate(ctx context.Context, cfg *config.Config, paths []string, stdin io.Reader, out io.Writer) error {
	reqs, err := readProfiles(paths, stdin)
	if err != nil {
		return err
	}

	svc := app.New(app.WithConfig(cfg))
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("failed to start service: %w", err)
	}
	defer svc.Stop()

	results := make([]model.Assessment, len(reqs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(evaluateParallel, 1))
	for i, req := range reqs {
		g.Go(func() error {
			a, err := svc.Preview(gctx, req)
			if err != nil {
				return fmt.Errorf("%s: %w", req.Subject, err)
			}
			results[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(results)
}

// readProfiles loads one request per file. The subject is the file name
// without extension; stdin is read as subject "stdin".
func readProfiles(paths []string, stdin io.Reader) ([]app.EvaluateRequest, error) {
	if len(paths) == 0 {
		var p model.Profile
		if err := json.NewDecoder(stdin).Decode(&p); err != nil {
			return nil, fmt.Errorf("failed to decode profile from stdin: %w", err)
		}
		return []app.EvaluateRequest{{Subject: "stdin", Profile: p}}, nil
	}

	reqs := make([]app.EvaluateRequest, 0, len(paths))
	for _, path := range paths {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read profile file: %w", err)
		}
		var p model.Profile
		if err := json.Unmarshal(b, &p); err != nil {
			return nil, fmt.Errorf("failed to unmarshal profile %s: %w", path, err)
		}
		subject := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		reqs = append(reqs, app.EvaluateRequest{Subject: subject, Profile: p})
	}
	return reqs, nil
}
