package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/spindleci/spindle/config"
	"github.com/spindleci/spindle/errors"
	"github.com/spindleci/spindle/pipeline"
	"github.com/spindleci/spindle/publish"
	"github.com/spindleci/spindle/runner"
	"github.com/spindleci/spindle/secrets"
	envprovider "github.com/spindleci/spindle/secrets/providers/env"
	"github.com/spindleci/spindle/vcs"
)

const defaultPipelineFile = "pipeline.yml"

var (
	runEvent  string
	runBranch string
	runCommit string
)

var runCmd = &cobra.Command{
	Use:   "run [pipeline file]",
	Short: "execute a pipeline",
	Long: `Run executes the pipeline definition against the current checkout.
Secrets declared by stages are resolved from the process environment before
the first stage starts; a missing secret aborts the run.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := defaultPipelineFile
		if len(args) == 1 {
			path = args[0]
		}

		cfg, err := config.FromViper(viper.GetViper())
		if err != nil {
			return err
		}

		def, graph, err := pipeline.Load(path)
		if err != nil {
			return err
		}

		trigger, err := resolveTrigger()
		if err != nil {
			return err
		}

		snapshot, err := loadSecrets(cmd, graph, cfg)
		if err != nil {
			return err
		}
		defer snapshot.Close()

		opts := []runner.Option{
			runner.WithLogger(log.Logger),
			runner.WithMaxParallel(cfg.MaxParallel),
			runner.WithStepTimeout(cfg.StepTimeout),
			runner.WithRepository(cfg.ImageName()),
		}
		if pub, err := buildPublisher(graph, cfg); err != nil {
			return err
		} else if pub != nil {
			opts = append(opts, runner.WithPublisher(pub))
		}

		result, err := runner.New(snapshot, opts...).Run(cmd.Context(), def, graph, trigger)
		if err != nil {
			return err
		}

		printSummary(result, graph)
		if !result.Succeeded {
			return errors.New(errors.CodeExecutionFailed, "pipeline failed")
		}
		return nil
	},
}

func init() {
	runCmd.Flags().StringVar(&runEvent, "event", string(pipeline.EventPush), "trigger event (push or pull_request)")
	runCmd.Flags().StringVar(&runBranch, "branch", "", "trigger branch (defaults to the checked-out branch)")
	runCmd.Flags().StringVar(&runCommit, "commit", "", "commit ref (defaults to HEAD)")
	rootCmd.AddCommand(runCmd)
}

func resolveTrigger() (pipeline.Trigger, error) {
	if runCommit != "" && runBranch != "" {
		trig := pipeline.Trigger{
			Event:     pipeline.EventType(runEvent),
			Branch:    runBranch,
			CommitRef: runCommit,
		}
		return trig, trig.Validate()
	}

	trig, err := vcs.Trigger(".", pipeline.EventType(runEvent), runBranch)
	if err != nil {
		return pipeline.Trigger{}, err
	}
	if runCommit != "" {
		trig.CommitRef = runCommit
	}
	return trig, trig.Validate()
}

// loadSecrets snapshots every secret any stage declares. Resolution is
// all-or-nothing: a declared secret missing from the environment fails the
// run before any stage starts.
func loadSecrets(cmd *cobra.Command, graph *pipeline.Graph, cfg *config.Config) (*secrets.Snapshot, error) {
	manager := secrets.NewManager(&secrets.Config{DefaultProvider: "env"})
	if err := manager.RegisterProvider("env", envprovider.New(cfg.SecretEnvPrefix)); err != nil {
		return nil, err
	}
	defer manager.Close()

	names := make([]string, 0)
	seen := make(map[string]struct{})
	for _, stage := range graph.Stages() {
		for _, name := range stage.Secrets {
			if _, dup := seen[name]; dup {
				continue
			}
			seen[name] = struct{}{}
			names = append(names, name)
		}
	}
	return manager.Snapshot(cmd.Context(), names)
}

// buildPublisher connects to the Docker daemon only when a stage needs it.
func buildPublisher(graph *pipeline.Graph, cfg *config.Config) (publish.Publisher, error) {
	needed := false
	for _, stage := range graph.Stages() {
		if stage.Publish != nil {
			needed = true
			break
		}
	}
	if !needed {
		return nil, nil
	}

	opts := []publish.DockerOption{
		publish.WithLogger(log.Logger),
		publish.WithBuildOutput(os.Stdout),
	}
	if cfg.VerifyPush {
		opts = append(opts, publish.WithVerifier(&publish.ORASVerifier{PlainHTTP: cfg.PlainHTTP}))
	}
	return publish.NewDockerPublisher(opts...)
}

func printSummary(result *runner.Result, graph *pipeline.Graph) {
	fmt.Printf("pipeline %s: ", result.Pipeline)
	if result.Succeeded {
		fmt.Println("succeeded")
	} else {
		fmt.Println("failed")
	}
	for _, name := range graph.TopologicalOrder() {
		sr := result.Stages[name]
		fmt.Printf("  %-20s %s\n", name, sr.Status)
		if sr.Err != nil {
			fmt.Printf("  %-20s %v\n", "", sr.Err)
		}
	}
	for _, artifact := range result.Artifacts {
		fmt.Printf("  published %s tags=%v digest=%s\n",
			artifact.ImageRef, artifact.Tags, artifact.Digest)
	}
}
