package runner

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/spindleci/spindle/errors"
	"github.com/spindleci/spindle/executor"
	"github.com/spindleci/spindle/pipeline"
	"github.com/spindleci/spindle/publish"
	"github.com/spindleci/spindle/secrets"
)

// DefaultMaxParallel bounds how many independent stages run at once.
const DefaultMaxParallel = 4

// stepRunner executes one step and returns its combined output.
// It exists so tests can run pipelines without spawning shells.
type stepRunner func(ctx context.Context, stage pipeline.Stage, step pipeline.Step, env map[string]string) (string, error)

// Runner executes pipeline graphs.
type Runner struct {
	snapshot    *secrets.Snapshot
	publisher   publish.Publisher
	logger      zerolog.Logger
	maxParallel int
	stepTimeout time.Duration
	workingDir  string
	repository  string

	runStep stepRunner
}

// Option configures a Runner.
type Option func(*Runner)

// WithPublisher sets the image publisher used by stages with a publish block.
func WithPublisher(p publish.Publisher) Option {
	return func(r *Runner) { r.publisher = p }
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// WithMaxParallel bounds concurrent stage execution.
func WithMaxParallel(n int) Option {
	return func(r *Runner) {
		if n > 0 {
			r.maxParallel = n
		}
	}
}

// WithStepTimeout bounds each step's execution time. Zero means no limit.
func WithStepTimeout(d time.Duration) Option {
	return func(r *Runner) { r.stepTimeout = d }
}

// WithWorkingDir sets the directory steps run in, unless a stage overrides it.
func WithWorkingDir(dir string) Option {
	return func(r *Runner) { r.workingDir = dir }
}

// WithRepository sets the default image repository for publish blocks that do
// not name one.
func WithRepository(repo string) Option {
	return func(r *Runner) { r.repository = repo }
}

// New creates a Runner. The snapshot holds every secret the pipeline's stages
// may be granted; it is read-only for the duration of a run.
func New(snapshot *secrets.Snapshot, opts ...Option) *Runner {
	r := &Runner{
		snapshot:    snapshot,
		logger:      zerolog.Nop(),
		maxParallel: DefaultMaxParallel,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.runStep == nil {
		r.runStep = r.execStep
	}
	return r
}

// Run executes the graph to completion and returns the per-stage results.
// The returned error reports runner-level problems (invalid trigger); stage
// failures are reported through the Result, not the error.
func (r *Runner) Run(
	ctx context.Context,
	def *pipeline.Definition,
	graph *pipeline.Graph,
	trigger pipeline.Trigger,
) (*Result, error) {
	if err := trigger.Validate(); err != nil {
		return nil, errors.Wrap(errors.CodeInvalidInput, err, "invalid trigger")
	}

	start := time.Now()
	state := pipeline.NewRunState(graph)

	var (
		mu      sync.Mutex
		results = make(map[string]*StageResult, len(graph.Names()))
	)
	record := func(sr *StageResult) {
		mu.Lock()
		results[sr.Name] = sr
		mu.Unlock()
	}

	completed := make(chan string)
	inflight := 0
	cancelled := false
	ctxDone := ctx.Done()

	r.logger.Info().
		Str("pipeline", def.Name).
		Str("event", string(trigger.Event)).
		Str("branch", trigger.Branch).
		Str("commit", trigger.CommitRef).
		Msg("pipeline run started")

	for {
		if !cancelled {
			for _, name := range state.Ready() {
				if inflight >= r.maxParallel {
					break
				}
				if err := state.Transition(name, pipeline.StatusRunning); err != nil {
					return nil, err
				}
				stage, _ := graph.Stage(name)
				inflight++
				go func(stage pipeline.Stage) {
					record(r.runStage(ctx, state, stage, trigger))
					completed <- stage.Name
				}(stage)
			}
		}

		if inflight == 0 {
			if cancelled || state.Done() {
				break
			}
			// Ready stages exist whenever progress is possible; pending
			// stages whose dependencies failed were skipped during
			// propagation. Nothing ready and nothing running means done.
			if len(state.Ready()) == 0 {
				break
			}
			continue
		}

		select {
		case <-completed:
			inflight--
		case <-ctxDone:
			cancelled = true
			ctxDone = nil
			state.SkipPending()
			r.logger.Warn().Msg("run cancelled, waiting for in-flight stages")
		}
	}

	if cancelled {
		state.SkipPending()
	}

	result := &Result{
		Pipeline:  def.Name,
		Trigger:   trigger,
		Stages:    results,
		Succeeded: state.Succeeded(),
		Duration:  time.Since(start),
	}
	for name, status := range state.Statuses() {
		if _, ok := result.Stages[name]; !ok {
			result.Stages[name] = &StageResult{Name: name, Status: status}
		}
	}
	for _, name := range graph.TopologicalOrder() {
		if sr := result.Stages[name]; sr.Artifact != nil {
			result.Artifacts = append(result.Artifacts, *sr.Artifact)
		}
	}

	r.logger.Info().
		Str("pipeline", def.Name).
		Bool("succeeded", result.Succeeded).
		Dur("duration", result.Duration).
		Msg("pipeline run finished")

	return result, nil
}

// runStage executes one stage: resolve granted secrets, run steps in order,
// then publish if configured. The stage's terminal status is recorded in
// state, including skip propagation on failure.
func (r *Runner) runStage(
	ctx context.Context,
	state *pipeline.RunState,
	stage pipeline.Stage,
	trigger pipeline.Trigger,
) *StageResult {
	start := time.Now()
	sr := &StageResult{Name: stage.Name}
	logger := r.logger.With().Str("stage", stage.Name).Logger()

	fail := func(err error) *StageResult {
		sr.Status = pipeline.StatusFailed
		sr.Err = err
		sr.Duration = time.Since(start)
		logger.Error().Err(err).Msg("stage failed")
		if _, perr := state.FailAndPropagate(stage.Name); perr != nil {
			logger.Error().Err(perr).Msg("recording stage failure")
		}
		return sr
	}

	scoped := r.snapshot.Scoped(stage.Secrets...)
	redactor := r.snapshot.Redactor()

	// Secrets resolve before the first step runs: a missing or undeclared
	// grant fails the stage without executing anything.
	env, err := resolveEnv(ctx, scoped)
	if err != nil {
		return fail(err)
	}

	var creds publish.Credentials
	if stage.Publish != nil {
		creds, err = resolveCredentials(ctx, scoped, stage.Publish)
		if err != nil {
			return fail(err)
		}
		if r.publisher == nil {
			return fail(errors.New(errors.CodeInvalidConfig,
				"stage declares a publish block but no publisher is configured"))
		}
	}

	logger.Info().Int("steps", len(stage.Steps)).Msg("stage started")

	for _, step := range stage.Steps {
		out, err := r.runStep(ctx, stage, step, env)
		out = redactor.Redact(out)
		sr.Log = append(sr.Log, stepLog(step, out)...)
		if err != nil {
			return fail(errors.Wrapf(errors.CodeExecutionFailed, err,
				"step %q failed", stepName(step)))
		}
	}

	if stage.Publish != nil {
		artifact, err := r.publishStage(ctx, stage, trigger, creds, logger)
		if err != nil {
			return fail(err)
		}
		sr.Artifact = artifact
	}

	if err := state.Transition(stage.Name, pipeline.StatusSucceeded); err != nil {
		return fail(err)
	}
	sr.Status = pipeline.StatusSucceeded
	sr.Duration = time.Since(start)
	logger.Info().Dur("duration", sr.Duration).Msg("stage succeeded")
	return sr
}

// publishStage builds the stage's image and pushes the run's tag list.
func (r *Runner) publishStage(
	ctx context.Context,
	stage pipeline.Stage,
	trigger pipeline.Trigger,
	creds publish.Credentials,
	logger zerolog.Logger,
) (*publish.Artifact, error) {
	spec := stage.Publish
	repo := spec.Repository
	if repo == "" {
		repo = r.repository
	}
	if repo == "" {
		return nil, errors.New(errors.CodeInvalidConfig,
			"publish block has no repository and no default is configured")
	}

	contextDir := spec.ContextDir()
	if r.workingDir != "" && !strings.HasPrefix(contextDir, "/") {
		contextDir = r.workingDir + "/" + contextDir
	}

	handle, err := r.publisher.Build(ctx, publish.BuildRequest{
		ContextDir: contextDir,
		Dockerfile: spec.DockerfilePath(),
		Repository: repo,
		Labels: map[string]string{
			"io.spindleci.commit": trigger.CommitRef,
		},
	})
	if err != nil {
		return nil, err
	}

	tags := append(trigger.Tags(), spec.ExtraTags...)
	artifact, err := r.publisher.Push(ctx, handle, tags, creds)
	if err != nil {
		return nil, err
	}

	logger.Info().
		Str("image", artifact.ImageRef).
		Strs("tags", artifact.Tags).
		Str("digest", artifact.Digest.String()).
		Msg("artifact published")
	return artifact, nil
}

// execStep is the default stepRunner: it runs the step's command through a
// shell with the stage's secret environment injected.
func (r *Runner) execStep(
	ctx context.Context,
	stage pipeline.Stage,
	step pipeline.Step,
	env map[string]string,
) (string, error) {
	if r.stepTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.stepTimeout)
		defer cancel()
	}

	dir := stage.WorkingDir
	if dir == "" {
		dir = r.workingDir
	}

	opts := []executor.Option{
		executor.WithCombinedOutput(),
		executor.WithEnv(env),
	}
	if dir != "" {
		opts = append(opts, executor.WithWorkingDir(dir))
	}

	result, err := executor.Shell(step.Run).Execute(ctx, opts...)
	if result == nil {
		return "", err
	}
	return result.Combined, err
}

// resolveEnv reads every granted secret into the step environment.
func resolveEnv(ctx context.Context, scoped secrets.Store) (map[string]string, error) {
	env := make(map[string]string)
	for _, name := range scoped.Names() {
		sec, err := scoped.Get(ctx, name)
		if err != nil {
			return nil, err
		}
		env[name] = sec.String()
	}
	return env, nil
}

// resolveCredentials reads the registry credentials through the stage's
// scoped store: credentials not granted to the stage are indistinguishable
// from credentials that do not exist.
func resolveCredentials(
	ctx context.Context,
	scoped secrets.Store,
	spec *pipeline.PublishSpec,
) (publish.Credentials, error) {
	userName, tokenName := spec.CredentialSecrets()

	user, err := scoped.Get(ctx, userName)
	if err != nil {
		return publish.Credentials{}, err
	}
	token, err := scoped.Get(ctx, tokenName)
	if err != nil {
		return publish.Credentials{}, err
	}
	return publish.Credentials{Username: user.String(), Token: token.String()}, nil
}

func stepName(step pipeline.Step) string {
	if step.Name != "" {
		return step.Name
	}
	return step.Run
}

func stepLog(step pipeline.Step, output string) []string {
	lines := []string{fmt.Sprintf("$ %s", stepName(step))}
	for _, line := range strings.Split(strings.TrimRight(output, "\n"), "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}
