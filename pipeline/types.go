package pipeline

// Step is a single shell command executed as part of a stage.
type Step struct {
	// Name is an optional human-readable label shown in logs.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Run is the shell command to execute.
	Run string `yaml:"run" json:"run"`
}

// Stage is a named unit of pipeline work. Its steps run sequentially; the
// first failing step aborts the rest of the stage.
type Stage struct {
	// Name uniquely identifies the stage within a pipeline.
	Name string `yaml:"name" json:"name"`

	// DependsOn lists stages that must succeed before this stage runs.
	DependsOn []string `yaml:"depends_on,omitempty" json:"depends_on,omitempty"`

	// Steps are executed in order.
	Steps []Step `yaml:"steps,omitempty" json:"steps,omitempty"`

	// Secrets names the credentials this stage is granted access to.
	// A stage can only read secrets it declares here.
	Secrets []string `yaml:"secrets,omitempty" json:"secrets,omitempty"`

	// WorkingDir overrides the directory the stage's steps run in.
	WorkingDir string `yaml:"working_dir,omitempty" json:"working_dir,omitempty"`

	// Publish, when set, builds and pushes a container image after the
	// stage's steps succeed.
	Publish *PublishSpec `yaml:"publish,omitempty" json:"publish,omitempty"`
}

// PublishSpec configures the image build-and-push performed by a stage.
type PublishSpec struct {
	// Context is the build context directory, relative to the repository root.
	Context string `yaml:"context,omitempty" json:"context,omitempty"`

	// Dockerfile is the path to the build file, relative to Context.
	Dockerfile string `yaml:"dockerfile,omitempty" json:"dockerfile,omitempty"`

	// Repository is the image repository, without a tag. When empty the
	// runner derives it from configuration.
	Repository string `yaml:"repository,omitempty" json:"repository,omitempty"`

	// ExtraTags are pushed in addition to the standard latest and
	// commit-derived tags.
	ExtraTags []string `yaml:"extra_tags,omitempty" json:"extra_tags,omitempty"`

	// UsernameSecret and TokenSecret name the registry credentials in the
	// secret store. They must also appear in the stage's Secrets list.
	UsernameSecret string `yaml:"username_secret,omitempty" json:"username_secret,omitempty"`
	TokenSecret    string `yaml:"token_secret,omitempty" json:"token_secret,omitempty"`
}

// DefaultUsernameSecret and DefaultTokenSecret are the secret names used for
// registry authentication when a publish block does not override them.
const (
	DefaultUsernameSecret = "REGISTRY_USERNAME"
	DefaultTokenSecret    = "REGISTRY_TOKEN"
)

// CredentialSecrets returns the secret names used for registry authentication.
func (p *PublishSpec) CredentialSecrets() (username, token string) {
	username = p.UsernameSecret
	if username == "" {
		username = DefaultUsernameSecret
	}
	token = p.TokenSecret
	if token == "" {
		token = DefaultTokenSecret
	}
	return username, token
}

// ContextDir returns the build context directory, defaulting to ".".
func (p *PublishSpec) ContextDir() string {
	if p.Context == "" {
		return "."
	}
	return p.Context
}

// DockerfilePath returns the build file path, defaulting to "Dockerfile".
func (p *PublishSpec) DockerfilePath() string {
	if p.Dockerfile == "" {
		return "Dockerfile"
	}
	return p.Dockerfile
}

// Definition is a complete pipeline as declared in YAML.
type Definition struct {
	// Name identifies the pipeline.
	Name string `yaml:"name" json:"name"`

	// Stages in declaration order.
	Stages []Stage `yaml:"stages" json:"stages"`
}

// Stage returns the stage with the given name.
func (d *Definition) Stage(name string) (*Stage, bool) {
	for i := range d.Stages {
		if d.Stages[i].Name == name {
			return &d.Stages[i], true
		}
	}
	return nil, false
}
