package config

// Workfile represents the structure of the mono.work.yaml configuration file
// at the workspace root.
type Workfile struct {
	Version     string              `yaml:"version"`
	Packages    []string            `yaml:"packages"`
	Pipeline    map[string]*TaskDTO `yaml:"pipeline"`
	RemoteCache RemoteCacheConfig   `yaml:"remoteCache"`
}

// RemoteCacheConfig configures the optional shared cache server.
type RemoteCacheConfig struct {
	URL string `yaml:"url"`
	// Token is a literal bearer token. TokenEnv names an environment
	// variable to read instead; it wins when both are set.
	Token    string `yaml:"token"`
	TokenEnv string `yaml:"tokenEnv"`
}

// Packagefile represents the structure of a per-package mono.yaml file.
type Packagefile struct {
	Version   string              `yaml:"version"`
	Name      string              `yaml:"name"`
	DependsOn []string            `yaml:"dependsOn"`
	Tasks     map[string]*TaskDTO `yaml:"tasks"`
}

// TaskDTO represents a task definition in the configuration. The same shape
// serves workspace pipeline defaults and per-package declarations.
type TaskDTO struct {
	Cmd         []string          `yaml:"cmd"`
	Inputs      []string          `yaml:"inputs"`
	Outputs     []string          `yaml:"outputs"`
	DependsOn   []string          `yaml:"dependsOn"`
	Env         []string          `yaml:"env"`
	Environment map[string]string `yaml:"environment"`
	Timeout     string            `yaml:"timeout"`
}

// merge overlays the non-empty fields of override onto base and returns the
// effective DTO. Either side may be nil.
func (base *TaskDTO) merge(override *TaskDTO) *TaskDTO {
	if base == nil {
		return override
	}
	if override == nil {
		return base
	}

	out := *base
	if len(override.Cmd) > 0 {
		out.Cmd = override.Cmd
	}
	if len(override.Inputs) > 0 {
		out.Inputs = override.Inputs
	}
	if len(override.Outputs) > 0 {
		out.Outputs = override.Outputs
	}
	if len(override.DependsOn) > 0 {
		out.DependsOn = override.DependsOn
	}
	if len(override.Env) > 0 {
		out.Env = override.Env
	}
	if len(override.Environment) > 0 {
		merged := make(map[string]string, len(out.Environment)+len(override.Environment))
		for k, v := range out.Environment {
			merged[k] = v
		}
		for k, v := range override.Environment {
			merged[k] = v
		}
		out.Environment = merged
	}
	if override.Timeout != "" {
		out.Timeout = override.Timeout
	}
	return &out
}
