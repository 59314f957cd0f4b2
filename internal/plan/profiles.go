package plan

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/njmorgan/loom/pkg/types"
)

// Profile is the static declarative description of one tool kind. The
// builder reads the default parameters, estimate, and complements; the
// resolver reads the capability fields (Parallel, RequiresFrom,
// RequiredParam, SourcePath).
type Profile struct {
	// DefaultParams seed every invocation of this kind.
	DefaultParams map[string]types.Value

	// Estimate is the expected call duration, used for plan totals
	// and per-call timeout hints.
	Estimate time.Duration

	// Complements lists tool kinds the builder schedules alongside a
	// primary invocation of this kind.
	Complements []types.ToolKind

	// Parallel reports whether invocations of this kind may run
	// concurrently with siblings.
	Parallel bool

	// ProducesKeys names the top-level keys this tool's result
	// exposes for downstream extraction.
	ProducesKeys []string

	// RequiresFrom names a tool kind whose result this kind consumes.
	// Empty means self-sufficient.
	RequiresFrom types.ToolKind

	// RequiredParam is the parameter populated from RequiresFrom's
	// result when the caller left it unset.
	RequiredParam string

	// SourcePath is the default extraction path into RequiresFrom's
	// result, e.g. "results[0].url".
	SourcePath string
}

// Profiles maps tool kinds to their static profiles.
type Profiles map[types.ToolKind]Profile

// DefaultProfiles returns the built-in tool capability table.
func DefaultProfiles() Profiles {
	return Profiles{
		types.ToolWebSearch: {
			DefaultParams: map[string]types.Value{
				"max_results": types.Int(5),
			},
			Estimate:     4 * time.Second,
			Complements:  []types.ToolKind{types.ToolKnowledge},
			Parallel:     true,
			ProducesKeys: []string{"answer", "results", "urls"},
		},
		types.ToolWebScrape: {
			Estimate:      6 * time.Second,
			Parallel:      true,
			ProducesKeys:  []string{"url", "content", "status"},
			RequiresFrom:  types.ToolWebSearch,
			RequiredParam: "url",
			SourcePath:    "results[0].url",
		},
		types.ToolCodeRepo: {
			DefaultParams: map[string]types.Value{
				"limit": types.Int(10),
			},
			Estimate:     5 * time.Second,
			Complements:  []types.ToolKind{types.ToolIssueTracker},
			Parallel:     true,
			ProducesKeys: []string{"repos", "commits"},
		},
		types.ToolIssueTracker: {
			DefaultParams: map[string]types.Value{
				"limit": types.Int(10),
			},
			Estimate:     5 * time.Second,
			Parallel:     true,
			ProducesKeys: []string{"issues"},
		},
		types.ToolKnowledge: {
			DefaultParams: map[string]types.Value{
				"limit": types.Int(5),
			},
			Estimate:     2 * time.Second,
			Parallel:     true,
			ProducesKeys: []string{"results"},
		},
	}
}

// profileOverride is the YAML shape for user profile overrides.
type profileOverride struct {
	EstimateSeconds *float64 `yaml:"estimate_seconds"`
	Parallel        *bool    `yaml:"parallel"`
	Complements     []string `yaml:"complements"`
	RequiresFrom    *string  `yaml:"requires_from"`
	RequiredParam   *string  `yaml:"required_param"`
	SourcePath      *string  `yaml:"source_path"`
}

// LoadProfiles merges YAML overrides from path on top of the built-in
// table. A missing file is not an error; the defaults are returned.
func LoadProfiles(path string) (Profiles, error) {
	profiles := DefaultProfiles()
	if path == "" {
		return profiles, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return profiles, nil
		}
		return nil, fmt.Errorf("read tool profiles: %w", err)
	}

	overrides := map[string]profileOverride{}
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, fmt.Errorf("parse tool profiles: %w", err)
	}

	for kind, ov := range overrides {
		k := types.ToolKind(kind)
		if !k.IsValid() {
			return nil, fmt.Errorf("tool profiles: unknown tool kind %q", kind)
		}
		p := profiles[k]
		if ov.EstimateSeconds != nil {
			p.Estimate = time.Duration(*ov.EstimateSeconds * float64(time.Second))
		}
		if ov.Parallel != nil {
			p.Parallel = *ov.Parallel
		}
		if ov.Complements != nil {
			p.Complements = nil
			for _, c := range ov.Complements {
				ck := types.ToolKind(c)
				if !ck.IsValid() {
					return nil, fmt.Errorf("tool profiles: unknown complement %q", c)
				}
				p.Complements = append(p.Complements, ck)
			}
		}
		if ov.RequiresFrom != nil {
			p.RequiresFrom = types.ToolKind(*ov.RequiresFrom)
		}
		if ov.RequiredParam != nil {
			p.RequiredParam = *ov.RequiredParam
		}
		if ov.SourcePath != nil {
			p.SourcePath = *ov.SourcePath
		}
		profiles[k] = p
	}
	return profiles, nil
}
