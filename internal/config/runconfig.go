package config

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/reconcile"
	"github.com/parkgrove/clubsync/pkg/records"
	"github.com/parkgrove/clubsync/pkg/tiers"
)

// FlagTierMapping gates tier resolution for a run.
const FlagTierMapping = "tier_mapping"

// EntityInput names one entity kind's input file and conflict policy.
type EntityInput struct {
	File       string `yaml:"file"`
	OnConflict string `yaml:"on_conflict"`
}

// Target holds the connection block of a run configuration. The API key
// is not stored in the document; it comes from the environment.
type Target struct {
	BaseURL    string        `yaml:"base_url"`
	AuthHeader string        `yaml:"auth_header"`
	Timeout    time.Duration `yaml:"timeout"`
}

// RunConfig is the run configuration document: which files to migrate,
// how to map their columns, and where artifacts land.
type RunConfig struct {
	OrgID       string                         `yaml:"org_id"`
	ArtifactDir string                         `yaml:"artifact_dir"`
	Mappings    string                         `yaml:"mappings"`
	Delimiter   string                         `yaml:"delimiter"`
	Target      Target                         `yaml:"target"`
	Entities    map[records.Entity]EntityInput `yaml:"entities"`
}

// LoadRunConfig reads and validates a run configuration document.
func LoadRunConfig(path string) (*RunConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}

	var cfg RunConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapParse("yaml", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.ArtifactDir == "" {
		cfg.ArtifactDir = "artifacts"
	}
	return &cfg, nil
}

// Validate checks the document for unusable values.
func (c *RunConfig) Validate() error {
	if c.OrgID == "" {
		return errors.NewConfigError("run", "org_id is required", nil)
	}
	if c.Mappings == "" {
		return errors.NewConfigError("run", "mappings path is required", nil)
	}
	if len(c.Entities) == 0 {
		return errors.NewConfigError("run", "at least one entity input is required", nil)
	}
	for entity, in := range c.Entities {
		if !knownEntity(entity) {
			return errors.NewConfigError("run", "unknown entity "+string(entity), nil)
		}
		if in.File == "" {
			return errors.NewConfigError("run", "missing file for entity "+string(entity), nil)
		}
		if !reconcile.Policy(in.OnConflict).Valid() {
			return errors.NewConfigError("run", "invalid on_conflict for entity "+string(entity)+": "+in.OnConflict, nil)
		}
	}
	return nil
}

// Policies derives the reconciliation conflict policies from the
// per-entity inputs.
func (c *RunConfig) Policies() reconcile.Policies {
	return reconcile.Policies{
		Member:       reconcile.Policy(c.Entities[records.EntityMember].OnConflict),
		Registration: reconcile.Policy(c.Entities[records.EntityRegistration].OnConflict),
	}
}

func knownEntity(e records.Entity) bool {
	for _, known := range records.Entities {
		if e == known {
			return true
		}
	}
	return false
}

// TierPolicy assembles the tier policy for an org from the policy
// lookup: the label mapping at tiers.labels and the optional fallback
// at tiers.default. ok is false when no mapping is configured.
func TierPolicy(p *Policies, orgID string) (tiers.Policy, bool) {
	labels, ok := p.GetStringMap("tiers.labels", orgID)
	if !ok || len(labels) == 0 {
		return tiers.Policy{}, false
	}
	policy := tiers.Policy{Labels: labels}
	if def, ok := p.GetString("tiers.default", orgID); ok {
		policy.DefaultCode = def
	}
	return policy, true
}
