// Package tiers resolves source membership-level labels to target tier ids.
// The whole feature sits behind a feature flag: a disabled resolver answers
// every lookup with "no tier, no error".
package tiers

import (
	"fmt"
	"sort"

	"github.com/parkgrove/clubsync/pkg/errors"
)

// Policy is the org-configured label→tier-code mapping with an optional
// default code applied to labels the table does not name.
type Policy struct {
	Labels      map[string]string `yaml:"labels" json:"labels"`
	DefaultCode string            `yaml:"default_code" json:"defaultCode"`
}

// Resolver composes the policy with the target platform's tier codes into a
// label→tier-id lookup. Construct it once per run, before any records are
// processed.
type Resolver struct {
	enabled   bool
	byLabel   map[string]string // label -> target tier id
	defaultID string
	missing   []string // policy codes with no matching target tier
}

// Disabled returns a resolver for runs with tier mapping off.
func Disabled() *Resolver {
	return &Resolver{}
}

// New composes a policy with the target's code→id tier listing. Codes the
// target does not know are reported as missing rather than failing here;
// Validate decides whether the run may proceed.
func New(policy Policy, targetTiers map[string]string) *Resolver {
	r := &Resolver{
		enabled: true,
		byLabel: make(map[string]string, len(policy.Labels)),
	}

	missing := make(map[string]bool)
	for label, code := range policy.Labels {
		if id, ok := targetTiers[code]; ok {
			r.byLabel[label] = id
		} else {
			missing[code] = true
		}
	}

	if policy.DefaultCode != "" {
		if id, ok := targetTiers[policy.DefaultCode]; ok {
			r.defaultID = id
		} else {
			missing[policy.DefaultCode] = true
		}
	}

	for code := range missing {
		r.missing = append(r.missing, code)
	}
	sort.Strings(r.missing)

	return r
}

// Enabled reports whether tier mapping is active for this run.
func (r *Resolver) Enabled() bool {
	return r.enabled
}

// Missing returns the policy tier codes with no matching target tier.
func (r *Resolver) Missing() []string {
	return r.missing
}

// Resolve maps one source label to a target tier id. An exact label match
// wins; otherwise the default tier id applies; otherwise an error names the
// unmapped label. Disabled resolvers return no tier and no error.
func (r *Resolver) Resolve(label string) (string, error) {
	if !r.enabled {
		return "", nil
	}
	if id, ok := r.byLabel[label]; ok {
		return id, nil
	}
	if r.defaultID != "" {
		return r.defaultID, nil
	}
	return "", fmt.Errorf("no tier mapping for label %q", label)
}

// Validate is the one-time pre-run check: an enabled resolver with no usable
// default or with outstanding missing codes fails fast, independently of
// per-record resolution.
func (r *Resolver) Validate() error {
	if !r.enabled {
		return nil
	}
	if len(r.missing) > 0 {
		return errors.NewConfigError("tiers",
			fmt.Sprintf("tier codes with no matching target tier: %v", r.missing), nil)
	}
	if r.defaultID == "" {
		return errors.NewConfigError("tiers", "tier mapping enabled with no usable default tier", nil)
	}
	return nil
}
