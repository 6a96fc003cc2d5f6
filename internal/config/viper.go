// Package config holds the run-level configuration surface: the run
// configuration document, plus the viper-backed feature-flag and policy
// lookups the migration consumes.
package config

import (
	"os"

	"github.com/spf13/viper"
)

// GetString is a helper to get string values from Viper.
// It checks both OS environment variables and Viper configuration.
func GetString(key string) string {
	osValue := os.Getenv(key)
	viperValue := viper.GetString(key)

	if viperValue == "" && osValue != "" {
		return osValue
	}
	return viperValue
}

// Flags is the feature-flag lookup. Flags live under the "flags" key of
// the loaded configuration, e.g. flags.tier_mapping: true.
type Flags struct {
	v *viper.Viper
}

// NewFlags creates a flag lookup over a viper instance. A nil instance
// falls back to the global viper.
func NewFlags(v *viper.Viper) *Flags {
	if v == nil {
		v = viper.GetViper()
	}
	return &Flags{v: v}
}

// IsEnabled reports whether a named feature flag is on. Unknown flags
// are off.
func (f *Flags) IsEnabled(name string) bool {
	return f.v.GetBool("flags." + name)
}

// Policies is the org-scoped policy lookup. Policies live under the
// "policies" key; an org-specific value at policies.orgs.<org>.<path>
// overrides the shared value at policies.<path>.
type Policies struct {
	v *viper.Viper
}

// NewPolicies creates a policy lookup over a viper instance. A nil
// instance falls back to the global viper.
func NewPolicies(v *viper.Viper) *Policies {
	if v == nil {
		v = viper.GetViper()
	}
	return &Policies{v: v}
}

// Get resolves a policy value for an org. ok is false when neither an
// org-specific nor a shared value exists.
func (p *Policies) Get(path, orgID string) (any, bool) {
	if orgID != "" {
		if key := "policies.orgs." + orgID + "." + path; p.v.IsSet(key) {
			return p.v.Get(key), true
		}
	}
	if key := "policies." + path; p.v.IsSet(key) {
		return p.v.Get(key), true
	}
	return nil, false
}

// GetString resolves a policy value as a string.
func (p *Policies) GetString(path, orgID string) (string, bool) {
	v, ok := p.Get(path, orgID)
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// GetStringMap resolves a policy value as a string map, for structured
// policies such as tier label mappings.
func (p *Policies) GetStringMap(path, orgID string) (map[string]string, bool) {
	v, ok := p.Get(path, orgID)
	if !ok {
		return nil, false
	}
	raw, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	out := make(map[string]string, len(raw))
	for k, val := range raw {
		s, ok := val.(string)
		if !ok {
			return nil, false
		}
		out[k] = s
	}
	return out, true
}
