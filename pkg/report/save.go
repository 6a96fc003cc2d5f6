package report

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/parkgrove/clubsync/pkg/errors"
	"github.com/parkgrove/clubsync/pkg/idmap"
)

const (
	dirPermissions  = 0o755
	filePermissions = 0o644
)

// Artifacts names the files Save wrote.
type Artifacts struct {
	Report  string
	Summary string
	IDMap   string
}

// Save persists the finalized report under dir: the full report, the
// trimmed summary, and the ID-mapping artifact. The directory is created
// if needed. Saving an unfinalized report is rejected.
func (r *RunReport) Save(dir string) (*Artifacts, error) {
	if !r.finalized {
		return nil, errors.NewValidationError("report", r.RunID, "report must be finalized before saving")
	}
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return nil, errors.WrapIO("mkdir", dir, err)
	}

	mode := "live"
	if r.DryRun {
		mode = "dry-run"
	}
	stamp := timestampSlug(r.CompletedAt.Format("2006-01-02T15:04:05Z"))

	a := &Artifacts{
		Report:  filepath.Join(dir, "report-"+mode+"-"+stamp+".json"),
		Summary: filepath.Join(dir, "report-summary-"+mode+"-"+stamp+".json"),
		IDMap:   filepath.Join(dir, idmap.Filename(r.DryRun, r.CompletedAt.Time)),
	}

	if err := writeJSON(a.Report, r); err != nil {
		return nil, err
	}
	if err := writeJSON(a.Summary, r.Trim()); err != nil {
		return nil, err
	}
	if err := writeJSON(a.IDMap, r.IDMap()); err != nil {
		return nil, err
	}
	return a, nil
}

// Load reads a previously saved report, so the ID-mapping pass can be
// re-run without replaying the migration.
func Load(path string) (*RunReport, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapIO("read", path, err)
	}
	var r RunReport
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, errors.WrapParse("json", path, err)
	}
	r.finalized = true
	return &r, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.WrapIO("marshal", path, err)
	}
	if err := os.WriteFile(path, append(data, '\n'), filePermissions); err != nil {
		return errors.WrapIO("write", path, err)
	}
	return nil
}

// timestampSlug replaces every non-alphanumeric character with a dash.
func timestampSlug(ts string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			return r
		default:
			return '-'
		}
	}, ts)
}
