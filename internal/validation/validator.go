package validation

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/mmrzaf/taxgen/internal/dataset"
	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/mef"
	"github.com/mmrzaf/taxgen/internal/profile"
	"github.com/mmrzaf/taxgen/internal/registry"
	"github.com/mmrzaf/taxgen/internal/sampling"
)

type Validator struct {
	datasets *registry.DatasetRegistry
}

func NewValidator(datasets *registry.DatasetRegistry) *Validator {
	if datasets == nil {
		datasets = registry.DefaultDatasetRegistry()
	}
	return &Validator{datasets: datasets}
}

// identifier validation: allow simple SQL identifiers only (prevents injection via table/column names).
var (
	identRe       = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)
	reservedWords = map[string]struct{}{
		"add": {}, "all": {}, "alter": {}, "and": {}, "any": {}, "as": {},
		"asc": {}, "between": {}, "by": {}, "case": {}, "check": {},
		"column": {}, "constraint": {}, "create": {}, "cross": {}, "current_date": {},
		"current_time": {}, "current_timestamp": {}, "database": {}, "default": {}, "delete": {},
		"desc": {}, "distinct": {}, "do": {}, "drop": {}, "else": {},
		"end": {}, "except": {}, "exists": {}, "false": {}, "for": {},
		"foreign": {}, "from": {}, "full": {}, "grant": {}, "group": {},
		"having": {}, "in": {}, "index": {}, "inner": {}, "insert": {},
		"intersect": {}, "into": {}, "is": {}, "join": {}, "key": {},
		"left": {}, "like": {}, "limit": {}, "natural": {}, "not": {},
		"null": {}, "offset": {}, "on": {}, "or": {}, "order": {},
		"outer": {}, "primary": {}, "references": {}, "returning": {}, "revoke": {},
		"right": {}, "schema": {}, "select": {}, "set": {}, "table": {},
		"then": {}, "to": {}, "true": {}, "truncate": {}, "union": {},
		"unique": {}, "update": {}, "user": {}, "using": {}, "values": {},
		"view": {}, "when": {}, "where": {}, "with": {},
	}
)

func IsValidIdentifier(s string) bool {
	s = strings.TrimSpace(s)
	if s == "" {
		return false
	}
	if !identRe.MatchString(s) {
		return false
	}
	if _, ok := reservedWords[strings.ToLower(s)]; ok {
		return false
	}
	return true
}


var stateRe = regexp.MustCompile(`^[A-Za-z]{2}$`)

// ValidateTables checks the names a target will see before anything is
// written.
func (v *Validator) ValidateTables(tables []dataset.NamedTable) error {
	seen := make(map[string]bool, len(tables))
	for _, nt := range tables {
		if !IsValidIdentifier(nt.Name) {
			return fmt.Errorf("invalid table identifier: %s", nt.Name)
		}
		if seen[nt.Name] {
			return fmt.Errorf("duplicate table name: %s", nt.Name)
		}
		seen[nt.Name] = true
		if len(nt.Table.Columns) == 0 {
			return fmt.Errorf("table '%s': at least one column is required", nt.Name)
		}
		cols := make(map[string]bool, len(nt.Table.Columns))
		for _, c := range nt.Table.Columns {
			if !IsValidIdentifier(c) {
				return fmt.Errorf("table '%s': invalid column identifier: %s", nt.Name, c)
			}
			if cols[c] {
				return fmt.Errorf("table '%s': duplicate column name: %s", nt.Name, c)
			}
			cols[c] = true
		}
	}
	return nil
}

func (v *Validator) ValidateTarget(t *domain.TargetConfig) error {
	if t == nil {
		return errors.New("target is required")
	}
	if t.Name == "" {
		return errors.New("target name is required")
	}
	if t.Kind == "" {
		return errors.New("target kind is required")
	}
	if t.DSN == "" && t.Kind != domain.TargetKindElasticsearch {
		return errors.New("target dsn is required")
	}

	switch t.Kind {
	case domain.TargetKindPostgres:
		if t.Schema != "" && !IsValidIdentifier(t.Schema) {
			return fmt.Errorf("invalid target schema identifier: %s", t.Schema)
		}
	case domain.TargetKindCSV, domain.TargetKindSQLite, domain.TargetKindElasticsearch:
		if t.Schema != "" {
			return fmt.Errorf("%s targets must not set schema", t.Kind)
		}
	default:
		return fmt.Errorf("unsupported target kind: %s", t.Kind)
	}

	return nil
}

func (v *Validator) ValidateRunRequest(req *domain.RunRequest) error {
	if req.Dataset == "" {
		return errors.New("dataset is required")
	}
	if !v.datasets.Has(req.Dataset) {
		return fmt.Errorf("unknown dataset: %s (known: %s)", req.Dataset, strings.Join(v.datasets.List(), ", "))
	}
	if req.Records <= 0 {
		return fmt.Errorf("records must be > 0, got %d", req.Records)
	}
	if req.PFraud != nil && (*req.PFraud < 0 || *req.PFraud > 1) {
		return fmt.Errorf("p_fraud must be in [0,1], got %v", *req.PFraud)
	}
	if req.State != "" && !stateRe.MatchString(req.State) {
		return fmt.Errorf("state must be a two-letter code, got %q", req.State)
	}

	hasTargetID := req.TargetID != ""
	hasTarget := req.Target != nil

	if !hasTargetID && !hasTarget {
		return errors.New("either target_id or target must be provided")
	}

	if hasTargetID && hasTarget {
		return errors.New("only one of target_id or target must be provided")
	}

	if req.Mode == "" {
		return errors.New("mode is required")
	}
	if !IsValidMode(req.Mode) {
		return fmt.Errorf("invalid mode: %s", req.Mode)
	}

	if req.Target != nil {
		if err := v.ValidateTarget(req.Target); err != nil {
			return fmt.Errorf("target validation failed: %w", err)
		}
	}

	return nil
}

// ValidateProfile checks every p_* entry is a probability and that both MeF
// branches resolve. All problems are reported, sorted by path.
func (v *Validator) ValidateProfile(t *profile.Tree) error {
	var problems []string
	walkProbabilities("", t.Raw(), &problems)

	if _, err := t.Prob("p_fraud"); err != nil {
		problems = append(problems, err.Error())
	}
	for _, key := range []string{mef.KeyLegit, mef.KeyFraud} {
		if _, err := mef.LoadConfig(t, key); err != nil {
			problems = append(problems, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("invalid profile: %s", strings.Join(problems, "; "))
}

func walkProbabilities(prefix string, m map[string]any, problems *[]string) {
	for k, val := range m {
		path := k
		if prefix != "" {
			path = prefix + "." + k
		}
		if sub, ok := val.(map[string]any); ok {
			walkProbabilities(path, sub, problems)
			continue
		}
		if !strings.HasPrefix(k, "p_") {
			continue
		}
		f, ok := sampling.ToFloat(val)
		if !ok {
			*problems = append(*problems, fmt.Sprintf("%s: want number, got %T", path, val))
			continue
		}
		if f < 0 || f > 1 {
			*problems = append(*problems, fmt.Sprintf("%s: probability %v outside [0,1]", path, f))
		}
	}
}

func IsValidMode(mode string) bool {
	switch mode {
	case domain.TableModeCreate, domain.TableModeTruncate, domain.TableModeAppend:
		return true
	default:
		return false
	}
}
