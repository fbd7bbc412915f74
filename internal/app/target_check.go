package app

import (
	"fmt"
	"time"

	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/exec"
	"github.com/mmrzaf/taxgen/internal/validation"
)

const (
	CapabilityCreate   = "create"
	CapabilityInsert   = "insert"
	CapabilityTruncate = "truncate"
)

// CheckTarget connects to t and probes create, insert and truncate against a
// scratch table. A failed probe ends the probing but not the check.
func CheckTarget(t *domain.TargetConfig) (*domain.TargetCheck, error) {
	check := &domain.TargetCheck{
		TargetID:  t.ID,
		CheckedAt: time.Now().UTC(),
	}

	val := validation.NewValidator(nil)
	if err := val.ValidateTarget(t); err != nil {
		check.Error = err.Error()
		return check, err
	}

	start := time.Now()
	tgt, err := NewTarget(t)
	if err != nil {
		check.Error = "unsupported target kind"
		return check, err
	}
	if err := tgt.Connect(); err != nil {
		check.Error = err.Error()
		check.LatencyMS = time.Since(start).Milliseconds()
		return check, err
	}
	defer tgt.Close()

	check.OK = true
	check.LatencyMS = time.Since(start).Milliseconds()
	if v, ok := tgt.(versioner); ok {
		if ver, verErr := v.ServerVersion(); verErr == nil {
			check.ServerVersion = ver
		}
	}
	check.Capabilities = probeCapabilities(tgt)
	return check, nil
}

func probeCapabilities(tgt exec.Target) []string {
	spec := &domain.TableSpec{
		Name:    fmt.Sprintf("taxgen_check_%d", time.Now().UnixNano()),
		Columns: []string{"id"},
	}

	caps := make([]string, 0, 3)
	if err := tgt.CreateTableIfNotExists(spec); err != nil {
		return caps
	}
	caps = append(caps, CapabilityCreate)

	if err := tgt.InsertBatch(spec.Name, spec.Columns, [][]string{{"1"}}); err != nil {
		return caps
	}
	caps = append(caps, CapabilityInsert)

	if err := tgt.TruncateTable(spec.Name); err != nil {
		return caps
	}
	return append(caps, CapabilityTruncate)
}
