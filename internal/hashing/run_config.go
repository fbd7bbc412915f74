package hashing

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"

	"github.com/mmrzaf/taxgen/internal/domain"
)

// RunConfig is every input that changes what a run writes.
type RunConfig struct {
	Dataset     string
	Records     int
	Seed        int64
	Now         string
	State       string
	UniqueLabel bool
	PFraud      *float64
	ProfileHash string
	Mode        string
}

type runConfigHashPayload struct {
	Dataset      string   `json:"dataset"`
	Records      int      `json:"records"`
	Seed         int64    `json:"seed"`
	Now          string   `json:"now,omitempty"`
	State        string   `json:"state,omitempty"`
	UniqueLabel  bool     `json:"unique_label,omitempty"`
	PFraud       *float64 `json:"p_fraud,omitempty"`
	ProfileHash  string   `json:"profile_hash,omitempty"`
	Mode         string   `json:"mode"`
	TargetKind   string   `json:"target_kind"`
	TargetSchema string   `json:"target_schema,omitempty"`
	TargetDSN    string   `json:"target_dsn"`
}

func HashRunConfig(c RunConfig, target *domain.TargetConfig) (string, error) {
	p := runConfigHashPayload{
		Dataset:      c.Dataset,
		Records:      c.Records,
		Seed:         c.Seed,
		Now:          c.Now,
		State:        c.State,
		UniqueLabel:  c.UniqueLabel,
		PFraud:       c.PFraud,
		ProfileHash:  c.ProfileHash,
		Mode:         c.Mode,
		TargetKind:   target.Kind,
		TargetSchema: target.Schema,
		TargetDSN:    target.DSN,
	}
	b, err := json.Marshal(p)
	if err != nil {
		return "", err
	}

	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:]), nil
}
