package app

import (
	"fmt"

	"github.com/mmrzaf/taxgen/internal/domain"
	"github.com/mmrzaf/taxgen/internal/exec"
	"github.com/mmrzaf/taxgen/internal/infra/targets/csvdir"
	esTarget "github.com/mmrzaf/taxgen/internal/infra/targets/elasticsearch"
	pgTarget "github.com/mmrzaf/taxgen/internal/infra/targets/postgres"
	sqliteTarget "github.com/mmrzaf/taxgen/internal/infra/targets/sqlite"
)

// OptionIDColumn names the column used as document id by elasticsearch
// targets.
const OptionIDColumn = "id_column"

type versioner interface {
	ServerVersion() (string, error)
}

func NewTarget(t *domain.TargetConfig) (exec.Target, error) {
	switch t.Kind {
	case domain.TargetKindCSV:
		return csvdir.NewCSVTarget(t.DSN), nil
	case domain.TargetKindSQLite:
		return sqliteTarget.NewSQLiteTarget(t.DSN), nil
	case domain.TargetKindPostgres:
		return pgTarget.NewPostgresTarget(t.DSN, t.Schema), nil
	case domain.TargetKindElasticsearch:
		return esTarget.NewElasticsearchTarget(t.DSN, t.Options[OptionIDColumn]), nil
	default:
		return nil, fmt.Errorf("unsupported target kind: %s", t.Kind)
	}
}
