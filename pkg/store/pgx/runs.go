package pgx

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/Bunka-lab/epstein-files/pkg/common"
)

// SaveRun upserts a lineage node keyed by run id.
func (s *PipelineDBStorage) SaveRun(ctx context.Context, run common.ClassificationRun) error {
	s.dbLock.Lock()
	defer s.dbLock.Unlock()

	inputs, err := encodeJSON(run.Inputs)
	if err != nil {
		return err
	}
	outputs, err := encodeJSON(run.Outputs)
	if err != nil {
		return err
	}

	_, err = s.conn.Exec(ctx,
		`INSERT INTO classification_runs (run_id, run_type, inputs, outputs, created_at)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (run_id) DO UPDATE SET
			run_type = EXCLUDED.run_type,
			inputs = EXCLUDED.inputs,
			outputs = EXCLUDED.outputs,
			created_at = EXCLUDED.created_at`,
		run.RunID, run.RunType, inputs, outputs, run.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to upsert run %s: %w", run.RunID, err)
	}
	return nil
}

// LoadRuns reads every recorded run ordered by creation time, so a new
// process can rebuild the lineage DAG.
func (s *PipelineDBStorage) LoadRuns(ctx context.Context) ([]common.ClassificationRun, error) {
	rows, err := s.conn.Query(ctx,
		`SELECT run_id, run_type, inputs, outputs, created_at
		 FROM classification_runs
		 ORDER BY created_at, run_id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []common.ClassificationRun
	for rows.Next() {
		var run common.ClassificationRun
		var inputs, outputs []byte
		if err := rows.Scan(&run.RunID, &run.RunType, &inputs, &outputs, &run.Timestamp); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if err := json.Unmarshal(inputs, &run.Inputs); err != nil {
			return nil, fmt.Errorf("failed to decode inputs of run %s: %w", run.RunID, err)
		}
		if err := json.Unmarshal(outputs, &run.Outputs); err != nil {
			return nil, fmt.Errorf("failed to decode outputs of run %s: %w", run.RunID, err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read runs: %w", err)
	}
	return runs, nil
}
