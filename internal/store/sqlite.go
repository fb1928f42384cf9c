package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/me/wesconsole/pkg/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and returns a Store.
// Use ":memory:" for an in-memory database (useful in tests).
func NewSQLiteStore(dbPath string, logger *slog.Logger) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dbPath, err)
	}
	// One connection: an in-memory database exists per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}

	return &SQLiteStore{
		db:     db,
		logger: logger.With("component", "store"),
	}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Migrate creates all required tables and indexes.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	s.logger.Debug("sql", "op", "migrate")
	return migrate(ctx, s.db)
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339Nano, s)
	return t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func marshalJSON(field string, v any) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal %s: %w", field, err)
	}
	return string(data), nil
}

// Save replaces every row in one transaction.
func (s *SQLiteStore) Save(ctx context.Context, snap *Snapshot) error {
	s.logger.Debug("sql", "op", "save",
		"services", len(snap.Services), "workflows", len(snap.Workflows), "runs", len(snap.Runs))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	for _, table := range []string{"runs", "workflows", "services"} {
		if _, err := tx.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}

	for _, svc := range snap.Services {
		if err := insertService(ctx, tx, svc); err != nil {
			return fmt.Errorf("save service %s: %w", svc.ID, err)
		}
	}
	for _, wf := range snap.Workflows {
		if err := insertWorkflow(ctx, tx, wf); err != nil {
			return fmt.Errorf("save workflow %s: %w", wf.ID, err)
		}
	}
	for _, run := range snap.Runs {
		if err := insertRun(ctx, tx, run); err != nil {
			return fmt.Errorf("save run %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertService(ctx context.Context, tx *sql.Tx, svc *model.Service) error {
	workflowIDs, err := marshalJSON("workflow_ids", svc.WorkflowIDs)
	if err != nil {
		return err
	}
	runIDs, err := marshalJSON("run_ids", svc.RunIDs)
	if err != nil {
		return err
	}
	info, err := marshalJSON("service_info", svc.ServiceInfo)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO services (id, name, endpoint, state, pre_registered, workflow_ids, run_ids, service_info, added_date, updated_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.Endpoint, string(svc.State), boolInt(svc.PreRegistered),
		workflowIDs, runIDs, info, formatTime(svc.AddedDate), formatTime(svc.UpdatedDate),
	)
	return err
}

func insertWorkflow(ctx context.Context, tx *sql.Tx, wf *model.Workflow) error {
	attachments, err := marshalJSON("attachments", wf.PreRegisteredWorkflowAttachment)
	if err != nil {
		return err
	}
	runIDs, err := marshalJSON("run_ids", wf.RunIDs)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO workflows (id, service_id, name, type, version, url, content, pre_registered, attachments, run_ids, added_date, updated_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		wf.ID, wf.ServiceID, wf.Name, wf.Type, wf.Version, wf.URL, wf.Content,
		boolInt(wf.PreRegistered), attachments, runIDs,
		formatTime(wf.AddedDate), formatTime(wf.UpdatedDate),
	)
	return err
}

func insertRun(ctx context.Context, tx *sql.Tx, run *model.Run) error {
	runLog, err := marshalJSON("run_log", run.RunLog)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, service_id, workflow_id, name, state, run_log, added_date, updated_date)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.ServiceID, run.WorkflowID, run.Name, string(run.State), runLog,
		formatTime(run.AddedDate), formatTime(run.UpdatedDate),
	)
	return err
}

// Load reads every row back into a snapshot.
func (s *SQLiteStore) Load(ctx context.Context) (*Snapshot, error) {
	s.logger.Debug("sql", "op", "load")

	snap := &Snapshot{
		Services:  []*model.Service{},
		Workflows: []*model.Workflow{},
		Runs:      []*model.Run{},
	}
	var err error
	if snap.Services, err = s.loadServices(ctx); err != nil {
		return nil, fmt.Errorf("load services: %w", err)
	}
	if snap.Workflows, err = s.loadWorkflows(ctx); err != nil {
		return nil, fmt.Errorf("load workflows: %w", err)
	}
	if snap.Runs, err = s.loadRuns(ctx); err != nil {
		return nil, fmt.Errorf("load runs: %w", err)
	}
	return snap, nil
}

func (s *SQLiteStore) loadServices(ctx context.Context) ([]*model.Service, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, endpoint, state, pre_registered, workflow_ids, run_ids, service_info, added_date, updated_date
		 FROM services ORDER BY added_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	services := []*model.Service{}
	for rows.Next() {
		var svc model.Service
		var state, workflowIDs, runIDs, info, addedDate, updatedDate string
		var preRegistered int

		if err := rows.Scan(&svc.ID, &svc.Name, &svc.Endpoint, &state, &preRegistered,
			&workflowIDs, &runIDs, &info, &addedDate, &updatedDate); err != nil {
			return nil, err
		}
		svc.State = model.ServiceState(state)
		svc.PreRegistered = preRegistered != 0
		if err := json.Unmarshal([]byte(workflowIDs), &svc.WorkflowIDs); err != nil {
			return nil, fmt.Errorf("unmarshal workflow_ids: %w", err)
		}
		if err := json.Unmarshal([]byte(runIDs), &svc.RunIDs); err != nil {
			return nil, fmt.Errorf("unmarshal run_ids: %w", err)
		}
		if err := json.Unmarshal([]byte(info), &svc.ServiceInfo); err != nil {
			return nil, fmt.Errorf("unmarshal service_info: %w", err)
		}
		svc.ServiceInfo.Normalize()
		svc.AddedDate = parseTime(addedDate)
		svc.UpdatedDate = parseTime(updatedDate)

		services = append(services, &svc)
	}
	return services, rows.Err()
}

func (s *SQLiteStore) loadWorkflows(ctx context.Context) ([]*model.Workflow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service_id, name, type, version, url, content, pre_registered, attachments, run_ids, added_date, updated_date
		 FROM workflows ORDER BY added_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	workflows := []*model.Workflow{}
	for rows.Next() {
		var wf model.Workflow
		var attachments, runIDs, addedDate, updatedDate string
		var preRegistered int

		if err := rows.Scan(&wf.ID, &wf.ServiceID, &wf.Name, &wf.Type, &wf.Version, &wf.URL, &wf.Content,
			&preRegistered, &attachments, &runIDs, &addedDate, &updatedDate); err != nil {
			return nil, err
		}
		wf.PreRegistered = preRegistered != 0
		if err := json.Unmarshal([]byte(attachments), &wf.PreRegisteredWorkflowAttachment); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
		if err := json.Unmarshal([]byte(runIDs), &wf.RunIDs); err != nil {
			return nil, fmt.Errorf("unmarshal run_ids: %w", err)
		}
		wf.AddedDate = parseTime(addedDate)
		wf.UpdatedDate = parseTime(updatedDate)

		workflows = append(workflows, &wf)
	}
	return workflows, rows.Err()
}

func (s *SQLiteStore) loadRuns(ctx context.Context) ([]*model.Run, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, service_id, workflow_id, name, state, run_log, added_date, updated_date
		 FROM runs ORDER BY added_date, id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	runs := []*model.Run{}
	for rows.Next() {
		var run model.Run
		var state, runLog, addedDate, updatedDate string

		if err := rows.Scan(&run.ID, &run.ServiceID, &run.WorkflowID, &run.Name, &state,
			&runLog, &addedDate, &updatedDate); err != nil {
			return nil, err
		}
		run.State = model.RunState(state)
		if err := json.Unmarshal([]byte(runLog), &run.RunLog); err != nil {
			return nil, fmt.Errorf("unmarshal run_log: %w", err)
		}
		run.AddedDate = parseTime(addedDate)
		run.UpdatedDate = parseTime(updatedDate)

		runs = append(runs, &run)
	}
	return runs, rows.Err()
}
