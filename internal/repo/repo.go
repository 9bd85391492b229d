package repo

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"triton/internal/config"
	"triton/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var ErrNotFound = errors.New("not found")

// --- organizations ---

func (r Repo) InsertOrganization(ctx context.Context, o domain.Organization) error {
	_, err := r.DB.ExecContext(ctx, `INSERT INTO organizations(uid,name,created_at) VALUES (?,?,?)`,
		o.UID, o.Name, o.CreatedAt)
	return err
}

func (r Repo) GetOrganization(ctx context.Context, uid string) (domain.Organization, error) {
	var o domain.Organization
	err := r.DB.QueryRowContext(ctx, `SELECT uid,name,created_at FROM organizations WHERE uid=?`, uid).
		Scan(&o.UID, &o.Name, &o.CreatedAt)
	if err == sql.ErrNoRows {
		return o, ErrNotFound
	}
	return o, err
}

// --- programs ---

func (r Repo) UpsertProgram(ctx context.Context, label string, cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("config nil")
	}
	cfg.Program.Label = label
	if err := cfg.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(cfg)
	if err != nil {
		return err
	}
	now := time.Now().UTC().Format(time.RFC3339)
	_, err = r.DB.ExecContext(ctx, `INSERT INTO programs(label,config_json,created_at,updated_at) VALUES (?,?,?,?)
ON CONFLICT(label) DO UPDATE SET config_json=excluded.config_json, updated_at=excluded.updated_at`, label, string(payload), now, now)
	return err
}

func (r Repo) GetProgram(ctx context.Context, label string) (*config.Config, error) {
	var payload string
	err := r.DB.QueryRowContext(ctx, `SELECT config_json FROM programs WHERE label=?`, label).Scan(&payload)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var cfg config.Config
	if err := json.Unmarshal([]byte(payload), &cfg); err != nil {
		return nil, err
	}
	if cfg.Program.Label == "" {
		cfg.Program.Label = label
	}
	return &cfg, cfg.Validate()
}

// --- project cohorts ---

func (r Repo) InsertProjectCohort(ctx context.Context, tx *sql.Tx, pc domain.ProjectCohort) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO project_cohorts(uid,organization_id,program_label,cohort_label,code,portal_type,custom_portal_url,survey_params,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		pc.UID, pc.OrganizationID, pc.ProgramLabel, pc.CohortLabel, pc.Code,
		nullable(pc.PortalType), nullable(pc.CustomPortalURL), nullableStringPtr(pc.SurveyParams), pc.CreatedAt)
	return err
}

func scanProjectCohort(row *sql.Row) (domain.ProjectCohort, error) {
	var pc domain.ProjectCohort
	var portalType, customURL, surveyParams sql.NullString
	err := row.Scan(&pc.UID, &pc.OrganizationID, &pc.ProgramLabel, &pc.CohortLabel, &pc.Code,
		&portalType, &customURL, &surveyParams, &pc.CreatedAt)
	if err == sql.ErrNoRows {
		return pc, ErrNotFound
	}
	if err != nil {
		return pc, err
	}
	if portalType.Valid {
		pc.PortalType = portalType.String
	}
	if customURL.Valid {
		pc.CustomPortalURL = customURL.String
	}
	if surveyParams.Valid {
		pc.SurveyParams = &surveyParams.String
	}
	return pc, nil
}

const projectCohortCols = `uid,organization_id,program_label,cohort_label,code,portal_type,custom_portal_url,survey_params,created_at`

func (r Repo) GetProjectCohort(ctx context.Context, uid string) (domain.ProjectCohort, error) {
	return scanProjectCohort(r.DB.QueryRowContext(ctx,
		`SELECT `+projectCohortCols+` FROM project_cohorts WHERE uid=?`, uid))
}

// GetProjectCohortByCode resolves a normalized participation code.
func (r Repo) GetProjectCohortByCode(ctx context.Context, code string) (domain.ProjectCohort, error) {
	return scanProjectCohort(r.DB.QueryRowContext(ctx,
		`SELECT `+projectCohortCols+` FROM project_cohorts WHERE code=?`, code))
}

func (r Repo) ListProjectCohorts(ctx context.Context, organizationID string) ([]domain.ProjectCohort, error) {
	var clauses []string
	var args []any
	if organizationID != "" {
		clauses = append(clauses, "organization_id=?")
		args = append(args, organizationID)
	}
	where := ""
	if len(clauses) > 0 {
		where = "WHERE " + strings.Join(clauses, " AND ")
	}
	rows, err := r.DB.QueryContext(ctx,
		`SELECT `+projectCohortCols+` FROM project_cohorts `+where+` ORDER BY created_at DESC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ProjectCohort
	for rows.Next() {
		var pc domain.ProjectCohort
		var portalType, customURL, surveyParams sql.NullString
		if err := rows.Scan(&pc.UID, &pc.OrganizationID, &pc.ProgramLabel, &pc.CohortLabel, &pc.Code,
			&portalType, &customURL, &surveyParams, &pc.CreatedAt); err != nil {
			return nil, err
		}
		if portalType.Valid {
			pc.PortalType = portalType.String
		}
		if customURL.Valid {
			pc.CustomPortalURL = customURL.String
		}
		if surveyParams.Valid {
			pc.SurveyParams = &surveyParams.String
		}
		res = append(res, pc)
	}
	return res, rows.Err()
}

// --- checkpoints ---

func (r Repo) InsertCheckpoint(ctx context.Context, tx *sql.Tx, cp domain.Checkpoint) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO checkpoints(uid,project_cohort_id,parent_kind,parent_id,label,ordinal,survey_ordinal,status,created_at)
VALUES (?,?,?,?,?,?,?,?,?)`,
		cp.UID, cp.ProjectCohortID, cp.ParentKind, cp.ParentID, cp.Label, cp.Ordinal, cp.SurveyOrdinal, cp.Status, cp.CreatedAt)
	return err
}

func (r Repo) UpdateCheckpointStatus(ctx context.Context, tx *sql.Tx, uid, status string) error {
	res, err := tx.ExecContext(ctx, `UPDATE checkpoints SET status=? WHERE uid=?`, status, uid)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r Repo) ListCheckpoints(ctx context.Context, cohortID string) ([]domain.Checkpoint, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT uid,project_cohort_id,parent_kind,parent_id,label,ordinal,survey_ordinal,status,created_at
FROM checkpoints WHERE project_cohort_id=? ORDER BY ordinal ASC`, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Checkpoint
	for rows.Next() {
		var cp domain.Checkpoint
		if err := rows.Scan(&cp.UID, &cp.ProjectCohortID, &cp.ParentKind, &cp.ParentID, &cp.Label,
			&cp.Ordinal, &cp.SurveyOrdinal, &cp.Status, &cp.CreatedAt); err != nil {
			return nil, err
		}
		res = append(res, cp)
	}
	return res, rows.Err()
}

func (r Repo) GetCheckpoint(ctx context.Context, uid string) (domain.Checkpoint, error) {
	var cp domain.Checkpoint
	err := r.DB.QueryRowContext(ctx,
		`SELECT uid,project_cohort_id,parent_kind,parent_id,label,ordinal,survey_ordinal,status,created_at
FROM checkpoints WHERE uid=?`, uid).
		Scan(&cp.UID, &cp.ProjectCohortID, &cp.ParentKind, &cp.ParentID, &cp.Label,
			&cp.Ordinal, &cp.SurveyOrdinal, &cp.Status, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return cp, ErrNotFound
	}
	return cp, err
}

// --- tasks ---

const taskCols = `uid,project_cohort_id,checkpoint_id,parent_kind,parent_id,label,data_type,status,attachment,non_admin_may_edit,ordinal,created_at,updated_at`

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO tasks(`+taskCols+`) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
		t.UID, t.ProjectCohortID, t.CheckpointID, t.ParentKind, t.ParentID, t.Label, t.DataType,
		t.Status, nullableStringPtr(t.Attachment), boolInt(t.NonAdminMayEdit), t.Ordinal, t.CreatedAt, t.UpdatedAt)
	return err
}

func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	res, err := tx.ExecContext(ctx, `UPDATE tasks SET status=?, attachment=?, updated_at=? WHERE uid=?`,
		t.Status, nullableStringPtr(t.Attachment), t.UpdatedAt, t.UID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanTask(scan func(dest ...any) error) (domain.Task, error) {
	var t domain.Task
	var attachment sql.NullString
	var nonAdmin int
	err := scan(&t.UID, &t.ProjectCohortID, &t.CheckpointID, &t.ParentKind, &t.ParentID, &t.Label,
		&t.DataType, &t.Status, &attachment, &nonAdmin, &t.Ordinal, &t.CreatedAt, &t.UpdatedAt)
	if err != nil {
		return t, err
	}
	if attachment.Valid {
		t.Attachment = &attachment.String
	}
	t.NonAdminMayEdit = nonAdmin != 0
	return t, nil
}

func (r Repo) GetTask(ctx context.Context, uid string) (domain.Task, error) {
	row := r.DB.QueryRowContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE uid=?`, uid)
	t, err := scanTask(row.Scan)
	if err == sql.ErrNoRows {
		return t, ErrNotFound
	}
	return t, err
}

func (r Repo) ListTasks(ctx context.Context, cohortID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE project_cohort_id=? ORDER BY ordinal ASC`, cohortID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

func (r Repo) ListTasksByCheckpoint(ctx context.Context, checkpointID string) ([]domain.Task, error) {
	rows, err := r.DB.QueryContext(ctx, `SELECT `+taskCols+` FROM tasks WHERE checkpoint_id=? ORDER BY ordinal ASC`, checkpointID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Task
	for rows.Next() {
		t, err := scanTask(rows.Scan)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// --- participants ---

func (r Repo) InsertParticipant(ctx context.Context, tx *sql.Tx, p domain.Participant) error {
	_, err := tx.ExecContext(ctx, `INSERT INTO participants(uid,name,organization_id,external_id,created_at) VALUES (?,?,?,?,?)`,
		p.UID, p.Name, p.OrganizationID, nullableStringPtr(p.ExternalID), p.CreatedAt)
	return err
}

func scanParticipant(row *sql.Row) (domain.Participant, error) {
	var p domain.Participant
	var externalID sql.NullString
	err := row.Scan(&p.UID, &p.Name, &p.OrganizationID, &externalID, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return p, ErrNotFound
	}
	if externalID.Valid {
		p.ExternalID = &externalID.String
	}
	return p, err
}

func (r Repo) GetParticipant(ctx context.Context, uid string) (domain.Participant, error) {
	return scanParticipant(r.DB.QueryRowContext(ctx,
		`SELECT uid,name,organization_id,external_id,created_at FROM participants WHERE uid=?`, uid))
}

// GetParticipantByName looks a participant up by token name within an
// organization.
func (r Repo) GetParticipantByName(ctx context.Context, name, organizationID string) (domain.Participant, error) {
	return scanParticipant(r.DB.QueryRowContext(ctx,
		`SELECT uid,name,organization_id,external_id,created_at FROM participants WHERE name=? AND organization_id=?`, name, organizationID))
}

// --- participant data ---

func (r Repo) InsertParticipantData(ctx context.Context, tx *sql.Tx, pd domain.ParticipantData) (int64, error) {
	res, err := tx.ExecContext(ctx, `INSERT INTO participant_data(participant_id,key,value,project_cohort_id,survey_id,survey_ordinal,created_at)
VALUES (?,?,?,?,?,?,?)`,
		pd.ParticipantID, pd.Key, pd.Value, nullableStringPtr(pd.ProjectCohortID), nullableStringPtr(pd.SurveyID),
		nullableIntPtr(pd.SurveyOrdinal), pd.CreatedAt)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// ListParticipantData returns all historical records for a participant
// in insertion order. Scope filtering happens in the caller.
func (r Repo) ListParticipantData(ctx context.Context, participantID string) ([]domain.ParticipantData, error) {
	rows, err := r.DB.QueryContext(ctx,
		`SELECT id,participant_id,key,value,project_cohort_id,survey_id,survey_ordinal,created_at
FROM participant_data WHERE participant_id=? ORDER BY id ASC`, participantID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.ParticipantData
	for rows.Next() {
		var pd domain.ParticipantData
		var cohortID, surveyID sql.NullString
		var ordinal sql.NullInt64
		if err := rows.Scan(&pd.ID, &pd.ParticipantID, &pd.Key, &pd.Value, &cohortID, &surveyID, &ordinal, &pd.CreatedAt); err != nil {
			return nil, err
		}
		if cohortID.Valid {
			pd.ProjectCohortID = &cohortID.String
		}
		if surveyID.Valid {
			pd.SurveyID = &surveyID.String
		}
		if ordinal.Valid {
			o := int(ordinal.Int64)
			pd.SurveyOrdinal = &o
		}
		res = append(res, pd)
	}
	return res, rows.Err()
}

// --- events ---

func (r Repo) LatestEvents(ctx context.Context, limit int, cohortID, evtType string) ([]domain.Event, error) {
	clauses := []string{"1=1"}
	var args []any
	if cohortID != "" {
		clauses = append(clauses, "project_cohort_id=?")
		args = append(args, cohortID)
	}
	if evtType != "" {
		clauses = append(clauses, "type=?")
		args = append(args, evtType)
	}
	where := "WHERE " + strings.Join(clauses, " AND ")
	query := fmt.Sprintf(`SELECT id,ts,type,project_cohort_id,entity_kind,entity_id,actor_id,payload_json FROM events %s ORDER BY id DESC LIMIT ?`, where)
	args = append(args, limit)
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var res []domain.Event
	for rows.Next() {
		var e domain.Event
		var cohort, entityID, payload sql.NullString
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &cohort, &e.EntityKind, &entityID, &e.ActorID, &payload); err != nil {
			return nil, err
		}
		if cohort.Valid {
			e.CohortID = cohort.String
		}
		if entityID.Valid {
			e.EntityID = entityID.String
		}
		if payload.Valid {
			e.Payload = payload.String
		}
		res = append(res, e)
	}
	return res, rows.Err()
}

// --- helpers ---

func nullable(v string) any {
	if v == "" {
		return nil
	}
	return v
}

func nullableStringPtr(v *string) any {
	if v == nil || *v == "" {
		return nil
	}
	return *v
}

func nullableIntPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
