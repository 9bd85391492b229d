package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"triton/internal/config"
	"triton/internal/domain"
	"triton/internal/events"
	"triton/internal/repo"
	"triton/internal/status"
)

// ForbiddenTaskError is returned when an org-level viewer edits a task
// reserved for supervisors.
type ForbiddenTaskError struct {
	Label string
}

func (e ForbiddenTaskError) Error() string {
	return fmt.Sprintf("task %s is not editable at this role", e.Label)
}

type Engine struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Now    func() time.Time
	Logger *log.Logger
}

func New(db *sql.DB) Engine {
	return Engine{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{DB: db},
		Now:    time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

func (e Engine) logger() *log.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return log.Default()
}

// CreateOrganization inserts an organization.
func (e Engine) CreateOrganization(ctx context.Context, name, actorID string) (domain.Organization, error) {
	if name == "" {
		return domain.Organization{}, errors.New("name is required")
	}
	o := domain.Organization{
		UID:       "Organization_" + uuid.New().String(),
		Name:      name,
		CreatedAt: e.now().UTC().Format(time.RFC3339),
	}
	if err := e.Repo.InsertOrganization(ctx, o); err != nil {
		return domain.Organization{}, fmt.Errorf("insert organization: %w", err)
	}
	return o, nil
}

// CohortCreateOptions are parameters for opening a project cohort.
type CohortCreateOptions struct {
	OrganizationID  string
	ProgramLabel    string
	CohortLabel     string
	Code            string
	PortalType      string
	CustomPortalURL string
	ActorID         string
}

// CreateProjectCohort opens a cohort for an organization and seeds its
// checkpoint/task rows from the program's templates, all in one tx.
func (e Engine) CreateProjectCohort(ctx context.Context, opts CohortCreateOptions) (domain.ProjectCohort, error) {
	if opts.OrganizationID == "" {
		return domain.ProjectCohort{}, errors.New("organization is required")
	}
	if opts.Code == "" {
		return domain.ProjectCohort{}, errors.New("code is required")
	}
	if _, err := e.Repo.GetOrganization(ctx, opts.OrganizationID); err != nil {
		return domain.ProjectCohort{}, err
	}
	cfg, err := e.Repo.GetProgram(ctx, opts.ProgramLabel)
	if err != nil {
		return domain.ProjectCohort{}, err
	}
	if _, ok := cfg.Cohort(opts.CohortLabel); !ok {
		return domain.ProjectCohort{}, fmt.Errorf("program %s has no cohort %s", opts.ProgramLabel, opts.CohortLabel)
	}
	now := e.now().UTC().Format(time.RFC3339)
	pc := domain.ProjectCohort{
		UID:             "ProjectCohort_" + uuid.New().String(),
		OrganizationID:  opts.OrganizationID,
		ProgramLabel:    opts.ProgramLabel,
		CohortLabel:     opts.CohortLabel,
		Code:            opts.Code,
		PortalType:      opts.PortalType,
		CustomPortalURL: opts.CustomPortalURL,
		CreatedAt:       now,
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.ProjectCohort{}, err
	}
	defer tx.Rollback()

	if err := e.Repo.InsertProjectCohort(ctx, tx, pc); err != nil {
		return domain.ProjectCohort{}, fmt.Errorf("insert project cohort: %w", err)
	}
	if err := e.seedCheckpoints(ctx, tx, pc, cfg, now); err != nil {
		return domain.ProjectCohort{}, err
	}
	if err := e.Events.Append(ctx, tx, "cohort.created", pc.UID, "project_cohort", pc.UID, opts.ActorID, events.EventPayload{
		"program": pc.ProgramLabel,
		"cohort":  pc.CohortLabel,
		"code":    pc.Code,
	}); err != nil {
		return domain.ProjectCohort{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.ProjectCohort{}, err
	}
	return pc, nil
}

// seedCheckpoints creates the organization, project, and survey
// checkpoints with their tasks. New tasks start incomplete except
// buttons, which are complete once reached.
func (e Engine) seedCheckpoints(ctx context.Context, tx *sql.Tx, pc domain.ProjectCohort, cfg *config.Config, now string) error {
	for i, tmpl := range cfg.Checkpoints {
		parentID := pc.OrganizationID
		switch tmpl.ParentKind {
		case domain.ParentProject:
			parentID = pc.UID
		case domain.ParentSurvey:
			parentID = fmt.Sprintf("%s:survey:%d", pc.UID, tmpl.SurveyOrdinal)
		}
		cp := domain.Checkpoint{
			UID:             "Checkpoint_" + uuid.New().String(),
			ProjectCohortID: pc.UID,
			ParentKind:      tmpl.ParentKind,
			ParentID:        parentID,
			Label:           tmpl.Label,
			Ordinal:         i + 1,
			SurveyOrdinal:   tmpl.SurveyOrdinal,
			Status:          status.Incomplete,
			CreatedAt:       now,
		}
		if len(tmpl.Tasks) == 0 {
			cp.Status = status.Complete
		}
		if err := e.Repo.InsertCheckpoint(ctx, tx, cp); err != nil {
			return fmt.Errorf("insert checkpoint %s: %w", tmpl.Label, err)
		}
		for j, tt := range tmpl.Tasks {
			t := domain.Task{
				UID:             "Task_" + uuid.New().String(),
				ProjectCohortID: pc.UID,
				CheckpointID:    cp.UID,
				ParentKind:      cp.ParentKind,
				ParentID:        cp.ParentID,
				Label:           tt.Label,
				DataType:        tt.DataType,
				Status:          status.Incomplete,
				NonAdminMayEdit: tt.NonAdminMayEdit,
				Ordinal:         j + 1,
				CreatedAt:       now,
				UpdatedAt:       now,
			}
			if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
				return fmt.Errorf("insert task %s: %w", tt.Label, err)
			}
		}
	}
	return nil
}

// UpdateTaskAttachment submits or edits a task's attachment. Status is
// never set directly; it is always recomputed from the new attachment,
// and the parent checkpoint's canonical status is recomputed in the
// same tx.
func (e Engine) UpdateTaskAttachment(ctx context.Context, taskUID string, attachment *string, actorID string, role status.Role) (domain.Task, error) {
	t, err := e.Repo.GetTask(ctx, taskUID)
	if err != nil {
		return t, err
	}
	if !t.NonAdminMayEdit && role != status.RoleSuperAdmin {
		return t, ForbiddenTaskError{Label: t.Label}
	}
	t.Attachment = attachment
	if status.IsComplete(&t, e.Logger) {
		t.Status = status.Complete
	} else {
		t.Status = status.Incomplete
	}
	t.UpdatedAt = e.now().UTC().Format(time.RFC3339)

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return t, err
	}
	defer tx.Rollback()

	if err := e.Repo.UpdateTask(ctx, tx, t); err != nil {
		return t, err
	}
	siblings, err := e.Repo.ListTasksByCheckpoint(ctx, t.CheckpointID)
	if err != nil {
		return t, err
	}
	for i := range siblings {
		if siblings[i].UID == t.UID {
			siblings[i] = t
		}
	}
	cpStatus := status.FromTasks(siblings)
	if err := e.Repo.UpdateCheckpointStatus(ctx, tx, t.CheckpointID, cpStatus); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "task.updated", t.ProjectCohortID, "task", t.UID, actorID, events.EventPayload{
		"label":  t.Label,
		"status": t.Status,
	}); err != nil {
		return t, err
	}
	if err := e.Events.Append(ctx, tx, "checkpoint.recomputed", t.ProjectCohortID, "checkpoint", t.CheckpointID, actorID, events.EventPayload{
		"status": cpStatus,
	}); err != nil {
		return t, err
	}
	if err := tx.Commit(); err != nil {
		return t, err
	}
	return t, nil
}

// EnsureParticipant returns the participant for (name, organization),
// creating one on first login. The second return reports whether this
// was a first login.
func (e Engine) EnsureParticipant(ctx context.Context, name, organizationID string, externalID *string, actorID string) (domain.Participant, bool, error) {
	p, err := e.Repo.GetParticipantByName(ctx, name, organizationID)
	if err == nil {
		return p, false, nil
	}
	if !errors.Is(err, repo.ErrNotFound) {
		return domain.Participant{}, false, err
	}
	p = domain.Participant{
		UID:            "Participant_" + uuid.New().String(),
		Name:           name,
		OrganizationID: organizationID,
		ExternalID:     externalID,
		CreatedAt:      e.now().UTC().Format(time.RFC3339),
	}
	if externalID != nil && *externalID != "" {
		// seed the uid from the externally sourced identifier so the
		// two identity sources can never drift for new participants
		p.UID = "Participant_" + *externalID
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.Participant{}, false, err
	}
	defer tx.Rollback()
	if err := e.Repo.InsertParticipant(ctx, tx, p); err != nil {
		return domain.Participant{}, false, fmt.Errorf("insert participant: %w", err)
	}
	if err := e.Events.Append(ctx, tx, "participant.created", "", "participant", p.UID, actorID, events.EventPayload{
		"organization_id": organizationID,
	}); err != nil {
		return domain.Participant{}, false, err
	}
	if err := tx.Commit(); err != nil {
		return domain.Participant{}, false, err
	}
	return p, true, nil
}

// RecordParticipantData appends one immutable pd fact.
func (e Engine) RecordParticipantData(ctx context.Context, pd domain.ParticipantData, actorID string) (domain.ParticipantData, error) {
	if pd.ParticipantID == "" || pd.Key == "" {
		return pd, errors.New("participant_id and key are required")
	}
	pd.CreatedAt = e.now().UTC().Format(time.RFC3339)
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return pd, err
	}
	defer tx.Rollback()
	id, err := e.Repo.InsertParticipantData(ctx, tx, pd)
	if err != nil {
		return pd, fmt.Errorf("insert pd: %w", err)
	}
	pd.ID = id
	cohortID := ""
	if pd.ProjectCohortID != nil {
		cohortID = *pd.ProjectCohortID
	}
	if err := e.Events.Append(ctx, tx, "pd.recorded", cohortID, "participant_data", pd.ParticipantID, actorID, events.EventPayload{
		"key": pd.Key,
	}); err != nil {
		return pd, err
	}
	if err := tx.Commit(); err != nil {
		return pd, err
	}
	return pd, nil
}

// SurveyStatus reads a session's readiness from the survey checkpoint's
// monitor task. Missing task or empty attachment fails closed.
func (e Engine) SurveyStatus(ctx context.Context, cohortID string, ordinal int) (string, error) {
	cps, err := e.Repo.ListCheckpoints(ctx, cohortID)
	if err != nil {
		return "", err
	}
	for _, cp := range cps {
		if cp.ParentKind != domain.ParentSurvey || cp.SurveyOrdinal != ordinal {
			continue
		}
		tasks, err := e.Repo.ListTasksByCheckpoint(ctx, cp.UID)
		if err != nil {
			return "", err
		}
		for _, t := range tasks {
			if t.DataType != "monitor" {
				continue
			}
			if t.Attachment == nil || *t.Attachment == "" {
				return status.SurveyNotReady, nil
			}
			return *t.Attachment, nil
		}
	}
	e.logger().Printf("cohort %s: no monitor task for survey %d", cohortID, ordinal)
	return status.SurveyNotReady, nil
}
