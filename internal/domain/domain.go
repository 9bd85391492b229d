package domain

type Organization struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at" format:"date-time"`
}

// ProjectCohort is one offering of a program to one organization for one
// enrollment cycle. Participants reach it through its participation code.
type ProjectCohort struct {
	UID             string  `json:"uid"`
	OrganizationID  string  `json:"organization_id"`
	ProgramLabel    string  `json:"program_label"`
	CohortLabel     string  `json:"cohort_label"`
	Code            string  `json:"code"`
	PortalType      string  `json:"portal_type,omitempty"`
	CustomPortalURL string  `json:"custom_portal_url,omitempty"`
	SurveyParams    *string `json:"survey_params,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

// Checkpoint parent kinds. Project checkpoints are never shown on their
// own; their tasks fold into the first survey checkpoint for display.
const (
	ParentOrganization = "organization"
	ParentProject      = "project"
	ParentSurvey       = "survey"
)

type Checkpoint struct {
	UID             string `json:"uid"`
	ProjectCohortID string `json:"project_cohort_id"`
	ParentKind      string `json:"parent_kind" enum:"organization,project,survey"`
	ParentID        string `json:"parent_id"`
	Label           string `json:"label"`
	Ordinal         int    `json:"ordinal"`
	SurveyOrdinal   int    `json:"survey_ordinal,omitempty"`
	Status          string `json:"status" enum:"complete,incomplete,waiting"`
	CreatedAt       string `json:"created_at" format:"date-time"`

	// Display fields, recomputed per viewer; never persisted.
	StatusVM  string `json:"status_vm,omitempty"`
	IsVisible bool   `json:"is_visible"`
	IsCurrent bool   `json:"is_current"`
}

type Task struct {
	UID             string  `json:"uid"`
	ProjectCohortID string  `json:"project_cohort_id"`
	CheckpointID    string  `json:"checkpoint_id"`
	ParentKind      string  `json:"parent_kind"`
	ParentID        string  `json:"parent_id"`
	Label           string  `json:"label"`
	DataType        string  `json:"data_type"`
	Status          string  `json:"status" enum:"complete,incomplete"`
	Attachment      *string `json:"attachment,omitempty"`
	NonAdminMayEdit bool    `json:"non_admin_may_edit"`
	Ordinal         int     `json:"ordinal"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
	UpdatedAt       string  `json:"updated_at" format:"date-time"`

	// Display fields, recomputed per viewer.
	CheckpointIDVM string `json:"checkpoint_id_vm,omitempty"`
	IsCurrent      bool   `json:"is_current"`
	IsForbidden    bool   `json:"is_forbidden"`
}

type Participant struct {
	UID            string  `json:"uid"`
	Name           string  `json:"name"`
	OrganizationID string  `json:"organization_id"`
	ExternalID     *string `json:"external_id,omitempty"`
	CreatedAt      string  `json:"created_at" format:"date-time"`
}

// ParticipantData keys consulted by routing. The set is open; these are
// the ones gating logic dispatches on.
const (
	PDKeyLink            = "link"
	PDKeyProgress        = "progress"
	PDKeyCondition       = "condition"
	PDKeySawValidation   = "saw_validation"
	PDKeySawDemographics = "saw_demographics"
	PDKeySawBaseline     = "saw_baseline"
	PDKeyAssent          = "ep_assent"
	PDKeyLastLogin       = "last_login"
)

// ParticipantData is an append-only fact about a participant's history.
// Rows are never updated or deleted; the latest row for a (key, ordinal)
// scope wins.
type ParticipantData struct {
	ID              int64   `json:"id"`
	ParticipantID   string  `json:"participant_id"`
	Key             string  `json:"key"`
	Value           string  `json:"value"`
	ProjectCohortID *string `json:"project_cohort_id,omitempty"`
	SurveyID        *string `json:"survey_id,omitempty"`
	SurveyOrdinal   *int    `json:"survey_ordinal,omitempty"`
	CreatedAt       string  `json:"created_at" format:"date-time"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	CohortID   string `json:"project_cohort_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
	Payload    string `json:"payload_json"`
}

type APIKey struct {
	ID        string `json:"id"`
	ActorID   string `json:"actor_id"`
	Role      string `json:"role,omitempty"`
	Name      string `json:"name,omitempty"`
	KeyHash   string `json:"key_hash"`
	CreatedAt string `json:"created_at" format:"date-time"`
}
