package server

import (
	"triton/internal/domain"
	"triton/internal/portal"
)

// Request payloads

type CreateOrganizationRequest struct {
	Name string `json:"name"`
}

type CreateCohortRequest struct {
	OrganizationID  string `json:"organization_id"`
	ProgramLabel    string `json:"program_label"`
	CohortLabel     string `json:"cohort_label"`
	Code            string `json:"code"`
	PortalType      string `json:"portal_type,omitempty"`
	CustomPortalURL string `json:"custom_portal_url,omitempty"`
}

type UpdateAttachmentRequest struct {
	Attachment *string `json:"attachment"`
}

type RecordPDRequest struct {
	Key             string  `json:"key"`
	Value           string  `json:"value"`
	ProjectCohortID *string `json:"project_cohort_id,omitempty"`
	SurveyOrdinal   *int    `json:"survey_ordinal,omitempty"`
}

// Response payloads

type CohortStatusResponse struct {
	ProjectCohort domain.ProjectCohort `json:"project_cohort"`
	Checkpoints   []domain.Checkpoint  `json:"checkpoints"`
	Tasks         []domain.Task        `json:"tasks"`
}

type DashboardResponse struct {
	Organization domain.Organization `json:"organization"`
	Checkpoints  []domain.Checkpoint `json:"checkpoints"`
}

type RouteResponse struct {
	Decision portal.Decision `json:"decision"`
}
