package tritonsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Triton HTTP API client.
type Client struct {
	BaseURL     string
	APIKey      string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Organization represents the API organization model.
type Organization struct {
	UID       string `json:"uid"`
	Name      string `json:"name"`
	CreatedAt string `json:"created_at"`
}

// ProjectCohort represents one offering of a program (partial).
type ProjectCohort struct {
	UID            string `json:"uid"`
	OrganizationID string `json:"organization_id"`
	ProgramLabel   string `json:"program_label"`
	CohortLabel    string `json:"cohort_label"`
	Code           string `json:"code"`
}

// Checkpoint carries both canonical and view statuses.
type Checkpoint struct {
	UID           string `json:"uid"`
	Label         string `json:"label"`
	ParentKind    string `json:"parent_kind"`
	SurveyOrdinal int    `json:"survey_ordinal,omitempty"`
	Status        string `json:"status"`
	StatusVM      string `json:"status_vm,omitempty"`
	IsVisible     bool   `json:"is_visible"`
	IsCurrent     bool   `json:"is_current"`
}

// Task represents the API task model (partial).
type Task struct {
	UID        string  `json:"uid"`
	Label      string  `json:"label"`
	DataType   string  `json:"data_type"`
	Status     string  `json:"status"`
	Attachment *string `json:"attachment,omitempty"`
	IsCurrent  bool    `json:"is_current"`
}

// CohortStatus is a cohort's resolved checkpoint/task lists.
type CohortStatus struct {
	ProjectCohort ProjectCohort `json:"project_cohort"`
	Checkpoints   []Checkpoint  `json:"checkpoints"`
	Tasks         []Task        `json:"tasks"`
}

// ParticipantData is one append-only history record.
type ParticipantData struct {
	ID              int64   `json:"id"`
	ParticipantID   string  `json:"participant_id"`
	Key             string  `json:"key"`
	Value           string  `json:"value"`
	ProjectCohortID *string `json:"project_cohort_id,omitempty"`
	SurveyOrdinal   *int    `json:"survey_ordinal,omitempty"`
}

// Decision is a portal routing outcome.
type Decision struct {
	RedirectURL  string `json:"redirect_url,omitempty"`
	DeniedReason string `json:"denied_reason,omitempty"`
	PendingState string `json:"pending_state,omitempty"`
	ReenterToken bool   `json:"reenter_token,omitempty"`
	FirstLogin   bool   `json:"first_login"`
}

// Event represents a log entry.
type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts"`
	Type       string `json:"type"`
	CohortID   string `json:"project_cohort_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	ActorID    string `json:"actor_id"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// CreateOrganization creates an organization.
func (c *Client) CreateOrganization(ctx context.Context, name string) (Organization, error) {
	var resp Organization
	err := c.do(ctx, http.MethodPost, "v1/organizations", map[string]any{"name": name}, nil, &resp)
	return resp, err
}

// CreateCohort opens a cohort for an organization.
func (c *Client) CreateCohort(ctx context.Context, organizationID, programLabel, cohortLabel, code string) (ProjectCohort, error) {
	body := map[string]any{
		"organization_id": organizationID,
		"program_label":   programLabel,
		"cohort_label":    cohortLabel,
		"code":            code,
	}
	var resp ProjectCohort
	err := c.do(ctx, http.MethodPost, "v1/cohorts", body, nil, &resp)
	return resp, err
}

// CohortStatus returns the resolved checkpoint/task lists.
func (c *Client) CohortStatus(ctx context.Context, cohortID string) (CohortStatus, error) {
	var resp CohortStatus
	endpoint := fmt.Sprintf("v1/cohorts/%s/status", url.PathEscape(cohortID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp, err
}

// UpdateTaskAttachment submits or clears an attachment. Pass nil to
// clear.
func (c *Client) UpdateTaskAttachment(ctx context.Context, taskID string, attachment *string) (Task, error) {
	var resp Task
	endpoint := fmt.Sprintf("v1/tasks/%s/attachment", url.PathEscape(taskID))
	err := c.do(ctx, http.MethodPut, endpoint, map[string]any{"attachment": attachment}, nil, &resp)
	return resp, err
}

// RecordParticipantData appends one pd record.
func (c *Client) RecordParticipantData(ctx context.Context, participantID string, pd ParticipantData) (ParticipantData, error) {
	body := map[string]any{
		"key":               pd.Key,
		"value":             pd.Value,
		"project_cohort_id": pd.ProjectCohortID,
		"survey_ordinal":    pd.SurveyOrdinal,
	}
	var resp ParticipantData
	endpoint := fmt.Sprintf("v1/participants/%s/data", url.PathEscape(participantID))
	err := c.do(ctx, http.MethodPost, endpoint, body, nil, &resp)
	return resp, err
}

// ListParticipantData returns the full pd history, oldest first.
func (c *Client) ListParticipantData(ctx context.Context, participantID string) ([]ParticipantData, error) {
	var resp []ParticipantData
	endpoint := fmt.Sprintf("v1/participants/%s/data", url.PathEscape(participantID))
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp, err
}

// Route runs portal routing for a cookie triple.
func (c *Client) Route(ctx context.Context, code, session, token string) (Decision, error) {
	cookies := []*http.Cookie{
		{Name: "triton_code", Value: code},
		{Name: "triton_session", Value: session},
		{Name: "triton_token", Value: token},
	}
	var resp struct {
		Decision Decision `json:"decision"`
	}
	err := c.do(ctx, http.MethodPost, "v1/portal/route", nil, cookies, &resp)
	return resp.Decision, err
}

// Events returns recent events.
func (c *Client) Events(ctx context.Context, limit int) ([]Event, error) {
	endpoint := "v1/events"
	if limit > 0 {
		endpoint = fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	var resp []Event
	err := c.do(ctx, http.MethodGet, endpoint, nil, nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, cookies []*http.Cookie, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	reqURL := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, reqURL, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	switch {
	case c.BearerToken != "":
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	case c.APIKey != "":
		req.Header.Set("X-Api-Key", c.APIKey)
	}
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
