package status

import (
	"encoding/json"
	"log"
	"strconv"
	"strings"

	"triton/internal/domain"
)

// Canonical checkpoint/task statuses.
const (
	Complete   = "complete"
	Incomplete = "incomplete"
	Waiting    = "waiting"
)

// Survey readiness values. A survey checkpoint's monitor task carries
// readiness in its attachment; the task itself only counts as complete
// once readiness reaches "complete".
const (
	SurveyNotReady = "not ready"
	SurveyReady    = "ready"
	SurveyComplete = "complete"
)

// Viewer roles. Org-level admins never see waiting; supervisors do.
type Role string

const (
	RoleSuperAdmin Role = "super_admin"
	RoleOrgAdmin   Role = "org_admin"
)

// fileAttachment is the parsed form of a file task's attachment.
type fileAttachment struct {
	GCSPath string `json:"gcs_path"`
	Status  string `json:"status"`
}

// IsComplete reports whether a task's attachment satisfies its data
// type. For input:number a non-numeric attachment is cleared, not just
// rejected. Malformed JSON is downgraded to incomplete with a
// diagnostic; it never propagates.
func IsComplete(t *domain.Task, logger *log.Logger) bool {
	switch t.DataType {
	case "button":
		return true
	case "monitor":
		return attached(t) == SurveyComplete
	case "file":
		raw := attached(t)
		if raw == "" {
			return false
		}
		var fa fileAttachment
		if err := json.Unmarshal([]byte(raw), &fa); err != nil {
			logf(logger, "task %s: bad file attachment: %v", t.UID, err)
			return false
		}
		return fa.GCSPath != "" && (fa.Status == "submitted" || fa.Status == "accepted")
	case "input", "input:text", "input:url", "input:date", "textarea":
		return attached(t) != ""
	case "input:number":
		raw := attached(t)
		if raw == "" {
			return false
		}
		if _, err := strconv.ParseFloat(raw, 64); err != nil {
			// reject and clear, not merely reject
			t.Attachment = nil
			return false
		}
		return true
	case "survey_params":
		raw := attached(t)
		if raw == "" {
			return false
		}
		var tmp any
		if err := json.Unmarshal([]byte(raw), &tmp); err != nil {
			logf(logger, "task %s: bad survey_params attachment: %v", t.UID, err)
			return false
		}
		return true
	case "radio", "radio:quiz", "radio:conditional":
		raw := attached(t)
		return raw != "" && !strings.Contains(raw, "incorrect")
	default:
		logf(logger, "task %s: unknown data_type %q", t.UID, t.DataType)
		return false
	}
}

// FromTasks aggregates child task statuses into a checkpoint status.
// Tasks not editable by non-admins are excluded from the waiting check:
// when only those remain incomplete, user-facing work is done.
func FromTasks(tasks []domain.Task) string {
	allComplete := true
	allAssignedComplete := true
	for _, t := range tasks {
		if t.Status == Complete {
			continue
		}
		allComplete = false
		if t.NonAdminMayEdit {
			allAssignedComplete = false
		}
	}
	if allComplete {
		return Complete
	}
	if allAssignedComplete {
		return Waiting
	}
	return Incomplete
}

// ForRole adjusts a view status for the viewer. Waiting means admin-only
// work remains; org-level users see that as complete.
func ForRole(s string, role Role) string {
	if s == Waiting && role != RoleSuperAdmin {
		return Complete
	}
	return s
}

// Collapse merges the hidden project checkpoint's view status into the
// first survey checkpoint's. Waiting dominates; otherwise both must be
// complete.
func Collapse(project, survey string) string {
	if project == Waiting || survey == Waiting {
		return Waiting
	}
	if project == Complete && survey == Complete {
		return Complete
	}
	return Incomplete
}

func attached(t *domain.Task) string {
	if t.Attachment == nil {
		return ""
	}
	return *t.Attachment
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger == nil {
		logger = log.Default()
	}
	logger.Printf(format, args...)
}
