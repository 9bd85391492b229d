package status_test

import (
	"testing"

	"triton/internal/domain"
	"triton/internal/status"
)

func strptr(s string) *string { return &s }

func TestIsComplete(t *testing.T) {
	cases := []struct {
		name       string
		dataType   string
		attachment *string
		want       bool
	}{
		{"button always complete", "button", nil, true},
		{"monitor ready is not complete", "monitor", strptr("ready"), false},
		{"monitor complete", "monitor", strptr("complete"), true},
		{"file submitted", "file", strptr(`{"gcs_path":"bucket/a.pdf","status":"submitted"}`), true},
		{"file accepted", "file", strptr(`{"gcs_path":"bucket/a.pdf","status":"accepted"}`), true},
		{"file rejected", "file", strptr(`{"gcs_path":"bucket/a.pdf","status":"rejected"}`), false},
		{"file no path", "file", strptr(`{"status":"submitted"}`), false},
		{"file bad json", "file", strptr(`{not json`), false},
		{"file empty", "file", nil, false},
		{"input filled", "input", strptr("hello"), true},
		{"input empty", "input", strptr(""), false},
		{"input:text filled", "input:text", strptr("x"), true},
		{"input:url filled", "input:url", strptr("https://a.b"), true},
		{"input:date filled", "input:date", strptr("2026-01-01"), true},
		{"textarea filled", "textarea", strptr("long text"), true},
		{"input:number numeric", "input:number", strptr("42"), true},
		{"input:number decimal", "input:number", strptr("3.5"), true},
		{"input:number non-numeric", "input:number", strptr("abc"), false},
		{"survey_params valid json", "survey_params", strptr(`{"a":"b"}`), true},
		{"survey_params invalid json", "survey_params", strptr(`nope{`), false},
		{"radio answered", "radio", strptr("option_a"), true},
		{"radio incorrect", "radio", strptr("option_incorrect"), false},
		{"radio:quiz incorrect", "radio:quiz", strptr("incorrect"), false},
		{"radio:quiz correct", "radio:quiz", strptr("correct_answer"), true},
		{"radio:conditional empty", "radio:conditional", nil, false},
		{"unknown type", "hologram", strptr("anything"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task := domain.Task{DataType: tc.dataType, Attachment: tc.attachment}
			if got := status.IsComplete(&task, nil); got != tc.want {
				t.Fatalf("IsComplete(%s, %v) = %v, want %v", tc.dataType, tc.attachment, got, tc.want)
			}
		})
	}
}

func TestIsCompleteNumberClearsAttachment(t *testing.T) {
	task := domain.Task{DataType: "input:number", Attachment: strptr("abc")}
	if status.IsComplete(&task, nil) {
		t.Fatal("non-numeric attachment reported complete")
	}
	if task.Attachment != nil {
		t.Fatalf("attachment not cleared: %q", *task.Attachment)
	}
}

func TestFromTasksEmptyIsComplete(t *testing.T) {
	if got := status.FromTasks(nil); got != status.Complete {
		t.Fatalf("FromTasks(nil) = %q, want complete", got)
	}
}

func TestFromTasksAggregation(t *testing.T) {
	cases := []struct {
		name  string
		tasks []domain.Task
		want  string
	}{
		{
			"all complete",
			[]domain.Task{
				{Status: status.Complete, NonAdminMayEdit: true},
				{Status: status.Complete, NonAdminMayEdit: false},
			},
			status.Complete,
		},
		{
			"admin task pending means waiting",
			[]domain.Task{
				{Status: status.Complete, NonAdminMayEdit: true},
				{Status: status.Incomplete, NonAdminMayEdit: false},
			},
			status.Waiting,
		},
		{
			"assigned task pending means incomplete",
			[]domain.Task{
				{Status: status.Incomplete, NonAdminMayEdit: true},
				{Status: status.Complete, NonAdminMayEdit: false},
			},
			status.Incomplete,
		},
		{
			"only admin tasks all pending",
			[]domain.Task{
				{Status: status.Incomplete, NonAdminMayEdit: false},
			},
			status.Waiting,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := status.FromTasks(tc.tasks); got != tc.want {
				t.Fatalf("FromTasks = %q, want %q", got, tc.want)
			}
		})
	}
}

// An admin-only task can hold a checkpoint at waiting but never drag it
// to incomplete on its own.
func TestAdminTaskNeverCausesIncomplete(t *testing.T) {
	for _, adminStatus := range []string{status.Complete, status.Incomplete} {
		tasks := []domain.Task{
			{Status: status.Complete, NonAdminMayEdit: true},
			{Status: adminStatus, NonAdminMayEdit: false},
		}
		if got := status.FromTasks(tasks); got == status.Incomplete {
			t.Fatalf("admin task with status %q made checkpoint incomplete", adminStatus)
		}
	}
}

func TestFromTasksIdempotent(t *testing.T) {
	tasks := []domain.Task{
		{Status: status.Complete, NonAdminMayEdit: true},
		{Status: status.Incomplete, NonAdminMayEdit: false},
	}
	first := status.FromTasks(tasks)
	second := status.FromTasks(tasks)
	if first != second {
		t.Fatalf("recompute changed status: %q then %q", first, second)
	}
}

func TestForRole(t *testing.T) {
	if got := status.ForRole(status.Waiting, status.RoleOrgAdmin); got != status.Complete {
		t.Fatalf("org admin sees %q for waiting, want complete", got)
	}
	if got := status.ForRole(status.Waiting, status.RoleSuperAdmin); got != status.Waiting {
		t.Fatalf("super admin sees %q for waiting, want waiting", got)
	}
	if got := status.ForRole(status.Incomplete, status.RoleOrgAdmin); got != status.Incomplete {
		t.Fatalf("incomplete adjusted to %q", got)
	}
}

func TestCollapse(t *testing.T) {
	cases := []struct {
		project, survey, want string
	}{
		{status.Waiting, status.Complete, status.Waiting},
		{status.Complete, status.Waiting, status.Waiting},
		{status.Complete, status.Complete, status.Complete},
		{status.Incomplete, status.Complete, status.Incomplete},
		{status.Complete, status.Incomplete, status.Incomplete},
		{status.Incomplete, status.Incomplete, status.Incomplete},
	}
	for _, tc := range cases {
		if got := status.Collapse(tc.project, tc.survey); got != tc.want {
			t.Fatalf("Collapse(%q, %q) = %q, want %q", tc.project, tc.survey, got, tc.want)
		}
	}
}
