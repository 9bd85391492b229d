package status_test

import (
	"testing"

	"triton/internal/domain"
	"triton/internal/status"
)

func fixtureLists() ([]domain.Checkpoint, []domain.Task) {
	checkpoints := []domain.Checkpoint{
		{UID: "cp-org", ParentKind: domain.ParentOrganization, Ordinal: 1},
		{UID: "cp-proj", ParentKind: domain.ParentProject, Ordinal: 2},
		{UID: "cp-s1", ParentKind: domain.ParentSurvey, SurveyOrdinal: 1, Ordinal: 3},
		{UID: "cp-s2", ParentKind: domain.ParentSurvey, SurveyOrdinal: 2, Ordinal: 4},
	}
	tasks := []domain.Task{
		{UID: "t-liaison", CheckpointID: "cp-org", Ordinal: 1, Status: status.Complete, NonAdminMayEdit: true},
		{UID: "t-loa", CheckpointID: "cp-org", Ordinal: 2, Status: status.Complete, NonAdminMayEdit: false},
		{UID: "t-expected", CheckpointID: "cp-proj", Ordinal: 1, Status: status.Incomplete, NonAdminMayEdit: true},
		{UID: "t-monitor1", CheckpointID: "cp-s1", Ordinal: 1, Status: status.Incomplete, NonAdminMayEdit: false},
		{UID: "t-monitor2", CheckpointID: "cp-s2", Ordinal: 1, Status: status.Incomplete, NonAdminMayEdit: false},
	}
	return checkpoints, tasks
}

func findCheckpoint(t *testing.T, cps []domain.Checkpoint, uid string) domain.Checkpoint {
	t.Helper()
	for _, cp := range cps {
		if cp.UID == uid {
			return cp
		}
	}
	t.Fatalf("checkpoint %s not in resolved list", uid)
	return domain.Checkpoint{}
}

func findTask(t *testing.T, tasks []domain.Task, uid string) domain.Task {
	t.Helper()
	for _, task := range tasks {
		if task.UID == uid {
			return task
		}
	}
	t.Fatalf("task %s not in resolved list", uid)
	return domain.Task{}
}

func TestResolveCohortProjectTasksFoldIntoFirstSurvey(t *testing.T) {
	cps, tasks := fixtureLists()
	cps, tasks = status.ResolveCohort(cps, tasks, status.RoleSuperAdmin, nil)

	proj := findCheckpoint(t, cps, "cp-proj")
	if proj.IsVisible {
		t.Fatal("project checkpoint should never be visible")
	}
	expected := findTask(t, tasks, "t-expected")
	if expected.CheckpointIDVM != "cp-s1" {
		t.Fatalf("project task displays under %q, want cp-s1", expected.CheckpointIDVM)
	}
	// the pending project task drags the first survey's view status down
	s1 := findCheckpoint(t, cps, "cp-s1")
	if s1.StatusVM != status.Incomplete {
		t.Fatalf("first survey status_vm = %q, want incomplete", s1.StatusVM)
	}
}

func TestResolveCohortWaitingCollapsesIntoFirstSurvey(t *testing.T) {
	cps, tasks := fixtureLists()
	// project work done by the org; survey checkpoints hold only
	// admin-side tasks, so the project column reads waiting
	for i := range tasks {
		if tasks[i].UID == "t-expected" || tasks[i].UID == "t-monitor2" {
			tasks[i].Status = status.Complete
		}
	}
	cps, _ = status.ResolveCohort(cps, tasks, status.RoleSuperAdmin, nil)
	s1 := findCheckpoint(t, cps, "cp-s1")
	if s1.StatusVM != status.Waiting {
		t.Fatalf("first survey status_vm = %q, want waiting", s1.StatusVM)
	}
}

func TestResolveCohortRoleAdjustment(t *testing.T) {
	cps, tasks := fixtureLists()
	for i := range tasks {
		if tasks[i].UID == "t-expected" {
			tasks[i].Status = status.Complete
		}
	}
	cps, _ = status.ResolveCohort(cps, tasks, status.RoleOrgAdmin, nil)
	// survey checkpoints hold only admin tasks; org admins see complete
	s2 := findCheckpoint(t, cps, "cp-s2")
	if s2.StatusVM != status.Complete {
		t.Fatalf("org admin sees %q for waiting survey checkpoint, want complete", s2.StatusVM)
	}
}

func TestResolveCohortCurrentCheckpoint(t *testing.T) {
	cps, tasks := fixtureLists()
	cps, tasks = status.ResolveCohort(cps, tasks, status.RoleSuperAdmin, nil)
	s1 := findCheckpoint(t, cps, "cp-s1")
	if !s1.IsCurrent {
		t.Fatal("first incomplete visible checkpoint not flagged current")
	}
	// the incomplete project task displayed under cp-s1 is the current task
	expected := findTask(t, tasks, "t-expected")
	if !expected.IsCurrent {
		t.Fatal("first editable incomplete task under current checkpoint not flagged")
	}
}

func TestResolveCohortCurrentFallsBackToLastVisible(t *testing.T) {
	cps, tasks := fixtureLists()
	for i := range tasks {
		tasks[i].Status = status.Complete
	}
	cps, _ = status.ResolveCohort(cps, tasks, status.RoleSuperAdmin, nil)
	s2 := findCheckpoint(t, cps, "cp-s2")
	if !s2.IsCurrent {
		t.Fatal("last visible checkpoint not flagged when everything is complete")
	}
}

func TestResolveCohortForbiddenTasksSkipped(t *testing.T) {
	cps, tasks := fixtureLists()
	for i := range tasks {
		if tasks[i].UID == "t-expected" {
			tasks[i].Status = status.Complete
		}
	}
	_, tasks = status.ResolveCohort(cps, tasks, status.RoleOrgAdmin, nil)
	monitor := findTask(t, tasks, "t-monitor1")
	if !monitor.IsForbidden {
		t.Fatal("admin-only task not marked forbidden for org admin")
	}
	if monitor.IsCurrent {
		t.Fatal("forbidden task flagged current")
	}
}

func TestResolveDashboard(t *testing.T) {
	cps, tasks := fixtureLists()
	resolved := status.ResolveDashboard(cps, tasks, status.RoleSuperAdmin)
	proj := findCheckpoint(t, resolved, "cp-proj")
	if proj.IsVisible {
		t.Fatal("project checkpoint visible on dashboard")
	}
	s1 := findCheckpoint(t, resolved, "cp-s1")
	if !s1.IsCurrent {
		t.Fatal("dashboard current checkpoint not the first incomplete survey")
	}
}

func TestResolveDashboardKeepsCohortsApart(t *testing.T) {
	// cohort A is fully complete; cohort B's project work is done but its
	// survey checkpoint still holds admin-side tasks, so B reads waiting
	cps := []domain.Checkpoint{
		{UID: "a-proj", ProjectCohortID: "pc-a", ParentKind: domain.ParentProject, Ordinal: 1},
		{UID: "a-s1", ProjectCohortID: "pc-a", ParentKind: domain.ParentSurvey, SurveyOrdinal: 1, Ordinal: 2},
		{UID: "b-proj", ProjectCohortID: "pc-b", ParentKind: domain.ParentProject, Ordinal: 1},
		{UID: "b-s1", ProjectCohortID: "pc-b", ParentKind: domain.ParentSurvey, SurveyOrdinal: 1, Ordinal: 2},
	}
	tasks := []domain.Task{
		{UID: "a-t1", ProjectCohortID: "pc-a", CheckpointID: "a-proj", Ordinal: 1, Status: status.Complete, NonAdminMayEdit: true},
		{UID: "a-t2", ProjectCohortID: "pc-a", CheckpointID: "a-s1", Ordinal: 1, Status: status.Complete, NonAdminMayEdit: false},
		{UID: "b-t1", ProjectCohortID: "pc-b", CheckpointID: "b-proj", Ordinal: 1, Status: status.Complete, NonAdminMayEdit: true},
		{UID: "b-t2", ProjectCohortID: "pc-b", CheckpointID: "b-s1", Ordinal: 1, Status: status.Incomplete, NonAdminMayEdit: false},
	}
	resolved := status.ResolveDashboard(cps, tasks, status.RoleSuperAdmin)

	// cohort B's state never leaks into cohort A's survey checkpoint
	aS1 := findCheckpoint(t, resolved, "a-s1")
	if aS1.StatusVM != status.Complete {
		t.Fatalf("cohort A survey status_vm = %q, want complete", aS1.StatusVM)
	}
	bS1 := findCheckpoint(t, resolved, "b-s1")
	if bS1.StatusVM != status.Waiting {
		t.Fatalf("cohort B survey status_vm = %q, want waiting", bS1.StatusVM)
	}
	// each cohort row carries its own current flag
	if !aS1.IsCurrent || !bS1.IsCurrent {
		t.Fatalf("per-cohort current flags: a-s1=%v b-s1=%v, want both", aS1.IsCurrent, bS1.IsCurrent)
	}
}

func TestResolveCohortOrdering(t *testing.T) {
	cps, tasks := fixtureLists()
	// shuffle the inputs
	cps[0], cps[3] = cps[3], cps[0]
	tasks[0], tasks[4] = tasks[4], tasks[0]
	cps, tasks = status.ResolveCohort(cps, tasks, status.RoleSuperAdmin, nil)
	for i := 1; i < len(cps); i++ {
		if cps[i-1].Ordinal > cps[i].Ordinal {
			t.Fatalf("checkpoints not ordered: %d before %d", cps[i-1].Ordinal, cps[i].Ordinal)
		}
	}
	if tasks[0].UID != "t-liaison" {
		t.Fatalf("first task is %s, want t-liaison", tasks[0].UID)
	}
}
