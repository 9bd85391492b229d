package status

import (
	"log"
	"sort"

	"triton/internal/domain"
)

// AssignVM sets each task's display checkpoint. Project-checkpoint tasks
// display under the first survey checkpoint; everything else displays
// where it lives. Checkpoints must already be in display order.
func AssignVM(checkpoints []domain.Checkpoint, tasks []domain.Task) {
	firstSurvey := ""
	for _, cp := range checkpoints {
		if cp.ParentKind == domain.ParentSurvey {
			firstSurvey = cp.UID
			break
		}
	}
	byUID := map[string]string{}
	for _, cp := range checkpoints {
		byUID[cp.UID] = cp.ParentKind
	}
	for i := range tasks {
		tasks[i].CheckpointIDVM = tasks[i].CheckpointID
		if byUID[tasks[i].CheckpointID] == domain.ParentProject && firstSurvey != "" {
			tasks[i].CheckpointIDVM = firstSurvey
		}
	}
}

// ResolveCohort computes display fields for one project cohort's
// checkpoint/task list: canonical status, view status (vm tasks, project
// collapsed into the first survey checkpoint, role adjustment last),
// visibility, and the current checkpoint plus the current task within
// it. Inputs are modified in place and returned sorted by ordinal.
func ResolveCohort(checkpoints []domain.Checkpoint, tasks []domain.Task, role Role, logger *log.Logger) ([]domain.Checkpoint, []domain.Task) {
	sortLists(checkpoints, tasks)
	AssignVM(checkpoints, tasks)

	byCheckpoint := map[string][]domain.Task{}
	byCheckpointVM := map[string][]domain.Task{}
	for _, t := range tasks {
		byCheckpoint[t.CheckpointID] = append(byCheckpoint[t.CheckpointID], t)
		byCheckpointVM[t.CheckpointIDVM] = append(byCheckpointVM[t.CheckpointIDVM], t)
	}

	projectVM := ""
	firstSurvey := -1
	for i := range checkpoints {
		cp := &checkpoints[i]
		cp.Status = FromTasks(byCheckpoint[cp.UID])
		cp.StatusVM = FromTasks(byCheckpointVM[cp.UID])
		cp.IsVisible = cp.ParentKind != domain.ParentProject
		cp.IsCurrent = false
		if cp.ParentKind == domain.ParentProject {
			projectVM = cp.StatusVM
		}
		if cp.ParentKind == domain.ParentSurvey && firstSurvey < 0 {
			firstSurvey = i
		}
	}
	if firstSurvey >= 0 && projectVM != "" {
		checkpoints[firstSurvey].StatusVM = Collapse(projectVM, checkpoints[firstSurvey].StatusVM)
	}
	for i := range checkpoints {
		checkpoints[i].StatusVM = ForRole(checkpoints[i].StatusVM, role)
	}

	currentCP := markCurrentCheckpoint(checkpoints)
	markCurrentTask(tasks, currentCP, role)
	if logger != nil && currentCP == "" {
		logger.Printf("resolve cohort: no visible checkpoints")
	}
	return checkpoints, tasks
}

// ResolveDashboard computes the same display statuses for the
// dashboard's per-cohort rows, where only checkpoints are walked for the
// current flag; tasks are not shown at that level. Kept separate from
// ResolveCohort on purpose: the two views filter differently and have
// always been maintained independently. Input may span several project
// cohorts; collapsing and current flags never cross a cohort boundary.
func ResolveDashboard(checkpoints []domain.Checkpoint, tasks []domain.Task, role Role) []domain.Checkpoint {
	var order []string
	cpsByCohort := map[string][]domain.Checkpoint{}
	for _, cp := range checkpoints {
		if _, ok := cpsByCohort[cp.ProjectCohortID]; !ok {
			order = append(order, cp.ProjectCohortID)
		}
		cpsByCohort[cp.ProjectCohortID] = append(cpsByCohort[cp.ProjectCohortID], cp)
	}
	tasksByCohort := map[string][]domain.Task{}
	for _, t := range tasks {
		tasksByCohort[t.ProjectCohortID] = append(tasksByCohort[t.ProjectCohortID], t)
	}
	var out []domain.Checkpoint
	for _, cohortID := range order {
		out = append(out, resolveDashboardCohort(cpsByCohort[cohortID], tasksByCohort[cohortID], role)...)
	}
	return out
}

func resolveDashboardCohort(checkpoints []domain.Checkpoint, tasks []domain.Task, role Role) []domain.Checkpoint {
	sortLists(checkpoints, tasks)
	AssignVM(checkpoints, tasks)

	byCheckpointVM := map[string][]domain.Task{}
	byCheckpoint := map[string][]domain.Task{}
	for _, t := range tasks {
		byCheckpointVM[t.CheckpointIDVM] = append(byCheckpointVM[t.CheckpointIDVM], t)
		byCheckpoint[t.CheckpointID] = append(byCheckpoint[t.CheckpointID], t)
	}

	projectVM := ""
	firstSurvey := -1
	for i := range checkpoints {
		cp := &checkpoints[i]
		cp.Status = FromTasks(byCheckpoint[cp.UID])
		cp.StatusVM = FromTasks(byCheckpointVM[cp.UID])
		cp.IsVisible = cp.ParentKind != domain.ParentProject
		cp.IsCurrent = false
		if cp.ParentKind == domain.ParentProject {
			projectVM = cp.StatusVM
		}
		if cp.ParentKind == domain.ParentSurvey && firstSurvey < 0 {
			firstSurvey = i
		}
	}
	if firstSurvey >= 0 && projectVM != "" {
		checkpoints[firstSurvey].StatusVM = Collapse(projectVM, checkpoints[firstSurvey].StatusVM)
	}
	for i := range checkpoints {
		checkpoints[i].StatusVM = ForRole(checkpoints[i].StatusVM, role)
	}
	markCurrentCheckpoint(checkpoints)
	return checkpoints
}

// markCurrentCheckpoint flags the first visible incomplete checkpoint,
// falling back to the last visible one when everything is done (the next
// useful view is reports/participation). Returns the flagged UID.
func markCurrentCheckpoint(checkpoints []domain.Checkpoint) string {
	lastVisible := -1
	for i := range checkpoints {
		if !checkpoints[i].IsVisible {
			continue
		}
		lastVisible = i
		if checkpoints[i].StatusVM == Incomplete {
			checkpoints[i].IsCurrent = true
			return checkpoints[i].UID
		}
	}
	if lastVisible >= 0 {
		checkpoints[lastVisible].IsCurrent = true
		return checkpoints[lastVisible].UID
	}
	return ""
}

// markCurrentTask flags the first incomplete task displayed under the
// current checkpoint that the viewer may edit, falling back to the last
// permitted one.
func markCurrentTask(tasks []domain.Task, checkpointUID string, role Role) {
	lastAllowed := -1
	for i := range tasks {
		tasks[i].IsCurrent = false
		tasks[i].IsForbidden = !tasks[i].NonAdminMayEdit && role != RoleSuperAdmin
		if tasks[i].CheckpointIDVM != checkpointUID || tasks[i].IsForbidden {
			continue
		}
		lastAllowed = i
		if tasks[i].Status == Incomplete {
			tasks[i].IsCurrent = true
			return
		}
	}
	if lastAllowed >= 0 {
		tasks[lastAllowed].IsCurrent = true
	}
}

func sortLists(checkpoints []domain.Checkpoint, tasks []domain.Task) {
	sort.SliceStable(checkpoints, func(i, j int) bool {
		return checkpoints[i].Ordinal < checkpoints[j].Ordinal
	})
	cpOrdinal := map[string]int{}
	for _, cp := range checkpoints {
		cpOrdinal[cp.UID] = cp.Ordinal
	}
	sort.SliceStable(tasks, func(i, j int) bool {
		if cpOrdinal[tasks[i].CheckpointID] != cpOrdinal[tasks[j].CheckpointID] {
			return cpOrdinal[tasks[i].CheckpointID] < cpOrdinal[tasks[j].CheckpointID]
		}
		return tasks[i].Ordinal < tasks[j].Ordinal
	})
}
