package portal

import "triton/internal/domain"

// pd records load in discovery order (ascending id). The latest value
// for a key is the last match. Lookups never filter server-side; the
// full history is scanned client-side.

func filterCohortPD(pds []domain.ParticipantData, cohortID string) []domain.ParticipantData {
	var out []domain.ParticipantData
	for _, pd := range pds {
		if pd.ProjectCohortID != nil && *pd.ProjectCohortID == cohortID {
			out = append(out, pd)
		}
	}
	return out
}

func latestPD(pds []domain.ParticipantData, key string) (domain.ParticipantData, bool) {
	for i := len(pds) - 1; i >= 0; i-- {
		if pds[i].Key == key {
			return pds[i], true
		}
	}
	return domain.ParticipantData{}, false
}

func latestSurveyPD(pds []domain.ParticipantData, key string, ordinal int) (domain.ParticipantData, bool) {
	for i := len(pds) - 1; i >= 0; i-- {
		if pds[i].Key != key {
			continue
		}
		if pds[i].SurveyOrdinal == nil || *pds[i].SurveyOrdinal != ordinal {
			continue
		}
		return pds[i], true
	}
	return domain.ParticipantData{}, false
}
