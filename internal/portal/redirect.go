package portal

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
)

// buildRedirect assembles the final survey URL. Param sources merge in
// increasing precedence: routing identity params, program-configured
// survey params, cohort survey-param overrides, then params accumulated
// by presurvey states. The merged set is appended to the resolved
// link's existing query string.
func (r *Router) buildRedirect(st routeState) string {
	params := url.Values{}
	params.Set("participant_id", st.participant.UID)
	surveyID := strconv.Itoa(st.session)
	if st.rosterInfo.CycleDescriptor != "" {
		surveyID = fmt.Sprintf("%d:%s", st.session, st.rosterInfo.CycleDescriptor)
	}
	params.Set("survey_id", surveyID)
	params.Set("organization_id", st.organization.UID)
	params.Set("organization_name", st.organization.Name)
	if st.req.Override {
		params.Set("override", "true")
	}
	params.Set("first_login", strconv.FormatBool(st.firstLogin))

	for k, v := range st.survey.Params {
		params.Set(k, v)
	}
	if st.cohort.SurveyParams != nil && *st.cohort.SurveyParams != "" {
		var overrides map[string]string
		if err := json.Unmarshal([]byte(*st.cohort.SurveyParams), &overrides); err != nil {
			r.logger().Printf("cohort %s survey_params: %v", st.cohort.UID, err)
		} else {
			for k, v := range overrides {
				params.Set(k, v)
			}
		}
	}
	for k, vs := range st.stateParams {
		for _, v := range vs {
			params.Set(k, v)
		}
	}

	u, err := url.Parse(st.link)
	if err != nil {
		r.logger().Printf("survey link %q: %v", st.link, err)
		return st.link
	}
	q := u.Query()
	for k, vs := range params {
		for _, v := range vs {
			q.Set(k, v)
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
