package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"
	humachi "github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"

	"triton/internal/app"
	"triton/internal/config"
	"triton/internal/domain"
	"triton/internal/engine"
	"triton/internal/portal"
	"triton/internal/repo"
	"triton/internal/status"
)

// Config for the HTTP API handler.
type Config struct {
	App      *app.App
	BasePath string
	Auth     AuthConfig
}

type apiErrorBody struct {
	Code    string         `json:"code" example:"validation_failed"`
	Message string         `json:"message" example:"survey done"`
	Details map[string]any `json:"details,omitempty" jsonschema:"type=object,additionalProperties=true"`
}

type requestKey struct{}
type bodyBytesKey struct{}

// apiError models the error envelope.
type apiError struct {
	status int
	Body   apiErrorBody `json:"error"`
}

func (e *apiError) GetStatus() int { return e.status }
func (e *apiError) Error() string  { return e.Body.Message }

// New returns an HTTP handler exposing the Triton API.
func New(cfg Config) (http.Handler, error) {
	basePath := cfg.BasePath
	if basePath == "" {
		basePath = "/v1"
	}
	if !strings.HasPrefix(basePath, "/") {
		basePath = "/" + basePath
	}
	huma.DefaultArrayNullable = false
	huma.NewError = func(status int, msg string, errs ...error) huma.StatusError {
		return newAPIError(status, "", msg, nil)
	}
	huma.NewErrorWithContext = func(_ huma.Context, status int, msg string, errs ...error) huma.StatusError {
		if status == http.StatusUnprocessableEntity && strings.Contains(strings.ToLower(msg), "validation") {
			status = http.StatusBadRequest
		}
		var details map[string]any
		if len(errs) > 0 {
			details = map[string]any{"errors": errs}
		}
		return newAPIError(status, "", msg, details)
	}

	router := chi.NewRouter()
	router.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bodyBytes, _ := io.ReadAll(r.Body)
			r.Body = io.NopCloser(bytes.NewBuffer(bodyBytes))
			ctx := context.WithValue(r.Context(), requestKey{}, r)
			ctx = context.WithValue(ctx, bodyBytesKey{}, bodyBytes)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	router.Use(newAuthMiddleware(basePath, cfg.Auth, cfg.App.Repo))
	hcfg := huma.DefaultConfig("Triton API", "0.1.0")
	hcfg.OpenAPIPath = "/openapi"
	hcfg.DocsPath = "" // custom Swagger UI below
	api := humachi.New(router, hcfg)
	group := huma.NewGroup(api, basePath)

	registerDocs(router, basePath)
	registerHealth(group)
	registerPrograms(group, cfg.App)
	registerOrganizations(group, cfg.App)
	registerCohorts(group, cfg.App)
	registerTasks(group, cfg.App)
	registerParticipants(group, cfg.App)
	registerPortal(group, cfg.App)
	registerEvents(group, cfg.App)
	registerOpenAPI(router, api, basePath)

	return router, nil
}

func newAPIError(status int, code, message string, details map[string]any) huma.StatusError {
	if code == "" {
		code = defaultCodeForStatus(status)
	}
	return &apiError{
		status: status,
		Body: apiErrorBody{
			Code:    code,
			Message: message,
			Details: details,
		},
	}
}

func handleError(err error) huma.StatusError {
	if err == nil {
		return nil
	}
	var fe engine.ForbiddenTaskError
	if errors.As(err, &fe) {
		return newAPIError(http.StatusForbidden, "forbidden", err.Error(), map[string]any{"task": fe.Label})
	}
	var ve *portal.ValidationError
	if errors.As(err, &ve) {
		return newAPIError(http.StatusUnprocessableEntity, "validation_failed", ve.Reason, nil)
	}
	var ie *portal.IntegrityError
	if errors.As(err, &ie) {
		return newAPIError(http.StatusInternalServerError, "integrity_error", err.Error(), nil)
	}
	if errors.Is(err, repo.ErrNotFound) {
		return newAPIError(http.StatusNotFound, "not_found", err.Error(), nil)
	}
	msg := err.Error()
	lowered := strings.ToLower(msg)
	switch {
	case strings.Contains(lowered, "invalid") || strings.Contains(lowered, "missing") || strings.Contains(lowered, "required") || strings.Contains(lowered, "unknown"):
		return newAPIError(http.StatusBadRequest, "bad_request", msg, nil)
	default:
		return newAPIError(http.StatusInternalServerError, "internal_error", "internal error", map[string]any{"error": msg})
	}
}

func defaultCodeForStatus(statusCode int) string {
	switch statusCode {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusInternalServerError:
		return "internal_error"
	default:
		return strings.ToLower(strings.ReplaceAll(http.StatusText(statusCode), " ", "_"))
	}
}

func bodyBytes(ctx context.Context) []byte {
	b, _ := ctx.Value(bodyBytesKey{}).([]byte)
	return b
}

func registerDocs(r chi.Router, basePath string) {
	r.Get("/docs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		io.WriteString(w, swaggerHTML(basePath))
	})
}

func registerOpenAPI(r chi.Router, api huma.API, basePath string) {
	var spec []byte
	specPath := path.Join(basePath, "openapi.json")
	r.Get(specPath, func(w http.ResponseWriter, r *http.Request) {
		if spec == nil {
			oas := api.OpenAPI()
			spec, _ = json.Marshal(oas)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write(spec)
	})
}

func swaggerHTML(basePath string) string {
	specURL := path.Join("/", path.Join(basePath, "openapi.json"))
	return fmt.Sprintf(`<!doctype html>
<html lang="en">
  <head>
    <meta charset="utf-8"/>
    <meta name="viewport" content="width=device-width, initial-scale=1"/>
    <title>Triton API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js" crossorigin></script>
    <script>
      window.onload = () => {
        SwaggerUIBundle({
          url: '%s',
          dom_id: '#swagger-ui'
        });
      };
    </script>
    <p style="padding: 1rem; font-family: sans-serif; color: #444;">
      Authenticate with Authorization: Bearer &lt;token&gt; or X-Api-Key.
    </p>
  </body>
</html>`, specURL)
}

func registerHealth(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "health",
		Method:      http.MethodGet,
		Path:        "/health",
		Summary:     "Health check",
	}, func(ctx context.Context, _ *struct{}) (*struct {
		Body map[string]string `json:"body"`
	}, error) {
		return &struct {
			Body map[string]string `json:"body"`
		}{Body: map[string]string{"status": "ok"}}, nil
	})
}

func registerPrograms(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "import-program",
		Method:        http.MethodPost,
		Path:          "/programs",
		Summary:       "Import program config",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body config.Config `json:"body"`
	}) (*struct {
		Body config.Config `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		cfg := input.Body
		if err := a.ImportProgram(ctx, &cfg); err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body config.Config `json:"body"`
		}{Body: cfg}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-program",
		Method:      http.MethodGet,
		Path:        "/programs/{label}",
		Summary:     "Get program config",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		Label string `path:"label"`
	}) (*struct {
		Body config.Config `json:"body"`
	}, error) {
		cfg, err := a.Programs.Get(ctx, input.Label)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body config.Config `json:"body"`
		}{Body: *cfg}, nil
	})
}

func registerOrganizations(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-organization",
		Method:        http.MethodPost,
		Path:          "/organizations",
		Summary:       "Create organization",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateOrganizationRequest `json:"body"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		o, err := a.Engine.CreateOrganization(ctx, input.Body.Name, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-organization",
		Method:      http.MethodGet,
		Path:        "/organizations/{organization_id}",
		Summary:     "Get organization",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrganizationID string `path:"organization_id"`
	}) (*struct {
		Body domain.Organization `json:"body"`
	}, error) {
		o, err := a.Repo.GetOrganization(ctx, input.OrganizationID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Organization `json:"body"`
		}{Body: o}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "organization-dashboard",
		Method:      http.MethodGet,
		Path:        "/organizations/{organization_id}/dashboard",
		Summary:     "Organization dashboard checkpoints",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		OrganizationID string `path:"organization_id"`
	}) (*struct {
		Body DashboardResponse `json:"body"`
	}, error) {
		o, err := a.Repo.GetOrganization(ctx, input.OrganizationID)
		if err != nil {
			return nil, handleError(err)
		}
		cohorts, err := a.Repo.ListProjectCohorts(ctx, o.UID)
		if err != nil {
			return nil, handleError(err)
		}
		var checkpoints []domain.Checkpoint
		var tasks []domain.Task
		for _, pc := range cohorts {
			cps, err := a.Repo.ListCheckpoints(ctx, pc.UID)
			if err != nil {
				return nil, handleError(err)
			}
			ts, err := a.Repo.ListTasks(ctx, pc.UID)
			if err != nil {
				return nil, handleError(err)
			}
			checkpoints = append(checkpoints, cps...)
			tasks = append(tasks, ts...)
		}
		resolved := status.ResolveDashboard(checkpoints, tasks, roleFromContext(ctx))
		return &struct {
			Body DashboardResponse `json:"body"`
		}{Body: DashboardResponse{Organization: o, Checkpoints: resolved}}, nil
	})
}

func registerCohorts(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID:   "create-cohort",
		Method:        http.MethodPost,
		Path:          "/cohorts",
		Summary:       "Create project cohort",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Body CreateCohortRequest `json:"body"`
	}) (*struct {
		Body domain.ProjectCohort `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		if err := requireSuperAdmin(ctx); err != nil {
			return nil, err
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := a.EnsureProgram(ctx, input.Body.ProgramLabel); err != nil {
			return nil, handleError(err)
		}
		pc, err := a.Engine.CreateProjectCohort(ctx, engine.CohortCreateOptions{
			OrganizationID:  input.Body.OrganizationID,
			ProgramLabel:    input.Body.ProgramLabel,
			CohortLabel:     input.Body.CohortLabel,
			Code:            portal.NormalizeCode(input.Body.Code),
			PortalType:      input.Body.PortalType,
			CustomPortalURL: input.Body.CustomPortalURL,
			ActorID:         actorID,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectCohort `json:"body"`
		}{Body: pc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "get-cohort",
		Method:      http.MethodGet,
		Path:        "/cohorts/{cohort_id}",
		Summary:     "Get project cohort",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CohortID string `path:"cohort_id"`
	}) (*struct {
		Body domain.ProjectCohort `json:"body"`
	}, error) {
		pc, err := a.Repo.GetProjectCohort(ctx, input.CohortID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ProjectCohort `json:"body"`
		}{Body: pc}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "cohort-status",
		Method:      http.MethodGet,
		Path:        "/cohorts/{cohort_id}/status",
		Summary:     "Cohort checkpoints and tasks, resolved for the viewer",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		CohortID string `path:"cohort_id"`
	}) (*struct {
		Body CohortStatusResponse `json:"body"`
	}, error) {
		pc, err := a.Repo.GetProjectCohort(ctx, input.CohortID)
		if err != nil {
			return nil, handleError(err)
		}
		cps, err := a.Repo.ListCheckpoints(ctx, pc.UID)
		if err != nil {
			return nil, handleError(err)
		}
		tasks, err := a.Repo.ListTasks(ctx, pc.UID)
		if err != nil {
			return nil, handleError(err)
		}
		cps, tasks = status.ResolveCohort(cps, tasks, roleFromContext(ctx), a.Logger)
		return &struct {
			Body CohortStatusResponse `json:"body"`
		}{Body: CohortStatusResponse{ProjectCohort: pc, Checkpoints: cps, Tasks: tasks}}, nil
	})
}

func registerTasks(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "get-task",
		Method:      http.MethodGet,
		Path:        "/tasks/{task_id}",
		Summary:     "Get task",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		TaskID string `path:"task_id"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		t, err := a.Repo.GetTask(ctx, input.TaskID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID: "update-task-attachment",
		Method:      http.MethodPut,
		Path:        "/tasks/{task_id}/attachment",
		Summary:     "Submit or edit a task attachment",
		Errors: []int{
			http.StatusBadRequest,
			http.StatusForbidden,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		TaskID string                  `path:"task_id"`
		Body   UpdateAttachmentRequest `json:"body"`
	}) (*struct {
		Body domain.Task `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		t, err := a.Engine.UpdateTaskAttachment(ctx, input.TaskID, input.Body.Attachment, actorID, roleFromContext(ctx))
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.Task `json:"body"`
		}{Body: t}, nil
	})
}

func registerParticipants(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-participant-data",
		Method:      http.MethodGet,
		Path:        "/participants/{participant_id}/data",
		Summary:     "Participant data history, oldest first",
		Errors:      []int{http.StatusNotFound},
	}, func(ctx context.Context, input *struct {
		ParticipantID string `path:"participant_id"`
	}) (*struct {
		Body []domain.ParticipantData `json:"body"`
	}, error) {
		if _, err := a.Repo.GetParticipant(ctx, input.ParticipantID); err != nil {
			return nil, handleError(err)
		}
		pds, err := a.Repo.ListParticipantData(ctx, input.ParticipantID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.ParticipantData `json:"body"`
		}{Body: pds}, nil
	})

	huma.Register(api, huma.Operation{
		OperationID:   "record-participant-data",
		Method:        http.MethodPost,
		Path:          "/participants/{participant_id}/data",
		Summary:       "Append a participant data record",
		DefaultStatus: http.StatusCreated,
		Errors: []int{
			http.StatusBadRequest,
			http.StatusNotFound,
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		ParticipantID string          `path:"participant_id"`
		Body          RecordPDRequest `json:"body"`
	}) (*struct {
		Body domain.ParticipantData `json:"body"`
	}, error) {
		if len(bodyBytes(ctx)) == 0 {
			return nil, newAPIError(http.StatusBadRequest, "bad_request", "body required", nil)
		}
		actorID, authErr := actorIDFromContext(ctx)
		if authErr != nil {
			return nil, authErr
		}
		if _, err := a.Repo.GetParticipant(ctx, input.ParticipantID); err != nil {
			return nil, handleError(err)
		}
		pd, err := a.Engine.RecordParticipantData(ctx, domain.ParticipantData{
			ParticipantID:   input.ParticipantID,
			Key:             input.Body.Key,
			Value:           input.Body.Value,
			ProjectCohortID: input.Body.ProjectCohortID,
			SurveyOrdinal:   input.Body.SurveyOrdinal,
		}, actorID)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body domain.ParticipantData `json:"body"`
		}{Body: pd}, nil
	})
}

func registerPortal(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "portal-route",
		Method:      http.MethodPost,
		Path:        "/portal/route",
		Summary:     "Route a participant from cookie triple to survey redirect",
		Errors: []int{
			http.StatusInternalServerError,
		},
	}, func(ctx context.Context, input *struct {
		Code        string `cookie:"triton_code" required:"false"`
		Session     string `cookie:"triton_session" required:"false"`
		Token       string `cookie:"triton_token" required:"false"`
		Override    bool   `query:"override"`
		ResumeAfter string `query:"resume_after"`
	}) (*struct {
		Body RouteResponse `json:"body"`
	}, error) {
		decision, err := a.Router.Route(ctx, portal.RouteRequest{
			Code:        input.Code,
			Session:     input.Session,
			Token:       input.Token,
			Override:    input.Override,
			ResumeAfter: input.ResumeAfter,
		})
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body RouteResponse `json:"body"`
		}{Body: RouteResponse{Decision: decision}}, nil
	})
}

func registerEvents(api huma.API, a *app.App) {
	huma.Register(api, huma.Operation{
		OperationID: "list-events",
		Method:      http.MethodGet,
		Path:        "/events",
		Summary:     "Latest events",
	}, func(ctx context.Context, input *struct {
		Limit    int    `query:"limit"`
		CohortID string `query:"cohort_id"`
		Type     string `query:"type"`
	}) (*struct {
		Body []domain.Event `json:"body"`
	}, error) {
		limit := input.Limit
		if limit <= 0 || limit > 500 {
			limit = 50
		}
		items, err := a.Repo.LatestEvents(ctx, limit, input.CohortID, input.Type)
		if err != nil {
			return nil, handleError(err)
		}
		return &struct {
			Body []domain.Event `json:"body"`
		}{Body: items}, nil
	})
}
