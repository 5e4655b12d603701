package httpapi

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync/atomic"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"warm-outreach/internal/apperr"
	"warm-outreach/internal/config"
	"warm-outreach/internal/domain"
	"warm-outreach/internal/events"
	"warm-outreach/internal/group"
)

const NoPendingMessage = "You have no pending leads. All caught up!"

const maxSubmissionBytes = 1 << 20

const submissionSchemaJSON = `{
  "type": "object",
  "required": ["responses"],
  "additionalProperties": false,
  "properties": {
    "responses": {
      "type": "array",
      "maxItems": 500,
      "items": {
        "type": "object",
        "required": ["row_index", "score"],
        "additionalProperties": false,
        "properties": {
          "row_index": {"type": "integer", "minimum": 0},
          "lead":      {"type": "string"},
          "score":     {"type": "string", "minLength": 1},
          "comment":   {"type": "string", "maxLength": 4000}
        }
      }
    }
  }
}`

var submissionSchema = mustCompileSchema("submission.json", submissionSchemaJSON)

func mustCompileSchema(name, src string) *jsonschema.Schema {
	doc, err := jsonschema.UnmarshalJSON(strings.NewReader(src))
	if err != nil {
		panic(err)
	}
	c := jsonschema.NewCompiler()
	if err := c.AddResource(name, doc); err != nil {
		panic(err)
	}
	return c.MustCompile(name)
}

type FormHandler struct {
	CfgVal *atomic.Value // stores config.Config
	Leads  LeadReader
	Merger ResponseMerger
	Hub    *events.Hub
}

type formLead struct {
	Row        int    `json:"row"`
	Name       string `json:"name"`
	ProfileURL string `json:"profile_url"`
}

type formView struct {
	Email        string     `json:"email"`
	Leads        []formLead `json:"leads"`
	ScoreOptions []string   `json:"score_options"`
	Message      string     `json:"message,omitempty"`
}

type submitReq struct {
	Responses []domain.SubmissionItem `json:"responses"`
}

func (h FormHandler) matchMode() group.Mode {
	cfg := h.CfgVal.Load().(config.Config)
	return group.ParseMode(cfg.Grouping.Match)
}

// pending loads the stakeholder's view fresh from the store on every call.
func (h FormHandler) pending(r *http.Request, identity string) (formView, error) {
	leads, err := h.Leads.Read(r.Context())
	if err != nil {
		return formView{}, err
	}
	v := formView{Email: identity, Leads: []formLead{}, ScoreOptions: domain.ScoreOptions}
	for _, l := range group.ForStakeholder(leads, identity, h.matchMode()) {
		v.Leads = append(v.Leads, formLead{Row: l.Row, Name: l.Name, ProfileURL: l.ProfileURL})
	}
	if len(v.Leads) == 0 {
		v.Message = NoPendingMessage
	}
	return v, nil
}

func identityFrom(r *http.Request) string {
	return strings.TrimSpace(r.URL.Query().Get("email"))
}

func (h FormHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		WriteAppError(w, r, apperr.MissingIdentity())
		return
	}
	v, err := h.pending(r, identity)
	if err != nil {
		WriteAppError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, v)
}

func (h FormHandler) Submit(w http.ResponseWriter, r *http.Request) {
	identity := identityFrom(r)
	if identity == "" {
		WriteAppError(w, r, apperr.MissingIdentity())
		return
	}

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmissionBytes+1))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "could not read body")
		return
	}
	if len(body) > maxSubmissionBytes {
		WriteError(w, r, http.StatusRequestEntityTooLarge, "too_large", "submission too large")
		return
	}
	inst, err := jsonschema.UnmarshalJSON(bytes.NewReader(body))
	if err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}
	if err := submissionSchema.Validate(inst); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_submission", err.Error())
		return
	}

	var req submitReq
	if err := json.Unmarshal(body, &req); err != nil {
		WriteError(w, r, http.StatusBadRequest, "invalid_json", "invalid JSON: "+err.Error())
		return
	}

	res, err := h.Merger.Merge(r.Context(), identity, req.Responses)
	if apperr.Is(err, apperr.CodeNoPendingWork) {
		WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": 0, "message": apperr.MessageOf(err)})
		return
	}
	if err != nil {
		WriteAppError(w, r, err)
		return
	}

	if h.Hub != nil {
		h.Hub.Emit(RequestIDFrom(r.Context()), events.TypeResponsesRecorded, events.ResponsesRecorded{
			Identity: res.Identity, Updated: res.Updated, Closed: res.Closed,
		})
	}
	WriteJSON(w, http.StatusOK, map[string]any{"ok": true, "updated": res.Updated, "closed": res.Closed})
}
