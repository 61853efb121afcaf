package transport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/grantthrive/pulse/internal/template"
	"github.com/grantthrive/pulse/internal/tracker"
	"github.com/grantthrive/pulse/model"
)

func handleInitialize(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			ApplicationID string                  `json:"application_id"`
			TemplateID    string                  `json:"template_id"`
			CustomStages  []model.StageDefinition `json:"custom_stages"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		record, err := t.Initialize(r.Context(), body.ApplicationID, body.TemplateID, body.CustomStages)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, record)
	}
}

func handleGetProgress(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		view, err := t.GetProgress(r.Context(), applicationID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, view)
	}
}

func handleGetSummary(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		summary, err := t.GetSummary(r.Context(), applicationID)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, summary)
	}
}

func handleUpdateField(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		var body struct {
			FieldName string `json:"field_name"`
			Value     any    `json:"value"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := t.UpdateField(r.Context(), applicationID, body.FieldName, body.Value)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handleAdvanceStage(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		// An empty body means a plain, unforced advance.
		var body struct {
			Force bool `json:"force"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := t.AdvanceStage(r.Context(), applicationID, body.Force)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handleUpdateStatus(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		var body struct {
			Status string `json:"status"`
			Note   string `json:"note"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		result, err := t.UpdateStatus(r.Context(), applicationID, body.Status, body.Note)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, result)
	}
}

func handleAddNote(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		var body struct {
			Message string `json:"message"`
			Type    string `json:"type"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		note, err := t.AddNote(r.Context(), applicationID, body.Message, body.Type)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, note)
	}
}

func handleAddBlocker(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")

		var body struct {
			Description string `json:"description"`
			Severity    string `json:"severity"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		blocker, err := t.AddBlocker(r.Context(), applicationID, body.Description, body.Severity)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, blocker)
	}
}

func handleResolveBlocker(t *tracker.Tracker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		applicationID := chi.URLParam(r, "applicationId")
		blockerID := chi.URLParam(r, "blockerId")

		// The resolution text is optional.
		var body struct {
			Resolution string `json:"resolution"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			WriteError(w, model.NewBadRequestError("invalid JSON body"))
			return
		}

		blocker, err := t.ResolveBlocker(r.Context(), applicationID, blockerID, body.Resolution)
		if err != nil {
			WriteError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, blocker)
	}
}

func handleListTemplates(reg *template.Registry) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		templates := reg.All()
		sort.Slice(templates, func(i, j int) bool {
			return templates[i].ID < templates[j].ID
		})
		WriteJSON(w, http.StatusOK, map[string]any{
			"templates": templates,
			"count":     len(templates),
		})
	}
}
