package api

import (
	"net/http"

	"github.com/starford/tally/internal/models"
	"github.com/starford/tally/internal/tasks"
)

// ListTasks handles GET /api/tasks.
//
//	@Summary		List tasks
//	@Tags			tasks
//	@Produce		json
//	@Param			show	query		string	false	"Completion filter"	Enums(all, active, completed)
//	@Success		200		{object}	TaskListResponse
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [get]
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.Tasks.Select(tasks.Show(r.URL.Query().Get("show")))
	if err != nil {
		writeError(w, "list tasks", err)
		return
	}
	if items == nil {
		items = []models.Task{}
	}
	writeJSON(w, http.StatusOK, TaskListResponse{Tasks: items, Remaining: h.svc.Tasks.Remaining()})
}

// CreateTask handles POST /api/tasks.
//
//	@Summary		Add a task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			body	body		CreateTaskRequest	true	"Task to add"
//	@Success		201		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks [post]
func (h *Handler) CreateTask(w http.ResponseWriter, r *http.Request) {
	var req CreateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Tasks.Add(req)
	if err != nil {
		writeError(w, "create task", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

// UpdateTask handles PATCH /api/tasks/{id}.
//
//	@Summary		Edit or toggle a task
//	@Tags			tasks
//	@Accept			json
//	@Produce		json
//	@Param			id		path		string				true	"Task id"
//	@Param			body	body		UpdateTaskRequest	true	"Fields to change"
//	@Success		200		{object}	models.Task
//	@Failure		400		{object}	errResponse
//	@Failure		404		{object}	errResponse
//	@Security		BearerAuth
//	@Router			/tasks/{id} [patch]
func (h *Handler) UpdateTask(w http.ResponseWriter, r *http.Request) {
	var req UpdateTaskRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	t, err := h.svc.Tasks.Update(recordID(r), req)
	if err != nil {
		writeError(w, "update task", err)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

// DeleteTask handles DELETE /api/tasks/{id}.
//
//	@Summary		Delete a task
//	@Tags			tasks
//	@Param			id	path	string	true	"Task id"
//	@Success		204	"Task deleted"
//	@Security		BearerAuth
//	@Router			/tasks/{id} [delete]
func (h *Handler) DeleteTask(w http.ResponseWriter, r *http.Request) {
	h.svc.Tasks.Remove(recordID(r))
	w.WriteHeader(http.StatusNoContent)
}

// ClearCompletedTasks handles POST /api/tasks/clear-completed.
//
//	@Summary		Remove every completed task
//	@Tags			tasks
//	@Produce		json
//	@Success		200	{object}	ClearedResponse
//	@Security		BearerAuth
//	@Router			/tasks/clear-completed [post]
func (h *Handler) ClearCompletedTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, ClearedResponse{Cleared: h.svc.Tasks.ClearCompleted()})
}
