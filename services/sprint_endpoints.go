package services

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
	ws "github.com/krshsl/staffline/websocket"
)

type SprintEndpoints struct {
	repo *repository.GORMRepository
	hub  *ws.Hub
}

func NewSprintEndpoints(repo *repository.GORMRepository, hub *ws.Hub) *SprintEndpoints {
	return &SprintEndpoints{repo: repo, hub: hub}
}

func (e *SprintEndpoints) RegisterRoutes(r chi.Router) {
	r.Route("/sprints", func(r chi.Router) {
		r.Get("/", e.ListSprintsHandler)
		r.Post("/", e.CreateSprintHandler)
		r.Get("/{id}", e.GetSprintHandler)
		r.Post("/{id}/start", e.StartSprintHandler)
		r.Post("/{id}/complete", e.CompleteSprintHandler)
		r.Get("/{id}/board", e.BoardHandler)
		r.Post("/{id}/items", e.AddToSprintHandler)
		r.Post("/{id}/reorder", e.ReorderItemsHandler)
	})

	r.Route("/sprint-items", func(r chi.Router) {
		r.Get("/", e.ListItemsHandler)
		r.Post("/", e.CreateItemHandler)
		r.Post("/remove-from-sprint", e.RemoveFromSprintHandler)
		r.Post("/reorder-backlog", e.ReorderBacklogHandler)
		r.Get("/{id}", e.GetItemHandler)
		r.Patch("/{id}", e.UpdateItemHandler)
		r.Delete("/{id}", e.DeleteItemHandler)
		r.Post("/{id}/move", e.MoveItemHandler)
		r.Get("/{id}/comments", e.ListCommentsHandler)
		r.Post("/{id}/comments", e.AddCommentHandler)
		r.Get("/{id}/history", e.HistoryHandler)
	})
}

type CreateSprintRequest struct {
	PodID     string     `json:"pod_id" validate:"required,uuid"`
	Name      string     `json:"name" validate:"required,max=255"`
	Goal      string     `json:"goal"`
	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`
}

type CreateItemRequest struct {
	PodID            string   `json:"pod_id" validate:"required,uuid"`
	SprintID         *string  `json:"sprint_id" validate:"omitempty,uuid"`
	Title            string   `json:"title" validate:"required,max=500"`
	Description      string   `json:"description"`
	ItemType         string   `json:"item_type" validate:"omitempty,oneof=epic story task bug spike"`
	Priority         string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StoryPoints      *int     `json:"story_points" validate:"omitempty,gte=0,lte=100"`
	AssigneeID       *string  `json:"assignee_id" validate:"omitempty,uuid"`
	EpicID           *string  `json:"epic_id" validate:"omitempty,uuid"`
	Labels           []string `json:"labels"`
	LinkedEntityType string   `json:"linked_entity_type" validate:"max=50"`
	LinkedEntityID   *string  `json:"linked_entity_id" validate:"omitempty,uuid"`
}

type UpdateItemRequest struct {
	Title       *string   `json:"title" validate:"omitempty,max=500"`
	Description *string   `json:"description"`
	ItemType    *string   `json:"item_type" validate:"omitempty,oneof=epic story task bug spike"`
	Priority    *string   `json:"priority" validate:"omitempty,oneof=low medium high critical"`
	StoryPoints *int      `json:"story_points" validate:"omitempty,gte=0,lte=100"`
	AssigneeID  *string   `json:"assignee_id" validate:"omitempty,uuid"`
	EpicID      *string   `json:"epic_id" validate:"omitempty,uuid"`
	Labels      *[]string `json:"labels"`
}

type MoveItemRequest struct {
	Status   string `json:"status" validate:"required,oneof=todo in_progress review done blocked"`
	Position int    `json:"position" validate:"gte=0"`
}

type ItemIDsRequest struct {
	IDs []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type ReorderItemsRequest struct {
	Column string   `json:"column" validate:"required,oneof=todo in_progress review done blocked"`
	IDs    []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type ReorderBacklogRequest struct {
	PodID string   `json:"pod_id" validate:"required,uuid"`
	IDs   []string `json:"ids" validate:"required,min=1,dive,uuid"`
}

type AddCommentRequest struct {
	Body string `json:"body" validate:"required"`
}

func (e *SprintEndpoints) publish(orgID, eventType, entityID string, payload interface{}) {
	e.hub.Publish(ws.Event{Type: eventType, OrgID: orgID, EntityID: entityID, Payload: payload})
}

func (e *SprintEndpoints) ListSprintsHandler(w http.ResponseWriter, r *http.Request) {
	podID := r.URL.Query().Get("pod_id")
	if podID == "" {
		writeError(w, http.StatusBadRequest, "pod_id is required")
		return
	}
	sprints, err := e.repo.ListSprints(r.Context(), currentUser(r).OrgID, podID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sprints": sprints})
}

func (e *SprintEndpoints) GetSprintHandler(w http.ResponseWriter, r *http.Request) {
	s, err := e.repo.GetSprint(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func (e *SprintEndpoints) CreateSprintHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateSprintRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	s := &models.Sprint{
		OrgID:     user.OrgID,
		PodID:     req.PodID,
		Name:      req.Name,
		Goal:      req.Goal,
		StartDate: req.StartDate,
		EndDate:   req.EndDate,
		CreatedBy: user.ID,
	}
	if err := e.repo.CreateSprint(r.Context(), s); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

func (e *SprintEndpoints) StartSprintHandler(w http.ResponseWriter, r *http.Request) {
	s, err := e.repo.StartSprint(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publish(s.OrgID, ws.EventSprintUpdated, s.ID, map[string]string{"status": s.Status})
	writeJSON(w, http.StatusOK, s)
}

func (e *SprintEndpoints) CompleteSprintHandler(w http.ResponseWriter, r *http.Request) {
	s, returned, err := e.repo.CompleteSprint(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publish(s.OrgID, ws.EventSprintUpdated, s.ID, map[string]interface{}{"status": s.Status, "returned_to_backlog": returned})
	writeJSON(w, http.StatusOK, map[string]interface{}{"sprint": s, "returned_to_backlog": returned})
}

func (e *SprintEndpoints) BoardHandler(w http.ResponseWriter, r *http.Request) {
	cols, err := e.repo.SprintBoard(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"columns": cols})
}

func (e *SprintEndpoints) AddToSprintHandler(w http.ResponseWriter, r *http.Request) {
	var req ItemIDsRequest
	if !decode(w, r, &req) {
		return
	}
	orgID := currentUser(r).OrgID
	if err := e.repo.AddToSprint(r.Context(), orgID, urlID(r), req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	e.publish(orgID, ws.EventSprintUpdated, urlID(r), map[string]interface{}{"added": req.IDs})
	writeJSON(w, http.StatusOK, map[string]interface{}{"added": len(req.IDs)})
}

func (e *SprintEndpoints) ReorderItemsHandler(w http.ResponseWriter, r *http.Request) {
	var req ReorderItemsRequest
	if !decode(w, r, &req) {
		return
	}
	orgID := currentUser(r).OrgID
	if err := e.repo.ReorderItems(r.Context(), orgID, urlID(r), req.Column, req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	e.publish(orgID, ws.EventSprintUpdated, urlID(r), map[string]interface{}{"column": req.Column, "ids": req.IDs})
	writeJSON(w, http.StatusOK, map[string]string{"message": "Items reordered"})
}

// Items

func (e *SprintEndpoints) ListItemsHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	items, err := e.repo.ListItems(r.Context(), currentUser(r).OrgID, repository.ItemFilter{
		PodID:      q.Get("pod_id"),
		SprintID:   q.Get("sprint_id"),
		Backlog:    q.Get("backlog") == "true",
		Status:     q.Get("status"),
		AssigneeID: q.Get("assignee_id"),
		ItemType:   q.Get("item_type"),
	})
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"items": items})
}

func (e *SprintEndpoints) GetItemHandler(w http.ResponseWriter, r *http.Request) {
	it, err := e.repo.GetItem(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (e *SprintEndpoints) CreateItemHandler(w http.ResponseWriter, r *http.Request) {
	var req CreateItemRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	it := &models.SprintItem{
		OrgID:            user.OrgID,
		PodID:            req.PodID,
		SprintID:         req.SprintID,
		Title:            req.Title,
		Description:      req.Description,
		ItemType:         req.ItemType,
		Priority:         req.Priority,
		StoryPoints:      req.StoryPoints,
		AssigneeID:       req.AssigneeID,
		EpicID:           req.EpicID,
		Labels:           req.Labels,
		LinkedEntityType: req.LinkedEntityType,
		LinkedEntityID:   req.LinkedEntityID,
		CreatedBy:        user.ID,
	}
	if err := e.repo.CreateItem(r.Context(), it); err != nil {
		handleError(w, r, err)
		return
	}
	if it.SprintID != nil {
		e.publish(it.OrgID, ws.EventSprintUpdated, *it.SprintID, map[string]string{"created": it.ID})
	}
	writeJSON(w, http.StatusCreated, it)
}

func (e *SprintEndpoints) UpdateItemHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdateItemRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	user := currentUser(r)
	it, err := e.repo.UpdateItem(r.Context(), user.OrgID, urlID(r), user.ID, changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, it)
}

func (e *SprintEndpoints) MoveItemHandler(w http.ResponseWriter, r *http.Request) {
	var req MoveItemRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	it, err := e.repo.MoveItem(r.Context(), user.OrgID, urlID(r), req.Status, req.Position, user.ID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	e.publish(it.OrgID, ws.EventSprintItemMoved, it.ID, map[string]interface{}{
		"sprint_id":   it.SprintID,
		"status":      it.Status,
		"board_order": it.BoardOrder,
	})
	writeJSON(w, http.StatusOK, it)
}

func (e *SprintEndpoints) RemoveFromSprintHandler(w http.ResponseWriter, r *http.Request) {
	var req ItemIDsRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.repo.RemoveFromSprint(r.Context(), currentUser(r).OrgID, req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": len(req.IDs)})
}

func (e *SprintEndpoints) ReorderBacklogHandler(w http.ResponseWriter, r *http.Request) {
	var req ReorderBacklogRequest
	if !decode(w, r, &req) {
		return
	}
	if err := e.repo.ReorderBacklog(r.Context(), currentUser(r).OrgID, req.PodID, req.IDs); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Backlog reordered"})
}

func (e *SprintEndpoints) DeleteItemHandler(w http.ResponseWriter, r *http.Request) {
	if err := e.repo.DeleteItem(r.Context(), currentUser(r).OrgID, urlID(r)); err != nil {
		handleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (e *SprintEndpoints) ListCommentsHandler(w http.ResponseWriter, r *http.Request) {
	comments, err := e.repo.ListComments(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"comments": comments})
}

func (e *SprintEndpoints) AddCommentHandler(w http.ResponseWriter, r *http.Request) {
	var req AddCommentRequest
	if !decode(w, r, &req) {
		return
	}
	user := currentUser(r)
	c := &models.SprintItemComment{
		OrgID:    user.OrgID,
		ItemID:   urlID(r),
		AuthorID: user.ID,
		Body:     req.Body,
	}
	if err := e.repo.AddComment(r.Context(), c); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (e *SprintEndpoints) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	rows, err := e.repo.GetHistory(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"history": rows})
}
