package services

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/krshsl/staffline/models"
	"github.com/krshsl/staffline/repository"
)

type PodEndpoints struct {
	repo *repository.GORMRepository
}

func NewPodEndpoints(repo *repository.GORMRepository) *PodEndpoints {
	return &PodEndpoints{repo: repo}
}

func (e *PodEndpoints) RegisterRoutes(r chi.Router) {
	manage := RequireRole(models.RoleOwner, models.RoleAdmin, models.RoleManager)

	r.Route("/pods", func(r chi.Router) {
		r.Get("/", e.ListPodsHandler)
		r.Get("/stats", e.PodStatsHandler)
		r.Get("/{id}", e.GetPodHandler)

		r.Group(func(r chi.Router) {
			r.Use(manage)
			r.Post("/", e.CreatePodHandler)
			r.Patch("/{id}", e.UpdatePodHandler)
			r.Post("/{id}/members", e.AddMembersHandler)
			r.Delete("/{id}/members", e.RemoveMembersHandler)
			r.Post("/{id}/transfer", e.TransferMembersHandler)
			r.Post("/{id}/deactivate", e.DeactivatePodHandler)
			r.Post("/{id}/reactivate", e.ReactivatePodHandler)
		})
	})
}

type CreatePodRequest struct {
	Name        string   `json:"name" validate:"required,max=255"`
	Description string   `json:"description"`
	PodType     string   `json:"pod_type" validate:"required,oneof=recruiting bench_sales ta hr mixed"`
	Region      string   `json:"region" validate:"max=100"`
	ManagerID   *string  `json:"manager_id" validate:"omitempty,uuid"`
	MemberIDs   []string `json:"member_ids" validate:"omitempty,dive,uuid"`
}

type UpdatePodRequest struct {
	Name        *string `json:"name" validate:"omitempty,max=255"`
	Description *string `json:"description"`
	PodType     *string `json:"pod_type" validate:"omitempty,oneof=recruiting bench_sales ta hr mixed"`
	Region      *string `json:"region" validate:"omitempty,max=100"`
	ManagerID   *string `json:"manager_id" validate:"omitempty,uuid"`
}

type PodMembersRequest struct {
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`
}

type TransferMembersRequest struct {
	ToPodID string   `json:"to_pod_id" validate:"required,uuid"`
	UserIDs []string `json:"user_ids" validate:"required,min=1,dive,uuid"`
}

func (e *PodEndpoints) PodStatsHandler(w http.ResponseWriter, r *http.Request) {
	stats, err := e.repo.PodStats(r.Context(), currentUser(r).OrgID)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (e *PodEndpoints) ListPodsHandler(w http.ResponseWriter, r *http.Request) {
	pods, err := e.repo.ListPods(r.Context(), currentUser(r).OrgID, r.URL.Query().Get("include_inactive") == "true")
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"pods": pods})
}

func (e *PodEndpoints) GetPodHandler(w http.ResponseWriter, r *http.Request) {
	pod, err := e.repo.GetPod(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (e *PodEndpoints) CreatePodHandler(w http.ResponseWriter, r *http.Request) {
	var req CreatePodRequest
	if !decode(w, r, &req) {
		return
	}
	pod := &models.Pod{
		OrgID:       currentUser(r).OrgID,
		Name:        req.Name,
		Description: req.Description,
		PodType:     req.PodType,
		Region:      req.Region,
		ManagerID:   req.ManagerID,
		IsActive:    true,
	}
	if err := e.repo.CreatePod(r.Context(), pod, req.MemberIDs); err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, pod)
}

func (e *PodEndpoints) UpdatePodHandler(w http.ResponseWriter, r *http.Request) {
	var req UpdatePodRequest
	if !decode(w, r, &req) {
		return
	}
	changes := changeSet(&req)
	if len(changes) == 0 {
		writeError(w, http.StatusBadRequest, "No fields to update")
		return
	}
	pod, err := e.repo.UpdatePod(r.Context(), currentUser(r).OrgID, urlID(r), changes)
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (e *PodEndpoints) AddMembersHandler(w http.ResponseWriter, r *http.Request) {
	var req PodMembersRequest
	if !decode(w, r, &req) {
		return
	}
	e.respondWithPod(w, r, e.repo.AddPodMembers(r.Context(), currentUser(r).OrgID, urlID(r), req.UserIDs))
}

func (e *PodEndpoints) RemoveMembersHandler(w http.ResponseWriter, r *http.Request) {
	var req PodMembersRequest
	if !decode(w, r, &req) {
		return
	}
	e.respondWithPod(w, r, e.repo.RemovePodMembers(r.Context(), currentUser(r).OrgID, urlID(r), req.UserIDs))
}

func (e *PodEndpoints) TransferMembersHandler(w http.ResponseWriter, r *http.Request) {
	var req TransferMembersRequest
	if !decode(w, r, &req) {
		return
	}
	e.respondWithPod(w, r, e.repo.TransferPodMembers(r.Context(), currentUser(r).OrgID, urlID(r), req.ToPodID, req.UserIDs))
}

// respondWithPod reports err or the pod's current membership.
func (e *PodEndpoints) respondWithPod(w http.ResponseWriter, r *http.Request, err error) {
	if err != nil {
		handleError(w, r, err)
		return
	}
	pod, err := e.repo.GetPod(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (e *PodEndpoints) DeactivatePodHandler(w http.ResponseWriter, r *http.Request) {
	pod, err := e.repo.DeactivatePod(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}

func (e *PodEndpoints) ReactivatePodHandler(w http.ResponseWriter, r *http.Request) {
	pod, err := e.repo.ReactivatePod(r.Context(), currentUser(r).OrgID, urlID(r))
	if err != nil {
		handleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, pod)
}
