package repository

import (
	"context"
	"log/slog"
	"time"

	"github.com/krshsl/staffline/models"
	"gorm.io/gorm/clause"
)

// PodStats summarises an org's pods.
type PodStats struct {
	Total         int64 `json:"total"`
	Active        int64 `json:"active"`
	ActiveMembers int64 `json:"active_members"`
}

func (r *GORMRepository) PodStats(ctx context.Context, orgID string) (*PodStats, error) {
	var s PodStats
	if err := r.org(ctx, orgID).Model(&models.Pod{}).Count(&s.Total).Error; err != nil {
		return nil, mapError(err)
	}
	if err := r.org(ctx, orgID).Model(&models.Pod{}).Where("is_active = ?", true).Count(&s.Active).Error; err != nil {
		return nil, mapError(err)
	}
	if err := r.org(ctx, orgID).Model(&models.PodMember{}).Where("is_active = ?", true).Count(&s.ActiveMembers).Error; err != nil {
		return nil, mapError(err)
	}
	return &s, nil
}

// PodSummary is a pod row with its active member count.
type PodSummary struct {
	models.Pod
	MemberCount int64 `json:"member_count"`
}

func (r *GORMRepository) ListPods(ctx context.Context, orgID string, includeInactive bool) ([]PodSummary, error) {
	q := r.org(ctx, orgID).Preload("Manager")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	var pods []models.Pod
	if err := q.Order("name").Find(&pods).Error; err != nil {
		slog.Error("Failed to list pods", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}

	var counts []struct {
		PodID string
		Count int64
	}
	if err := r.org(ctx, orgID).Model(&models.PodMember{}).
		Select("pod_id, count(*) AS count").
		Where("is_active = ?", true).
		Group("pod_id").
		Scan(&counts).Error; err != nil {
		return nil, mapError(err)
	}
	byPod := make(map[string]int64, len(counts))
	for _, c := range counts {
		byPod[c.PodID] = c.Count
	}

	out := make([]PodSummary, len(pods))
	for i, p := range pods {
		out[i] = PodSummary{Pod: p, MemberCount: byPod[p.ID]}
	}
	return out, nil
}

func (r *GORMRepository) GetPod(ctx context.Context, orgID, id string) (*models.Pod, error) {
	var pod models.Pod
	err := first(r.org(ctx, orgID).
		Preload("Manager").
		Preload("Members", "is_active = ?", true).
		Preload("Members.User").
		Where("id = ?", id), &pod)
	if err != nil {
		return nil, err
	}
	return &pod, nil
}

// CreatePod inserts a pod and its initial members.
func (r *GORMRepository) CreatePod(ctx context.Context, pod *models.Pod, memberIDs []string) error {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		if pod.ManagerID != nil {
			if _, err := tx.GetOrgUser(ctx, pod.OrgID, *pod.ManagerID); err != nil {
				return err
			}
		}
		if err := tx.db.Create(pod).Error; err != nil {
			return mapError(err)
		}
		return tx.addMembers(ctx, pod.OrgID, pod.ID, memberIDs)
	})
	if err != nil {
		slog.Error("Failed to create pod", "error", err, "name", pod.Name)
		return err
	}
	slog.Info("Pod created", "pod_id", pod.ID, "name", pod.Name, "members", len(memberIDs))
	return nil
}

func (r *GORMRepository) UpdatePod(ctx context.Context, orgID, id string, changes map[string]interface{}) (*models.Pod, error) {
	pod, err := r.GetPod(ctx, orgID, id)
	if err != nil {
		return nil, err
	}
	if err := r.db.WithContext(ctx).Model(&models.Pod{ID: pod.ID}).Updates(changes).Error; err != nil {
		slog.Error("Failed to update pod", "error", err, "pod_id", id)
		return nil, mapError(err)
	}
	return r.GetPod(ctx, orgID, id)
}

// AddPodMembers adds users to a pod. Existing members are reactivated, so
// repeating the call is harmless.
func (r *GORMRepository) AddPodMembers(ctx context.Context, orgID, podID string, userIDs []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		if _, err := tx.GetPod(ctx, orgID, podID); err != nil {
			return err
		}
		return tx.addMembers(ctx, orgID, podID, userIDs)
	})
}

func (r *GORMRepository) addMembers(ctx context.Context, orgID, podID string, userIDs []string) error {
	if len(userIDs) == 0 {
		return nil
	}
	n, err := r.CountOrgUsers(ctx, orgID, userIDs)
	if err != nil {
		return err
	}
	if int(n) != len(dedupe(userIDs)) {
		return Invalid("one or more users do not belong to this organization")
	}
	now := time.Now()
	for _, uid := range dedupe(userIDs) {
		m := models.PodMember{OrgID: orgID, PodID: podID, UserID: uid, Role: "member", IsActive: true, JoinedAt: now}
		err := r.db.WithContext(ctx).Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "pod_id"}, {Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]interface{}{"is_active": true, "left_at": nil, "updated_at": now}),
		}).Create(&m).Error
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

// RemovePodMembers deactivates memberships, keeping the history rows.
func (r *GORMRepository) RemovePodMembers(ctx context.Context, orgID, podID string, userIDs []string) error {
	err := r.org(ctx, orgID).Model(&models.PodMember{}).
		Where("pod_id = ? AND user_id IN ? AND is_active = ?", podID, userIDs, true).
		Updates(map[string]interface{}{"is_active": false, "left_at": time.Now()}).Error
	if err != nil {
		slog.Error("Failed to remove pod members", "error", err, "pod_id", podID)
		return mapError(err)
	}
	slog.Info("Pod members removed", "pod_id", podID, "count", len(userIDs))
	return nil
}

// TransferPodMembers moves users from one pod to another in one transaction.
func (r *GORMRepository) TransferPodMembers(ctx context.Context, orgID, fromPodID, toPodID string, userIDs []string) error {
	if fromPodID == toPodID {
		return Invalid("source and target pod are the same")
	}
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		if _, err := tx.GetPod(ctx, orgID, fromPodID); err != nil {
			return err
		}
		target, err := tx.GetPod(ctx, orgID, toPodID)
		if err != nil {
			return err
		}
		if !target.IsActive {
			return Invalid("cannot transfer into an inactive pod")
		}
		if err := tx.RemovePodMembers(ctx, orgID, fromPodID, userIDs); err != nil {
			return err
		}
		return tx.addMembers(ctx, orgID, toPodID, userIDs)
	})
}

// DeactivatePod refuses while the pod has an active sprint.
func (r *GORMRepository) DeactivatePod(ctx context.Context, orgID, id string) (*models.Pod, error) {
	var active int64
	if err := r.org(ctx, orgID).Model(&models.Sprint{}).
		Where("pod_id = ? AND status = ?", id, models.SprintActive).
		Count(&active).Error; err != nil {
		return nil, mapError(err)
	}
	if active > 0 {
		return nil, Conflict("pod has an active sprint; complete it first")
	}
	return r.UpdatePod(ctx, orgID, id, map[string]interface{}{"is_active": false})
}

func (r *GORMRepository) ReactivatePod(ctx context.Context, orgID, id string) (*models.Pod, error) {
	return r.UpdatePod(ctx, orgID, id, map[string]interface{}{"is_active": true})
}

func dedupe(ids []string) []string {
	seen := make(map[string]bool, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
