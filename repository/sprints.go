package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/krshsl/staffline/board"
	"github.com/krshsl/staffline/models"
)

func (r *GORMRepository) ListSprints(ctx context.Context, orgID, podID string) ([]models.Sprint, error) {
	q := r.org(ctx, orgID)
	if podID != "" {
		q = q.Where("pod_id = ?", podID)
	}
	var sprints []models.Sprint
	if err := q.Order("created_at DESC").Find(&sprints).Error; err != nil {
		slog.Error("Failed to list sprints", "error", err, "pod_id", podID)
		return nil, mapError(err)
	}
	return sprints, nil
}

func (r *GORMRepository) GetSprint(ctx context.Context, orgID, id string) (*models.Sprint, error) {
	var s models.Sprint
	if err := first(r.org(ctx, orgID).Where("id = ?", id), &s); err != nil {
		return nil, err
	}
	return &s, nil
}

func (r *GORMRepository) CreateSprint(ctx context.Context, s *models.Sprint) error {
	if _, err := r.GetPod(ctx, s.OrgID, s.PodID); err != nil {
		return err
	}
	if s.StartDate != nil && s.EndDate != nil && s.EndDate.Before(*s.StartDate) {
		return Invalid("end_date must not be before start_date")
	}
	s.Status = models.SprintPlanning
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		slog.Error("Failed to create sprint", "error", err, "pod_id", s.PodID)
		return mapError(err)
	}
	slog.Info("Sprint created", "sprint_id", s.ID, "pod_id", s.PodID)
	return nil
}

// StartSprint activates a planning sprint. A pod has at most one active
// sprint.
func (r *GORMRepository) StartSprint(ctx context.Context, orgID, id string) (*models.Sprint, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		s, err := tx.GetSprint(ctx, orgID, id)
		if err != nil {
			return err
		}
		if s.Status != models.SprintPlanning {
			return Transition("sprint", s.Status, models.SprintActive)
		}
		var active int64
		if err := tx.org(ctx, orgID).Model(&models.Sprint{}).
			Where("pod_id = ? AND status = ?", s.PodID, models.SprintActive).
			Count(&active).Error; err != nil {
			return mapError(err)
		}
		if active > 0 {
			return Conflict("pod already has an active sprint")
		}
		changes := map[string]interface{}{"status": models.SprintActive}
		if s.StartDate == nil {
			changes["start_date"] = time.Now()
		}
		return mapError(tx.db.Model(s).Updates(changes).Error)
	})
	if err != nil {
		slog.Error("Failed to start sprint", "error", err, "sprint_id", id)
		return nil, err
	}
	slog.Info("Sprint started", "sprint_id", id)
	return r.GetSprint(ctx, orgID, id)
}

// CompleteSprint closes an active sprint. Unfinished items return to the
// end of the pod backlog in board order.
func (r *GORMRepository) CompleteSprint(ctx context.Context, orgID, id string) (*models.Sprint, int, error) {
	var returned int
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		s, err := tx.GetSprint(ctx, orgID, id)
		if err != nil {
			return err
		}
		if s.Status != models.SprintActive {
			return Transition("sprint", s.Status, models.SprintCompleted)
		}
		var open []models.SprintItem
		if err := tx.org(ctx, orgID).
			Where("sprint_id = ? AND status <> ?", id, models.ItemDone).
			Order("board_column, board_order").
			Find(&open).Error; err != nil {
			return mapError(err)
		}
		ids := make([]string, len(open))
		for i, it := range open {
			ids[i] = it.ID
		}
		if err := tx.toBacklog(ctx, orgID, s.PodID, ids); err != nil {
			return err
		}
		returned = len(ids)
		return mapError(tx.db.Model(s).Updates(map[string]interface{}{
			"status":       models.SprintCompleted,
			"completed_at": time.Now(),
		}).Error)
	})
	if err != nil {
		slog.Error("Failed to complete sprint", "error", err, "sprint_id", id)
		return nil, 0, err
	}
	slog.Info("Sprint completed", "sprint_id", id, "returned_to_backlog", returned)
	s, err := r.GetSprint(ctx, orgID, id)
	return s, returned, err
}

// BoardColumn is one column of a sprint board.
type BoardColumn struct {
	Status string              `json:"status"`
	Items  []models.SprintItem `json:"items"`
}

// SprintBoard returns the sprint's items grouped into the fixed columns.
func (r *GORMRepository) SprintBoard(ctx context.Context, orgID, sprintID string) ([]BoardColumn, error) {
	if _, err := r.GetSprint(ctx, orgID, sprintID); err != nil {
		return nil, err
	}
	var items []models.SprintItem
	if err := r.org(ctx, orgID).Preload("Assignee").
		Where("sprint_id = ?", sprintID).
		Order("board_order, created_at").
		Find(&items).Error; err != nil {
		return nil, mapError(err)
	}
	byCol := map[string][]models.SprintItem{}
	for _, it := range items {
		byCol[it.BoardColumn] = append(byCol[it.BoardColumn], it)
	}
	cols := make([]BoardColumn, len(models.BoardColumns))
	for i, c := range models.BoardColumns {
		cols[i] = BoardColumn{Status: c, Items: byCol[c]}
		if cols[i].Items == nil {
			cols[i].Items = []models.SprintItem{}
		}
	}
	return cols, nil
}

// ItemFilter narrows ListItems. Backlog limits to items not in a sprint.
type ItemFilter struct {
	PodID      string
	SprintID   string
	Backlog    bool
	Status     string
	AssigneeID string
	ItemType   string
}

func (r *GORMRepository) ListItems(ctx context.Context, orgID string, f ItemFilter) ([]models.SprintItem, error) {
	q := r.org(ctx, orgID).Preload("Assignee")
	if f.PodID != "" {
		q = q.Where("pod_id = ?", f.PodID)
	}
	if f.SprintID != "" {
		q = q.Where("sprint_id = ?", f.SprintID)
	}
	if f.Backlog {
		q = q.Where("sprint_id IS NULL").Order("backlog_order NULLS LAST")
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.AssigneeID != "" {
		q = q.Where("assignee_id = ?", f.AssigneeID)
	}
	if f.ItemType != "" {
		q = q.Where("item_type = ?", f.ItemType)
	}
	var items []models.SprintItem
	if err := q.Order("item_number").Find(&items).Error; err != nil {
		slog.Error("Failed to list sprint items", "error", err, "org_id", orgID)
		return nil, mapError(err)
	}
	return items, nil
}

func (r *GORMRepository) GetItem(ctx context.Context, orgID, id string) (*models.SprintItem, error) {
	var it models.SprintItem
	if err := first(r.org(ctx, orgID).Preload("Assignee").Where("id = ?", id), &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// CreateItem numbers the item within its pod and places it at the end of
// the backlog, or at the end of the todo column when a sprint is given.
func (r *GORMRepository) CreateItem(ctx context.Context, it *models.SprintItem) error {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		if _, err := tx.GetPod(ctx, it.OrgID, it.PodID); err != nil {
			return err
		}
		if err := tx.checkItemRefs(ctx, it.OrgID, it.PodID, "", it.AssigneeID, it.EpicID); err != nil {
			return err
		}
		var maxNumber *int
		if err := tx.db.Model(&models.SprintItem{}).Unscoped().
			Where("pod_id = ?", it.PodID).
			Select("MAX(item_number)").Scan(&maxNumber).Error; err != nil {
			return mapError(err)
		}
		it.ItemNumber = 1
		if maxNumber != nil {
			it.ItemNumber = *maxNumber + 1
		}

		if it.SprintID != nil {
			s, err := tx.GetSprint(ctx, it.OrgID, *it.SprintID)
			if err != nil {
				return err
			}
			if s.PodID != it.PodID {
				return Invalid("sprint belongs to another pod")
			}
			order, err := tx.nextBoardOrder(ctx, *it.SprintID, models.ItemTodo)
			if err != nil {
				return err
			}
			it.Status = models.ItemTodo
			it.BoardColumn = models.ItemTodo
			it.BoardOrder = order
			it.BacklogOrder = nil
		} else {
			order, err := tx.nextBacklogOrder(ctx, it.PodID)
			if err != nil {
				return err
			}
			it.Status = models.ItemBacklog
			it.BacklogOrder = &order
		}
		return mapError(tx.db.Create(it).Error)
	})
	if err != nil {
		slog.Error("Failed to create sprint item", "error", err, "pod_id", it.PodID)
		return err
	}
	slog.Info("Sprint item created", "item_id", it.ID, "item_number", it.ItemNumber)
	return nil
}

func (r *GORMRepository) nextBoardOrder(ctx context.Context, sprintID, column string) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.SprintItem{}).
		Where("sprint_id = ? AND board_column = ?", sprintID, column).
		Select("MAX(board_order)").Scan(&max).Error
	if err != nil {
		return 0, mapError(err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

func (r *GORMRepository) nextBacklogOrder(ctx context.Context, podID string) (int, error) {
	var max *int
	err := r.db.WithContext(ctx).Model(&models.SprintItem{}).
		Where("pod_id = ? AND sprint_id IS NULL", podID).
		Select("MAX(backlog_order)").Scan(&max).Error
	if err != nil {
		return 0, mapError(err)
	}
	if max == nil {
		return 0, nil
	}
	return *max + 1, nil
}

// itemFields renders an item as column -> value for history diffs.
func itemFields(it *models.SprintItem) map[string]interface{} {
	raw, _ := json.Marshal(it)
	out := map[string]interface{}{}
	_ = json.Unmarshal(raw, &out)
	return out
}

func historyValue(v interface{}) string {
	if v == nil {
		return ""
	}
	switch t := v.(type) {
	case string:
		return t
	case []interface{}, map[string]interface{}:
		b, _ := json.Marshal(t)
		return string(b)
	default:
		return fmt.Sprint(t)
	}
}

// UpdateItem applies a partial update and writes one history row per field
// whose value changed.
func (r *GORMRepository) UpdateItem(ctx context.Context, orgID, id, userID string, changes map[string]interface{}) (*models.SprintItem, error) {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		it, err := tx.GetItem(ctx, orgID, id)
		if err != nil {
			return err
		}
		assignee, _ := changes["assignee_id"].(string)
		epic, _ := changes["epic_id"].(string)
		if err := tx.checkItemRefs(ctx, orgID, it.PodID, it.ID, optional(assignee), optional(epic)); err != nil {
			return err
		}
		before := itemFields(it)
		if err := tx.db.Model(&models.SprintItem{ID: it.ID}).Updates(changes).Error; err != nil {
			return mapError(err)
		}
		after, err := tx.GetItem(ctx, orgID, id)
		if err != nil {
			return err
		}
		return tx.recordHistory(ctx, orgID, id, userID, before, itemFields(after), keys(changes))
	})
	if err != nil {
		slog.Error("Failed to update sprint item", "error", err, "item_id", id)
		return nil, err
	}
	return r.GetItem(ctx, orgID, id)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// checkItemRefs rejects an assignee outside the org and an epic that is not
// an epic of the same pod. itemID is empty for new items.
func (r *GORMRepository) checkItemRefs(ctx context.Context, orgID, podID, itemID string, assigneeID, epicID *string) error {
	if assigneeID != nil {
		if _, err := r.GetOrgUser(ctx, orgID, *assigneeID); err != nil {
			if errors.Is(err, ErrNotFound) {
				return Invalid("assignee is not a member of this organization")
			}
			return err
		}
	}
	if epicID == nil {
		return nil
	}
	if *epicID == itemID {
		return Invalid("an item cannot be its own epic")
	}
	epic, err := r.GetItem(ctx, orgID, *epicID)
	if errors.Is(err, ErrNotFound) {
		return Invalid("epic not found")
	}
	if err != nil {
		return err
	}
	if epic.ItemType != models.ItemTypeEpic {
		return Invalid("epic_id must reference an epic, not a %s", epic.ItemType)
	}
	if epic.PodID != podID {
		return Invalid("epic belongs to another pod")
	}
	return nil
}

func (r *GORMRepository) recordHistory(ctx context.Context, orgID, itemID, userID string, before, after map[string]interface{}, fields []string) error {
	var rows []models.SprintItemHistory
	for _, f := range fields {
		if f == "updated_at" {
			continue
		}
		oldV, newV := historyValue(before[f]), historyValue(after[f])
		if oldV == newV {
			continue
		}
		rows = append(rows, models.SprintItemHistory{
			OrgID: orgID, ItemID: itemID, Field: f,
			OldValue: oldV, NewValue: newV, ChangedBy: userID,
		})
	}
	if len(rows) == 0 {
		return nil
	}
	return mapError(r.db.WithContext(ctx).Create(&rows).Error)
}

func keys(m map[string]interface{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// sprintBoard loads the column layout of a sprint as ids.
func (r *GORMRepository) sprintBoard(ctx context.Context, orgID, sprintID string) (board.Board, error) {
	var items []models.SprintItem
	if err := r.org(ctx, orgID).
		Where("sprint_id = ?", sprintID).
		Order("board_order, created_at").
		Find(&items).Error; err != nil {
		return nil, mapError(err)
	}
	b := board.Board{}
	for _, c := range models.BoardColumns {
		b[c] = []string{}
	}
	for _, it := range items {
		col := it.BoardColumn
		if _, ok := b[col]; !ok {
			col = models.ItemTodo
		}
		b[col] = append(b[col], it.ID)
	}
	return b, nil
}

func (r *GORMRepository) writePositions(ctx context.Context, positions []board.Position) error {
	for _, p := range positions {
		if err := r.db.WithContext(ctx).Model(&models.SprintItem{}).Where("id = ?", p.ID).
			UpdateColumns(map[string]interface{}{"board_column": p.Column, "board_order": p.Order}).Error; err != nil {
			return mapError(err)
		}
	}
	return nil
}

// MoveItem drops a board card into column status at position. Entering
// in_progress from todo stamps started_at; the first entry into done stamps
// completed_at.
func (r *GORMRepository) MoveItem(ctx context.Context, orgID, id, status string, position int, userID string) (*models.SprintItem, error) {
	if !models.Contains(models.BoardColumns, status) {
		return nil, Invalid("unknown board column %q", status)
	}
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		it, err := tx.GetItem(ctx, orgID, id)
		if err != nil {
			return err
		}
		if it.SprintID == nil {
			return Invalid("item is not in a sprint")
		}
		b, err := tx.sprintBoard(ctx, orgID, *it.SprintID)
		if err != nil {
			return err
		}
		positions, err := board.Move(b, it.ID, status, position)
		if err != nil {
			return Invalid("%s", err.Error())
		}
		if err := tx.writePositions(ctx, positions); err != nil {
			return err
		}

		now := time.Now()
		changes := map[string]interface{}{"status": status}
		if it.Status == models.ItemTodo && status == models.ItemInProgress && it.StartedAt == nil {
			changes["started_at"] = now
		}
		if status == models.ItemDone && it.CompletedAt == nil {
			changes["completed_at"] = now
		}
		if err := tx.db.Model(&models.SprintItem{ID: it.ID}).Updates(changes).Error; err != nil {
			return mapError(err)
		}
		if it.Status != status {
			return tx.recordHistory(ctx, orgID, it.ID, userID,
				map[string]interface{}{"status": it.Status},
				map[string]interface{}{"status": status},
				[]string{"status"})
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to move sprint item", "error", err, "item_id", id)
		return nil, err
	}
	slog.Info("Sprint item moved", "item_id", id, "status", status, "position", position)
	return r.GetItem(ctx, orgID, id)
}

// ReorderItems sets the order of one board column.
func (r *GORMRepository) ReorderItems(ctx context.Context, orgID, sprintID, column string, ids []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		b, err := tx.sprintBoard(ctx, orgID, sprintID)
		if err != nil {
			return err
		}
		positions, err := board.Reorder(b, column, ids)
		if err != nil {
			return Invalid("%s", err.Error())
		}
		return tx.writePositions(ctx, positions)
	})
}

// AddToSprint moves backlog items to the end of the sprint's todo column.
func (r *GORMRepository) AddToSprint(ctx context.Context, orgID, sprintID string, ids []string) error {
	err := r.Transaction(ctx, func(tx *GORMRepository) error {
		s, err := tx.GetSprint(ctx, orgID, sprintID)
		if err != nil {
			return err
		}
		if s.Status == models.SprintCompleted || s.Status == models.SprintCancelled {
			return Invalid("cannot add items to a %s sprint", s.Status)
		}
		var items []models.SprintItem
		if err := tx.org(ctx, orgID).Where("id IN ? AND pod_id = ?", ids, s.PodID).
			Order("backlog_order NULLS LAST, item_number").Find(&items).Error; err != nil {
			return mapError(err)
		}
		if len(items) != len(dedupe(ids)) {
			return Invalid("items must exist and belong to the sprint's pod")
		}
		b, err := tx.sprintBoard(ctx, orgID, sprintID)
		if err != nil {
			return err
		}
		var add []string
		for _, it := range items {
			if it.SprintID != nil && *it.SprintID == sprintID {
				continue
			}
			add = append(add, it.ID)
		}
		for _, p := range board.Append(b, models.ItemTodo, add...) {
			err := tx.db.Model(&models.SprintItem{}).Where("id = ?", p.ID).Updates(map[string]interface{}{
				"sprint_id":     sprintID,
				"status":        models.ItemTodo,
				"board_column":  p.Column,
				"board_order":   p.Order,
				"backlog_order": nil,
			}).Error
			if err != nil {
				return mapError(err)
			}
		}
		return nil
	})
	if err != nil {
		slog.Error("Failed to add items to sprint", "error", err, "sprint_id", sprintID)
		return err
	}
	slog.Info("Items added to sprint", "sprint_id", sprintID, "count", len(ids))
	return nil
}

// RemoveFromSprint sends items back to the end of their pod's backlog.
func (r *GORMRepository) RemoveFromSprint(ctx context.Context, orgID string, ids []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		var items []models.SprintItem
		if err := tx.org(ctx, orgID).Where("id IN ?", ids).
			Order("board_column, board_order").Find(&items).Error; err != nil {
			return mapError(err)
		}
		byPod := map[string][]string{}
		var pods []string
		for _, it := range items {
			if it.SprintID == nil {
				continue
			}
			if _, ok := byPod[it.PodID]; !ok {
				pods = append(pods, it.PodID)
			}
			byPod[it.PodID] = append(byPod[it.PodID], it.ID)
		}
		for _, pod := range pods {
			if err := tx.toBacklog(ctx, orgID, pod, byPod[pod]); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *GORMRepository) toBacklog(ctx context.Context, orgID, podID string, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	next, err := r.nextBacklogOrder(ctx, podID)
	if err != nil {
		return err
	}
	for i, id := range ids {
		err := r.org(ctx, orgID).Model(&models.SprintItem{}).Where("id = ?", id).Updates(map[string]interface{}{
			"sprint_id":     nil,
			"status":        models.ItemBacklog,
			"board_column":  "",
			"board_order":   0,
			"backlog_order": next + i,
		}).Error
		if err != nil {
			return mapError(err)
		}
	}
	return nil
}

// ReorderBacklog sets the order of a pod's backlog.
func (r *GORMRepository) ReorderBacklog(ctx context.Context, orgID, podID string, ids []string) error {
	return r.Transaction(ctx, func(tx *GORMRepository) error {
		var items []models.SprintItem
		if err := tx.org(ctx, orgID).Where("pod_id = ? AND sprint_id IS NULL", podID).
			Order("backlog_order NULLS LAST").Find(&items).Error; err != nil {
			return mapError(err)
		}
		b := board.Board{models.ItemBacklog: {}}
		for _, it := range items {
			b[models.ItemBacklog] = append(b[models.ItemBacklog], it.ID)
		}
		positions, err := board.Reorder(b, models.ItemBacklog, ids)
		if err != nil {
			return Invalid("%s", err.Error())
		}
		for _, p := range positions {
			if err := tx.db.Model(&models.SprintItem{}).Where("id = ?", p.ID).
				UpdateColumn("backlog_order", p.Order).Error; err != nil {
				return mapError(err)
			}
		}
		return nil
	})
}

func (r *GORMRepository) DeleteItem(ctx context.Context, orgID, id string) error {
	res := r.org(ctx, orgID).Where("id = ?", id).Delete(&models.SprintItem{})
	if res.Error != nil {
		slog.Error("Failed to delete sprint item", "error", res.Error, "item_id", id)
		return mapError(res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	slog.Info("Sprint item deleted", "item_id", id)
	return nil
}

func (r *GORMRepository) AddComment(ctx context.Context, c *models.SprintItemComment) error {
	if _, err := r.GetItem(ctx, c.OrgID, c.ItemID); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(c).Error; err != nil {
		slog.Error("Failed to add comment", "error", err, "item_id", c.ItemID)
		return mapError(err)
	}
	return nil
}

func (r *GORMRepository) ListComments(ctx context.Context, orgID, itemID string) ([]models.SprintItemComment, error) {
	var comments []models.SprintItemComment
	if err := r.org(ctx, orgID).Preload("Author").Where("item_id = ?", itemID).
		Order("created_at").Find(&comments).Error; err != nil {
		return nil, mapError(err)
	}
	return comments, nil
}

func (r *GORMRepository) GetHistory(ctx context.Context, orgID, itemID string) ([]models.SprintItemHistory, error) {
	var rows []models.SprintItemHistory
	if err := r.org(ctx, orgID).Where("item_id = ?", itemID).
		Order("created_at DESC").Find(&rows).Error; err != nil {
		return nil, mapError(err)
	}
	return rows, nil
}
