package payroll

import (
	"fmt"
	"strings"
	"time"

	"github.com/krshsl/staffline/models"
)

// RunNumber formats the display number of the seq-th run created on day.
func RunNumber(day time.Time, seq int) string {
	return fmt.Sprintf("PR-%s-%03d", day.Format("20060102"), seq)
}

// Allowed source statuses per pay run action.
var actions = map[string][]string{
	"update":              {models.PayRunDraft},
	"delete":              {models.PayRunDraft},
	"calculate":           {models.PayRunDraft, models.PayRunCalculating},
	"submit_for_approval": {models.PayRunDraft},
	"approve":             {models.PayRunPendingApproval},
	"process":             {models.PayRunApproved},
	"finish_processing":   {models.PayRunProcessing},
}

// CanRun reports whether action is allowed on a run in status. Void is
// allowed from any status except void.
func CanRun(action, status string) bool {
	if action == "void" {
		return status != models.PayRunVoid
	}
	return models.Contains(actions[action], status)
}

// VoidNotes returns the notes a voided run keeps. Completed runs get a
// VOIDED prefix so the paid history stays visible.
func VoidNotes(status, notes, reason string) string {
	if reason != "" {
		if notes != "" {
			notes = notes + "\n" + reason
		} else {
			notes = reason
		}
	}
	if status == models.PayRunCompleted && !strings.HasPrefix(notes, "VOIDED: ") {
		return "VOIDED: " + notes
	}
	return notes
}
