// Package approval holds the family consensus rules for finalising tasks:
// who may vote, how many votes are needed, and what a finalised task does to
// the ledger. Everything here is pure; persistence lives in ledger.
package approval

import (
	"errors"
	"fmt"

	"github.com/dukerupert/beanjar/internal/model"
)

var (
	// ErrSelfApproval is returned when the member who performed the task, or
	// the accused member of a tattle, tries to vote on it.
	ErrSelfApproval = errors.New("members cannot vote on their own request")
	ErrUnknownVote  = errors.New("vote must be APPROVE or REJECT")
)

// RequiredApprovers is the number of distinct approvals that finalise a task
// of type t in a family of totalMembers. It is recomputed on every vote so
// membership changes are picked up immediately.
func RequiredApprovers(totalMembers int, t model.TaskType) int {
	excluded := 1
	if t == model.TaskTattle {
		excluded = 2
	}
	if totalMembers-excluded < 1 {
		return 1
	}
	return totalMembers - excluded
}

// Performer returns the member whose action the task represents: the
// assignee for EARN and HOURGLASS work, otherwise the creator.
func Performer(task *model.Task) int64 {
	if task.Type == model.TaskEarn || task.Type == model.TaskHourglass {
		if task.AssigneeID != nil {
			return *task.AssigneeID
		}
	}
	return task.CreatorID
}

// Accused returns the target of a tattle, if any.
func Accused(task *model.Task) (int64, bool) {
	if task.Type != model.TaskTattle || task.AssigneeID == nil {
		return 0, false
	}
	return *task.AssigneeID, true
}

// CheckVoter enforces the self-approval guard. A single-member family may
// approve its own requests. The accused of a tattle is excluded only while a
// third member is left to judge; in a pair they may accept the tattle.
func CheckVoter(task *model.Task, voterID int64, totalMembers int) error {
	if totalMembers <= 1 {
		return nil
	}
	if voterID == Performer(task) {
		return ErrSelfApproval
	}
	if accused, ok := Accused(task); ok && voterID == accused && totalMembers > 2 {
		return ErrSelfApproval
	}
	return nil
}

// Voters filters memberIDs down to those allowed to approve task.
func Voters(task *model.Task, memberIDs []int64) []int64 {
	var out []int64
	for _, id := range memberIDs {
		if CheckVoter(task, id, len(memberIDs)) == nil {
			out = append(out, id)
		}
	}
	return out
}

// CheckRejecter guards rejections. The performer may withdraw their own
// request, but the accused cannot dismiss a tattle about themselves.
func CheckRejecter(task *model.Task, voterID int64, totalMembers int) error {
	if totalMembers <= 1 {
		return nil
	}
	if accused, ok := Accused(task); ok && voterID == accused {
		return ErrSelfApproval
	}
	return nil
}

// ParseVote validates a client-supplied vote action.
func ParseVote(s string) (model.Vote, error) {
	switch v := model.Vote(s); v {
	case model.VoteApprove, model.VoteReject:
		return v, nil
	}
	return "", ErrUnknownVote
}

// Settlement describes the single ledger mutation an approved task causes.
type Settlement struct {
	MemberID int64
	Amount   int
	Reason   string
}

// Settle computes the balance change for an approved task. Points are stored
// as a magnitude; the sign comes from the type.
func Settle(task *model.Task) Settlement {
	points := task.Points
	if points < 0 {
		points = -points
	}

	s := Settlement{MemberID: task.CreatorID, Reason: task.Title}
	switch task.Type {
	case model.TaskEarn, model.TaskHourglass:
		s.Amount = points
		if task.AssigneeID != nil {
			s.MemberID = *task.AssigneeID
		}
	case model.TaskSpend:
		s.Amount = -points
	case model.TaskTattle:
		s.Amount = -points
		if task.AssigneeID != nil {
			s.MemberID = *task.AssigneeID
		}
	}
	return s
}

// Reached reports whether count approvals meet the quorum.
func Reached(count, required int) bool {
	return count >= required
}

// TallyMessage renders the progress line shown while a task awaits votes.
func TallyMessage(count, required int) string {
	return fmt.Sprintf("Approved (%d/%d)", count, required)
}
