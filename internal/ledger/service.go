// Package ledger owns every operation that changes a point balance. Each
// operation runs in one SQL transaction: the balance update, the transaction
// log row and the task status change commit together or not at all.
package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/dukerupert/beanjar/internal/approval"
	"github.com/dukerupert/beanjar/internal/metrics"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/routine"
	"github.com/dukerupert/beanjar/internal/store"
)

type Service struct {
	db      *sql.DB
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(db *sql.DB, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{db: db, metrics: m, logger: logger, now: time.Now}
}

// repos bundles the stores bound to one transaction.
type repos struct {
	members *store.MemberStore
	tasks   *store.TaskStore
	txns    *store.TransactionStore
}

func (s *Service) inTx(ctx context.Context, fn func(r repos) error) error {
	err := store.WithTx(ctx, s.db, func(tx *sql.Tx) error {
		return fn(repos{
			members: store.NewMemberStore(tx),
			tasks:   store.NewTaskStore(tx),
			txns:    store.NewTransactionStore(tx),
		})
	})
	return classify(err)
}

func mustMember(ctx context.Context, ms *store.MemberStore, id int64, role string) (*model.Member, error) {
	m, err := ms.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, fmt.Errorf("%s %d: %w", role, id, ErrNotFound)
	}
	return m, nil
}

func sameFamily(a, b *model.Member) bool {
	if a.FamilyID == nil || b.FamilyID == nil {
		return a.FamilyID == nil && b.FamilyID == nil
	}
	return *a.FamilyID == *b.FamilyID
}

// --- Tasks ---

// TaskInput is a request to create a task.
type TaskInput struct {
	Title           string
	Description     string
	Type            model.TaskType
	Points          int
	CreatorID       int64
	AssigneeID      *int64
	DurationMinutes *int
}

func (in *TaskInput) normalize() error {
	in.Title = strings.TrimSpace(in.Title)
	if in.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if !in.Type.Valid() {
		return fmt.Errorf("%w: unknown task type %q", ErrInvalidInput, in.Type)
	}
	if in.Points == 0 {
		return fmt.Errorf("%w: points are required", ErrInvalidInput)
	}
	if in.Points < 0 {
		in.Points = -in.Points
	}
	if in.Type == model.TaskHourglass {
		if in.DurationMinutes == nil || *in.DurationMinutes <= 0 {
			return fmt.Errorf("%w: HOURGLASS tasks require duration_minutes", ErrInvalidInput)
		}
	} else {
		in.DurationMinutes = nil
	}
	return nil
}

// CreateTask validates and stores a task. HOURGLASS tasks start in TODO and
// wait for their timer; everything else goes straight to PENDING. The
// assignee defaults to the creator except for tattles, where an absent
// assignee means the penalty lands on the creator.
func (s *Service) CreateTask(ctx context.Context, in TaskInput) (*model.Task, error) {
	if err := in.normalize(); err != nil {
		return nil, err
	}

	var task *model.Task
	err := s.inTx(ctx, func(r repos) error {
		creator, err := mustMember(ctx, r.members, in.CreatorID, "creator")
		if err != nil {
			return err
		}

		assigneeID := in.AssigneeID
		if assigneeID == nil && in.Type != model.TaskTattle {
			assigneeID = &creator.ID
		}
		if assigneeID != nil && *assigneeID != creator.ID {
			assignee, err := mustMember(ctx, r.members, *assigneeID, "assignee")
			if err != nil {
				return err
			}
			if !sameFamily(creator, assignee) {
				return ErrOtherFamily
			}
		}

		status := model.StatusPending
		if in.Type == model.TaskHourglass {
			status = model.StatusTodo
		}

		task, err = r.tasks.Create(ctx, store.NewTask{
			Title:           in.Title,
			Description:     in.Description,
			Type:            in.Type,
			Points:          in.Points,
			Status:          status,
			CreatorID:       creator.ID,
			AssigneeID:      assigneeID,
			DurationMinutes: in.DurationMinutes,
		})
		return err
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("task created", "task_id", task.ID, "type", task.Type, "status", task.Status, "points", task.Points)
	return task, nil
}

// SubmitForApproval moves a task from TODO to PENDING once its timer ran out
// or the performer finished early. Repeating the call on a PENDING task
// returns it unchanged.
func (s *Service) SubmitForApproval(ctx context.Context, taskID int64) (*model.Task, error) {
	var task *model.Task
	err := s.inTx(ctx, func(r repos) error {
		var err error
		task, err = r.tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		switch task.Status {
		case model.StatusPending:
			return nil
		case model.StatusTodo:
		default:
			return fmt.Errorf("task %d is %s, not TODO: %w", taskID, task.Status, ErrInvalidState)
		}

		ok, err := r.tasks.TransitionStatus(ctx, taskID, model.StatusTodo, model.StatusPending)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("task %d changed concurrently: %w", taskID, ErrInvalidState)
		}
		task, err = r.tasks.GetByID(ctx, taskID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

// --- Votes ---

// SubmitVote records a family member's vote on a pending task.
//
// A rejection ends the task immediately. Approvals are stored as a set keyed
// by (task, member), so a repeated approval changes nothing and just reports
// the tally. When the tally reaches the quorum the point delta, the ledger
// row and the APPROVED status are written in the same transaction as the
// triggering vote.
func (s *Service) SubmitVote(ctx context.Context, taskID, memberID int64, vote model.Vote) (*model.VoteResult, error) {
	var res *model.VoteResult
	err := s.inTx(ctx, func(r repos) error {
		task, err := r.tasks.GetByID(ctx, taskID)
		if err != nil {
			return err
		}
		if task == nil {
			return fmt.Errorf("task %d: %w", taskID, ErrNotFound)
		}
		if task.Status != model.StatusPending {
			return fmt.Errorf("task %d is %s, not PENDING: %w", taskID, task.Status, ErrInvalidState)
		}

		voter, err := mustMember(ctx, r.members, memberID, "member")
		if err != nil {
			return err
		}
		creator, err := mustMember(ctx, r.members, task.CreatorID, "creator")
		if err != nil {
			return err
		}
		if !sameFamily(voter, creator) {
			return ErrOtherFamily
		}

		total, err := r.members.CountInFamily(ctx, creator.FamilyID)
		if err != nil {
			return err
		}
		required := approval.RequiredApprovers(total, task.Type)

		switch vote {
		case model.VoteReject:
			res, err = s.reject(ctx, r, task, memberID, total, required)
		case model.VoteApprove:
			res, err = s.approve(ctx, r, task, memberID, total, required)
		default:
			err = fmt.Errorf("%w: %w", ErrInvalidInput, approval.ErrUnknownVote)
		}
		return err
	})
	if err != nil {
		s.metrics.Vote(string(vote), outcome(err))
		return nil, err
	}

	if res.Finalized {
		s.metrics.Vote(string(vote), "finalized")
		s.metrics.Finalized(string(res.Task.Type), string(res.Task.Status))
		s.logger.Info("task finalized",
			"task_id", res.Task.ID,
			"status", res.Task.Status,
			"approvals", res.ApprovalCount,
			"required", res.Required)
	} else {
		s.metrics.Vote(string(vote), "recorded")
	}
	return res, nil
}

func (s *Service) reject(ctx context.Context, r repos, task *model.Task, memberID int64, total, required int) (*model.VoteResult, error) {
	if err := approval.CheckRejecter(task, memberID, total); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	ok, err := r.tasks.TransitionStatus(ctx, task.ID, model.StatusPending, model.StatusRejected)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %d changed concurrently: %w", task.ID, ErrInvalidState)
	}

	count, err := r.tasks.CountApprovals(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	updated, err := r.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return &model.VoteResult{
		Task:          updated,
		ApprovalCount: count,
		Required:      required,
		Finalized:     true,
		Message:       "Rejected",
	}, nil
}

func (s *Service) approve(ctx context.Context, r repos, task *model.Task, memberID int64, total, required int) (*model.VoteResult, error) {
	if err := approval.CheckVoter(task, memberID, total); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrForbidden, err)
	}

	if _, err := r.tasks.AddApproval(ctx, task.ID, memberID); err != nil {
		return nil, err
	}
	count, err := r.tasks.CountApprovals(ctx, task.ID)
	if err != nil {
		return nil, err
	}

	if !approval.Reached(count, required) {
		return &model.VoteResult{
			Task:          task,
			ApprovalCount: count,
			Required:      required,
			Message:       approval.TallyMessage(count, required),
		}, nil
	}

	// The guarded flip is what makes finalisation happen once: a racing
	// finaliser finds the task no longer PENDING and rolls back.
	ok, err := r.tasks.TransitionStatus(ctx, task.ID, model.StatusPending, model.StatusApproved)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("task %d changed concurrently: %w", task.ID, ErrInvalidState)
	}

	st := approval.Settle(task)
	if err := r.members.AddPoints(ctx, st.MemberID, st.Amount); err != nil {
		return nil, err
	}
	if _, err := r.txns.Append(ctx, st.MemberID, st.Amount, st.Reason); err != nil {
		return nil, err
	}
	s.metrics.PointsMoved("task", st.Amount)

	updated, err := r.tasks.GetByID(ctx, task.ID)
	if err != nil {
		return nil, err
	}
	return &model.VoteResult{
		Task:          updated,
		ApprovalCount: count,
		Required:      required,
		Finalized:     true,
		Message:       approval.TallyMessage(count, required),
	}, nil
}

// --- Transfers ---

const defaultGiftMessage = "A gift from the heart"

type TransferInput struct {
	SenderID   int64
	ReceiverID int64
	Amount     int
	Message    string
}

// TransferReceipt reports both balances after a successful transfer.
type TransferReceipt struct {
	SenderID        int64 `json:"sender_id"`
	ReceiverID      int64 `json:"receiver_id"`
	Amount          int   `json:"amount"`
	SenderBalance   int   `json:"sender_balance"`
	ReceiverBalance int   `json:"receiver_balance"`
}

// Transfer moves points between two members of the same family. The
// balance check is repeated inside the transaction by a guarded debit, so
// concurrent transfers cannot overdraw the sender.
func (s *Service) Transfer(ctx context.Context, in TransferInput) (*TransferReceipt, error) {
	if in.Amount <= 0 {
		s.metrics.Transfer("invalid")
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	if in.SenderID == in.ReceiverID {
		s.metrics.Transfer("invalid")
		return nil, fmt.Errorf("%w: cannot send points to yourself", ErrInvalidInput)
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		msg = defaultGiftMessage
	}

	var receipt *TransferReceipt
	err := s.inTx(ctx, func(r repos) error {
		sender, err := mustMember(ctx, r.members, in.SenderID, "sender")
		if err != nil {
			return err
		}
		receiver, err := mustMember(ctx, r.members, in.ReceiverID, "receiver")
		if err != nil {
			return err
		}
		if !sameFamily(sender, receiver) {
			return ErrOtherFamily
		}
		if sender.Points < in.Amount {
			return ErrInsufficientBalance
		}

		debited, err := r.members.DebitIfCovered(ctx, sender.ID, in.Amount)
		if err != nil {
			return err
		}
		if !debited {
			return ErrInsufficientBalance
		}
		if err := r.members.AddPoints(ctx, receiver.ID, in.Amount); err != nil {
			return err
		}

		if _, err := r.txns.Append(ctx, sender.ID, -in.Amount,
			fmt.Sprintf("Gift sent: %s (to %s)", msg, receiver.Name)); err != nil {
			return err
		}
		if _, err := r.txns.Append(ctx, receiver.ID, in.Amount,
			fmt.Sprintf("Gift received: %s (from %s)", msg, sender.Name)); err != nil {
			return err
		}

		receipt = &TransferReceipt{
			SenderID:        sender.ID,
			ReceiverID:      receiver.ID,
			Amount:          in.Amount,
			SenderBalance:   sender.Points - in.Amount,
			ReceiverBalance: receiver.Points + in.Amount,
		}
		return nil
	})
	if err != nil {
		s.metrics.Transfer(outcome(err))
		return nil, err
	}

	s.metrics.Transfer("ok")
	s.metrics.PointsMoved("transfer", in.Amount)
	s.logger.Info("points transferred", "sender_id", in.SenderID, "receiver_id", in.ReceiverID, "amount", in.Amount)
	return receipt, nil
}

// --- Routines ---

// CompleteRoutine produces today's task for a routine on behalf of its
// assignee. A routine yields at most one task per day.
func (s *Service) CompleteRoutine(ctx context.Context, rt *model.Routine) (*model.Task, error) {
	if !rt.IsActive {
		return nil, fmt.Errorf("routine %d is inactive: %w", rt.ID, ErrInvalidState)
	}
	now := s.now()
	if !routine.ScheduledOn(*rt, now) {
		return nil, fmt.Errorf("routine %d is not scheduled on %s: %w", rt.ID, now.Weekday(), ErrInvalidState)
	}

	var task *model.Task
	err := s.inTx(ctx, func(r repos) error {
		existing, err := r.tasks.ListByRoutineSince(ctx, rt.ID, routine.StartOfDay(now))
		if err != nil {
			return err
		}
		if routine.Today(*rt, existing, now).IsCompletedToday {
			return fmt.Errorf("routine %d already done today: %w", rt.ID, ErrInvalidState)
		}

		if _, err := mustMember(ctx, r.members, rt.AssigneeID, "assignee"); err != nil {
			return err
		}

		status := model.StatusPending
		if rt.Type == model.TaskHourglass {
			status = model.StatusTodo
		}
		assignee := rt.AssigneeID
		routineID := rt.ID
		task, err = r.tasks.Create(ctx, store.NewTask{
			Title:           rt.Title,
			Description:     rt.Title,
			Type:            rt.Type,
			Points:          rt.Points,
			Status:          status,
			CreatorID:       rt.AssigneeID,
			AssigneeID:      &assignee,
			DurationMinutes: rt.DurationMinutes,
			RoutineID:       &routineID,
		})
		return err
	})
	if err != nil {
		return nil, err
	}
	return task, nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInsufficientBalance):
		return "insufficient_balance"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrInvalidInput):
		return "invalid"
	default:
		return "error"
	}
}
