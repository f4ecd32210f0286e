package push

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dukerupert/beanjar/internal/approval"
	"github.com/dukerupert/beanjar/internal/model"
	"github.com/dukerupert/beanjar/internal/store"
)

const (
	queueSize   = 64
	sendTimeout = 10 * time.Second
)

type sender interface {
	Send(ctx context.Context, sub *model.PushSubscription, payload Payload) error
}

// job resolves its recipients lazily so handlers never wait on the lookup.
type job struct {
	recipients func(ctx context.Context) ([]int64, error)
	payload    Payload
}

// Notifier turns ledger events into web push messages. A nil *Notifier or
// one built without a sender accepts events and drops them.
type Notifier struct {
	sender  sender
	subs    *store.PushStore
	members *store.MemberStore
	jobs    chan job
	logger  *slog.Logger
}

func NewNotifier(svc *Service, db *sql.DB, logger *slog.Logger) *Notifier {
	n := &Notifier{
		subs:    store.NewPushStore(db),
		members: store.NewMemberStore(db),
		jobs:    make(chan job, queueSize),
		logger:  logger,
	}
	if svc != nil {
		n.sender = svc
	}
	return n
}

func (n *Notifier) enabled() bool {
	return n != nil && n.sender != nil
}

func (n *Notifier) enqueue(j job) {
	if !n.enabled() {
		return
	}
	select {
	case n.jobs <- j:
	default:
		n.logger.Warn("push queue full, dropping notification", "title", j.payload.Title)
	}
}

// VoteRequested tells every member who may approve task that it is waiting.
func (n *Notifier) VoteRequested(task *model.Task) {
	t := *task
	n.enqueue(job{
		recipients: func(ctx context.Context) ([]int64, error) {
			ids, err := n.familyOf(ctx, t.CreatorID)
			if err != nil {
				return nil, err
			}
			return approval.Voters(&t, ids), nil
		},
		payload: Payload{
			Title: "Vote needed",
			Body:  fmt.Sprintf("%s (%s, %d beans)", t.Title, t.Type, t.Points),
			URL:   fmt.Sprintf("/tasks/%d", t.ID),
			Tag:   fmt.Sprintf("task-%d", t.ID),
		},
	})
}

// TaskFinalized tells the creator, and the accused of a tattle, how the
// family decided.
func (n *Notifier) TaskFinalized(task *model.Task) {
	recipients := []int64{task.CreatorID}
	if accused, ok := approval.Accused(task); ok {
		recipients = append(recipients, accused)
	} else if p := approval.Performer(task); p != task.CreatorID {
		recipients = append(recipients, p)
	}

	verb := "approved"
	if task.Status == model.StatusRejected {
		verb = "rejected"
	}
	n.enqueue(job{
		recipients: fixed(recipients),
		payload: Payload{
			Title: fmt.Sprintf("Task %s", verb),
			Body:  task.Title,
			URL:   fmt.Sprintf("/tasks/%d", task.ID),
			Tag:   fmt.Sprintf("task-%d", task.ID),
		},
	})
}

func (n *Notifier) GiftReceived(receiverID int64, senderName string, amount int) {
	n.enqueue(job{
		recipients: fixed([]int64{receiverID}),
		payload: Payload{
			Title: "You got beans!",
			Body:  fmt.Sprintf("%s sent you %d beans", senderName, amount),
			URL:   "/transactions",
			Tag:   "gift",
		},
	})
}

func fixed(ids []int64) func(context.Context) ([]int64, error) {
	return func(context.Context) ([]int64, error) { return ids, nil }
}

func (n *Notifier) familyOf(ctx context.Context, memberID int64) ([]int64, error) {
	m, err := n.members.GetByID(ctx, memberID)
	if err != nil {
		return nil, err
	}
	if m == nil {
		return nil, nil
	}
	members, err := n.members.ListInFamily(ctx, m.FamilyID)
	if err != nil {
		return nil, err
	}
	ids := make([]int64, len(members))
	for i, fm := range members {
		ids[i] = fm.ID
	}
	return ids, nil
}

// Run delivers queued notifications until ctx ends.
func (n *Notifier) Run(ctx context.Context) {
	if !n.enabled() {
		return
	}
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-n.jobs:
			n.deliver(ctx, j)
		}
	}
}

func (n *Notifier) deliver(ctx context.Context, j job) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	ids, err := j.recipients(ctx)
	if err != nil {
		n.logger.Error("resolve push recipients", "title", j.payload.Title, "error", err)
		return
	}
	subs, err := n.subs.ListByMembers(ctx, ids...)
	if err != nil {
		n.logger.Error("list push subscriptions", "error", err)
		return
	}

	for i := range subs {
		sub := &subs[i]
		err := n.sender.Send(ctx, sub, j.payload)
		switch {
		case err == nil:
		case errors.Is(err, ErrExpired):
			if err := n.subs.DeleteByEndpoint(ctx, sub.Endpoint); err != nil {
				n.logger.Error("remove expired push subscription", "subscription_id", sub.ID, "error", err)
			}
		default:
			n.logger.Warn("push send failed", "member_id", sub.MemberID, "error", err)
		}
	}
}
