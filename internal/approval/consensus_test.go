package approval

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dukerupert/beanjar/internal/model"
)

func ptr(v int64) *int64 { return &v }

func TestRequiredApprovers(t *testing.T) {
	tests := []struct {
		name  string
		total int
		typ   model.TaskType
		want  int
	}{
		{"solo earn", 1, model.TaskEarn, 1},
		{"empty family", 0, model.TaskSpend, 1},
		{"pair earn", 2, model.TaskEarn, 1},
		{"three earn", 3, model.TaskEarn, 2},
		{"five spend", 5, model.TaskSpend, 4},
		{"four hourglass", 4, model.TaskHourglass, 3},
		{"solo tattle", 1, model.TaskTattle, 1},
		{"pair tattle", 2, model.TaskTattle, 1},
		{"three tattle", 3, model.TaskTattle, 1},
		{"five tattle", 5, model.TaskTattle, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RequiredApprovers(tt.total, tt.typ))
		})
	}
}

func TestPerformer(t *testing.T) {
	earn := &model.Task{Type: model.TaskEarn, CreatorID: 1, AssigneeID: ptr(2)}
	assert.Equal(t, int64(2), Performer(earn))

	hourglass := &model.Task{Type: model.TaskHourglass, CreatorID: 1, AssigneeID: ptr(3)}
	assert.Equal(t, int64(3), Performer(hourglass))

	unassigned := &model.Task{Type: model.TaskEarn, CreatorID: 1}
	assert.Equal(t, int64(1), Performer(unassigned))

	spend := &model.Task{Type: model.TaskSpend, CreatorID: 1, AssigneeID: ptr(2)}
	assert.Equal(t, int64(1), Performer(spend))

	tattle := &model.Task{Type: model.TaskTattle, CreatorID: 1, AssigneeID: ptr(2)}
	assert.Equal(t, int64(1), Performer(tattle))
}

func TestCheckVoter(t *testing.T) {
	earn := &model.Task{Type: model.TaskEarn, CreatorID: 1, AssigneeID: ptr(1)}
	require.ErrorIs(t, CheckVoter(earn, 1, 3), ErrSelfApproval)
	require.NoError(t, CheckVoter(earn, 2, 3))

	// A lone member signs off on their own work.
	require.NoError(t, CheckVoter(earn, 1, 1))

	// A parent assigning work to a child may approve it.
	assigned := &model.Task{Type: model.TaskEarn, CreatorID: 1, AssigneeID: ptr(2)}
	require.NoError(t, CheckVoter(assigned, 1, 3))
	require.ErrorIs(t, CheckVoter(assigned, 2, 3), ErrSelfApproval)

	tattle := &model.Task{Type: model.TaskTattle, CreatorID: 1, AssigneeID: ptr(2)}
	require.ErrorIs(t, CheckVoter(tattle, 1, 3), ErrSelfApproval)
	require.ErrorIs(t, CheckVoter(tattle, 2, 3), ErrSelfApproval)
	require.NoError(t, CheckVoter(tattle, 3, 3))

	// With nobody else to judge, the accused may accept a tattle.
	require.NoError(t, CheckVoter(tattle, 2, 2))
	require.ErrorIs(t, CheckVoter(tattle, 1, 2), ErrSelfApproval)

	selfTattle := &model.Task{Type: model.TaskTattle, CreatorID: 1, AssigneeID: ptr(1)}
	require.ErrorIs(t, CheckVoter(selfTattle, 1, 2), ErrSelfApproval)
	require.NoError(t, CheckVoter(selfTattle, 2, 2))
}

func TestSettle(t *testing.T) {
	tests := []struct {
		name       string
		task       model.Task
		wantMember int64
		wantAmount int
	}{
		{"earn credits creator", model.Task{Type: model.TaskEarn, Points: 100, CreatorID: 1, AssigneeID: ptr(1)}, 1, 100},
		{"earn credits assignee", model.Task{Type: model.TaskEarn, Points: 100, CreatorID: 1, AssigneeID: ptr(2)}, 2, 100},
		{"hourglass credits assignee", model.Task{Type: model.TaskHourglass, Points: 40, CreatorID: 1, AssigneeID: ptr(3)}, 3, 40},
		{"spend debits creator", model.Task{Type: model.TaskSpend, Points: 500, CreatorID: 1}, 1, -500},
		{"negative spend input is normalised", model.Task{Type: model.TaskSpend, Points: -500, CreatorID: 1}, 1, -500},
		{"tattle debits accused", model.Task{Type: model.TaskTattle, Points: 50, CreatorID: 1, AssigneeID: ptr(2)}, 2, -50},
		{"tattle without target debits creator", model.Task{Type: model.TaskTattle, Points: 50, CreatorID: 1}, 1, -50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.task.Title = "reason"
			s := Settle(&tt.task)
			assert.Equal(t, tt.wantMember, s.MemberID)
			assert.Equal(t, tt.wantAmount, s.Amount)
			assert.Equal(t, "reason", s.Reason)
		})
	}
}

func TestParseVote(t *testing.T) {
	v, err := ParseVote("APPROVE")
	require.NoError(t, err)
	assert.Equal(t, model.VoteApprove, v)

	v, err = ParseVote("REJECT")
	require.NoError(t, err)
	assert.Equal(t, model.VoteReject, v)

	_, err = ParseVote("approve")
	assert.ErrorIs(t, err, ErrUnknownVote)
}

func TestTally(t *testing.T) {
	assert.False(t, Reached(1, 2))
	assert.True(t, Reached(2, 2))
	assert.Equal(t, "Approved (1/2)", TallyMessage(1, 2))
}

func TestCheckRejecter(t *testing.T) {
	earn := &model.Task{Type: model.TaskEarn, CreatorID: 1, AssigneeID: ptr(1)}
	assert.NoError(t, CheckRejecter(earn, 1, 3), "performer may withdraw")

	tattle := &model.Task{Type: model.TaskTattle, CreatorID: 1, AssigneeID: ptr(2)}
	assert.ErrorIs(t, CheckRejecter(tattle, 2, 3), ErrSelfApproval)
	assert.NoError(t, CheckRejecter(tattle, 1, 3))
	assert.NoError(t, CheckRejecter(tattle, 3, 3))
}

func TestVoters(t *testing.T) {
	family := []int64{1, 2, 3, 4}

	earn := &model.Task{Type: model.TaskEarn, CreatorID: 1, AssigneeID: ptr(2)}
	assert.Equal(t, []int64{1, 3, 4}, Voters(earn, family), "the performer is excluded, not the creator")

	tattle := &model.Task{Type: model.TaskTattle, CreatorID: 1, AssigneeID: ptr(2)}
	assert.Equal(t, []int64{3, 4}, Voters(tattle, family))
	assert.Equal(t, []int64{2}, Voters(tattle, []int64{1, 2}), "a pair leaves the accused as judge")

	solo := &model.Task{Type: model.TaskSpend, CreatorID: 1}
	assert.Equal(t, []int64{1}, Voters(solo, []int64{1}))
}
