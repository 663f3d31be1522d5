package workflow

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/garyjia/justifi/internal/application/port"
	"github.com/garyjia/justifi/internal/application/routing"
	"github.com/garyjia/justifi/internal/domain/apperr"
	"github.com/garyjia/justifi/internal/domain/entity"
	"github.com/garyjia/justifi/internal/domain/event"
)

type testEnv struct {
	store      *fakeStore
	rules      *fakeRuleRepo
	notifier   *recordingNotifier
	audit      *recordingAudit
	dispatcher *mockDispatcher
	tx         *mockTxManager
	engine     Engine
}

func strPtr(s string) *string { return &s }
func floatPtr(f float64) *float64 { return &f }

func newTestEnv(t *testing.T, rules ...*entity.RoutingRule) *testEnv {
	t.Helper()
	env := &testEnv{
		store:      newFakeStore(),
		rules:      &fakeRuleRepo{rules: rules},
		notifier:   &recordingNotifier{},
		audit:      &recordingAudit{},
		dispatcher: &mockDispatcher{},
		tx:         &mockTxManager{},
	}
	fixed := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	env.engine = NewEngine(
		&fakeJustificationRepo{env.store},
		&fakeTaskRepo{env.store},
		&fakeCommentRepo{env.store},
		routing.NewResolver(env.rules),
		env.tx,
		env.notifier,
		env.audit,
		WithDispatcher(env.dispatcher),
		WithTypeRegistry(&fakeTypeRepo{env.store}),
		WithClock(func() time.Time { return fixed }),
	)
	return env
}

func engineeringCapexRule() *entity.RoutingRule {
	return &entity.RoutingRule{
		ID:             "rule-1",
		Name:           "Engineering capex",
		Department:     strPtr("Engineering"),
		TypeCode:       strPtr("CAPEX"),
		SpendThreshold: floatPtr(1000),
		ApproverEmails: []string{"a@x.com", "b@x.com"},
	}
}

func validInput() SubmitInput {
	return SubmitInput{
		Title:          "New build servers",
		TypeCode:       "CAPEX",
		Department:     "Engineering",
		CostCentre:     "CC-100",
		RequesterEmail: "req@x.com",
		Urgency:        "High",
		Description:    "CI is saturated",
		CostEstimate:   floatPtr(5000),
	}
}

func submit(t *testing.T, env *testEnv) *SubmitResult {
	t.Helper()
	res, err := env.engine.Submit(context.Background(), validInput())
	require.NoError(t, err)
	return res
}

func TestSubmit(t *testing.T) {
	t.Run("routes to the matching rule and notifies everyone", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())

		res := submit(t, env)

		require.NotNil(t, res.Rule)
		assert.Equal(t, entity.RuleID("rule-1"), res.Rule.ID)
		assert.Equal(t, entity.JustificationPendingApproval, res.Justification.Status)
		assert.Equal(t, int64(1), res.Justification.Version)

		tasks := env.store.tasksOf(res.Justification.ID)
		require.Len(t, tasks, 2)
		assert.Equal(t, "a@x.com", tasks[0].ApproverEmail)
		assert.Equal(t, 0, tasks[0].StepIndex)
		assert.Equal(t, "b@x.com", tasks[1].ApproverEmail)
		assert.Equal(t, 1, tasks[1].StepIndex)
		for _, task := range tasks {
			assert.Equal(t, entity.TaskPending, task.Status)
		}

		assert.Equal(t, []string{entity.ActionCreate}, env.audit.actions())
		assert.Equal(t, entity.EntityJustification, env.audit.entries[0].entityType)
		assert.Equal(t, res.Justification.ID.String(), env.audit.entries[0].entityID)
		assert.Equal(t, "req@x.com", env.audit.entries[0].actor)

		require.Equal(t, 2, env.notifier.count())
		requests := env.notifier.withSubject(SubjectApprovalRequest)
		require.Len(t, requests, 1)
		assert.Equal(t, []string{"a@x.com", "b@x.com"}, requests[0].recipients)
		assert.Equal(t, "Justification New build servers requires your approval.", requests[0].body)
		received := env.notifier.withSubject(SubjectSubmitted)
		require.Len(t, received, 1)
		assert.Equal(t, []string{"req@x.com"}, received[0].recipients)

		assert.Len(t, env.dispatcher.ofType(event.TypeJustificationSubmitted), 1)
	})

	t.Run("no matching rule yields zero tasks", func(t *testing.T) {
		env := newTestEnv(t)

		res := submit(t, env)

		assert.Nil(t, res.Rule)
		assert.Empty(t, res.Tasks)
		assert.Equal(t, entity.JustificationPendingApproval, res.Justification.Status)
		assert.Equal(t, 1, env.notifier.count())
		assert.Len(t, env.notifier.withSubject(SubjectSubmitted), 1)
	})

	t.Run("estimate below threshold skips the rule", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		in := validInput()
		in.CostEstimate = floatPtr(999.99)

		res, err := env.engine.Submit(context.Background(), in)

		require.NoError(t, err)
		assert.Empty(t, res.Tasks)
	})

	t.Run("missing required fields are rejected before any write", func(t *testing.T) {
		cases := map[string]func(*SubmitInput){
			"title":       func(in *SubmitInput) { in.Title = "  " },
			"department":  func(in *SubmitInput) { in.Department = "" },
			"email":       func(in *SubmitInput) { in.RequesterEmail = "not-an-email" },
			"estimate":    func(in *SubmitInput) { in.CostEstimate = floatPtr(-1) },
			"description": func(in *SubmitInput) { in.Description = "" },
		}
		for name, mutate := range cases {
			t.Run(name, func(t *testing.T) {
				env := newTestEnv(t, engineeringCapexRule())
				in := validInput()
				mutate(&in)

				_, err := env.engine.Submit(context.Background(), in)

				assert.True(t, apperr.IsInvalidArgument(err), "got %v", err)
				assert.Empty(t, env.store.justifications)
				assert.Empty(t, env.audit.actions())
				assert.Zero(t, env.notifier.count())
			})
		}
	})

	t.Run("dynamic values are checked against a registered type", func(t *testing.T) {
		env := newTestEnv(t)
		env.store.types["CAPEX"] = &entity.JustificationType{
			Code: "CAPEX",
			Name: "Capital expenditure",
			DynamicFields: []entity.DynamicField{
				{Key: "asset_class", Required: true, Options: []string{"hardware", "software"}},
			},
		}

		in := validInput()
		_, err := env.engine.Submit(context.Background(), in)
		assert.True(t, apperr.IsInvalidArgument(err))

		in.DynamicValues = map[string]any{"asset_class": "hardware"}
		_, err = env.engine.Submit(context.Background(), in)
		assert.NoError(t, err)
	})

	t.Run("storage failure leaves no side effects", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		env.tx.commitErr = errors.New("disk full")

		_, err := env.engine.Submit(context.Background(), validInput())

		assert.Equal(t, apperr.KindInternal, apperr.KindOf(err))
		assert.Empty(t, env.audit.actions())
		assert.Zero(t, env.notifier.count())
	})
}

func TestApprove(t *testing.T) {
	t.Run("justification completes once every task is approved, in any order", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)
		ctx := context.Background()

		require.NoError(t, env.engine.Approve(ctx, res.Tasks[1].ID, "b@x.com", "fine"))
		assert.Equal(t, entity.JustificationPendingApproval, env.store.justification(res.Justification.ID).Status)
		assert.Empty(t, env.notifier.withSubject(SubjectFinalApproval))

		require.NoError(t, env.engine.Approve(ctx, res.Tasks[0].ID, "a@x.com", ""))

		j := env.store.justification(res.Justification.ID)
		assert.Equal(t, entity.JustificationApproved, j.Status)
		final := env.notifier.withSubject(SubjectFinalApproval)
		require.Len(t, final, 1)
		assert.Equal(t, []string{"req@x.com"}, final[0].recipients)
		assert.Equal(t, "Your justification 'New build servers' is approved.", final[0].body)
		assert.Equal(t, []string{entity.ActionCreate, entity.ActionApprove, entity.ActionApprove}, env.audit.actions())

		changes := env.dispatcher.ofType(event.TypeStatusChanged)
		require.Len(t, changes, 1)
		assert.Equal(t, string(entity.JustificationApproved), changes[0].GetPayloadString(event.PayloadTo))
	})

	t.Run("approving an approved task is a no-op", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)
		ctx := context.Background()

		require.NoError(t, env.engine.Approve(ctx, res.Tasks[0].ID, "a@x.com", ""))
		require.NoError(t, env.engine.Approve(ctx, res.Tasks[0].ID, "a@x.com", ""))

		assert.Equal(t, []string{entity.ActionCreate, entity.ActionApprove}, env.audit.actions())
	})

	t.Run("unknown task", func(t *testing.T) {
		env := newTestEnv(t)

		err := env.engine.Approve(context.Background(), "missing", "a@x.com", "")

		assert.True(t, apperr.IsNotFound(err))
	})

	t.Run("closed justification refuses approval", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)
		ctx := context.Background()
		require.NoError(t, env.engine.Reject(ctx, res.Tasks[0].ID, "a@x.com", "too expensive"))

		err := env.engine.Approve(ctx, res.Tasks[1].ID, "b@x.com", "")

		assert.True(t, apperr.IsConflict(err))
		assert.Equal(t, entity.TaskPending, env.store.tasksOf(res.Justification.ID)[1].Status)
	})

	t.Run("lost compare-and-set surfaces as conflict", func(t *testing.T) {
		rule := engineeringCapexRule()
		rule.ApproverEmails = []string{"a@x.com"}
		env := newTestEnv(t, rule)
		res := submit(t, env)
		env.store.updateStatusErr = port.ErrVersionConflict

		err := env.engine.Approve(context.Background(), res.Tasks[0].ID, "a@x.com", "")

		assert.True(t, apperr.IsConflict(err))
		assert.Empty(t, env.notifier.withSubject(SubjectFinalApproval))
	})

	t.Run("concurrent final approvals complete exactly once", func(t *testing.T) {
		for i := 0; i < 25; i++ {
			env := newTestEnv(t, engineeringCapexRule())
			res := submit(t, env)

			var wg sync.WaitGroup
			errs := make([]error, len(res.Tasks))
			for idx, task := range res.Tasks {
				wg.Add(1)
				go func(idx int, task *entity.ApprovalTask) {
					defer wg.Done()
					errs[idx] = env.engine.Approve(context.Background(), task.ID, task.ApproverEmail, "")
				}(idx, task)
			}
			wg.Wait()

			for _, err := range errs {
				require.NoError(t, err)
			}
			assert.Equal(t, entity.JustificationApproved, env.store.justification(res.Justification.ID).Status)
			assert.Len(t, env.notifier.withSubject(SubjectFinalApproval), 1)
			assert.Equal(t, 1, env.store.statusWrites)
		}
	})
}

func TestReject(t *testing.T) {
	t.Run("rejects the whole justification", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)

		require.NoError(t, env.engine.Reject(context.Background(), res.Tasks[1].ID, "b@x.com", "over budget"))

		assert.Equal(t, entity.JustificationRejected, env.store.justification(res.Justification.ID).Status)
		tasks := env.store.tasksOf(res.Justification.ID)
		assert.Equal(t, entity.TaskPending, tasks[0].Status)
		assert.Equal(t, entity.TaskRejected, tasks[1].Status)
		assert.Equal(t, "over budget", tasks[1].DecisionComment)

		rejected := env.notifier.withSubject(SubjectRejected)
		require.Len(t, rejected, 1)
		assert.Equal(t, "Your justification 'New build servers' was rejected. Reason: over budget", rejected[0].body)
		assert.Equal(t, entity.TemplateRejected, rejected[0].template)
		assert.Equal(t, "over budget", rejected[0].data.Reason)
		assert.Equal(t, "New build servers", rejected[0].data.Title)
		assert.Equal(t, []string{entity.ActionCreate, entity.ActionReject}, env.audit.actions())
	})

	t.Run("reason is required", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)

		err := env.engine.Reject(context.Background(), res.Tasks[0].ID, "a@x.com", "   ")

		assert.True(t, apperr.IsInvalidArgument(err))
		assert.Equal(t, entity.TaskPending, env.store.tasksOf(res.Justification.ID)[0].Status)
		assert.Equal(t, entity.JustificationPendingApproval, env.store.justification(res.Justification.ID).Status)
		assert.Equal(t, []string{entity.ActionCreate}, env.audit.actions())
	})

	t.Run("rejected justification stays rejected", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)
		ctx := context.Background()
		require.NoError(t, env.engine.Reject(ctx, res.Tasks[0].ID, "a@x.com", "no"))

		assert.True(t, apperr.IsConflict(env.engine.RequestInfo(ctx, res.Tasks[1].ID, "b@x.com", "why?")))
		assert.True(t, apperr.IsConflict(env.engine.Resubmit(ctx, res.Justification.ID, "req@x.com", "")))
		assert.NoError(t, env.engine.Reject(ctx, res.Tasks[0].ID, "a@x.com", "still no"))
		assert.Equal(t, entity.JustificationRejected, env.store.justification(res.Justification.ID).Status)
	})
}

func TestRequestInfoAndResubmit(t *testing.T) {
	env := newTestEnv(t, engineeringCapexRule())
	res := submit(t, env)
	ctx := context.Background()

	require.NoError(t, env.engine.Approve(ctx, res.Tasks[0].ID, "a@x.com", ""))

	t.Run("reason is required", func(t *testing.T) {
		err := env.engine.RequestInfo(ctx, res.Tasks[1].ID, "b@x.com", "")
		assert.True(t, apperr.IsInvalidArgument(err))
	})

	require.NoError(t, env.engine.RequestInfo(ctx, res.Tasks[1].ID, "b@x.com", "quote please"))

	assert.Equal(t, entity.JustificationNeedsMoreInfo, env.store.justification(res.Justification.ID).Status)
	tasks := env.store.tasksOf(res.Justification.ID)
	assert.Equal(t, entity.TaskApproved, tasks[0].Status)
	assert.Equal(t, entity.TaskNeedsMoreInfo, tasks[1].Status)
	assert.Equal(t, "quote please", tasks[1].MoreInfoReason)
	info := env.notifier.withSubject(SubjectMoreInfo)
	require.Len(t, info, 1)
	assert.Equal(t, "Approver requested more info: quote please", info[0].body)

	require.NoError(t, env.engine.Resubmit(ctx, res.Justification.ID, "req@x.com", "quote attached"))

	assert.Equal(t, entity.JustificationPendingApproval, env.store.justification(res.Justification.ID).Status)
	tasks = env.store.tasksOf(res.Justification.ID)
	assert.Equal(t, entity.TaskApproved, tasks[0].Status)
	assert.Equal(t, entity.TaskPending, tasks[1].Status)
	assert.Len(t, env.notifier.withSubject(SubjectResubmitted), 1)

	require.NoError(t, env.engine.Approve(ctx, res.Tasks[1].ID, "b@x.com", ""))
	assert.Equal(t, entity.JustificationApproved, env.store.justification(res.Justification.ID).Status)

	assert.Equal(t, []string{
		entity.ActionCreate,
		entity.ActionApprove,
		entity.ActionRequestInfo,
		entity.ActionResubmit,
		entity.ActionApprove,
	}, env.audit.actions())
}

func TestResubmit_RequiresNeedsMoreInfo(t *testing.T) {
	env := newTestEnv(t, engineeringCapexRule())
	res := submit(t, env)

	err := env.engine.Resubmit(context.Background(), res.Justification.ID, "req@x.com", "")
	assert.True(t, apperr.IsConflict(err))

	err = env.engine.Resubmit(context.Background(), "missing", "req@x.com", "")
	assert.True(t, apperr.IsNotFound(err))
}

func TestCancel(t *testing.T) {
	t.Run("only the requester may cancel", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)

		err := env.engine.Cancel(context.Background(), res.Justification.ID, "a@x.com", "")

		assert.True(t, apperr.IsConflict(err))
		assert.Equal(t, entity.JustificationPendingApproval, env.store.justification(res.Justification.ID).Status)
	})

	t.Run("cancels open tasks and tells waiting approvers", func(t *testing.T) {
		env := newTestEnv(t, engineeringCapexRule())
		res := submit(t, env)
		ctx := context.Background()
		require.NoError(t, env.engine.Approve(ctx, res.Tasks[0].ID, "a@x.com", ""))

		require.NoError(t, env.engine.Cancel(ctx, res.Justification.ID, "REQ@x.com", "no longer needed"))

		assert.Equal(t, entity.JustificationCancelled, env.store.justification(res.Justification.ID).Status)
		tasks := env.store.tasksOf(res.Justification.ID)
		assert.Equal(t, entity.TaskApproved, tasks[0].Status)
		assert.Equal(t, entity.TaskCancelled, tasks[1].Status)

		cancelled := env.notifier.withSubject(SubjectCancelled)
		require.Len(t, cancelled, 1)
		assert.Equal(t, []string{"b@x.com"}, cancelled[0].recipients)

		err := env.engine.Cancel(ctx, res.Justification.ID, "req@x.com", "")
		assert.True(t, apperr.IsConflict(err))
	})
}

func TestAddComment(t *testing.T) {
	env := newTestEnv(t)
	res := submit(t, env)
	ctx := context.Background()

	c, err := env.engine.AddComment(ctx, res.Justification.ID, "a@x.com", " looks fine ", true)
	require.NoError(t, err)
	assert.Equal(t, "looks fine", c.Message)
	assert.True(t, c.IsInternal)
	assert.Len(t, env.store.comments, 1)
	assert.Equal(t, []string{entity.ActionCreate, entity.ActionComment}, env.audit.actions())
	assert.Len(t, env.dispatcher.ofType(event.TypeCommentAdded), 1)

	_, err = env.engine.AddComment(ctx, "missing", "a@x.com", "hello", false)
	assert.True(t, apperr.IsNotFound(err))

	_, err = env.engine.AddComment(ctx, res.Justification.ID, "a@x.com", "", false)
	assert.True(t, apperr.IsInvalidArgument(err))
}
