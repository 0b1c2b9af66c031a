package deploy_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flo-mic/osbctl/internal/api"
	"github.com/flo-mic/osbctl/internal/config"
	"github.com/flo-mic/osbctl/internal/connection"
	"github.com/flo-mic/osbctl/internal/deploy"
	"github.com/flo-mic/osbctl/internal/inventory"
	"github.com/flo-mic/osbctl/internal/journal"
	"github.com/flo-mic/osbctl/internal/sbtest"
)

var dev1 = config.EnvironmentProfile{Name: "DEV1", Endpoint: "http://dev1:7001"}

type fixture struct {
	rt       *sbtest.Runtime
	mgr      *connection.Manager
	resolver *inventory.Resolver
	exec     *deploy.Executor
	journal  *journal.Store
}

func newFixture(t *testing.T, rt *sbtest.Runtime, connected bool) *fixture {
	t.Helper()
	mgr := connection.NewManager(&sbtest.Dialer{Runtimes: map[string]*sbtest.Runtime{"DEV1": rt, "QA1": sbtest.NewRuntime()}}, nil)
	if connected {
		require.NoError(t, mgr.SwitchEnvironment(context.Background(), dev1))
	}
	store, err := journal.Open(filepath.Join(t.TempDir(), "journal.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return &fixture{
		rt:       rt,
		mgr:      mgr,
		resolver: inventory.NewResolver(mgr, nil),
		exec:     deploy.NewExecutor(mgr, store, nil),
		journal:  store,
	}
}

func toggleRuntime() *sbtest.Runtime {
	return sbtest.NewRuntime().
		AddService(api.Service{Path: "p1/f1/svc1"}).
		AddService(api.Service{Path: "p1/f1/on", Enabled: true, MonitoringEnabled: true}).
		AddService(api.Service{Kind: api.KindBusiness, Path: "p1/f1/backend"})
}

func undeployRuntime() *sbtest.Runtime {
	return sbtest.NewRuntime().
		AddService(api.Service{Kind: api.KindProxy, Path: "p1/proxy/OrderPS", WorkManager: "WM2"}).
		AddService(api.Service{Kind: api.KindProxy, Path: "p1/proxy/SharedPS", WorkManager: "WM1"}).
		AddService(api.Service{Kind: api.KindBusiness, Path: "p1/business/OrderBS", URI: "jms://h:7001/cf/jms.OrderQueue"}).
		AddService(api.Service{Kind: api.KindProxy, Path: "p2/proxy/OtherPS", WorkManager: "WM1"}).
		AddService(api.Service{Kind: api.KindBusiness, Path: "p3/business/InvoiceBS", URI: "jms://h:7001/cf/jms.InvoiceQueue"}).
		AddProject("p4").
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "OrderQueue", ErrorDestination: "OrderQueue_DMQ"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "OrderQueue_DMQ"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "InvoiceQueue", Kind: api.DestinationDistributed, ErrorDestination: "Shared_DMQ"}).
		AddDestination(api.JMSDestination{Module: "AuditModule", Name: "AuditQueue", ErrorDestination: "Shared_DMQ"}).
		AddDestination(api.JMSDestination{Module: "AuditModule", Name: "Shared_DMQ"}).
		AddWorkManager(api.WorkManager{Name: "WM2", MaxThreadsConstraint: "WM2Max", MinThreadsConstraint: "SharedMin"}).
		AddWorkManager(api.WorkManager{Name: "WM1", MinThreadsConstraint: "SharedMin"})
}

func TestSetServiceEnabled_MissingPathDoesNotAbort(t *testing.T) {
	f := newFixture(t, toggleRuntime(), true)
	ctx := context.Background()

	res, err := f.exec.SetServiceEnabled(ctx, []string{"p1/f1/svc1", "p1/f1/svc2"}, true)
	require.NoError(t, err)
	require.Len(t, res, 2)

	assert.True(t, res["p1/f1/svc1"].OK())
	assert.Equal(t, deploy.Changed, res["p1/f1/svc1"].Status)
	assert.Equal(t, "Enabled", res["p1/f1/svc1"].String())

	assert.False(t, res["p1/f1/svc2"].OK())
	assert.ErrorIs(t, res["p1/f1/svc2"].Err, api.ErrNotFound)
	assert.Equal(t, 1, res.Failed())

	svc, _ := f.rt.Service("p1/f1/svc1")
	assert.True(t, svc.Enabled)
	assert.Len(t, f.rt.Activations(), 1)

	entries, err := f.journal.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}

func TestSetServiceEnabled_AlreadyInState(t *testing.T) {
	f := newFixture(t, toggleRuntime(), true)
	ctx := context.Background()

	res, err := f.exec.SetServiceEnabled(ctx, []string{"p1/f1/on"}, true)
	require.NoError(t, err)
	assert.Equal(t, deploy.Unchanged, res["p1/f1/on"].Status)
	assert.Equal(t, "Enabled*", res["p1/f1/on"].String())

	res, err = f.exec.SetServiceEnabled(ctx, []string{"p1/f1/svc1"}, false)
	require.NoError(t, err)
	assert.Equal(t, "Disabled*", res["p1/f1/svc1"].String())

	assert.Empty(t, f.rt.Activations(), "nothing changed, so nothing is activated")
	open, err := f.rt.ListChangeSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open, "unused sessions are discarded")
}

func TestSetServiceEnabled_InvalidAndDuplicatePaths(t *testing.T) {
	f := newFixture(t, toggleRuntime(), true)

	res, err := f.exec.SetServiceEnabled(context.Background(), []string{"p1", "p1/f1/svc1", " p1/f1/svc1", "p1//x", "p1/f1/backend"}, true)
	require.NoError(t, err)
	assert.Len(t, res, 4)
	assert.ErrorIs(t, res["p1"].Err, deploy.ErrInvalidPath)
	assert.ErrorIs(t, res["p1//x"].Err, deploy.ErrInvalidPath)
	assert.ErrorIs(t, res["p1/f1/backend"].Err, api.ErrNotFound, "business services cannot be toggled")
	assert.True(t, res["p1/f1/svc1"].OK())
	assert.Equal(t, []string{"p1", "p1//x", "p1/f1/backend", "p1/f1/svc1"}, res.Paths())
}

func TestSetServiceEnabled_ActivationFailure(t *testing.T) {
	rt := toggleRuntime().FailOn("activate-session", errors.New("conflicting session"))
	f := newFixture(t, rt, true)
	ctx := context.Background()

	res, err := f.exec.SetServiceEnabled(ctx, []string{"p1/f1/svc1", "p1/f1/on"}, true)
	require.NoError(t, err)
	assert.False(t, res["p1/f1/svc1"].OK())
	assert.Contains(t, res["p1/f1/svc1"].Err.Error(), "conflicting session")
	assert.True(t, res["p1/f1/on"].OK(), "unchanged paths are unaffected")

	svc, _ := rt.Service("p1/f1/svc1")
	assert.False(t, svc.Enabled)
	open, err := rt.ListChangeSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestSetMonitoringEnabled(t *testing.T) {
	f := newFixture(t, toggleRuntime(), true)

	res, err := f.exec.SetMonitoringEnabled(context.Background(), []string{"p1/f1/on", "p1/f1/svc1"}, false)
	require.NoError(t, err)
	assert.Equal(t, "Disabled", res["p1/f1/on"].String())
	assert.Equal(t, "Disabled*", res["p1/f1/svc1"].String())

	svc, _ := f.rt.Service("p1/f1/on")
	assert.False(t, svc.MonitoringEnabled)
	assert.True(t, svc.Enabled, "monitoring is independent of the enabled flag")
}

func TestExecutor_NotConnected(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, false)
	ctx := context.Background()

	_, err := f.exec.SetServiceEnabled(ctx, []string{"p1/proxy/OrderPS"}, false)
	assert.ErrorIs(t, err, connection.ErrNotConnected)
	_, err = f.exec.SetMonitoringEnabled(ctx, []string{"p1/proxy/OrderPS"}, false)
	assert.ErrorIs(t, err, connection.ErrNotConnected)
	_, err = f.exec.Undeploy(ctx, &inventory.Plan{Project: "p1", QueuesToRemove: []string{"OrderQueue"}})
	assert.ErrorIs(t, err, connection.ErrNotConnected)

	assert.Zero(t, rt.Calls())
}

func TestUndeploy_RemovesExclusiveResources(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p1")
	require.NoError(t, err)
	assert.Equal(t, []string{"WM2"}, plan.WorkManagersToRemove)
	assert.Equal(t, []string{"OrderQueue"}, plan.QueuesToRemove)
	assert.Equal(t, []inventory.Dependent{
		{Kind: inventory.ResourceErrorDestination, Name: "OrderQueue_DMQ", UsedBy: []string{"OrderQueue"}},
	}, plan.ErrorDestinationsToRemove)
	assert.Equal(t, []inventory.Dependent{
		{Kind: inventory.ResourceMaxConstraint, Name: "WM2Max", UsedBy: []string{"WM2"}},
	}, plan.ConstraintsToRemove)
	assert.Contains(t, plan.Shared, inventory.SharedResource{
		Kind: inventory.ResourceMinConstraint, Name: "SharedMin", Owners: []string{"work manager WM1"},
	})

	res, err := f.exec.Undeploy(ctx, plan)
	require.NoError(t, err)
	assert.Equal(t, "DEV1", res.Environment)

	var got []string
	for _, o := range res.Outcomes {
		got = append(got, o.Label()+": "+string(o.Status))
	}
	assert.Equal(t, []string{
		"project p1: Removed",
		"queue OrderQueue: Removed",
		"error destination OrderQueue_DMQ: Removed",
		"work manager WM2: Removed",
		"max threads constraint WM2Max: Removed",
	}, got)

	assert.False(t, rt.HasProject("p1"))
	assert.True(t, rt.HasProject("p2"))
	assert.False(t, rt.HasDestination("OrderQueue"))
	assert.False(t, rt.HasDestination("OrderQueue_DMQ"))
	assert.False(t, rt.HasWorkManager("WM2"))
	assert.True(t, rt.HasWorkManager("WM1"))
	assert.False(t, rt.HasConstraint(api.MaxThreads, "WM2Max"))
	assert.True(t, rt.HasConstraint(api.MinThreads, "SharedMin"))

	entries, err := f.journal.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, len(res.Outcomes))
}

func TestUndeploy_KeepsSharedErrorDestination(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p3")
	require.NoError(t, err)
	assert.Empty(t, plan.ErrorDestinationsToRemove)
	assert.Equal(t, []inventory.SharedResource{
		{Kind: inventory.ResourceErrorDestination, Name: "Shared_DMQ", Owners: []string{"queue AuditQueue"}},
	}, plan.Shared)

	res, err := f.exec.Undeploy(ctx, plan)
	require.NoError(t, err)

	require.Len(t, res.Outcomes, 2)
	assert.Equal(t, deploy.Outcome{Kind: "queue", Name: "InvoiceQueue", Status: deploy.Removed}, res.Outcomes[1])
	assert.False(t, rt.HasDestination("InvoiceQueue"))
	assert.True(t, rt.HasDestination("Shared_DMQ"))
}

func TestUndeploy_EmptyPlan(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p4")
	require.NoError(t, err)
	require.True(t, plan.Empty())

	res, err := f.exec.Undeploy(ctx, plan)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 1)
	assert.Equal(t, deploy.Removed, res.Outcomes[0].Status)
	assert.False(t, rt.HasProject("p4"))
	assert.False(t, rt.Editing())
}

func TestUndeploy_PartialFailure(t *testing.T) {
	rt := undeployRuntime().FailOn("delete-destination:OrderQueue", errors.New("destination in use"))
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p1")
	require.NoError(t, err)
	res, err := f.exec.Undeploy(ctx, plan)

	var partial *deploy.PartialUndeployError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, "p1", partial.Project)
	assert.Equal(t, []string{"queue OrderQueue"}, partial.Failed)
	assert.Equal(t, []string{"work manager WM2", "max threads constraint WM2Max"}, partial.Removed)

	require.NotNil(t, res)
	assert.Contains(t, res.Outcomes[1].Err.Error(), "destination in use")
	assert.Equal(t, deploy.Kept, res.Outcomes[2].Status, "the error destination of a queue that stays is kept")
	assert.Equal(t, "error destination OrderQueue_DMQ", res.Outcomes[2].Label())
	assert.False(t, rt.HasProject("p1"), "project removal is not rolled back")
	assert.True(t, rt.HasDestination("OrderQueue"))
	assert.True(t, rt.HasDestination("OrderQueue_DMQ"))
	assert.False(t, rt.HasWorkManager("WM2"), "later steps still run")
	assert.False(t, rt.Editing(), "failed edit is cancelled")
}

func TestUndeploy_ProjectRemovalFailureTouchesNothing(t *testing.T) {
	rt := undeployRuntime().FailOn("delete-project:p1", errors.New("locked"))
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p1")
	require.NoError(t, err)
	_, err = f.exec.Undeploy(ctx, plan)
	require.Error(t, err)

	var partial *deploy.PartialUndeployError
	assert.False(t, errors.As(err, &partial))
	assert.True(t, rt.HasProject("p1"))
	assert.True(t, rt.HasDestination("OrderQueue"))
	assert.True(t, rt.HasWorkManager("WM2"))
	open, err := rt.ListChangeSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, open)
}

func TestUndeploy_ResourceAlreadyGone(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)

	plan := &inventory.Plan{Project: "p4", QueuesToRemove: []string{"Ghost"}, WorkManagersToRemove: []string{"GhostWM"}}
	res, err := f.exec.Undeploy(context.Background(), plan)
	require.NoError(t, err)
	require.Len(t, res.Outcomes, 3)
	assert.Equal(t, deploy.NotFound, res.Outcomes[1].Status)
	assert.Equal(t, deploy.NotFound, res.Outcomes[2].Status)
}

func TestUndeploy_StalePlan(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p1")
	require.NoError(t, err)
	require.NoError(t, f.mgr.SwitchEnvironment(ctx, config.EnvironmentProfile{Name: "QA1"}))

	_, err = f.exec.Undeploy(ctx, plan)
	assert.ErrorIs(t, err, deploy.ErrStalePlan)
}

func TestUndeploy_KeepsErrorDestinationReadByOtherProject(t *testing.T) {
	rt := sbtest.NewRuntime().
		AddService(api.Service{Kind: api.KindBusiness, Path: "orders/business/OrderBS", URI: "jms://h:7001/cf/jms.OrderQueue"}).
		AddService(api.Service{Kind: api.KindProxy, Path: "errors/proxy/DeadLetterPS", URI: "jms://h:7001/cf/jms.OrderQueue_DMQ"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "OrderQueue", ErrorDestination: "OrderQueue_DMQ"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "OrderQueue_DMQ"})
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "orders")
	require.NoError(t, err)
	assert.Equal(t, []string{"OrderQueue"}, plan.QueuesToRemove)
	assert.Empty(t, plan.ErrorDestinationsToRemove)
	assert.Equal(t, []inventory.SharedResource{
		{Kind: inventory.ResourceErrorDestination, Name: "OrderQueue_DMQ", Owners: []string{"errors"}},
	}, plan.Shared)

	res, err := f.exec.Undeploy(ctx, plan)
	require.NoError(t, err)
	for _, o := range res.Outcomes {
		assert.NotEqual(t, "OrderQueue_DMQ", o.Name)
	}
	assert.False(t, rt.HasDestination("OrderQueue"))
	assert.True(t, rt.HasDestination("OrderQueue_DMQ"), "project errors still reads it")
}

func TestUndeploy_KeepsQueueThatIsAnotherErrorDestination(t *testing.T) {
	rt := sbtest.NewRuntime().
		AddService(api.Service{Kind: api.KindBusiness, Path: "audit/business/AuditBS", URI: "jms://h:7001/cf/jms.AuditQueue"}).
		AddService(api.Service{Kind: api.KindBusiness, Path: "billing/business/InvoiceBS", URI: "jms://h:7001/cf/jms.InvoiceQueue"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "AuditQueue"}).
		AddDestination(api.JMSDestination{Module: "OSBModule", Name: "InvoiceQueue", ErrorDestination: "AuditQueue"})
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "audit")
	require.NoError(t, err)
	assert.Empty(t, plan.QueuesToRemove)
	assert.Equal(t, []inventory.SharedResource{
		{Kind: inventory.ResourceQueue, Name: "AuditQueue", Owners: []string{"queue InvoiceQueue"}},
	}, plan.Shared)

	_, err = f.exec.Undeploy(ctx, plan)
	require.NoError(t, err)
	assert.True(t, rt.HasDestination("AuditQueue"))
}

func TestUndeploy_ConstraintKeptWhenWorkManagerFails(t *testing.T) {
	rt := undeployRuntime().FailOn("delete-workmanager:WM2", errors.New("in use"))
	f := newFixture(t, rt, true)
	ctx := context.Background()

	plan, err := f.resolver.PlanUndeploy(ctx, "p1")
	require.NoError(t, err)
	res, err := f.exec.Undeploy(ctx, plan)

	var partial *deploy.PartialUndeployError
	require.ErrorAs(t, err, &partial)
	assert.Equal(t, []string{"work manager WM2"}, partial.Failed)
	last := res.Outcomes[len(res.Outcomes)-1]
	assert.Equal(t, "max threads constraint WM2Max", last.Label())
	assert.Equal(t, deploy.Kept, last.Status)
	assert.True(t, rt.HasConstraint(api.MaxThreads, "WM2Max"))
}

func TestUndeploy_ExecutesOnlyThePlan(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)

	// a hand-made plan without dependents leaves error destinations and constraints alone
	plan := &inventory.Plan{Project: "p1", QueuesToRemove: []string{"OrderQueue"}, WorkManagersToRemove: []string{"WM2"}}
	res, err := f.exec.Undeploy(context.Background(), plan)
	require.NoError(t, err)
	assert.Len(t, res.Outcomes, 3)
	assert.True(t, rt.HasDestination("OrderQueue_DMQ"))
	assert.True(t, rt.HasConstraint(api.MaxThreads, "WM2Max"))
}

func TestUndeploy_NilPlan(t *testing.T) {
	rt := undeployRuntime()
	f := newFixture(t, rt, true)
	calls := rt.Calls()

	_, err := f.exec.Undeploy(context.Background(), nil)
	assert.ErrorIs(t, err, deploy.ErrNoPlan)
	assert.Equal(t, calls, rt.Calls())
}

func TestSetServiceEnabled_SessionCreateFailure(t *testing.T) {
	rt := toggleRuntime().FailOn("create-session", errors.New("admin server busy"))
	f := newFixture(t, rt, true)
	ctx := context.Background()

	res, err := f.exec.SetServiceEnabled(ctx, []string{"p1/f1/svc1", "p1/f1/on", "p1/f1/svc1"}, true)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, 2, res.Failed())
	for _, p := range res.Paths() {
		assert.Contains(t, res[p].Err.Error(), "admin server busy", p)
	}

	entries, err := f.journal.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, entries, 2)
}
