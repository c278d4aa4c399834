package component

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/components/internal/ir"
	"github.com/roach88/components/internal/rpc"
	"github.com/roach88/components/internal/store"
	"github.com/roach88/components/internal/testutil"
)

func apiConfig() Config {
	return Config{
		Identity: ir.Identity{
			Org: "acme", App: "shop", Name: "api",
			ComponentName: "compute", ComponentVersion: "2.0.0",
		},
		AccessKey:   "key",
		Credentials: ir.Credentials{"aws": {"region": "us-east-1"}},
	}
}

func TestNew_Defaults(t *testing.T) {
	rt, err := New(apiConfig())
	require.NoError(t, err)

	assert.Equal(t, "dev", rt.Identity().Stage)
	assert.Equal(t, ir.IRObject{}, rt.State())
	assert.False(t, rt.DebugMode())
}

func TestNew_RequiredFields(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		code   ErrorCode
	}{
		{"name", func(c *Config) { c.Name = "" }, ErrCodeMissingComponentName},
		{"org", func(c *Config) { c.Org = "" }, ErrCodeMissingOrg},
		{"app", func(c *Config) { c.App = "" }, ErrCodeMissingApp},
		{"access key", func(c *Config) { c.AccessKey = "" }, ErrCodeMissingAccessKey},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := apiConfig()
			tt.mutate(&cfg)

			_, err := New(cfg)
			require.Error(t, err)
			assert.True(t, IsConstructionError(err, tt.code), "got %v", err)
			assert.Equal(t, string(tt.code), ir.ErrorPayloadFrom(err).Name)
		})
	}
}

func TestNew_RelaxedModeNeedsOnlyName(t *testing.T) {
	_, err := New(Config{Identity: ir.Identity{Name: "site"}, Mode: ModeRelaxed})
	require.NoError(t, err)

	_, err = New(Config{Mode: ModeRelaxed})
	assert.True(t, IsConstructionError(err, ErrCodeMissingComponentName))
}

func TestRuntime_TelemetryGating(t *testing.T) {
	live := &ir.Socket{ConnectionID: "conn-1"}
	tests := []struct {
		name      string
		socket    *ir.Socket
		debugMode bool
		want      []ir.EventKind
	}{
		{"no channel", nil, true, nil},
		{"channel without connection id", &ir.Socket{DomainName: "x"}, true, nil},
		{"channel without debug mode", live, false, []ir.EventKind{ir.EventStatus}},
		{"channel in debug mode", live, true, []ir.EventKind{ir.EventDebug, ir.EventLog, ir.EventStatus}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := &testutil.RecordingSender{}
			cfg := apiConfig()
			cfg.Socket = tt.socket
			cfg.DebugMode = tt.debugMode
			rt, err := New(cfg, WithSender(rec))
			require.NoError(t, err)

			ctx := context.Background()
			require.NoError(t, rt.Debug(ctx, "d"))
			require.NoError(t, rt.Log(ctx, "l"))
			require.NoError(t, rt.Status(ctx, "s"))

			var got []ir.EventKind
			for _, ev := range rec.Events() {
				got = append(got, ev.Kind)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestRuntime_EventsCarryIdentityInOrder(t *testing.T) {
	rec := &testutil.RecordingSender{}
	cfg := apiConfig()
	cfg.Socket = &ir.Socket{ConnectionID: "conn-1"}
	cfg.DebugMode = true
	rt, err := New(cfg, WithSender(rec), WithSequencer(testutil.NewDeterministicClock()))
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, rt.Status(ctx, "Deploying"))
	require.NoError(t, rt.Log(ctx, "created bucket"))

	events := rec.Events()
	require.Len(t, events, 2)
	assert.Equal(t, int64(1), events[0].Seq)
	assert.Equal(t, int64(2), events[1].Seq)
	assert.Equal(t, "Deploying", events[0].Data)
	assert.Equal(t, rt.Identity(), events[0].Identity)
	assert.Equal(t, "key", events[0].AccessKey)
	assert.Equal(t, "conn-1", events[0].Socket.ConnectionID)
}

func TestRuntime_SendFailurePropagates(t *testing.T) {
	rec := &testutil.RecordingSender{Err: errors.New("channel closed")}
	cfg := apiConfig()
	cfg.Socket = &ir.Socket{ConnectionID: "conn-1"}
	rt, err := New(cfg, WithSender(rec))
	require.NoError(t, err)

	err = rt.Status(context.Background(), "x")
	assert.ErrorIs(t, err, rec.Err)
}

func TestRuntime_Save(t *testing.T) {
	states := store.NewMemory()
	rt, err := New(apiConfig(), WithStateStore(states))
	require.NoError(t, err)

	rt.State()["arn"] = ir.IRString("arn:aws:lambda:fn")
	require.NoError(t, rt.Save(context.Background()))

	got, err := states.ReadState(context.Background(), rt.Identity())
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"arn": ir.IRString("arn:aws:lambda:fn")}, got)
}

func TestRuntime_SaveWithoutStore(t *testing.T) {
	rt, err := New(apiConfig())
	require.NoError(t, err)
	assert.ErrorIs(t, rt.Save(context.Background()), ErrNoStateStore)
}

func TestRuntime_SaveFailurePropagates(t *testing.T) {
	states := store.NewMemory()
	rt, err := New(apiConfig(), WithStateStore(states))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, rt.Save(ctx), context.Canceled)
}

func TestRuntime_LoadDerivesChild(t *testing.T) {
	var got ir.Invocation
	d := rpc.DispatcherFunc(func(ctx context.Context, inv ir.Invocation) (ir.IRObject, error) {
		got = inv
		return ir.IRObject{"ok": ir.IRBool(true)}, nil
	})
	cfg := apiConfig()
	cfg.Stage = "prod"
	cfg.DebugMode = true
	cfg.Socket = &ir.Socket{ConnectionID: "conn-1"}
	rt, err := New(cfg, WithDispatcher(d))
	require.NoError(t, err)

	db, err := rt.Load("comp@1.0.0", "db")
	require.NoError(t, err)

	id := db.Identity()
	assert.Equal(t, "api.db", id.Name)
	assert.Equal(t, "comp", id.ComponentName)
	assert.Equal(t, "1.0.0", id.ComponentVersion)
	assert.Equal(t, "acme", id.Org)
	assert.Equal(t, "shop", id.App)
	assert.Equal(t, "prod", id.Stage)

	out, err := db.Invoke(context.Background(), "deploy", ir.IRObject{"name": ir.IRString("orders")})
	require.NoError(t, err)
	assert.Equal(t, ir.IRObject{"ok": ir.IRBool(true)}, out)
	assert.Equal(t, "deploy", got.Method)
	assert.Equal(t, "key", got.AccessKey)
	assert.True(t, got.DebugMode)
	assert.Equal(t, "conn-1", got.Socket.ConnectionID)
	assert.Equal(t, cfg.Credentials, got.Credentials)
}

func TestRuntime_LoadDefaultsVersion(t *testing.T) {
	rt, err := New(apiConfig())
	require.NoError(t, err)

	h, err := rt.Load("storage", "files")
	require.NoError(t, err)
	assert.Equal(t, "storage@dev", h.Identity().Ref().String())
	assert.Equal(t, "api.files", h.Identity().Name)
}

func TestRuntime_LoadNested(t *testing.T) {
	rt, err := New(Config{
		Identity: ir.Identity{Name: "api.db", ComponentName: "database"},
		Mode:     ModeRelaxed,
	})
	require.NoError(t, err)

	h, err := rt.Load("table", "users")
	require.NoError(t, err)
	assert.Equal(t, "api.db.users", h.Identity().Name)
}

func TestRuntime_LoadErrors(t *testing.T) {
	rt, err := New(apiConfig())
	require.NoError(t, err)

	_, err = rt.Load("a@b@c", "x")
	var refErr *ir.RefError
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, ir.ErrCodeInvalidComponentReference, refErr.Code)
	assert.Contains(t, err.Error(), "a@b@c")

	_, err = rt.Load("comp", "")
	require.True(t, errors.As(err, &refErr))
	assert.Equal(t, ir.ErrCodeMissingComponentAlias, refErr.Code)
	assert.Contains(t, err.Error(), "comp")
}

func TestRuntime_LoadWithoutDispatcher(t *testing.T) {
	rt, err := New(apiConfig())
	require.NoError(t, err)

	h, err := rt.Load("comp", "db")
	require.NoError(t, err)
	_, err = h.Invoke(context.Background(), "deploy", nil)
	assert.ErrorIs(t, err, rpc.ErrNoDispatcher)
}
