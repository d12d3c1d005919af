package dispatch

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ac "github.com/darkhz/blueapplet/api/appfeatures"
	"github.com/darkhz/blueapplet/api/bluetooth"
	"github.com/darkhz/blueapplet/plugin"
	"github.com/darkhz/blueapplet/plugins/recentconns"
)

// dialupPlugin claims serial services on the service connect point,
// the way the NetworkManager dialup bridge does.
type dialupPlugin struct {
	claims []bluetooth.ServiceInfo
}

func (p *dialupPlugin) Name() string { return ac.FeatureDUNBridge.Plugin() }

func (p *dialupPlugin) Description() string { return "dialup bridge" }

func (p *dialupPlugin) Unload() error { return nil }

func (p *dialupPlugin) Load(r *plugin.Registry) error {
	r.ServiceConnect.Add(p.Name(), func(svc bluetooth.Service, ok bluetooth.Reply, _ bluetooth.ErrorReply) bool {
		if _, isSerial := svc.(*bluetooth.SerialService); !isSerial {
			return false
		}

		p.claims = append(p.claims, svc.Info())
		ok()

		return true
	})

	return nil
}

func TestConnectThroughLoadedPlugins(t *testing.T) {
	sub, active := bluetooth.RecentConnectionEvents().Subscribe()
	require.True(t, active)
	defer sub.Unsubscribe()

	env := newTestEnv(t)
	dialup := &dialupPlugin{}

	manager := plugin.NewManager(plugin.NewRegistry(), zerolog.Nop())
	manager.Register(Core{}, recentconns.New(recentconns.DefaultLimit, zerolog.Nop()), dialup)

	caps := manager.LoadAll(nil)
	require.True(t, caps.Has(ac.FeatureDUNBridge, ac.FeatureRecentConns))

	dispatcher := New(env.dispatcher.backend, ManagerHost{Manager: manager}, zerolog.Nop())

	var result outcome
	require.NoError(t, dispatcher.Connect(bluetooth.Target{Path: devicePath, UUID: serialUUID}, result.ok, result.fail))

	assert.Equal(t, 1, result.oks)
	assert.Empty(t, result.errs)

	require.Len(t, dialup.claims, 1)
	assert.Equal(t, serialUUID, dialup.claims[0].UUID)
	assert.Zero(t, env.transport.serialConnects, "the bridge must take over the serial connection")

	select {
	case ev := <-sub.C:
		assert.Equal(t, bluetooth.Target{Path: devicePath, UUID: serialUUID}, ev.Data.Target)

	case <-time.After(time.Second):
		t.Fatal("recent connection was not recorded")
	}
}
