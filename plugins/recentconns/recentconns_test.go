package recentconns

import (
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darkhz/blueapplet/api/bluetooth"
)

func TestNotify(t *testing.T) {
	r := New(3, zerolog.Nop())
	nap := bluetooth.ServiceClassUUID(bluetooth.NapServiceClass)

	r.Notify("/dev_a", uuid.Nil)
	r.Notify("/dev_b", nap)
	r.Notify("/dev_c", uuid.Nil)
	r.Notify("/dev_a", uuid.Nil)

	assert.Equal(t, []bluetooth.Target{
		{Path: "/dev_a"},
		{Path: "/dev_c"},
		{Path: "/dev_b", UUID: nap},
	}, r.items)

	r.Notify("/dev_d", uuid.Nil)
	items := r.items
	require.Len(t, items, 3)
	assert.Equal(t, "/dev_d", items[0].Path)
	assert.Equal(t, "/dev_c", items[2].Path)

	require.NoError(t, r.Unload())
	assert.Empty(t, r.items)
}

func TestDefaultLimit(t *testing.T) {
	r := New(0, zerolog.Nop())

	for i := range DefaultLimit + 2 {
		r.Notify("/dev", bluetooth.ServiceClassUUID(uint16(0x1100+i)))
	}

	assert.Len(t, r.items, DefaultLimit)
	assert.Equal(t, Name, r.Name())
}
