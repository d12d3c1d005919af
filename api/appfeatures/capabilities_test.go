package appfeatures

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromPlugins(t *testing.T) {
	features := FromPlugins([]string{"DBusService", "PPPSupport", "RecentConns"})

	set := NewFeatureSet(features, Errors{})
	assert.True(t, set.Has(FeaturePPPBridge))
	assert.True(t, set.Has(FeaturePPPBridge, FeatureRecentConns))
	assert.False(t, set.Has(FeatureDUNBridge))
	assert.False(t, set.Has(FeaturePPPBridge, FeatureDUNBridge))
	assert.False(t, set.Has())
	assert.Equal(t, FeatureNone, FeatureOf("DBusService"))
}

func TestFeaturesAdd(t *testing.T) {
	var features Features

	features.Add(FeaturePANBridge)
	assert.Equal(t, FeaturePANBridge, features)
	assert.Equal(t, "Personal area networking through NetworkManager", features.String())

	features.Add(FeatureDUNBridge)
	assert.Equal(t, "Dialup networking through NetworkManager, Personal area networking through NetworkManager", features.String())
}

func TestFeatureSetIsSnapshot(t *testing.T) {
	features := FromPlugins([]string{"NMDUNSupport"})
	set := NewFeatureSet(features, Errors{})

	features.Add(FeaturePPPBridge)
	assert.True(t, set.Has(FeatureDUNBridge))
	assert.False(t, set.Has(FeaturePPPBridge))

	var errs Errors
	errs.Append(NewError("PPPSupport", errors.New("pppd not found")))

	set = NewFeatureSet(features, errs)
	errs.Append(NewError("NMPANSupport", errors.New("NetworkManager is not running")))

	all, exists := set.Errors.Exists()
	require.True(t, exists)
	assert.Len(t, all, 1)
	assert.Contains(t, all, "PPPSupport")
}

func TestErrors(t *testing.T) {
	var errs Errors

	_, exists := errs.Exists()
	assert.False(t, exists)

	cause := errors.New("pppd not found")
	errs.Append(NewError("PPPSupport", cause))

	all, exists := errs.Exists()
	require.True(t, exists)

	perr := all["PPPSupport"]
	assert.ErrorIs(t, &perr, cause)
	assert.Contains(t, perr.Error(), "PPPSupport")
}
