package appfeatures

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// Features describes the optional extensions that are currently loaded.
type Features uint

// The different kinds of individual features.
const (
	FeatureNone      Features = 0 // The zero value for this type.
	FeatureDUNBridge Features = 1 << iota
	FeaturePPPBridge
	FeatureRecentConns
	FeaturePANBridge
)

// FeatureMap holds a list of descriptions for each feature.
var FeatureMap = map[Features]string{
	FeatureDUNBridge:   "Dialup networking through NetworkManager",
	FeaturePPPBridge:   "Dialup networking through pppd",
	FeatureRecentConns: "Recent connections",
	FeaturePANBridge:   "Personal area networking through NetworkManager",
}

// pluginFeatures maps the name of an optional plugin to the feature it provides.
var pluginFeatures = map[string]Features{
	"NMDUNSupport": FeatureDUNBridge,
	"PPPSupport":   FeaturePPPBridge,
	"RecentConns":  FeatureRecentConns,
	"NMPANSupport": FeaturePANBridge,
}

// FeatureOf returns the feature that a plugin provides.
func FeatureOf(plugin string) Features {
	return pluginFeatures[plugin]
}

// Plugin returns the name of the plugin that provides a single feature.
func (c Features) Plugin() string {
	for name, feature := range pluginFeatures {
		if feature == c {
			return name
		}
	}

	return ""
}

// FromPlugins returns the features provided by a list of loaded plugins.
func FromPlugins(plugins []string) Features {
	var features Features

	for _, name := range plugins {
		features.Add(FeatureOf(name))
	}

	return features
}

// Add adds the provided features to the existing features.
func (c *Features) Add(features ...Features) {
	for _, f := range features {
		*c |= f
	}
}

// String converts a set of features to a comma-separated string of
// their respective descriptions.
func (c Features) String() string {
	s := make([]string, 0, len(FeatureMap))

	for feature, title := range FeatureMap {
		if c&feature != 0 {
			s = append(s, title)
		}
	}
	slices.Sort(s)

	return strings.Join(s, ", ")
}

// FeatureSet holds the features of the currently loaded plugins, and the
// errors of plugins that failed to load. A FeatureSet is a value, and is
// not affected by plugins loaded or unloaded after it was taken.
type FeatureSet struct {
	Supported Features
	Errors    Errors
}

// NewFeatureSet returns a new set (of features).
func NewFeatureSet(features Features, errors Errors) FeatureSet {
	return FeatureSet{
		Supported: features,
		Errors:    Errors{errors: maps.Clone(errors.errors)},
	}
}

// Has returns if the feature set has all of the provided features.
func (c FeatureSet) Has(compare ...Features) bool {
	if len(compare) == 0 {
		return false
	}

	for _, toCompare := range compare {
		if toCompare == FeatureNone || c.Supported&toCompare != toCompare {
			return false
		}
	}

	return true
}

// Error describes an error which occurred while loading the plugin
// providing a feature.
type Error struct {
	Plugin       string
	PluginErrors error
}

// Errors holds a list of plugin load errors.
type Errors struct {
	errors map[string]Error
}

// NewError returns a plugin-based Error.
func NewError(plugin string, err error) *Error {
	return &Error{
		Plugin:       plugin,
		PluginErrors: err,
	}
}

// Append appends a single plugin error to the error list.
func (c *Errors) Append(e *Error) {
	if c.errors == nil {
		c.errors = make(map[string]Error)
	}

	c.errors[e.Plugin] = *e
}

// Exists checks and returns all plugin based errors.
func (c Errors) Exists() (map[string]Error, bool) {
	return c.errors, len(c.errors) > 0
}

// Error returns a text representation of the plugin error.
func (c *Error) Error() string {
	return fmt.Sprintf(
		"Plugin '%s' cannot be loaded: %s",
		c.Plugin, c.PluginErrors,
	)
}

// Unwrap returns the underlying load error.
func (c *Error) Unwrap() error {
	return c.PluginErrors
}
