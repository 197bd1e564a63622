package publishcmd

// FeatureGates exposes runtime feature toggles required by publish command
// handlers. Callers supply closures reading module configuration so the
// handlers stay decoupled from configuration packages.
type FeatureGates struct {
	// PublishingEnabled should return true when bulk publish workflows are enabled.
	PublishingEnabled func() bool
}

func (g FeatureGates) publishingEnabled() bool {
	if g.PublishingEnabled == nil {
		return true
	}
	return g.PublishingEnabled()
}
