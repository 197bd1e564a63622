package promotecmd

// FeatureGates exposes runtime feature toggles required by promotion command
// handlers. Callers supply closures reading module configuration so the
// handlers stay decoupled from configuration packages.
type FeatureGates struct {
	// PromotionEnabled should return true when cross-environment promotion is enabled.
	PromotionEnabled func() bool
}

func (g FeatureGates) promotionEnabled() bool {
	if g.PromotionEnabled == nil {
		return true
	}
	return g.PromotionEnabled()
}
