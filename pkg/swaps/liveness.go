package swaps

import (
	"context"

	"go.uber.org/zap"

	"wallet-swap/pkg/router"
)

// CheckLiveness asks the swaps service whether it is enabled and records
// the answer. Any failure counts as not live.
func (c *Controller) CheckLiveness(ctx context.Context) bool {
	live, err := c.deps.Liveness.FetchLiveness(ctx)
	if err != nil {
		c.logger.Error("failed to fetch swaps liveness, defaulting to false", zap.Error(err))
		live = false
	}
	c.dispatch(LivenessChecked{Live: live})
	return live
}

// gate runs the liveness check and sends the user to the maintenance
// screen when swaps are off
func (c *Controller) gate(ctx context.Context) bool {
	if c.CheckLiveness(ctx) {
		return true
	}
	c.deps.Navigator.Navigate(router.SwapsMaintenance)
	return false
}
