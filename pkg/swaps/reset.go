package swaps

import (
	"context"
	"fmt"

	"wallet-swap/pkg/router"
)

// NavigateBackToBuildQuote drops the current cycle's results and returns
// the user to the build quote screen
func (c *Controller) NavigateBackToBuildQuote() {
	c.beginCycle()
	c.dispatch(NavigatedBackToBuildQuote{})
	c.deps.Navigator.Navigate(router.BuildQuote)
}

// PrepareForRetryGetQuotes drops the current cycle's results so quotes can
// be fetched again from the same screen
func (c *Controller) PrepareForRetryGetQuotes() {
	c.beginCycle()
	c.dispatch(RetriedGetQuotes{})
}

// PrepareToLeaveSwaps stops polling, clears all swap state and removes the
// persisted background state. Calling it again is a no-op on the result.
func (c *Controller) PrepareToLeaveSwaps(ctx context.Context) error {
	c.poller.Stop()
	c.beginCycle()
	c.dispatch(CustomGasReset{})
	c.dispatch(SwapsStateCleared{})

	if err := c.deps.Store.Delete(ctx, BackgroundStateKey); err != nil {
		return fmt.Errorf("failed to clear swaps state: %w", err)
	}
	return nil
}
