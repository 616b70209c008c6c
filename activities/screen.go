package activities

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"kiosk-age-verification/shared"
)

// ShowScreen hands a screen to the kiosk's display. The host drops requests
// it has already shown, so retries are safe.
func (a *Activities) ShowScreen(ctx context.Context, req shared.ScreenRequest) error {
	logger := activity.GetLogger(ctx)

	if !req.Screen.Valid() {
		logger.Error("Refusing unknown screen", "kioskId", req.KioskID, "screen", req.Screen)
		return temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("unknown screen %q", req.Screen),
			shared.ErrTypeUnknownScreen,
			nil,
		)
	}
	if a.Screens == nil {
		return temporal.NewNonRetryableApplicationError("no display attached", shared.ErrTypeScreenUnavailable, nil)
	}

	if err := a.Screens.Present(ctx, req); err != nil {
		if errors.Is(err, shared.ErrHostStopped) {
			return temporal.NewNonRetryableApplicationError("display stopped", shared.ErrTypeScreenUnavailable, err)
		}
		return fmt.Errorf("failed to present %s: %w", req.Screen, err)
	}

	logger.Info("Screen presented",
		"kioskId", req.KioskID,
		"screen", req.Screen,
		"screenSeq", req.Flow.ScreenSeq,
	)
	return nil
}
