package activities

import (
	"context"

	"kiosk-age-verification/shared"
)

// Presenter shows a screen on the kiosk display.
type Presenter interface {
	Present(ctx context.Context, req shared.ScreenRequest) error
}

// Activities is the receiver for all activity methods. The kiosk worker
// registers one instance per device with its screen host as Screens; tests
// register a zero value and mock the methods.
type Activities struct {
	Screens Presenter
}
