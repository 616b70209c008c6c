package workflows

import "kiosk-age-verification/activities"

// a is only used for method references in workflow.ExecuteActivity. The
// registered instance lives on the kiosk worker.
var a *activities.Activities
