package internaldefs

import (
	authkit "github.com/fynlo/authkit"
)

// CounterDef binds one client counter to its exported name.
type CounterDef struct {
	ID   authkit.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in a fixed order so both
// exporters render identical series.
var CounterDefs = []CounterDef{
	{ID: authkit.MetricLoginSuccess, Name: "authkit_login_success_total", Help: "Completed logins."},
	{ID: authkit.MetricLoginFailure, Name: "authkit_login_failure_total", Help: "Terminal login rejections."},
	{ID: authkit.MetricLoginStepUp, Name: "authkit_login_step_up_total", Help: "Login attempts answered with a step-up challenge."},
	{ID: authkit.MetricLoginTransportFailure, Name: "authkit_login_transport_failure_total", Help: "Login attempts lost to network failures."},
	{ID: authkit.MetricLogout, Name: "authkit_logout_total", Help: "Explicit logouts."},
	{ID: authkit.MetricTokenExpired, Name: "authkit_token_expired_total", Help: "Silent logouts triggered by local expiry detection."},
	{ID: authkit.MetricTokenRefreshed, Name: "authkit_token_refreshed_total", Help: "Adopted replacement tokens."},
	{ID: authkit.MetricUserFetch, Name: "authkit_user_fetch_total", Help: "Profile fetches."},
	{ID: authkit.MetricUserFetchFailure, Name: "authkit_user_fetch_failure_total", Help: "Tolerated profile fetch failures."},
	{ID: authkit.MetricPermissionRefresh, Name: "authkit_permission_refresh_total", Help: "Authoritative permission fetches."},
	{ID: authkit.MetricPermissionRefreshFailure, Name: "authkit_permission_refresh_failure_total", Help: "Swallowed permission fetch failures."},
}

// EventsDroppedName is the series for events lost to subscriber
// backpressure.
const EventsDroppedName = "authkit_events_dropped_total"

// EventsDroppedHelp describes the dropped-events series.
const EventsDroppedHelp = "Events dropped due to subscriber backpressure."
