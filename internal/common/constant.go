package common

// AccessTokenHeaderName carries the access token, optionally with a "Bearer " prefix.
const AccessTokenHeaderName = "Authorization"

// RefreshTokenHeaderNames are the headers checked, in order, for the refresh
// token used by the transparent refresh path.
var RefreshTokenHeaderNames = []string{"refresh-token", "refreshtoken"}
