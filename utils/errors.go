package utils

import "errors"

// ErrUserIDNotFound is returned by GetUserIdentity when the request carries
// no authenticated subject. The auth middleware maps it to a 401.
var ErrUserIDNotFound = errors.New("authentication required: user ID not found")
