package resolve

import "errors"

var errNoPayload = errors.New("extension returned no payload")
