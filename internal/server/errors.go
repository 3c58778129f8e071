package server

import (
	"errors"
	"strconv"
)

var errInvalidLimit = errors.New("limit must be an integer between 1 and " + strconv.Itoa(MaxLimit))
