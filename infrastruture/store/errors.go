package store

import "errors"

var (
	ErrMalformedEvent  = errors.New("malformed store event")
	ErrMalformedPlayer = errors.New("malformed player record")
)
