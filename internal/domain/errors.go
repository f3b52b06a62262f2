package domain

import "errors"

var (
	ErrNotFound     = errors.New("entity not found")
	ErrUpstream     = errors.New("upstream request failed")
	ErrMalformed    = errors.New("malformed upstream response")
	ErrRateLimited  = errors.New("rate limited")
	ErrUnauthorized = errors.New("unauthorized")
	ErrTimeout      = errors.New("stage timed out")
	ErrContextDone  = errors.New("context cancelled")
)
