package usecase

import "errors"

var (
	ErrInvalidTileCoordinate = errors.New("invalid tile coordinate")
	ErrQueryBuild            = errors.New("failed to build tile query")
	ErrQueryExecution        = errors.New("failed to execute tile query")
	ErrCompression           = errors.New("failed to compress tile")
)
