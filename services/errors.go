package services

import "errors"

var (
	ErrPlayerNotFound   = errors.New("player not found")
	ErrInvalidUsername  = errors.New("username must be 1 to 20 characters")
	ErrRoomNotFound     = errors.New("room not found")
	ErrRoomFull         = errors.New("room is full")
	ErrRoomNotWaiting   = errors.New("room is not accepting players")
	ErrAlreadyInRoom    = errors.New("player is already in this room")
	ErrNotInRoom        = errors.New("player is not in this room")
	ErrMatchNotStarted  = errors.New("match has not started")
	ErrNotMachineMatch  = errors.New("room is not a machine match")
	ErrConclusionAbsent = errors.New("match has no conclusion")
)
