package models

import "errors"

// ErrNotFound is returned by stores and catalogs when a record does not exist
var ErrNotFound = errors.New("record not found")

var (
	ErrGuildFull      = errors.New("guild is full")
	ErrNotInGuild     = errors.New("player is not in this guild")
	ErrAlreadyInGuild = errors.New("player is already in a guild")
)

var (
	// ErrPlayerExists is returned when creating a player whose id is already taken
	ErrPlayerExists  = errors.New("player already exists")
	ErrUsernameTaken = errors.New("username already taken")
)
