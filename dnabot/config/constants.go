package config

import "time"

const (
	// Colors
	ErrorColor   = 0xFF0000
	SuccessColor = 0x00FF00
	InfoColor    = 0x0099FF
	WarningColor = 0xFFAA00

	EmbedDefaultColor = 0x2B2D31

	// Timeouts
	DefaultQueryTimeout = 30 * time.Second
	LoginTimeout        = 60 * time.Second
	ManualSignTimeout   = 5 * time.Minute
)
