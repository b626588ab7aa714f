// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

// Package config provides configuration management for camagent.
//
// Precedence is ENV > File > Defaults. Files are parsed strictly: unknown
// keys, multiple documents and trailing content are fatal. A Holder keeps
// the active configuration and reloads it when the file changes.
package config
