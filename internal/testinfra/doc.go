// Recommendcore - Recommendation Request Orchestration
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/recommendcore

// Package testinfra provides containers for integration tests.
//
// Everything here is behind the "integration" build tag and needs Docker:
//
//	go test -tags integration ./internal/cache/...
//
// Tests call SkipIfNoDocker first so they skip cleanly on machines
// without a Docker daemon.
package testinfra
