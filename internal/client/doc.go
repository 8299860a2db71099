// SPDX-License-Identifier: Apache-2.0

// Package client implements the headless client runtime.
//
// It wires the local sqlite storages, the remote-store adapter, the
// connectivity monitor, and the domain services into a single process
// lifecycle with background sync and session timers.
package client
