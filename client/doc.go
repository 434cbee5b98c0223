// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package client is the Go client for the CrowdCue API: a thin HTTP layer
plus the stateful adapters an audience or moderator app builds on.

# Pieces

  - Client: shared HTTP backend client with device identity and token
  - Feed: live question list with push+poll refresh, optimistic likes
  - PollFeed: live poll list with vote casting, same sync shape
  - Selector: moderator broadcast picker with per-tab history
  - Governor: login flow with lockout handling, heartbeat, audit
  - Shell: per-session composition with loading/ready/error lifecycle
  - DeviceUUID/Storage: persisted anonymous identity

# Sync model

Adapters never trust pushed payloads as state. Realtime events and the
poll ticker are both just triggers for a full re-list; overlapping
refreshes resolve latest-request-wins. Optimistic UI changes (the like
toggle) are always reconciled against the backend response, and rolled
back when the call fails.

# Errors

The taxonomy is closed: ValidationError before the network,
TransientBackendError for retryable failures, AuthError with a
classified reason for login, ErrPermissionDenied for missing moderation
rights, LockedOutError with a countdown for 423s. Nothing here panics;
the worst outcome is a stale list and a retry.

# Usage

	store, _ := client.NewFileStorage(cfgDir)
	uuid, _ := client.DeviceUUID(store)
	c := client.New("https://api.example.com", client.WithDeviceUUID(uuid))

	shell := client.NewShell(c, "XK29QD")
	if err := shell.Start(ctx); err != nil { ... }
	defer shell.Close()
*/
package client
