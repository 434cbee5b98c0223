// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package client

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/danielhkuo/crowdcue/realtime"
)

// reconnectDelay paces SSE reconnect attempts. The periodic poll keeps
// data flowing while the stream is down, so there is no rush.
const reconnectDelay = 3 * time.Second

// Subscribe opens the realtime change feed for a session and delivers
// events on the returned channel until ctx is cancelled. The connection
// reconnects itself after failures; subscribers must not rely on it for
// completeness, only for promptness.
func (c *Client) Subscribe(ctx context.Context, code string, topics ...realtime.Topic) <-chan realtime.Event {
	events := make(chan realtime.Event, 16)

	names := make([]string, len(topics))
	for i, t := range topics {
		names[i] = string(t)
	}
	url := c.baseURL + "/sessions/" + code + "/events?topic=" + strings.Join(names, ",")

	go func() {
		defer close(events)
		for {
			if err := c.streamOnce(ctx, url, events); err != nil && ctx.Err() == nil {
				slog.Debug("sse stream interrupted", "error", err)
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(reconnectDelay):
			}
		}
	}()

	return events
}

func (c *Client) streamOnce(ctx context.Context, url string, events chan<- realtime.Event) error {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	if c.deviceUUID != "" {
		req.Header.Set("X-Device-UUID", c.deviceUUID)
	}

	// No client timeout here; the stream is meant to stay open
	hc := &http.Client{Transport: c.httpClient.Transport}
	resp, err := hc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &apiError{StatusCode: resp.StatusCode, Message: "sse subscription rejected"}
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var data strings.Builder
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case line == "":
			if data.Len() > 0 {
				var ev realtime.Event
				if err := json.Unmarshal([]byte(data.String()), &ev); err == nil {
					select {
					case events <- ev:
					case <-ctx.Done():
						return ctx.Err()
					}
				}
				data.Reset()
			}
		case strings.HasPrefix(line, "data:"):
			data.WriteString(strings.TrimSpace(strings.TrimPrefix(line, "data:")))
		default:
			// event: and comment lines carry nothing we need
		}
	}
	return scanner.Err()
}
