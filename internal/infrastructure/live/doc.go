// Package live pushes device aggregates to a Grafana Live stream.
//
// Frames are InfluxDB line protocol, sent either as HTTP POSTs to
// /api/live/push/<push_id> or as text frames on a long-lived websocket to
// the same path. Grafana turns each frame into a live dashboard update.
//
// Usage:
//
//	client, err := live.Connect(ctx, cfg.Grafana)
//	if errors.Is(err, live.ErrDisabled) {
//	    // Grafana Live not configured
//	}
//	defer client.Close()
//
//	line := live.FormatLine("Temp", map[string]any{"Kitchen.temp": 21.5}, time.Now())
//	err = client.Push(ctx, []string{line})
package live
