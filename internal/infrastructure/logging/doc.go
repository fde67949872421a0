// Package logging sets up the bridge's log/slog logger.
//
// The format is one of json, text or console; console output goes through
// tint and is colourised only on a terminal. Output is stdout, stderr or
// the local syslog daemon, falling back to stderr when syslog cannot be
// reached. Every entry carries service and version fields.
//
// The level can move at runtime: MoreVerbose and LessVerbose step it one
// slog level at a time, which the binary wires to -v and to SIGUSR2 and
// SIGUSR1.
//
//	logging:
//	  level: "info"          # debug, info, warn, error
//	  format: "json"         # json, text, console
//	  output: "stdout"       # stdout, stderr, syslog
//	  syslog_tag: "ruuvibridge"
//
//	logger := logging.New(cfg.Logging, version)
//	defer logger.Close()
//	logger.Info("subscribed", "topic", cfg.MQTT.Topic)
//
// Broker passwords and tokens must never appear in log fields.
package logging
