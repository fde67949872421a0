// Package config loads the bridge's YAML configuration.
//
// Values come from three layers, later ones winning: the built-in defaults,
// the file named by --config (or RUUVIBRIDGE_CONFIG), and RUUVIBRIDGE_*
// environment variables. Broker passwords and the InfluxDB and Grafana
// tokens belong in the environment; keep the file itself at mode 0600 if
// it holds any.
//
// Every sink is optional. With the defaults the bridge subscribes to
// "ruuvi/#" on localhost, keeps state in memory, serves the diagnostic API
// on :8080 and writes nowhere until InfluxDB, Grafana or the republish
// prefix are configured.
//
//	cfg, err := config.Load("configs/config.yaml")
//	if err != nil {
//	    return err
//	}
//	interval := cfg.PollInterval()
package config
