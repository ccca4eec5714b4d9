/*
Package config loads the netprobe service configuration.

The configuration is assembled in layers, each later layer overriding the
earlier ones:
  - built-in defaults, see [Default];
  - an optional YAML configuration file;
  - environment variables, optionally pre-loaded from a “.env” file.

The environment variables are PORT, MAX_PARALLEL_JOBS, DATA_DIR, REDIS_ADDR,
NAMESERVER and SCAN_HISTORY.
*/
package config
