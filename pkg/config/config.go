package config

import "github.com/queuetools/monitorq/internal/testbench"

// Config is an alias for testbench.Config. This allows other programs to
// import the bench concurrency configuration without reaching into the
// internal testbench package.
type Config = testbench.Config
