package version

// Version is the sisense-sync version, overridden at build time with
// -ldflags "-X sisense-sync/src/version.Version=v1.2.3".
var Version = "0.1.0-dev"
