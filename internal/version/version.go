package version

// Version is the sitegraph release, overridden at build time with -ldflags.
var Version = "0.3.0"
