package openswarm

// Version is the current release of the openswarm memory subsystem.
const Version = "0.3.0"
