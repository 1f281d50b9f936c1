package spyglass

// Version is the release of the spyglass module and CLI.
const Version = "0.1.0"
