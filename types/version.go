package types

// Version is the canonical project version, shared by the CLI and the
// notification payloads published by adapters.
const Version = "0.4.0"
