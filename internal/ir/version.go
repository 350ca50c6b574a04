package ir

// EngineVersion is reported by livequery --version.
const EngineVersion = "0.1.0"
