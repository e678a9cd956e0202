package orchestrator

// Stats is a point-in-time snapshot returned by GetStats.
type Stats struct {
	ConnectedPeers    int
	MessagesSent      int64
	MessagesReceived  int64
	AverageLatencyMS  float64
	UptimeMS          int64
	ActiveExtensions  int
	GossipEfficiency  float64
}
