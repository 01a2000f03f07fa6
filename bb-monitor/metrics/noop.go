package metrics

type NoopMetrics struct{}

var _ Metricer = (*NoopMetrics)(nil)

func (*NoopMetrics) RecordPollTick()          {}
func (*NoopMetrics) RecordUpstreamError()     {}
func (*NoopMetrics) RecordIngested(string)    {}
func (*NoopMetrics) RecordConfirm(string)     {}
func (*NoopMetrics) RecordPendingMints(int64) {}
