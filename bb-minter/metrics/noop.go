package metrics

type NoopMetrics struct{}

var _ Metricer = (*NoopMetrics)(nil)

func (*NoopMetrics) RecordTick()              {}
func (*NoopMetrics) RecordFetchError()        {}
func (*NoopMetrics) RecordMintAttempt()       {}
func (*NoopMetrics) RecordMintSuccess()       {}
func (*NoopMetrics) RecordMintFailure(string) {}
func (*NoopMetrics) RecordInflight(int64)     {}
