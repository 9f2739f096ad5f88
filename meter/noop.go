package meter

import translation "github.com/ahasasjeb/OpenAI-translation"

// NoopMeter is a meter that does nothing.
type NoopMeter struct{}

var _ translation.Meter = (*NoopMeter)(nil)

func (m *NoopMeter) OnCheck(translation.CheckEvent)   {}
func (m *NoopMeter) OnRecord(translation.RecordEvent) {}
