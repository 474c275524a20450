package usecase

// Recorder receives engine measurements.
type Recorder interface {
	ObserveTransition(from, to string, rule int)
	ObserveEffect(kind, status string)
	ObserveCharge(result string)
	ObserveNotification(outcome, result string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveTransition(string, string, int) {}
func (nopRecorder) ObserveEffect(string, string) {}
func (nopRecorder) ObserveCharge(string) {}
func (nopRecorder) ObserveNotification(string, string) {}

func recorderOrNop(r Recorder) Recorder {
	if r == nil {
		return nopRecorder{}
	}
	return r
}
