package steps

// StartVisionProvider brings up the primary OCR vision fake.
func (s *StepContext) StartVisionProvider() error {
	s.Vision = NewFakeVisionServer()
	s.Vision.AlwaysReturnText("")
	return nil
}

// StartVisionFallbackProvider brings up a second, healthy OCR vision fake
// for S5's failover scenario.
func (s *StepContext) StartVisionFallbackProvider() error {
	s.VisionFallback = NewFakeVisionServer()
	s.VisionFallback.AlwaysReturnText("")
	return nil
}

// StartSpeechProvider brings up the speech-to-text fake.
func (s *StepContext) StartSpeechProvider() error {
	s.Speech = NewFakeSpeechServer()
	s.Speech.SetSilent()
	return nil
}

func (s *StepContext) ConfigureVisionText(text string) {
	s.Vision.AlwaysReturnText(text)
}

func (s *StepContext) ConfigureVisionOverlayLine(overlayLine string) {
	s.Vision.AlwaysReturnOverlayPlusUniqueLine(overlayLine)
}

func (s *StepContext) ConfigureVisionRateLimitThenSucceed(n int, retryAfterSeconds, text string) {
	s.Vision.RateLimitThenSucceed(n, retryAfterSeconds, text)
}

func (s *StepContext) ConfigureVisionFallbackText(text string) {
	s.VisionFallback.AlwaysReturnText(text)
}

func (s *StepContext) ConfigureSpeechTranscript(start, end float64, text string) {
	s.Speech.SetTranscript(start, end, text)
}
