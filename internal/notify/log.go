package notify

import (
	"context"
	"log/slog"
)

// LogProvider writes OTP codes to the log instead of sending them. Development
// only; never enable it against real customers.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	return &LogProvider{logger: logger}
}

func (p *LogProvider) SendOTP(_ context.Context, mobileNumber, code string) error {
	p.logger.Info("otp dispatch (log provider)", "mobile", maskMobile(mobileNumber), "code", code)
	return nil
}

func maskMobile(mobile string) string {
	if len(mobile) <= 4 {
		return "****"
	}
	return "****" + mobile[len(mobile)-4:]
}
