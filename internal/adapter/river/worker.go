package river

import (
	"context"

	"github.com/riverqueue/river"
	"go.uber.org/zap"
)

// EmailWorker processes email delivery jobs from the River queue. It
// stands in for the outbound mail provider integration; delivery is
// logged, never the token.
type EmailWorker struct {
	river.WorkerDefaults[EmailJobArgs]

	logger *zap.Logger
}

// Work processes a single email job.
func (w *EmailWorker) Work(ctx context.Context, job *river.Job[EmailJobArgs]) error {
	w.logger.Info("delivering email",
		zap.String("template", job.Args.Template),
		zap.String("email", job.Args.Email),
		zap.String("tenant_name", job.Args.TenantName),
		zap.String("onboarding_id", job.Args.OnboardingID),
		zap.Int64("job_id", job.ID),
		zap.Int("attempt", job.Attempt),
	)
	return nil
}
