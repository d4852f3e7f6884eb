package internal

import (
	"context"

	"github.com/lychee-technology/intake"
	"go.uber.org/zap"
)

// LogNotifier is the default Notifier: it records the completion signal in
// the structured log. Deployments wire a transactional email sender here; the
// pipeline's correctness never depends on delivery either way.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier creates a log-backed notifier.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) SubmissionReceived(ctx context.Context, schema *intake.FormSchema, sub *intake.Submission) {
	n.logger.Info("submission received",
		zap.String("submissionId", sub.ID.String()),
		zap.String("formId", schema.ID.String()),
		zap.String("form", schema.Name),
		zap.String("departmentId", schema.DepartmentID),
	)
}
