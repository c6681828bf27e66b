package jobs

import (
	"context"
	"fmt"

	"github.com/attendance-hub/attendance-tracker/internal/application/query"
	"github.com/attendance-hub/attendance-tracker/pkg/logger"
)

// ══════════════════════════════════════════════════════════════════════════════
// RISK REPORT JOB
// ══════════════════════════════════════════════════════════════════════════════

// RiskReportJob logs the active semester's attendance summary and every
// subject below the risk threshold.
type RiskReportJob struct {
	report *query.GetAttendanceReportHandler
	log    *logger.Logger
}

// NewRiskReportJob creates the job over state.
func NewRiskReportJob(state query.StateReader, log *logger.Logger) *RiskReportJob {
	if log == nil {
		log = logger.Nop()
	}
	return &RiskReportJob{
		report: query.NewGetAttendanceReportHandler(state),
		log:    log.With(logger.Component("risk_report")),
	}
}

func (j *RiskReportJob) Name() string { return "risk_report" }

func (j *RiskReportJob) Description() string {
	return "Log overall attendance and the subjects at risk"
}

func (j *RiskReportJob) Run(ctx context.Context) error {
	r, err := j.report.Handle(ctx, query.GetAttendanceReportQuery{})
	if err != nil {
		return fmt.Errorf("build attendance report: %w", err)
	}

	j.log.Info("attendance summary",
		logger.SemesterID(r.SemesterID),
		logger.Date(r.Today),
		logger.Int("overall_percentage", r.Overall.Overall.Percentage),
		logger.Int("theory_percentage", r.Overall.Theory.Percentage),
		logger.Int("lab_percentage", r.Overall.Lab.Percentage),
		logger.Int("at_risk", len(r.AtRisk)),
	)
	for _, st := range r.AtRisk {
		j.log.Warn("subject at risk",
			logger.SubjectID(st.Subject.ID),
			logger.String("subject", st.Subject.Name),
			logger.Int("attended", st.Attended),
			logger.Int("conducted", st.Conducted),
			logger.Int("percentage", st.Percentage),
		)
	}
	return nil
}
