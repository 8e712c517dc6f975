package reporter

import (
	"fmt"
	"io"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"

	appconfig "arbiscan/config"
	"arbiscan/logger"
	"arbiscan/models"
)

// OpportunityLog appends every opportunity of every snapshot to a rotated
// file, one line per opportunity. The file is the flat audit trail of what
// the engine saw, profitable or not.
type OpportunityLog struct {
	out io.Writer
	log *logger.Log
}

// NewOpportunityLog builds the file sink with rotation per configuration.
func NewOpportunityLog(cfg appconfig.OpportunityLogConfig) *OpportunityLog {
	path := cfg.Path
	if path == "" {
		path = "logs/opportunities.log"
	}
	return &OpportunityLog{
		out: &lumberjack.Logger{
			Filename:   path,
			MaxSize:    cfg.MaxSize,
			MaxAge:     cfg.MaxAge,
			MaxBackups: 5,
			Compress:   true,
		},
		log: logger.GetLogger(),
	}
}

func (l *OpportunityLog) Report(s *models.Snapshot) {
	ts := s.StartedAt.Format(time.RFC3339)
	for _, o := range s.Opportunities {
		if _, err := fmt.Fprintf(l.out, "%s snapshot=%s %s\n", ts, s.ID, o); err != nil {
			l.log.WithComponent("opportunity_log").WithError(err).Warn("failed to append opportunity")
			return
		}
	}
}
