package handler

import (
	"github.com/evyataryagoni/ipglobe/internal/logger"
	"github.com/evyataryagoni/ipglobe/internal/models"
)

// logSink reports background batch progress to the log, clients poll for the rest
type logSink struct {
	log *logger.Logger
}

func newLogSink(log *logger.Logger, requestID string) *logSink {
	if requestID != "" {
		log = log.WithRequestID(requestID)
	}
	return &logSink{log: log}
}

func (s *logSink) OnOutcome(index int, o models.Outcome) {
	if o.Succeeded() {
		return
	}
	s.log.WithIP(o.IP).Debug().
		Int("index", index).
		Str("error", o.Error).
		Msg("IP not located")
}

func (s *logSink) OnClusters(u models.ClusterUpdate) {
	s.log.Debug().
		Str("batch_id", u.BatchID).
		Int("clusters", len(u.Clusters)).
		Int("resolved", u.ResolvedCount).
		Bool("final", u.Final).
		Msg("Clusters refreshed")
}
