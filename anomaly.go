package nddedup

import (
	"encoding/json"
	"fmt"
	"os"
)

// AnomalyKind classifies the non-fatal data problems found during a run.
type AnomalyKind string

const (
	AnomalyNotFound   AnomalyKind = "media-not-found"
	AnomalyEmptyGroup AnomalyKind = "empty-group"
	AnomalySplitAlbum AnomalyKind = "album-split-across-folders"
	AnomalyUndecided  AnomalyKind = "undecided-comparison"
)

// Anomaly records a data inconsistency for operator review. Anomalies
// never abort a run, they accumulate and are reported at phase end.
type Anomaly struct {
	Kind    AnomalyKind       `json:"kind"`
	Message string            `json:"message"`
	Context map[string]string `json:"context,omitempty"`
}

func (p *Processor) anomaly(kind AnomalyKind, message string, context map[string]string) {
	p.Anomalies = append(p.Anomalies, Anomaly{Kind: kind, Message: message, Context: context})
}

// SaveAnomalies writes the anomaly report as JSON, or removes a stale
// report from an earlier run when this one found nothing.
func (p *Processor) SaveAnomalies(path string) error {
	if len(p.Anomalies) == 0 {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove stale report: %w", err)
		}
		return nil
	}
	data, err := json.MarshalIndent(p.Anomalies, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal anomalies: %w", err)
	}
	return writeFileAtomic(path, data)
}
