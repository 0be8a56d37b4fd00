package reasoning

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"multiverse-spatial/internal/scenegraph"
)

// Base severities per vulnerability type.
const (
	lineOfSightSeverity        = 0.8
	exposedPositionSeverity    = 0.7
	heightDisadvantageSeverity = 0.9

	// heightMargin is how far above the viewpoint a threat must be to matter.
	heightMargin = 1.0
)

// AssessThreat reports how exposed viewpoint is to the threats it can see.
func (e *Engine) AssessThreat(viewpoint *scenegraph.Node) (report ThreatReport) {
	report = newReport(viewpoint, e.Tier())
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("spatial operation failed",
				zap.String("operation", "assess_threat"), zap.Any("panic", r), zap.Stack("stack"))
			report = newReport(viewpoint, report.Tier)
			report.Status = StatusError
			report.Error = fmt.Sprint(r)
		}
	}()
	defer e.begin()()
	return e.assessThreat(viewpoint)
}

func newReport(viewpoint *scenegraph.Node, tier int) ThreatReport {
	return ThreatReport{
		ID:              uuid.New().String(),
		ViewpointID:     nodeID(viewpoint),
		Status:          StatusOK,
		Tier:            tier,
		Vulnerabilities: []Vulnerability{},
		Recommendations: []string{},
		Timestamp:       time.Now().UTC(),
	}
}

func (e *Engine) assessThreat(viewpoint *scenegraph.Node) ThreatReport {
	report := newReport(viewpoint, e.tier)
	if viewpoint == nil {
		e.logger.Warn("assess threat: missing viewpoint")
		report.Status = StatusError
		report.Error = "no viewpoint"
		e.record("assess_threat", nil, map[string]any{"status": report.Status, "error": report.Error})
		return report
	}
	if err := viewpoint.Validate(); err != nil {
		e.logger.Warn("assess threat: invalid viewpoint", zap.Error(err))
		report.Status = StatusError
		report.Error = err.Error()
		e.record("assess_threat", map[string]any{"viewpoint": viewpoint.ID},
			map[string]any{"status": report.Status, "error": report.Error})
		return report
	}

	var threats []*scenegraph.Node
	for _, n := range e.graph.VisibleNodes(viewpoint) {
		if n.IsThreat() {
			threats = append(threats, n)
		}
	}

	for _, t := range threats {
		report.Vulnerabilities = append(report.Vulnerabilities, e.lineOfSightVulnerability(viewpoint, t))
	}

	if e.profile.Contexts {
		for _, c := range e.identifyContexts() {
			if c.Type != ContextOpenArea || !c.Bounds.Contains(viewpoint.Coordinates) {
				continue
			}
			v := Vulnerability{
				Type:      VulnerabilityExposedPosition,
				Severity:  exposedPositionSeverity,
				SourceID:  c.PrimaryID,
				ContextID: c.ID,
			}
			if cover, dist := e.nearestCover(viewpoint); cover != nil {
				v.NearestCoverID = cover.ID
				v.NearestCoverName = displayName(cover)
				v.CoverDistance = e.quantize(dist)
			}
			report.Vulnerabilities = append(report.Vulnerabilities, v)
		}
	}

	for _, t := range threats {
		diff := t.Coordinates.Y - viewpoint.Coordinates.Y
		if diff <= heightMargin {
			continue
		}
		report.Vulnerabilities = append(report.Vulnerabilities, Vulnerability{
			Type:             VulnerabilityHeightDisadvantage,
			Severity:         heightDisadvantageSeverity,
			SourceID:         t.ID,
			SourceName:       displayName(t),
			Distance:         e.quantize(viewpoint.DistanceTo(t)),
			HeightDifference: e.quantize(diff),
		})
	}

	report.OverallThreatLevel = overallThreat(report.Vulnerabilities)
	report.Recommendations = recommendations(report.Vulnerabilities, report.OverallThreatLevel)

	e.logger.Debug("threat assessed",
		zap.String("viewpoint", viewpoint.ID),
		zap.Int("threats", len(threats)),
		zap.Int("vulnerabilities", len(report.Vulnerabilities)),
		zap.Float64("overall", report.OverallThreatLevel))
	e.record("assess_threat",
		map[string]any{"viewpoint": viewpoint.ID},
		map[string]any{
			"report_id":       report.ID,
			"vulnerabilities": len(report.Vulnerabilities),
			"overall":         report.OverallThreatLevel,
		})
	return report
}

func (e *Engine) lineOfSightVulnerability(viewpoint, threat *scenegraph.Node) Vulnerability {
	v := Vulnerability{
		Type:       VulnerabilityLineOfSight,
		Severity:   lineOfSightSeverity,
		SourceID:   threat.ID,
		SourceName: displayName(threat),
		Distance:   e.quantize(viewpoint.DistanceTo(threat)),
	}
	for _, n := range e.findBetween(viewpoint, threat) {
		if n.CanProvideCover() {
			v.CoverNodes = append(v.CoverNodes, n.ID)
		}
	}
	v.PartialCoverAvailable = len(v.CoverNodes) > 0

	if !e.profile.Occlusion {
		e.recordLineOfSight(viewpoint, threat)
		return v
	}
	blocked := false
	for _, r := range e.analyzeOcclusion(viewpoint, threat) {
		v.Occlusion = math.Max(v.Occlusion, r.Metrics["occlusion_strength"])
		if r.Type == RelationCompletelyOccludedBy {
			blocked = true
		}
	}
	if !blocked {
		e.recordLineOfSight(viewpoint, threat)
	}
	return v
}

// nearestCover returns the closest node that can shield the viewpoint.
func (e *Engine) nearestCover(viewpoint *scenegraph.Node) (*scenegraph.Node, float64) {
	var best *scenegraph.Node
	bestDist := math.Inf(1)
	for _, n := range e.graph.Nodes() {
		if n.ID == viewpoint.ID || !n.CanProvideCover() || n.IsThreat() {
			continue
		}
		if d := viewpoint.DistanceTo(n); d < bestDist {
			best, bestDist = n, d
		}
	}
	return best, bestDist
}

// overallThreat weights the worst finding against the average one.
func overallThreat(vulns []Vulnerability) float64 {
	if len(vulns) == 0 {
		return 0
	}
	maxSev, sum := 0.0, 0.0
	for _, v := range vulns {
		maxSev = math.Max(maxSev, v.Severity)
		sum += v.Severity
	}
	return 0.7*maxSev + 0.3*sum/float64(len(vulns))
}

func recommendations(vulns []Vulnerability, overall float64) []string {
	out := make([]string, 0, len(vulns)+1)
	for _, v := range vulns {
		switch v.Type {
		case VulnerabilityLineOfSight:
			if v.PartialCoverAvailable {
				out = append(out, fmt.Sprintf("Move behind cover between you and %s to break line of sight", v.SourceName))
			} else {
				out = append(out, fmt.Sprintf("Break line of sight with %s: no cover on the direct path", v.SourceName))
			}
		case VulnerabilityExposedPosition:
			if v.NearestCoverID != "" {
				out = append(out, fmt.Sprintf("Seek nearest cover at %s (%.1f away)", v.NearestCoverName, v.CoverDistance))
			} else {
				out = append(out, "Leave the open area: no cover nearby")
			}
		case VulnerabilityHeightDisadvantage:
			out = append(out, fmt.Sprintf("Seek higher ground: %s is %.1f above you", v.SourceName, v.HeightDifference))
		}
	}
	switch {
	case overall > 0.8:
		out = append(out, "High threat level: take immediate defensive action")
	case overall > 0.5:
		out = append(out, "Moderate threat level: proceed with caution")
	default:
		out = append(out, "Low threat level: stay alert")
	}
	return out
}

func displayName(n *scenegraph.Node) string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}
