// Package services implements the shipment-linking engine: confidence
// scoring, thread authority resolution, matching, conflict handling, the
// linking orchestrator, and the backfill/reconciliation engine.
package services

import (
	"time"

	"github.com/freightdesk/linkage-engine/pkg/config"
	"github.com/freightdesk/linkage-engine/pkg/models"
)

// DecisionBand classifies a confidence score into an action.
type DecisionBand string

const (
	BandAutoLink DecisionBand = "auto_link"
	BandSuggest  DecisionBand = "suggest"
	BandNone     DecisionBand = "none"
)

// ScoreInput carries the attributes of a candidate match.
type ScoreInput struct {
	IdentifierType    models.IdentifierType
	Authority         models.EmailAuthority
	DocumentType      string
	MessageType       string
	SenderCategory    string
	MessageAt         time.Time
	ShipmentCreatedAt time.Time
	// Manual marks an operator-confirmed match, which scores the fixed
	// manual base instead of an identifier-type base.
	Manual bool
}

// ConfidenceCalculator maps a match's attributes to a confidence score in
// [0,100] with an auditable breakdown. Pure function of its input; no I/O.
type ConfidenceCalculator interface {
	Score(in ScoreInput) (int, models.ScoreBreakdown)
	Band(score int) DecisionBand
}

type confidenceCalculator struct {
	scoring config.ScoringConfig
	linking config.LinkingConfig
}

// NewConfidenceCalculator creates a calculator with the configured weights
// and decision thresholds.
func NewConfidenceCalculator(cfg *config.Config) ConfidenceCalculator {
	return &confidenceCalculator{scoring: cfg.Scoring, linking: cfg.Linking}
}

var _ ConfidenceCalculator = (*confidenceCalculator)(nil)

func (c *confidenceCalculator) Score(in ScoreInput) (int, models.ScoreBreakdown) {
	b := models.ScoreBreakdown{
		Base:           c.baseScore(in),
		Authority:      c.authorityModifier(in.Authority),
		TimeDecay:      c.timeDecay(in.MessageAt, in.ShipmentCreatedAt),
		MessageType:    c.scoring.MessageTypes[in.MessageType],
		SenderCategory: c.scoring.SenderCategories[in.SenderCategory],
	}
	if c.scoring.IsHighValueDoc(in.DocumentType) {
		b.DocumentType = c.scoring.DocumentTypeBonus
	}

	total := b.Base + b.Authority + b.DocumentType + b.TimeDecay + b.MessageType + b.SenderCategory
	if total > 100 {
		total = 100
	}
	if total < 0 {
		total = 0
	}
	b.Total = total
	return total, b
}

func (c *confidenceCalculator) Band(score int) DecisionBand {
	switch {
	case score >= c.linking.AutoLinkThreshold:
		return BandAutoLink
	case score >= c.linking.SuggestThreshold:
		return BandSuggest
	default:
		return BandNone
	}
}

func (c *confidenceCalculator) baseScore(in ScoreInput) int {
	if in.Manual {
		return c.scoring.ManualScore
	}
	switch in.IdentifierType {
	case models.IdentifierBooking:
		return c.scoring.BaseBooking
	case models.IdentifierBL:
		return c.scoring.BaseBL
	case models.IdentifierContainer:
		return c.scoring.BaseContainer
	case models.IdentifierReference:
		return c.scoring.BaseReference
	default:
		return 0
	}
}

func (c *confidenceCalculator) authorityModifier(a models.EmailAuthority) int {
	switch a {
	case models.AuthorityDirectCarrier:
		return c.scoring.AuthorityDirectCarrier
	case models.AuthorityForwardedCarrier:
		return c.scoring.AuthorityForwardedCarrier
	case models.AuthorityInternal:
		return c.scoring.AuthorityInternal
	case models.AuthorityThirdParty:
		return c.scoring.AuthorityThirdParty
	default:
		return 0
	}
}

// timeDecay penalizes distance between the message and shipment creation.
// No penalty inside the grace window; each week begun beyond it costs
// PenaltyPerWeek, floored. Documents legitimately arrive both before and
// after shipment creation, so the distance is absolute.
func (c *confidenceCalculator) timeDecay(messageAt, shipmentCreatedAt time.Time) int {
	if messageAt.IsZero() || shipmentCreatedAt.IsZero() {
		return 0
	}
	days := int(messageAt.Sub(shipmentCreatedAt).Hours() / 24)
	if days < 0 {
		days = -days
	}
	if days <= c.scoring.DecayGraceDays {
		return 0
	}
	weeks := (days - c.scoring.DecayGraceDays + 6) / 7
	penalty := weeks * c.scoring.PenaltyPerWeek
	if penalty > c.scoring.DecayFloor {
		penalty = c.scoring.DecayFloor
	}
	return -penalty
}
