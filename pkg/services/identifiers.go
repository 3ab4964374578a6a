package services

import (
	"regexp"
	"strings"
	"time"

	"github.com/freightdesk/linkage-engine/pkg/models"
)

// containerPattern is the ISO 6346 shape: owner code, equipment category,
// six digits plus a check digit. Values failing it are not container numbers.
var containerPattern = regexp.MustCompile(`^[A-Z]{3}[UJZ]\d{7}$`)

// Enrichment carries ancillary fields extracted alongside identifiers, used
// for fill-only propagation into a matched shipment.
type Enrichment struct {
	VesselName      *string
	VoyageNumber    *string
	PortOfLoading   *string
	PortOfDischarge *string
	ETD             *time.Time
	ETA             *time.Time
}

// IdentifierExtractor turns a message's entity records into a typed,
// normalized identifier set plus enrichment fields.
type IdentifierExtractor interface {
	BuildIdentifierSet(records []*models.EntityRecord) models.IdentifierSet
	BuildEnrichment(records []*models.EntityRecord) Enrichment
}

type identifierExtractor struct{}

// NewIdentifierExtractor creates a new IdentifierExtractor.
func NewIdentifierExtractor() IdentifierExtractor {
	return &identifierExtractor{}
}

var _ IdentifierExtractor = (*identifierExtractor)(nil)

// BuildIdentifierSet groups identifier records by type, normalizes values,
// drops malformed container numbers, and deduplicates per type keeping the
// highest extraction confidence.
func (e *identifierExtractor) BuildIdentifierSet(records []*models.EntityRecord) models.IdentifierSet {
	type key struct {
		t models.IdentifierType
		v string
	}
	best := make(map[key]models.Identifier)
	order := make([]key, 0, len(records))

	for _, rec := range records {
		if !rec.IsIdentifier() {
			continue
		}
		idType := models.IdentifierType(rec.EntityType)
		value := NormalizeIdentifier(idType, rec.EffectiveValue())
		if value == "" {
			continue
		}

		k := key{t: idType, v: value}
		existing, seen := best[k]
		if !seen {
			order = append(order, k)
		}
		if !seen || rec.Confidence > existing.Confidence {
			best[k] = models.Identifier{
				Type:       idType,
				Value:      value,
				Confidence: rec.Confidence,
				MessageID:  rec.MessageID,
			}
		}
	}

	var set models.IdentifierSet
	for _, k := range order {
		set.Add(best[k])
	}
	return set
}

// BuildEnrichment picks the highest-confidence record per ancillary field.
func (e *identifierExtractor) BuildEnrichment(records []*models.EntityRecord) Enrichment {
	pick := make(map[string]*models.EntityRecord)
	for _, rec := range records {
		if rec.IsIdentifier() {
			continue
		}
		existing, ok := pick[rec.EntityType]
		if !ok || rec.Confidence > existing.Confidence {
			pick[rec.EntityType] = rec
		}
	}

	var enr Enrichment
	if rec, ok := pick[models.EntityVesselName]; ok {
		enr.VesselName = strPtr(strings.TrimSpace(rec.EffectiveValue()))
	}
	if rec, ok := pick[models.EntityVoyageNumber]; ok {
		enr.VoyageNumber = strPtr(strings.TrimSpace(rec.EffectiveValue()))
	}
	if rec, ok := pick[models.EntityPortOfLoading]; ok {
		enr.PortOfLoading = strPtr(strings.TrimSpace(rec.EffectiveValue()))
	}
	if rec, ok := pick[models.EntityPortOfDischarge]; ok {
		enr.PortOfDischarge = strPtr(strings.TrimSpace(rec.EffectiveValue()))
	}
	if rec, ok := pick[models.EntityETD]; ok {
		enr.ETD = parseDate(rec.EffectiveValue())
	}
	if rec, ok := pick[models.EntityETA]; ok {
		enr.ETA = parseDate(rec.EffectiveValue())
	}
	return enr
}

// NormalizeIdentifier canonicalizes an identifier value: uppercase, no
// surrounding or internal whitespace. Container numbers additionally drop
// hyphens and must match the ISO 6346 shape.
func NormalizeIdentifier(t models.IdentifierType, value string) string {
	v := strings.ToUpper(strings.TrimSpace(value))
	v = strings.Join(strings.Fields(v), "")

	if t == models.IdentifierContainer {
		v = strings.ReplaceAll(v, "-", "")
		if !containerPattern.MatchString(v) {
			return ""
		}
	}
	return v
}

func parseDate(value string) *time.Time {
	for _, layout := range []string{"2006-01-02", time.RFC3339, "02 Jan 2006"} {
		if ts, err := time.Parse(layout, strings.TrimSpace(value)); err == nil {
			return &ts
		}
	}
	return nil
}

func strPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
