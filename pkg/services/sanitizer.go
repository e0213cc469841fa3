package services

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/provenkit/provenkit/pkg/models"
	"github.com/sirupsen/logrus"
)

type FieldAction string

const (
	FieldActionDrop    FieldAction = "drop"
	FieldActionCoarsen FieldAction = "coarsen"
	FieldActionKeep    FieldAction = "keep"
)

// SanitizerService strips or coarsens sensitive metadata before it can reach a
// claim or the audit log. The policy is data driven: adding a sensitive field
// is a configuration change, not a code change. Fields absent from the policy
// are dropped — the safe default for metadata nobody classified.
type SanitizerService interface {
	Sanitize(rawMetadata map[string]string) map[string]string
	SanitizeToAssertions(rawMetadata map[string]string, createdAt time.Time) []models.Assertion
	RedactContext(eventContext map[string]any) map[string]any
}

type SanitizerServiceBackend struct {
	policy map[string]FieldAction
	logger *logrus.Entry
}

type SanitizerServiceBuilder struct {
	Logger *logrus.Entry
	Policy map[string]string
}

func NewSanitizerService(builder SanitizerServiceBuilder) SanitizerService {
	policy := map[string]FieldAction{}
	for field, action := range builder.Policy {
		switch FieldAction(action) {
		case FieldActionDrop, FieldActionCoarsen, FieldActionKeep:
			policy[strings.ToLower(field)] = FieldAction(action)
		default:
			builder.Logger.Warnf("unknown sanitization action '%s' for field '%s'. Field will be dropped", action, field)
		}
	}

	return &SanitizerServiceBackend{
		policy: policy,
		logger: builder.Logger,
	}
}

func (svc *SanitizerServiceBackend) Sanitize(rawMetadata map[string]string) map[string]string {
	clean := map[string]string{}

	for field, value := range rawMetadata {
		action, ok := svc.policy[strings.ToLower(field)]
		if !ok {
			svc.logger.Debugf("field '%s' not covered by policy. Dropping", field)
			continue
		}

		switch action {
		case FieldActionKeep:
			clean[field] = value
		case FieldActionCoarsen:
			clean[field] = coarsenValue(value)
		case FieldActionDrop:
			continue
		}
	}

	return clean
}

func (svc *SanitizerServiceBackend) SanitizeToAssertions(rawMetadata map[string]string, createdAt time.Time) []models.Assertion {
	clean := svc.Sanitize(rawMetadata)

	fields := make([]string, 0, len(clean))
	for field := range clean {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	assertions := make([]models.Assertion, 0, len(fields))
	for _, field := range fields {
		assertions = append(assertions, models.Assertion{
			Type:      field,
			Payload:   []byte(clean[field]),
			CreatedAt: createdAt,
		})
	}

	return assertions
}

func (svc *SanitizerServiceBackend) RedactContext(eventContext map[string]any) map[string]any {
	redacted := map[string]any{}

	for field, value := range eventContext {
		action, ok := svc.policy[strings.ToLower(field)]
		if !ok {
			continue
		}

		switch action {
		case FieldActionKeep:
			redacted[field] = value
		case FieldActionCoarsen:
			redacted[field] = coarsenValue(fmt.Sprintf("%v", value))
		case FieldActionDrop:
			continue
		}
	}

	return redacted
}

// coarsenValue reduces the precision of a value instead of removing it.
// Coordinate pairs and plain numbers are rounded to one decimal degree
// (roughly city level), timestamps are truncated to the day, and anything
// else is cut down to a short prefix. Every branch is idempotent: coarsening
// an already coarsened value yields the same bytes.
func coarsenValue(value string) string {
	if lat, lon, ok := parseCoordinates(value); ok {
		return fmt.Sprintf("%.1f,%.1f", roundOneDecimal(lat), roundOneDecimal(lon))
	}

	if number, err := strconv.ParseFloat(value, 64); err == nil {
		return strconv.FormatFloat(roundOneDecimal(number), 'f', 1, 64)
	}

	if ts, err := time.Parse(time.RFC3339, value); err == nil {
		return ts.UTC().Truncate(24 * time.Hour).Format(time.RFC3339)
	}

	const prefixLen = 3
	runes := []rune(value)
	if len(runes) > prefixLen {
		return string(runes[:prefixLen]) + "…"
	}
	return value
}

func parseCoordinates(value string) (float64, float64, bool) {
	parts := strings.Split(value, ",")
	if len(parts) != 2 {
		return 0, 0, false
	}

	lat, errLat := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lon, errLon := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errLat != nil || errLon != nil {
		return 0, 0, false
	}

	return lat, lon, true
}

func roundOneDecimal(value float64) float64 {
	return float64(int64(value*10+copysignHalf(value))) / 10
}

func copysignHalf(value float64) float64 {
	if value < 0 {
		return -0.5
	}
	return 0.5
}
