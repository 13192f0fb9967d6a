package domain

import (
	"errors"
	"testing"
)

func TestSeverityOrdering(t *testing.T) {
	tests := []struct {
		name  string
		lower Severity
		upper Severity
	}{
		{"minor below moderate", SeverityMinor, SeverityModerate},
		{"moderate below major", SeverityModerate, SeverityMajor},
		{"major below contraindicated", SeverityMajor, SeverityContraindicated},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.lower.Rank() >= tt.upper.Rank() {
				t.Errorf("expected %s to rank below %s", tt.lower, tt.upper)
			}
			if MaxSeverity(tt.lower, tt.upper) != tt.upper {
				t.Errorf("MaxSeverity(%s, %s) = %s, want %s", tt.lower, tt.upper, MaxSeverity(tt.lower, tt.upper), tt.upper)
			}
			if MaxSeverity(tt.upper, tt.lower) != tt.upper {
				t.Errorf("MaxSeverity is not commutative for %s, %s", tt.upper, tt.lower)
			}
		})
	}
}

func TestSeverityRankInvalid(t *testing.T) {
	if Severity("catastrophic").Rank() != -1 {
		t.Error("unrecognized severity should rank -1")
	}
	if Severity("catastrophic").IsValid() {
		t.Error("unrecognized severity should be invalid")
	}
}

func TestSeverityRiskLevel(t *testing.T) {
	tests := []struct {
		severity Severity
		risk     RiskLevel
	}{
		{SeverityContraindicated, RiskHigh},
		{SeverityMajor, RiskHigh},
		{SeverityModerate, RiskModerate},
		{SeverityMinor, RiskLow},
	}

	for _, tt := range tests {
		t.Run(string(tt.severity), func(t *testing.T) {
			if got := tt.severity.RiskLevel(); got != tt.risk {
				t.Errorf("RiskLevel(%s) = %s, want %s", tt.severity, got, tt.risk)
			}
		})
	}
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Severity
		wantErr bool
	}{
		{"exact", "major", SeverityMajor, false},
		{"mixed case", "Contraindicated", SeverityContraindicated, false},
		{"whitespace", "  moderate ", SeverityModerate, false},
		{"unknown value", "severe", "", true},
		{"empty", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseSeverity(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidSeverity) {
					t.Errorf("expected ErrInvalidSeverity, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("ParseSeverity(%q) = %s, want %s", tt.input, got, tt.want)
			}
		})
	}
}

func TestSourceTierConfidenceMonotonic(t *testing.T) {
	cache := TierCache.Confidence().Rank()
	curated := TierCurated.Confidence().Rank()
	heuristic := TierHeuristic.Confidence().Rank()

	if cache < curated || curated < heuristic {
		t.Errorf("tier confidence must be non-increasing: cache=%d curated=%d heuristic=%d",
			cache, curated, heuristic)
	}
}

func TestAnalysisTypeIsValid(t *testing.T) {
	valid := []AnalysisType{AnalysisDDI, AnalysisDataQuality, AnalysisEvidence, AnalysisPGx}
	for _, at := range valid {
		if !at.IsValid() {
			t.Errorf("expected %s to be valid", at)
		}
	}
	for _, at := range []AnalysisType{"", "ddi", "TRIAGE"} {
		if at.IsValid() {
			t.Errorf("expected %q to be invalid", at)
		}
	}
}

func TestRecommendationActionIsValid(t *testing.T) {
	valid := []RecommendationAction{ActionAvoid, ActionAdjustDose, ActionUseAlternative, ActionMonitor, ActionNoAction}
	for _, a := range valid {
		if !a.IsValid() {
			t.Errorf("expected %s to be valid", a)
		}
	}
	if RecommendationAction("escalate").IsValid() {
		t.Error("expected unrecognized action to be invalid")
	}
}

func TestSymmetricKey(t *testing.T) {
	if SymmetricKey("warfarin", "aspirin") != SymmetricKey("aspirin", "warfarin") {
		t.Error("symmetric key must not depend on argument order")
	}
	if SymmetricKey("a", "b") != "a|b" {
		t.Errorf("unexpected key %q", SymmetricKey("a", "b"))
	}
}

func TestDrugPairKeySymmetry(t *testing.T) {
	a := NormalizedDrug{CanonicalName: "warfarin", CanonicalCode: "11289"}
	b := NormalizedDrug{CanonicalName: "aspirin", CanonicalCode: "1191"}

	ab := DrugPair{A: a, B: b}
	ba := DrugPair{A: b, B: a}

	if ab.Key() != ba.Key() {
		t.Errorf("pair key differs by order: %q vs %q", ab.Key(), ba.Key())
	}
	if ab.NameKey() != ba.NameKey() {
		t.Errorf("pair name key differs by order: %q vs %q", ab.NameKey(), ba.NameKey())
	}
}

func TestNormalizedDrugIdentity(t *testing.T) {
	withCode := NormalizedDrug{CanonicalName: "warfarin", CanonicalCode: "11289"}
	if withCode.Identity() != "11289" {
		t.Errorf("identity should prefer code, got %q", withCode.Identity())
	}

	withoutCode := NormalizedDrug{CanonicalName: "turmeric extract"}
	if withoutCode.Identity() != "turmeric extract" {
		t.Errorf("identity should fall back to name, got %q", withoutCode.Identity())
	}
}

func TestFallbackIdentity(t *testing.T) {
	if got := FallbackIdentity("  Warfarin Sodium "); got != "warfarin sodium" {
		t.Errorf("FallbackIdentity = %q, want %q", got, "warfarin sodium")
	}
}

func TestInteractionRecordMatches(t *testing.T) {
	rec := &InteractionRecord{DrugA: "Warfarin", DrugB: "Aspirin", Severity: SeverityMajor, SourceTier: TierCurated}

	if !rec.Matches("warfarin", "aspirin") {
		t.Error("expected case-insensitive forward match")
	}
	if !rec.Matches("aspirin", "warfarin") {
		t.Error("expected reversed match")
	}
	if rec.Matches("warfarin", "ibuprofen") {
		t.Error("unexpected match for different pair")
	}
}

func TestInteractionRecordValidate(t *testing.T) {
	tests := []struct {
		name    string
		rec     InteractionRecord
		wantErr error
	}{
		{
			"valid",
			InteractionRecord{DrugA: "warfarin", DrugB: "aspirin", Severity: SeverityMajor, SourceTier: TierCurated},
			nil,
		},
		{
			"missing drug",
			InteractionRecord{DrugA: "", DrugB: "aspirin", Severity: SeverityMajor, SourceTier: TierCurated},
			ErrInvalidInput,
		},
		{
			"bad severity",
			InteractionRecord{DrugA: "warfarin", DrugB: "aspirin", Severity: "fatal", SourceTier: TierCurated},
			ErrInvalidSeverity,
		},
		{
			"bad tier",
			InteractionRecord{DrugA: "warfarin", DrugB: "aspirin", Severity: SeverityMajor, SourceTier: "guess"},
			ErrInvalidSourceTier,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.rec.Validate()
			if tt.wantErr == nil {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestPGxRecommendationCitationInvariant(t *testing.T) {
	rec := PerDrugPGxRecommendation{
		DrugName:       "codeine",
		Gene:           "CYP2D6",
		Phenotype:      PhenotypePoorMetabolizer,
		Recommendation: ActionAvoid,
		Rationale:      "No morphine conversion in poor metabolizers",
	}

	if err := rec.Validate(); err == nil {
		t.Fatal("recommendation without citations must fail validation")
	}

	rec.Citations = []string{"CPIC Guideline for Codeine and CYP2D6"}
	if err := rec.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestAlternativeBestGate(t *testing.T) {
	tests := []struct {
		name     string
		safety   int
		efficacy int
		want     bool
	}{
		{"both at threshold", 90, 90, true},
		{"both above", 95, 92, true},
		{"high efficacy low safety", 60, 99, false},
		{"high safety low efficacy", 99, 60, false},
		{"just under on one axis", 89, 100, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := AlternativeSuggestion{SafetyScore: tt.safety, EfficacyScore: tt.efficacy}
			if got := s.MeetsBestGate(); got != tt.want {
				t.Errorf("MeetsBestGate(%d, %d) = %v, want %v", tt.safety, tt.efficacy, got, tt.want)
			}
		})
	}
}

func TestCandidateContraindicatedFor(t *testing.T) {
	cand := AlternativeCandidate{
		Medication: NormalizedDrug{CanonicalName: "tramadol"},
		ContraindicatedPhenotype: []GenePhenotype{
			{Gene: "CYP2D6", Phenotype: PhenotypePoorMetabolizer},
		},
	}

	poor := PatientContext{Phenotypes: map[string]Phenotype{"CYP2D6": PhenotypePoorMetabolizer}}
	if !cand.ContraindicatedFor(poor) {
		t.Error("expected contraindication for poor metabolizer")
	}

	normal := PatientContext{Phenotypes: map[string]Phenotype{"CYP2D6": PhenotypeNormalMetabolizer}}
	if cand.ContraindicatedFor(normal) {
		t.Error("unexpected contraindication for normal metabolizer")
	}

	if cand.ContraindicatedFor(PatientContext{}) {
		t.Error("unexpected contraindication with no phenotypes known")
	}
}
