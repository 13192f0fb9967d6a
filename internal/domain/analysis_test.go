package domain

import (
	"encoding/json"
	"testing"
)

func TestAnalysisRequestValidate(t *testing.T) {
	payload := json.RawMessage(`{"medications":[{"name":"warfarin"}]}`)

	tests := []struct {
		name    string
		req     AnalysisRequest
		wantErr bool
		field   string
	}{
		{
			name: "valid DDI request",
			req:  AnalysisRequest{AnalysisType: AnalysisDDI, PatientID: "patient-1", Payload: payload},
		},
		{
			name:    "unsupported analysis type",
			req:     AnalysisRequest{AnalysisType: "TRIAGE", PatientID: "patient-1", Payload: payload},
			wantErr: true,
			field:   "analysisType",
		},
		{
			name:    "missing patient identifier",
			req:     AnalysisRequest{AnalysisType: AnalysisDDI, PatientID: "  ", Payload: payload},
			wantErr: true,
			field:   "patientId",
		},
		{
			name:    "missing payload",
			req:     AnalysisRequest{AnalysisType: AnalysisDDI, PatientID: "patient-1"},
			wantErr: true,
			field:   "payload",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			ve, ok := err.(*ValidationError)
			if !ok {
				t.Fatalf("expected *ValidationError, got %T", err)
			}
			if ve.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, ve.Field)
			}
		})
	}
}

func TestDDIPayloadValidate(t *testing.T) {
	empty := DDIPayload{}
	if err := empty.Validate(); err == nil {
		t.Error("empty medication list must fail validation")
	}

	blankName := DDIPayload{Medications: []MedicationReference{{Name: "  "}}}
	if err := blankName.Validate(); err == nil {
		t.Error("blank medication name must fail validation")
	}

	ok := DDIPayload{Medications: []MedicationReference{{Name: "warfarin"}, {Name: "aspirin"}}}
	if err := ok.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestDDIPayloadConsolidateDefault(t *testing.T) {
	p := DDIPayload{}
	if !p.ShouldConsolidate() {
		t.Error("consolidation should default to true")
	}

	off := false
	p.Consolidate = &off
	if p.ShouldConsolidate() {
		t.Error("explicit false must disable consolidation")
	}
}

func TestPGxPayloadValidate(t *testing.T) {
	tests := []struct {
		name    string
		payload PGxPayload
		wantErr bool
	}{
		{
			name: "valid",
			payload: PGxPayload{
				GenotypeResults: []PGxResult{{Gene: "CYP2D6", Genotype: "*4/*4"}},
				Medications:     []MedicationReference{{Name: "codeine"}},
			},
		},
		{
			name: "no genotypes",
			payload: PGxPayload{
				Medications: []MedicationReference{{Name: "codeine"}},
			},
			wantErr: true,
		},
		{
			name: "no medications",
			payload: PGxPayload{
				GenotypeResults: []PGxResult{{Gene: "CYP2D6"}},
			},
			wantErr: true,
		},
		{
			name: "blank gene",
			payload: PGxPayload{
				GenotypeResults: []PGxResult{{Gene: " "}},
				Medications:     []MedicationReference{{Name: "codeine"}},
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.payload.Validate()
			if tt.wantErr && err == nil {
				t.Error("expected validation error")
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestEvidencePayloadValidate(t *testing.T) {
	single := EvidencePayload{Medications: []MedicationReference{{Name: "warfarin"}}}
	if err := single.Validate(); err == nil {
		t.Error("evidence summaries need at least two medications")
	}

	pair := EvidencePayload{Medications: []MedicationReference{{Name: "warfarin"}, {Name: "aspirin"}}}
	if err := pair.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
