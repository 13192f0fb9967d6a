package heuristic

import "github.com/medsafety-mcp-server/internal/domain"

// DefaultVersion identifies the compiled-in dataset. Bump it whenever an
// entry is added, removed, or reworded.
const DefaultVersion = "2025.2"

// Default builds the compiled-in fallback table. The selection is limited
// to interactions with unambiguous literature support, weighted toward
// combinations seen in oncology medication lists.
func Default() (*Table, error) {
	return NewTable(DefaultVersion, defaultEntries)
}

var defaultEntries = []Entry{
	{
		Drugs:         [2]string{"warfarin", "aspirin"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Additive anticoagulant and antiplatelet effects",
		Effect:        "greatly increased risk of bleeding, including GI and intracranial hemorrhage",
		Management:    "Avoid the combination unless a compelling indication exists; if unavoidable, use the lowest aspirin dose, monitor INR closely, and counsel on bleeding precautions.",
		EvidenceLevel: "established",
		Sources: []string{
			"Hansten PD, Horn JR. Top 100 Drug Interactions.",
			"Warfarin sodium prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"warfarin", "ibuprofen"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "NSAID platelet inhibition and gastric mucosal injury on top of anticoagulation",
		Effect:        "increased risk of serious GI bleeding",
		Management:    "Prefer acetaminophen for analgesia; if an NSAID is required, add gastroprotection and monitor for bleeding.",
		EvidenceLevel: "established",
		Sources: []string{
			"Warfarin sodium prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"metformin", "contrastmedia"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Iodinated contrast can precipitate renal impairment, reducing metformin clearance",
		Effect:        "risk of metformin-associated lactic acidosis",
		Management:    "Hold metformin at the time of contrast administration and for 48 hours after; re-evaluate renal function before restarting.",
		EvidenceLevel: "established",
		Sources: []string{
			"ACR Manual on Contrast Media.",
		},
	},
	{
		Drugs:         [2]string{"methotrexate", "trimethoprim"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Sequential dihydrofolate reductase blockade and reduced renal tubular secretion of methotrexate",
		Effect:        "myelosuppression and pancytopenia, reported even with low-dose methotrexate",
		Management:    "Avoid trimethoprim-containing antibiotics in patients on methotrexate; choose an alternative antimicrobial.",
		EvidenceLevel: "established",
		Sources: []string{
			"Methotrexate prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"methotrexate", "ibuprofen"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "NSAIDs reduce renal perfusion and compete for tubular secretion of methotrexate",
		Effect:        "elevated methotrexate levels with marrow and mucosal toxicity",
		Management:    "Avoid NSAIDs around moderate and high-dose methotrexate; verify levels and renal function if co-exposure occurs.",
		EvidenceLevel: "established",
		Sources: []string{
			"Methotrexate prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"capecitabine", "warfarin"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Fluoropyrimidine inhibition of CYP2C9 potentiates warfarin",
		Effect:        "marked INR elevation and bleeding, sometimes weeks after starting therapy",
		Management:    "Prefer a non-vitamin-K anticoagulant during fluoropyrimidine therapy; otherwise check INR at least weekly.",
		EvidenceLevel: "established",
		Sources: []string{
			"Capecitabine prescribing information (FDA label), boxed warning.",
		},
	},
	{
		Drugs:         [2]string{"fluorouracil", "warfarin"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Fluoropyrimidine inhibition of CYP2C9 potentiates warfarin",
		Effect:        "marked INR elevation and bleeding",
		Management:    "Prefer a non-vitamin-K anticoagulant during fluoropyrimidine therapy; otherwise check INR at least weekly.",
		EvidenceLevel: "established",
		Sources: []string{
			"Fluorouracil prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"tamoxifen", "fluoxetine"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Strong CYP2D6 inhibition blocks conversion of tamoxifen to endoxifen",
		Effect:        "reduced tamoxifen efficacy and higher breast cancer recurrence risk",
		Management:    "Switch to an antidepressant with minimal CYP2D6 inhibition, such as venlafaxine or citalopram.",
		EvidenceLevel: "established",
		Sources: []string{
			"Kelly CM et al. BMJ 2010;340:c693.",
		},
	},
	{
		Drugs:         [2]string{"clopidogrel", "omeprazole"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "CYP2C19 inhibition reduces formation of clopidogrel's active metabolite",
		Effect:        "diminished antiplatelet effect and higher thrombotic event risk",
		Management:    "Use pantoprazole if acid suppression is needed, or separate to an H2 antagonist.",
		EvidenceLevel: "established",
		Sources: []string{
			"Clopidogrel prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"simvastatin", "clarithromycin"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Strong CYP3A4 inhibition raises statin exposure many-fold",
		Effect:        "myopathy and rhabdomyolysis",
		Management:    "Suspend simvastatin for the duration of clarithromycin therapy, or use azithromycin instead.",
		EvidenceLevel: "established",
		Sources: []string{
			"Simvastatin prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"warfarin", "fluconazole"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "CYP2C9 inhibition reduces warfarin clearance",
		Effect:        "INR elevation and bleeding",
		Management:    "Reduce warfarin dose preemptively and monitor INR within 3-5 days of starting fluconazole.",
		EvidenceLevel: "established",
		Sources: []string{
			"Fluconazole prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"allopurinol", "azathioprine"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Xanthine oxidase inhibition blocks azathioprine catabolism",
		Effect:        "severe myelosuppression",
		Management:    "Avoid the combination; if unavoidable, reduce azathioprine to 25-33% of the usual dose and monitor blood counts weekly.",
		EvidenceLevel: "established",
		Sources: []string{
			"Azathioprine prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"tramadol", "fluoxetine"},
		Severity:      domain.SeverityMajor,
		Mechanism:     "Additive serotonergic activity and CYP2D6 inhibition of tramadol activation",
		Effect:        "serotonin syndrome risk alongside reduced analgesia",
		Management:    "Prefer a non-serotonergic analgesic; if combined, monitor for agitation, clonus, and hyperthermia.",
		EvidenceLevel: "established",
		Sources: []string{
			"Tramadol prescribing information (FDA label).",
		},
	},
	{
		Drugs:         [2]string{"nitroglycerin", "sildenafil"},
		Severity:      domain.SeverityContraindicated,
		Mechanism:     "PDE5 inhibition potentiates nitrate-induced vasodilation",
		Effect:        "profound, refractory hypotension",
		Management:    "Never co-administer; allow at least 24 hours after sildenafil before any nitrate.",
		EvidenceLevel: "established",
		Sources: []string{
			"Sildenafil prescribing information (FDA label), contraindications.",
		},
	},
}
