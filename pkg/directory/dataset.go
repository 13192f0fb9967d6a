package directory

import "github.com/medsafety-mcp-server/internal/domain"

// The bundled dataset covers the medications most frequently co-prescribed in
// oncology supportive care, plus the brand and shorthand aliases clinicians
// actually type. Codes are RxNorm ingredient CUIs. Canonical generics carry a
// self-row so that looking up a generic name also yields its code.

var defaultAliases = []AliasEntry{
	// Analgesics and antipyretics.
	{Alias: "acetaminophen", CanonicalName: "acetaminophen", CanonicalCode: "161"},
	{Alias: "tylenol", CanonicalName: "acetaminophen", CanonicalCode: "161"},
	{Alias: "panadol", CanonicalName: "acetaminophen", CanonicalCode: "161"},
	{Alias: "paracetamol", CanonicalName: "acetaminophen", CanonicalCode: "161"},
	{Alias: "ibuprofen", CanonicalName: "ibuprofen", CanonicalCode: "5640"},
	{Alias: "advil", CanonicalName: "ibuprofen", CanonicalCode: "5640"},
	{Alias: "motrin", CanonicalName: "ibuprofen", CanonicalCode: "5640"},
	{Alias: "codeine", CanonicalName: "codeine", CanonicalCode: "2670"},
	{Alias: "tramadol", CanonicalName: "tramadol", CanonicalCode: "10689"},
	{Alias: "ultram", CanonicalName: "tramadol", CanonicalCode: "10689"},
	{Alias: "morphine", CanonicalName: "morphine", CanonicalCode: "7052"},

	// Anticoagulants and antiplatelets.
	{Alias: "warfarin", CanonicalName: "warfarin", CanonicalCode: "11289"},
	{Alias: "coumadin", CanonicalName: "warfarin", CanonicalCode: "11289"},
	{Alias: "jantoven", CanonicalName: "warfarin", CanonicalCode: "11289"},
	{Alias: "aspirin", CanonicalName: "aspirin", CanonicalCode: "1191"},
	{Alias: "asa", CanonicalName: "aspirin", CanonicalCode: "1191"},
	{Alias: "acetylsalicylic acid", CanonicalName: "aspirin", CanonicalCode: "1191"},
	{Alias: "clopidogrel", CanonicalName: "clopidogrel", CanonicalCode: "32968"},
	{Alias: "plavix", CanonicalName: "clopidogrel", CanonicalCode: "32968"},

	// Oncology agents.
	{Alias: "methotrexate", CanonicalName: "methotrexate", CanonicalCode: "6851"},
	{Alias: "mtx", CanonicalName: "methotrexate", CanonicalCode: "6851"},
	{Alias: "trexall", CanonicalName: "methotrexate", CanonicalCode: "6851"},
	{Alias: "capecitabine", CanonicalName: "capecitabine", CanonicalCode: "194000"},
	{Alias: "xeloda", CanonicalName: "capecitabine", CanonicalCode: "194000"},
	{Alias: "fluorouracil", CanonicalName: "fluorouracil", CanonicalCode: "4492"},
	{Alias: "5-fu", CanonicalName: "fluorouracil", CanonicalCode: "4492"},
	{Alias: "tamoxifen", CanonicalName: "tamoxifen", CanonicalCode: "10324"},
	{Alias: "nolvadex", CanonicalName: "tamoxifen", CanonicalCode: "10324"},
	{Alias: "irinotecan", CanonicalName: "irinotecan", CanonicalCode: "51499"},
	{Alias: "camptosar", CanonicalName: "irinotecan", CanonicalCode: "51499"},
	{Alias: "azathioprine", CanonicalName: "azathioprine", CanonicalCode: "1256"},
	{Alias: "imuran", CanonicalName: "azathioprine", CanonicalCode: "1256"},

	// Supportive care and chronic co-medications.
	{Alias: "metformin", CanonicalName: "metformin", CanonicalCode: "6809"},
	{Alias: "glucophage", CanonicalName: "metformin", CanonicalCode: "6809"},
	{Alias: "omeprazole", CanonicalName: "omeprazole", CanonicalCode: "7646"},
	{Alias: "prilosec", CanonicalName: "omeprazole", CanonicalCode: "7646"},
	{Alias: "pantoprazole", CanonicalName: "pantoprazole", CanonicalCode: "40790"},
	{Alias: "protonix", CanonicalName: "pantoprazole", CanonicalCode: "40790"},
	{Alias: "simvastatin", CanonicalName: "simvastatin", CanonicalCode: "36567"},
	{Alias: "zocor", CanonicalName: "simvastatin", CanonicalCode: "36567"},
	{Alias: "rosuvastatin", CanonicalName: "rosuvastatin", CanonicalCode: "301542"},
	{Alias: "crestor", CanonicalName: "rosuvastatin", CanonicalCode: "301542"},
	{Alias: "fluoxetine", CanonicalName: "fluoxetine", CanonicalCode: "4493"},
	{Alias: "prozac", CanonicalName: "fluoxetine", CanonicalCode: "4493"},
	{Alias: "citalopram", CanonicalName: "citalopram", CanonicalCode: "2556"},
	{Alias: "celexa", CanonicalName: "citalopram", CanonicalCode: "2556"},
	{Alias: "fluconazole", CanonicalName: "fluconazole", CanonicalCode: "4450"},
	{Alias: "diflucan", CanonicalName: "fluconazole", CanonicalCode: "4450"},
	{Alias: "clarithromycin", CanonicalName: "clarithromycin", CanonicalCode: "21212"},
	{Alias: "biaxin", CanonicalName: "clarithromycin", CanonicalCode: "21212"},
	{Alias: "trimethoprim", CanonicalName: "trimethoprim", CanonicalCode: "10829"},
	{Alias: "allopurinol", CanonicalName: "allopurinol", CanonicalCode: "519"},
	{Alias: "zyloprim", CanonicalName: "allopurinol", CanonicalCode: "519"},
	{Alias: "lisinopril", CanonicalName: "lisinopril", CanonicalCode: "29046"},
	{Alias: "ondansetron", CanonicalName: "ondansetron", CanonicalCode: "26225"},
	{Alias: "zofran", CanonicalName: "ondansetron", CanonicalCode: "26225"},
}

var defaultInteractions = []InteractionEntry{
	{
		CodeA: "11289", CodeB: "1191",
		NameA: "warfarin", NameB: "aspirin",
		Severity:       domain.SeverityMajor,
		Mechanism:      "additive anticoagulant and antiplatelet effects with gastric mucosal injury",
		Recommendation: "Avoid the combination when possible; if aspirin is required use the lowest effective dose, add gastroprotection, and intensify INR monitoring",
		EvidenceLevel:  "established",
		Citations: []string{
			"Hansten PD, Horn JR. The Top 100 Drug Interactions. 2024 ed.",
			"FDA prescribing information: Coumadin (warfarin sodium), 2017 revision",
		},
	},
	{
		CodeA: "11289", CodeB: "5640",
		NameA: "warfarin", NameB: "ibuprofen",
		Severity:       domain.SeverityMajor,
		Mechanism:      "platelet inhibition and gastric mucosal injury superimposed on anticoagulation; CYP2C9 competition raises warfarin exposure",
		Recommendation: "Prefer acetaminophen for analgesia; if an NSAID is unavoidable monitor INR and for signs of GI bleeding",
		EvidenceLevel:  "established",
		Citations: []string{
			"Hansten PD, Horn JR. The Top 100 Drug Interactions. 2024 ed.",
		},
	},
	{
		CodeA: "11289", CodeB: "4450",
		NameA: "warfarin", NameB: "fluconazole",
		Severity:       domain.SeverityMajor,
		Mechanism:      "fluconazole inhibits CYP2C9-mediated clearance of S-warfarin",
		Recommendation: "Reduce warfarin dose pre-emptively and recheck INR within 3 to 5 days of starting fluconazole",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA prescribing information: Diflucan (fluconazole)",
			"Hansten PD, Horn JR. The Top 100 Drug Interactions. 2024 ed.",
		},
	},
	{
		CodeA: "194000", CodeB: "11289",
		NameA: "capecitabine", NameB: "warfarin",
		Severity:       domain.SeverityMajor,
		Mechanism:      "capecitabine downregulates CYP2C9, markedly increasing warfarin exposure and INR",
		Recommendation: "Monitor INR at least weekly during and for one month after capecitabine; anticipate substantial warfarin dose reduction",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA prescribing information: Xeloda (capecitabine), boxed warning",
		},
	},
	{
		CodeA: "4492", CodeB: "11289",
		NameA: "fluorouracil", NameB: "warfarin",
		Severity:       domain.SeverityMajor,
		Mechanism:      "fluoropyrimidine suppression of CYP2C9 raises INR unpredictably",
		Recommendation: "Monitor INR weekly during fluorouracil therapy and adjust warfarin accordingly",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA prescribing information: fluorouracil injection",
		},
	},
	{
		CodeA: "10324", CodeB: "4493",
		NameA: "tamoxifen", NameB: "fluoxetine",
		Severity:       domain.SeverityMajor,
		Mechanism:      "strong CYP2D6 inhibition blocks conversion of tamoxifen to endoxifen, its active metabolite",
		Recommendation: "Switch to an antidepressant with minimal CYP2D6 inhibition such as venlafaxine or citalopram",
		EvidenceLevel:  "established",
		Citations: []string{
			"Kelly CM et al. BMJ. 2010;340:c693",
			"Goetz MP et al. CPIC guideline for CYP2D6 and tamoxifen. Clin Pharmacol Ther. 2018;103(5):770-777",
		},
	},
	{
		CodeA: "6851", CodeB: "10829",
		NameA: "methotrexate", NameB: "trimethoprim",
		Severity:       domain.SeverityMajor,
		Mechanism:      "sequential dihydrofolate reductase blockade with reduced renal tubular secretion of methotrexate",
		Recommendation: "Avoid trimethoprim-containing antibiotics during methotrexate therapy; substitute a non-folate-antagonist agent",
		EvidenceLevel:  "established",
		Citations: []string{
			"Hansten PD, Horn JR. The Top 100 Drug Interactions. 2024 ed.",
		},
	},
	{
		CodeA: "6851", CodeB: "5640",
		NameA: "methotrexate", NameB: "ibuprofen",
		Severity:       domain.SeverityModerate,
		Mechanism:      "NSAID-mediated reduction of renal perfusion delays methotrexate clearance",
		Recommendation: "Hold NSAIDs around high-dose methotrexate; with low-dose regimens monitor renal function and counts",
		EvidenceLevel:  "probable",
		Citations: []string{
			"FDA prescribing information: methotrexate injection",
		},
	},
	{
		CodeA: "32968", CodeB: "7646",
		NameA: "clopidogrel", NameB: "omeprazole",
		Severity:       domain.SeverityModerate,
		Mechanism:      "omeprazole inhibits CYP2C19 activation of clopidogrel, blunting platelet inhibition",
		Recommendation: "Use pantoprazole when a proton pump inhibitor is needed with clopidogrel",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA drug safety communication on clopidogrel and omeprazole, 2010",
		},
	},
	{
		CodeA: "36567", CodeB: "21212",
		NameA: "simvastatin", NameB: "clarithromycin",
		Severity:       domain.SeverityContraindicated,
		Mechanism:      "strong CYP3A4 inhibition raises simvastatin exposure with risk of rhabdomyolysis",
		Recommendation: "Suspend simvastatin for the duration of clarithromycin therapy or choose a non-interacting antibiotic",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA prescribing information: Zocor (simvastatin), contraindications",
		},
	},
	{
		CodeA: "519", CodeB: "1256",
		NameA: "allopurinol", NameB: "azathioprine",
		Severity:       domain.SeverityMajor,
		Mechanism:      "xanthine oxidase inhibition blocks azathioprine catabolism, causing myelosuppression",
		Recommendation: "Reduce azathioprine to 25 to 33 percent of the usual dose and monitor blood counts closely",
		EvidenceLevel:  "established",
		Citations: []string{
			"FDA prescribing information: Imuran (azathioprine)",
		},
	},
	{
		CodeA: "10689", CodeB: "4493",
		NameA: "tramadol", NameB: "fluoxetine",
		Severity:       domain.SeverityMajor,
		Mechanism:      "additive serotonergic activity and CYP2D6 inhibition of tramadol activation",
		Recommendation: "Avoid the combination; if unavoidable monitor for serotonin syndrome and expect reduced analgesia",
		EvidenceLevel:  "probable",
		Citations: []string{
			"FDA prescribing information: Ultram (tramadol)",
		},
	},
	{
		CodeA: "2670", CodeB: "4493",
		NameA: "codeine", NameB: "fluoxetine",
		Severity:       domain.SeverityModerate,
		Mechanism:      "CYP2D6 inhibition prevents conversion of codeine to morphine, reducing analgesic effect",
		Recommendation: "Choose an analgesic that does not require CYP2D6 activation",
		EvidenceLevel:  "established",
		Citations: []string{
			"Crews KR et al. CPIC guideline for CYP2D6 and opioid therapy. Clin Pharmacol Ther. 2021;110(4):888-896",
		},
	},
}
