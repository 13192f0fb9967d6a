package kb

import "github.com/medsafety-mcp-server/internal/domain"

// DefaultAlternatives returns a copy of the bundled alternatives dataset.
// Scores are on a 0-100 scale per axis; candidates contraindicated for a
// pharmacogenomic phenotype declare it so the ranker can exclude them for
// affected patients before scoring.
func DefaultAlternatives() []AlternativeEntry {
	out := make([]AlternativeEntry, len(defaultAlternatives))
	copy(out, defaultAlternatives)
	return out
}

var defaultAlternatives = []AlternativeEntry{
	// Analgesia in place of aspirin.
	{
		TargetName: "aspirin", CandidateName: "acetaminophen", CandidateCode: "161",
		SafetyScore: 95, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "no platelet inhibition or GI mucosal injury at analgesic doses",
	},
	{
		TargetName: "aspirin", CandidateName: "celecoxib", CandidateCode: "140587",
		SafetyScore: 82, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "COX-2 selectivity spares platelets but retains renal and cardiovascular risk",
	},

	// Opioids in place of codeine.
	{
		TargetName: "codeine", CandidateName: "morphine", CandidateCode: "7052",
		SafetyScore: 90, EfficacyScore: 92, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "active drug requiring no CYP2D6 bioactivation, predictable analgesia across metabolizer phenotypes",
	},
	{
		TargetName: "codeine", CandidateName: "hydromorphone", CandidateCode: "3423",
		SafetyScore: 88, EfficacyScore: 93, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "potent non-prodrug opioid, useful when morphine is poorly tolerated",
	},
	{
		TargetName: "codeine", CandidateName: "oxycodone", CandidateCode: "7804",
		SafetyScore: 85, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "analgesia largely independent of CYP2D6, oxymorphone contribution is minor",
	},
	{
		TargetName: "codeine", CandidateName: "tramadol", CandidateCode: "10689",
		SafetyScore: 72, EfficacyScore: 78, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "shares CYP2D6-dependent activation with codeine, offers no benefit for affected metabolizers",
		ContraindicatedPhenotype: []domain.GenePhenotype{
			{Gene: "CYP2D6", Phenotype: domain.PhenotypePoorMetabolizer},
			{Gene: "CYP2D6", Phenotype: domain.PhenotypeUltrarapidMetabolizer},
		},
	},

	// Anticoagulation in place of warfarin.
	{
		TargetName: "warfarin", CandidateName: "apixaban", CandidateCode: "1364430",
		SafetyScore: 93, EfficacyScore: 94, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "no INR monitoring, markedly fewer drug and diet interactions",
	},
	{
		TargetName: "warfarin", CandidateName: "rivaroxaban", CandidateCode: "1114195",
		SafetyScore: 90, EfficacyScore: 92, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "once-daily dosing without INR monitoring; avoid with strong CYP3A4 inhibitors",
	},
	{
		TargetName: "warfarin", CandidateName: "dalteparin", CandidateCode: "67109",
		SafetyScore: 88, EfficacyScore: 90, FormularyStatus: "prior-authorization",
		Rationale: "preferred in cancer-associated thrombosis when oral agents are unsuitable",
	},

	// NSAID replacement.
	{
		TargetName: "ibuprofen", CandidateName: "acetaminophen", CandidateCode: "161",
		SafetyScore: 96, EfficacyScore: 85, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "avoids platelet, renal, and GI effects; weaker anti-inflammatory action",
	},
	{
		TargetName: "ibuprofen", CandidateName: "celecoxib", CandidateCode: "140587",
		SafetyScore: 85, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "comparable analgesia with lower GI bleeding risk",
	},

	// Acid suppression compatible with clopidogrel.
	{
		TargetName: "omeprazole", CandidateName: "pantoprazole", CandidateCode: "40790",
		SafetyScore: 95, EfficacyScore: 93, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "minimal CYP2C19 inhibition, preserves clopidogrel activation",
	},
	{
		TargetName: "omeprazole", CandidateName: "famotidine", CandidateCode: "4278",
		SafetyScore: 92, EfficacyScore: 80, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "H2 blockade avoids CYP interactions entirely at the cost of weaker acid suppression",
	},

	// Statin replacement under CYP3A4 inhibition.
	{
		TargetName: "simvastatin", CandidateName: "rosuvastatin", CandidateCode: "301542",
		SafetyScore: 93, EfficacyScore: 95, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "not a CYP3A4 substrate, potency maintained alongside macrolides and azoles",
	},
	{
		TargetName: "simvastatin", CandidateName: "pravastatin", CandidateCode: "42463",
		SafetyScore: 95, EfficacyScore: 85, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "hydrophilic, non-CYP metabolism; moderate LDL reduction",
	},

	// Antidepressants compatible with tamoxifen.
	{
		TargetName: "fluoxetine", CandidateName: "venlafaxine", CandidateCode: "39786",
		SafetyScore: 92, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "negligible CYP2D6 inhibition, preserves endoxifen formation in tamoxifen patients",
	},
	{
		TargetName: "fluoxetine", CandidateName: "escitalopram", CandidateCode: "321988",
		SafetyScore: 91, EfficacyScore: 89, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "weak CYP2D6 inhibitor with a clean interaction profile",
	},
	{
		TargetName: "fluoxetine", CandidateName: "citalopram", CandidateCode: "2556",
		SafetyScore: 90, EfficacyScore: 88, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "weak CYP2D6 inhibitor; monitor QT at higher doses",
	},

	// Antibiotics in place of trimethoprim for methotrexate patients.
	{
		TargetName: "trimethoprim", CandidateName: "cephalexin", CandidateCode: "2231",
		SafetyScore: 93, EfficacyScore: 90, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "no folate pathway involvement, safe alongside methotrexate",
	},
	{
		TargetName: "trimethoprim", CandidateName: "doxycycline", CandidateCode: "3640",
		SafetyScore: 90, EfficacyScore: 88, FormularyStatus: domain.FormularyLikelyCovered,
		Rationale: "broad coverage without antifolate activity",
	},
}
