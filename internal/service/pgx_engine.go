package service

import (
	"fmt"
	"sort"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/medsafety-mcp-server/internal/domain"
)

// PGxEngine maps genotype observations to metabolizer phenotypes and
// generates per-drug pharmacogenomic recommendations.
//
// Both rule sets are deterministic lookup tables following CPIC and DPWG
// guideline publications. Phenotype inference fills a phenotype in only
// when the observation has none and a rule covers the exact diplotype;
// anything else is surfaced as a gap, never silently dropped. Every action
// rule carries at least one citation: an uncited recommendation in a
// clinical tool is a safety defect, so rule authoring errors fail engine
// construction instead of being sanitized at emission time.
type PGxEngine struct {
	logger *logrus.Logger

	// phenotypesByGene maps gene -> normalized diplotype -> phenotype.
	phenotypesByGene map[string]map[string]domain.Phenotype

	// actionsByDrug maps canonical drug name -> applicable action rules.
	actionsByDrug map[string][]pgxActionRule
}

// pgxActionRule is one actionable (drug, gene, phenotype set) combination.
type pgxActionRule struct {
	Drug       string
	Gene       string
	Phenotypes []domain.Phenotype
	Action     domain.RecommendationAction
	Rationale  string
	Citations  []string
}

// NewPGxEngine creates the engine with the compiled-in rule tables. It
// panics when a compiled-in rule violates an authoring invariant (missing
// citation, unknown action, conflicting rules for one drug/gene/phenotype),
// since a defective rule table must never reach patients.
func NewPGxEngine(logger *logrus.Logger) *PGxEngine {
	if logger == nil {
		logger = logrus.New()
	}

	engine := &PGxEngine{
		logger:           logger,
		phenotypesByGene: make(map[string]map[string]domain.Phenotype),
		actionsByDrug:    make(map[string][]pgxActionRule),
	}

	engine.initializePhenotypeRules()
	engine.initializeActionRules()

	logger.WithFields(logrus.Fields{
		"genes": len(engine.phenotypesByGene),
		"drugs": len(engine.actionsByDrug),
	}).Debug("Initialized pharmacogenomic rule tables")

	return engine
}

// MapPhenotypes fills in absent phenotypes where a deterministic
// diplotype rule exists and reports every gene left without a phenotype as
// a gap. Observations arriving with a phenotype pass through untouched;
// inference never overrides a stated phenotype.
func (e *PGxEngine) MapPhenotypes(results []domain.PGxResult) ([]domain.PGxResult, []string) {
	mapped := make([]domain.PGxResult, 0, len(results))
	gaps := make([]string, 0)

	for _, result := range results {
		gene := result.NormalizedGene()
		out := domain.PGxResult{
			Gene:      gene,
			Genotype:  strings.TrimSpace(result.Genotype),
			Phenotype: result.Phenotype,
		}

		if out.Phenotype == "" {
			if out.Genotype == "" {
				gaps = append(gaps, fmt.Sprintf("%s: genotype not provided", gene))
				mapped = append(mapped, out)
				continue
			}

			diplotypes, known := e.phenotypesByGene[gene]
			if !known {
				gaps = append(gaps, fmt.Sprintf("%s: no phenotype rules for gene", gene))
				mapped = append(mapped, out)
				continue
			}

			phenotype, ok := diplotypes[normalizeDiplotype(out.Genotype)]
			if !ok {
				gaps = append(gaps, fmt.Sprintf("%s: no phenotype rule for genotype %q", gene, out.Genotype))
				mapped = append(mapped, out)
				continue
			}

			out.Phenotype = phenotype
			e.logger.WithFields(logrus.Fields{
				"gene":      gene,
				"genotype":  out.Genotype,
				"phenotype": string(phenotype),
			}).Debug("Inferred phenotype from genotype")
		}

		mapped = append(mapped, out)
	}

	return mapped, gaps
}

// Recommend evaluates every medication against every mapped result and
// emits a cited recommendation for each matching actionability rule.
// Medications and genes are evaluated independently; one drug can collect
// recommendations from several genes.
func (e *PGxEngine) Recommend(meds []domain.NormalizedDrug, mapped []domain.PGxResult) []domain.PerDrugPGxRecommendation {
	recommendations := make([]domain.PerDrugPGxRecommendation, 0)

	for _, med := range meds {
		rules, ok := e.actionsByDrug[domain.FallbackIdentity(med.CanonicalName)]
		if !ok {
			continue
		}
		for _, result := range mapped {
			if result.Phenotype == "" {
				continue
			}
			for _, rule := range rules {
				if rule.Gene != result.Gene || !rule.matchesPhenotype(result.Phenotype) {
					continue
				}
				recommendations = append(recommendations, domain.PerDrugPGxRecommendation{
					DrugName:       med.CanonicalName,
					Gene:           rule.Gene,
					Phenotype:      result.Phenotype,
					Recommendation: rule.Action,
					Rationale:      rule.Rationale,
					Citations:      append([]string(nil), rule.Citations...),
				})
			}
		}
	}

	e.logger.WithFields(logrus.Fields{
		"medications":     len(meds),
		"mapped_results":  len(mapped),
		"recommendations": len(recommendations),
	}).Debug("Completed pharmacogenomic recommendation pass")

	return recommendations
}

// KnownGenes returns the genes the phenotype table covers, sorted.
func (e *PGxEngine) KnownGenes() []string {
	genes := make([]string, 0, len(e.phenotypesByGene))
	for gene := range e.phenotypesByGene {
		genes = append(genes, gene)
	}
	sort.Strings(genes)
	return genes
}

func (r pgxActionRule) matchesPhenotype(p domain.Phenotype) bool {
	for _, candidate := range r.Phenotypes {
		if candidate == p {
			return true
		}
	}
	return false
}

// normalizeDiplotype canonicalizes a star-allele diplotype so that allele
// order and spacing never defeat a table match: "*4 / *1" and "*1/*4" both
// normalize to "*1/*4".
func normalizeDiplotype(genotype string) string {
	cleaned := strings.ToUpper(strings.ReplaceAll(genotype, " ", ""))
	alleles := strings.Split(cleaned, "/")
	if len(alleles) != 2 {
		return cleaned
	}
	if alleles[1] < alleles[0] {
		alleles[0], alleles[1] = alleles[1], alleles[0]
	}
	return alleles[0] + "/" + alleles[1]
}

// addPhenotype registers one diplotype rule under its normalized key.
func (e *PGxEngine) addPhenotype(gene, diplotype string, phenotype domain.Phenotype) {
	if !phenotype.IsValid() {
		panic(fmt.Sprintf("pgx phenotype rule %s %s: invalid phenotype %q", gene, diplotype, phenotype))
	}
	table, ok := e.phenotypesByGene[gene]
	if !ok {
		table = make(map[string]domain.Phenotype)
		e.phenotypesByGene[gene] = table
	}
	key := normalizeDiplotype(diplotype)
	if existing, dup := table[key]; dup && existing != phenotype {
		panic(fmt.Sprintf("pgx phenotype rule %s %s: conflicting phenotypes %q and %q", gene, diplotype, existing, phenotype))
	}
	table[key] = phenotype
}

// addAction registers one action rule, enforcing the authoring invariants:
// a recognized action, at least one citation, and no second rule that could
// fire for the same (drug, gene, phenotype) with different advice.
func (e *PGxEngine) addAction(rule pgxActionRule) {
	if strings.TrimSpace(rule.Drug) == "" || strings.TrimSpace(rule.Gene) == "" {
		panic(fmt.Sprintf("pgx action rule: drug and gene are required (%+v)", rule))
	}
	if !rule.Action.IsValid() {
		panic(fmt.Sprintf("pgx action rule %s/%s: invalid action %q", rule.Drug, rule.Gene, rule.Action))
	}
	if len(rule.Citations) == 0 {
		panic(fmt.Sprintf("pgx action rule %s/%s: at least one citation is required", rule.Drug, rule.Gene))
	}
	if len(rule.Phenotypes) == 0 {
		panic(fmt.Sprintf("pgx action rule %s/%s: at least one phenotype is required", rule.Drug, rule.Gene))
	}

	drugKey := domain.FallbackIdentity(rule.Drug)
	for _, existing := range e.actionsByDrug[drugKey] {
		if existing.Gene != rule.Gene {
			continue
		}
		for _, p := range rule.Phenotypes {
			if existing.matchesPhenotype(p) {
				panic(fmt.Sprintf("pgx action rule %s/%s: conflicting rules for phenotype %q", rule.Drug, rule.Gene, p))
			}
		}
	}

	e.actionsByDrug[drugKey] = append(e.actionsByDrug[drugKey], rule)
}

// initializePhenotypeRules loads the diplotype-to-phenotype table.
// Assignments follow CPIC allele function tables for each gene.
func (e *PGxEngine) initializePhenotypeRules() {
	// CYP2D6: *3, *4, *5, *6 are no-function; *10, *41 decreased; xN duplications increased.
	e.addPhenotype("CYP2D6", "*4/*4", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*3/*4", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*4/*5", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*4/*6", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*3/*5", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*5/*5", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*4", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*5", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*2/*4", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*4/*10", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*4/*41", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*10/*10", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*2", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2D6", "*2/*2", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*41", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*1xN", domain.PhenotypeUltrarapidMetabolizer)
	e.addPhenotype("CYP2D6", "*1/*2xN", domain.PhenotypeUltrarapidMetabolizer)
	e.addPhenotype("CYP2D6", "*2/*2xN", domain.PhenotypeUltrarapidMetabolizer)

	// CYP2C19: *2, *3 no-function; *17 increased.
	e.addPhenotype("CYP2C19", "*2/*2", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2C19", "*2/*3", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2C19", "*3/*3", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2C19", "*1/*2", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2C19", "*1/*3", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2C19", "*2/*17", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2C19", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2C19", "*1/*17", domain.PhenotypeRapidMetabolizer)
	e.addPhenotype("CYP2C19", "*17/*17", domain.PhenotypeUltrarapidMetabolizer)

	// CYP2C9: *2, *3 decreased/no-function.
	e.addPhenotype("CYP2C9", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("CYP2C9", "*1/*2", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2C9", "*1/*3", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("CYP2C9", "*2/*2", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2C9", "*2/*3", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("CYP2C9", "*3/*3", domain.PhenotypePoorMetabolizer)

	// DPYD: *2A and *13 are no-function.
	e.addPhenotype("DPYD", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("DPYD", "*1/*2A", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("DPYD", "*1/*13", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("DPYD", "*2A/*2A", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("DPYD", "*2A/*13", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("DPYD", "*13/*13", domain.PhenotypePoorMetabolizer)

	// TPMT: *2, *3A, *3B, *3C are no-function.
	e.addPhenotype("TPMT", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("TPMT", "*1/*2", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("TPMT", "*1/*3A", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("TPMT", "*1/*3B", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("TPMT", "*1/*3C", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("TPMT", "*2/*3A", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("TPMT", "*3A/*3A", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("TPMT", "*3A/*3C", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("TPMT", "*3C/*3C", domain.PhenotypePoorMetabolizer)

	// UGT1A1: *28 and *6 are decreased-function.
	e.addPhenotype("UGT1A1", "*1/*1", domain.PhenotypeNormalMetabolizer)
	e.addPhenotype("UGT1A1", "*1/*28", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("UGT1A1", "*1/*6", domain.PhenotypeIntermediateMetabolizer)
	e.addPhenotype("UGT1A1", "*28/*28", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("UGT1A1", "*6/*6", domain.PhenotypePoorMetabolizer)
	e.addPhenotype("UGT1A1", "*6/*28", domain.PhenotypePoorMetabolizer)
}

// initializeActionRules loads the per-drug actionability table. Citations
// reference the guideline publication each rule is drawn from.
func (e *PGxEngine) initializeActionRules() {
	cpicOpioids := "Crews KR, Monte AA, Huddart R, et al. Clinical Pharmacogenetics Implementation Consortium Guideline for CYP2D6, OPRM1, and COMT Genotypes and Select Opioid Therapy. Clin Pharmacol Ther. 2021;110(4):888-896."
	cpicTamoxifen := "Goetz MP, Sangkuhl K, Guchelaar HJ, et al. Clinical Pharmacogenetics Implementation Consortium (CPIC) Guideline for CYP2D6 and Tamoxifen Therapy. Clin Pharmacol Ther. 2018;103(5):770-777."
	cpicClopidogrel := "Lee CR, Luzum JA, Sangkuhl K, et al. Clinical Pharmacogenetics Implementation Consortium Guideline for CYP2C19 Genotype and Clopidogrel Therapy: 2022 Update. Clin Pharmacol Ther. 2022;112(5):959-967."
	cpicFluoropyrimidines := "Amstutz U, Henricks LM, Offer SM, et al. Clinical Pharmacogenetics Implementation Consortium (CPIC) Guideline for Dihydropyrimidine Dehydrogenase Genotype and Fluoropyrimidine Dosing: 2017 Update. Clin Pharmacol Ther. 2018;103(2):210-216."
	cpicThiopurines := "Relling MV, Schwab M, Whirl-Carrillo M, et al. Clinical Pharmacogenetics Implementation Consortium Guideline for Thiopurine Dosing Based on TPMT and NUDT15 Genotypes: 2018 Update. Clin Pharmacol Ther. 2019;105(5):1095-1105."
	dpwgIrinotecan := "Hulshof EC, Deenen MJ, Nijenhuis M, et al. Dutch Pharmacogenetics Working Group (DPWG) guideline for the gene-drug interaction between UGT1A1 and irinotecan. Eur J Hum Genet. 2023;31(9):982-987."
	cpicWarfarin := "Johnson JA, Caudle KE, Gong L, et al. Clinical Pharmacogenetics Implementation Consortium (CPIC) Guideline for Pharmacogenetics-Guided Warfarin Dosing: 2017 Update. Clin Pharmacol Ther. 2017;102(3):397-404."

	e.addAction(pgxActionRule{
		Drug:       "codeine",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
		Action:     domain.ActionAvoid,
		Rationale:  "CYP2D6 poor metabolizers cannot bioactivate codeine to morphine, so analgesia is likely to be inadequate. Use a non-codeine opioid.",
		Citations:  []string{cpicOpioids},
	})
	e.addAction(pgxActionRule{
		Drug:       "codeine",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypeUltrarapidMetabolizer},
		Action:     domain.ActionAvoid,
		Rationale:  "CYP2D6 ultrarapid metabolizers form morphine at greatly increased rates, risking life-threatening respiratory depression.",
		Citations:  []string{cpicOpioids},
	})
	e.addAction(pgxActionRule{
		Drug:       "codeine",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypeIntermediateMetabolizer},
		Action:     domain.ActionMonitor,
		Rationale:  "CYP2D6 intermediate metabolizers form less morphine from codeine; monitor for inadequate analgesia.",
		Citations:  []string{cpicOpioids},
	})

	e.addAction(pgxActionRule{
		Drug:       "tramadol",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer, domain.PhenotypeUltrarapidMetabolizer},
		Action:     domain.ActionAvoid,
		Rationale:  "Tramadol requires CYP2D6 activation; poor metabolizers get inadequate analgesia and ultrarapid metabolizers risk opioid toxicity.",
		Citations:  []string{cpicOpioids},
	})

	e.addAction(pgxActionRule{
		Drug:       "tamoxifen",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
		Action:     domain.ActionUseAlternative,
		Rationale:  "CYP2D6 poor metabolizers have markedly reduced endoxifen exposure on tamoxifen; consider an aromatase inhibitor where clinically appropriate.",
		Citations:  []string{cpicTamoxifen},
	})
	e.addAction(pgxActionRule{
		Drug:       "tamoxifen",
		Gene:       "CYP2D6",
		Phenotypes: []domain.Phenotype{domain.PhenotypeIntermediateMetabolizer},
		Action:     domain.ActionMonitor,
		Rationale:  "CYP2D6 intermediate metabolizers may have reduced endoxifen exposure on tamoxifen; avoid concomitant strong CYP2D6 inhibitors.",
		Citations:  []string{cpicTamoxifen},
	})

	e.addAction(pgxActionRule{
		Drug:       "clopidogrel",
		Gene:       "CYP2C19",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer, domain.PhenotypeIntermediateMetabolizer},
		Action:     domain.ActionUseAlternative,
		Rationale:  "Reduced CYP2C19 function impairs clopidogrel bioactivation and raises the risk of thrombotic events; prasugrel or ticagrelor are preferred.",
		Citations:  []string{cpicClopidogrel},
	})

	for _, fluoropyrimidine := range []string{"capecitabine", "fluorouracil"} {
		e.addAction(pgxActionRule{
			Drug:       fluoropyrimidine,
			Gene:       "DPYD",
			Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
			Action:     domain.ActionAvoid,
			Rationale:  "DPYD poor metabolizers are at high risk of severe or fatal fluoropyrimidine toxicity; avoid the drug class.",
			Citations:  []string{cpicFluoropyrimidines},
		})
		e.addAction(pgxActionRule{
			Drug:       fluoropyrimidine,
			Gene:       "DPYD",
			Phenotypes: []domain.Phenotype{domain.PhenotypeIntermediateMetabolizer},
			Action:     domain.ActionAdjustDose,
			Rationale:  "DPYD intermediate metabolizers clear fluoropyrimidines slowly; reduce the starting dose by 50% and titrate by toxicity.",
			Citations:  []string{cpicFluoropyrimidines},
		})
	}

	e.addAction(pgxActionRule{
		Drug:       "azathioprine",
		Gene:       "TPMT",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
		Action:     domain.ActionUseAlternative,
		Rationale:  "TPMT poor metabolizers accumulate thioguanine nucleotides on azathioprine with severe myelosuppression risk; use an alternative agent or a drastically reduced dose.",
		Citations:  []string{cpicThiopurines},
	})
	e.addAction(pgxActionRule{
		Drug:       "azathioprine",
		Gene:       "TPMT",
		Phenotypes: []domain.Phenotype{domain.PhenotypeIntermediateMetabolizer},
		Action:     domain.ActionAdjustDose,
		Rationale:  "TPMT intermediate metabolizers need a reduced azathioprine starting dose (30-80% of target) with thiopurine metabolite monitoring.",
		Citations:  []string{cpicThiopurines},
	})

	e.addAction(pgxActionRule{
		Drug:       "irinotecan",
		Gene:       "UGT1A1",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer},
		Action:     domain.ActionAdjustDose,
		Rationale:  "UGT1A1 poor metabolizers clear SN-38 slowly, raising neutropenia risk; reduce the irinotecan starting dose and escalate by tolerance.",
		Citations:  []string{dpwgIrinotecan},
	})

	e.addAction(pgxActionRule{
		Drug:       "warfarin",
		Gene:       "CYP2C9",
		Phenotypes: []domain.Phenotype{domain.PhenotypePoorMetabolizer, domain.PhenotypeIntermediateMetabolizer},
		Action:     domain.ActionAdjustDose,
		Rationale:  "Reduced CYP2C9 function lowers warfarin clearance; use a genotype-guided lower starting dose with close INR monitoring.",
		Citations:  []string{cpicWarfarin},
	})
}
