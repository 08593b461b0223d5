package generator

import (
	"fmt"
	"strings"
)

var precedents = map[string][]string{
	"criminal": {
		"Presumption of innocence until proven guilty",
		"Burden of proof lies with prosecution",
		"Evidence must be beyond reasonable doubt",
		"Right to legal representation",
	},
	"civil": {
		"Preponderance of evidence standard",
		"Plaintiff bears burden of proof",
		"Damages must be quantifiable",
		"Equitable remedies available",
	},
	"constitutional": {
		"Fundamental rights are non-negotiable",
		"Due process must be followed",
		"Equal protection under law",
		"Judicial review principles",
	},
}

// ObjectionTypes are the common courtroom objections, most frequent first.
var ObjectionTypes = []string{
	"Hearsay",
	"Leading question",
	"Argumentative",
	"Assumes facts not in evidence",
	"Irrelevant",
	"Speculation",
	"Compound question",
	"Asked and answered",
}

// Precedents returns the principles for a case type. Types without their own
// list use the criminal principles.
func Precedents(caseType string) []string {
	if p, ok := precedents[caseType]; ok {
		return p
	}
	return precedents["criminal"]
}

// LegalContext summarizes two precedents and, for objections, three common
// objection types.
func LegalContext(caseType, action string) string {
	ctx := fmt.Sprintf("Legal precedents for %s cases: %s", caseType, strings.Join(Precedents(caseType)[:2], "; "))
	if action == "objection" {
		ctx += " Common objections: " + strings.Join(ObjectionTypes[:3], ", ")
	}
	return ctx
}
