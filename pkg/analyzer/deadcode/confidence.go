package deadcode

// Reason codes, in the order they are reported.
const (
	ReasonUnreferenced          = "unreferenced"
	ReasonMagicName             = "magic-name"
	ReasonRegistrationDecorator = "registration-decorator"
	ReasonTestConvention        = "test-convention"
	ReasonExternalBase          = "external-base-override"
	ReasonDynamicString         = "dynamic-string-use"
	ReasonSelfReferenceOnly     = "self-reference-only"
	ReasonExported              = "exported"
)

// scorer turns unreferenced symbols into findings.
type scorer struct {
	h        Heuristics
	patterns []decoratorPattern
	idx      *Index
	in       Incoming
}

// score returns a finding for every symbol with no live incoming reference,
// in index order.
func (s *scorer) score() []Finding {
	var findings []Finding
	for i := range s.idx.Symbols {
		sym := &s.idx.Symbols[i]
		if s.in.Live.Contains(uint32(sym.ID)) {
			continue
		}
		confidence, reasons := s.confidence(sym)
		findings = append(findings, Finding{
			Symbol:     sym.ID,
			Key:        sym.Key,
			Name:       sym.Name,
			Kind:       sym.Kind,
			Location:   sym.Location,
			Size:       sym.Size(),
			Confidence: confidence,
			Reasons:    reasons,
		})
	}
	return findings
}

func (s *scorer) confidence(sym *Symbol) (int, []Reason) {
	c := s.h.BaseConfidence
	reasons := []Reason{{Code: ReasonUnreferenced}}

	penalize := func(code string, penalty int, detail string) {
		c -= penalty
		reasons = append(reasons, Reason{Code: code, Delta: -penalty, Detail: detail})
	}

	if sym.Magic {
		penalize(ReasonMagicName, s.h.MagicNamePenalty, "")
	}
	if callee, ok := matchRegistration(s.patterns, sym.Decorators); ok {
		penalize(ReasonRegistrationDecorator, s.h.RegistrationDecoratorPenalty, callee)
	}
	if IsTestFile(sym.Location.File) && isTestConvention(sym) {
		penalize(ReasonTestConvention, s.h.TestConventionPenalty, "")
	}
	if sym.Kind == KindMethod {
		if base, ok := s.externalBase(sym); ok {
			penalize(ReasonExternalBase, s.h.ExternalBasePenalty, base)
		}
	}
	if s.in.Dynamic.Contains(uint32(sym.ID)) {
		penalize(ReasonDynamicString, s.h.DynamicStringPenalty, "")
	}
	if s.in.SelfOnly.Contains(uint32(sym.ID)) {
		reasons = append(reasons, Reason{Code: ReasonSelfReferenceOnly})
	}
	if sym.Exported && c > s.h.ExportCap {
		reasons = append(reasons, Reason{Code: ReasonExported, Delta: s.h.ExportCap - c})
		c = s.h.ExportCap
	}

	return clamp(c, 0, 100), reasons
}

// externalBase reports the first base of the method's class that is not
// defined anywhere in the analyzed files. Such a method may be an override
// invoked by code we cannot see.
func (s *scorer) externalBase(method *Symbol) (string, bool) {
	owner := s.idx.Scopes[method.Scope].Owner
	if owner == NoSymbol {
		return "", false
	}
	for _, base := range s.idx.Symbols[owner].Bases {
		name := baseName(base)
		if name == "object" || name == "" {
			continue
		}
		if len(s.idx.classes[name]) == 0 {
			return base, true
		}
	}
	return "", false
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
